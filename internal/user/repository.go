package user

import (
	"context"
	"time"

	"github.com/KromaEnergia/api-guias/internal/apperr"
	"github.com/KromaEnergia/api-guias/internal/auth"
	"github.com/KromaEnergia/api-guias/internal/models"
	"github.com/KromaEnergia/api-guias/internal/utils/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the Postgres-backed user store. It satisfies
// auth.CredentialStore.
type Repository struct {
	DB      *gorm.DB
	Timeout time.Duration
}

var (
	_ auth.CredentialStore = (*Repository)(nil)
	_ Store                = (*Repository)(nil)
)

func NewRepository(database *gorm.DB, timeout time.Duration) *Repository {
	return &Repository{DB: database, Timeout: timeout}
}

// ProfileChanges lists the fields PATCH /users/me may change. Nil fields are
// left as they are.
type ProfileChanges struct {
	Name  *string
	Email *string
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	var u models.User
	if err := tx.Where("email = ?", email).First(&u).Error; err != nil {
		return nil, db.TranslateError(err)
	}
	return &u, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	var u models.User
	if err := tx.First(&u, "id = ?", id).Error; err != nil {
		return nil, db.TranslateError(err)
	}
	return &u, nil
}

func (r *Repository) Create(ctx context.Context, u *models.User) error {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()
	return db.TranslateError(tx.Create(u).Error)
}

func (r *Repository) SetRefreshHash(ctx context.Context, id uuid.UUID, hash *string) error {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	res := tx.Model(&models.User{}).Where("id = ?", id).Update("refresh_token_hash", hash)
	if res.Error != nil {
		return db.TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SwapRefreshHash is a single conditional UPDATE, so of two concurrent
// refreshes presenting the same token only one matches the row.
func (r *Repository) SwapRefreshHash(ctx context.Context, id uuid.UUID, expected, next string) (bool, error) {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	res := tx.Model(&models.User{}).
		Where("id = ? AND refresh_token_hash = ?", id, expected).
		Update("refresh_token_hash", next)
	if res.Error != nil {
		return false, db.TranslateError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, changes ProfileChanges) (*models.User, error) {
	updates := map[string]any{}
	if changes.Name != nil {
		updates["name"] = *changes.Name
	}
	if changes.Email != nil {
		updates["email"] = *changes.Email
	}
	if len(updates) > 0 {
		if err := r.update(ctx, id, updates); err != nil {
			return nil, err
		}
	}
	return r.FindByID(ctx, id)
}

// SetPhoto replaces the profile photo URL and returns the user as stored.
func (r *Repository) SetPhoto(ctx context.Context, id uuid.UUID, url *string) (*models.User, error) {
	if err := r.update(ctx, id, map[string]any{"profile_photo": url}); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *Repository) update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	res := tx.Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return db.TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	var n int64
	err := tx.Model(&models.User{}).Count(&n).Error
	return n, db.TranslateError(err)
}
