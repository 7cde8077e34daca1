package bookmark

import (
	"context"
	"time"

	"github.com/KromaEnergia/api-guias/internal/apperr"
	"github.com/KromaEnergia/api-guias/internal/models"
	"github.com/KromaEnergia/api-guias/internal/utils/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound  = apperr.New(apperr.NotFound, "user not found")
	ErrGuideNotFound = apperr.New(apperr.NotFound, "guide not found")
)

type Repository struct {
	DB      *gorm.DB
	Timeout time.Duration
}

var _ Store = (*Repository)(nil)

func NewRepository(database *gorm.DB, timeout time.Duration) *Repository {
	return &Repository{DB: database, Timeout: timeout}
}

// Toggle removes the (user, guide) bookmark if present and creates it
// otherwise. It reports whether the bookmark exists afterwards.
func (r *Repository) Toggle(ctx context.Context, userID, guideID uuid.UUID) (bool, *models.Bookmark, error) {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	var (
		added bool
		b     models.Bookmark
	)
	err := tx.Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &models.User{}, userID, ErrUserNotFound); err != nil {
			return err
		}
		if err := mustExist(tx, &models.Guide{}, guideID, ErrGuideNotFound); err != nil {
			return err
		}

		res := tx.Where("user_id = ? AND guide_id = ?", userID, guideID).Delete(&models.Bookmark{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		b = models.Bookmark{UserID: userID, GuideID: guideID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&b).Error; err != nil {
			return err
		}
		added = true
		// a concurrent toggle may have inserted first; return that row
		return tx.Preload("Guide").Where("user_id = ? AND guide_id = ?", userID, guideID).First(&b).Error
	})
	if err != nil {
		return false, nil, db.TranslateError(err)
	}
	if !added {
		return false, nil, nil
	}
	return true, &b, nil
}

func (r *Repository) List(ctx context.Context, userID uuid.UUID) ([]models.Bookmark, error) {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	out := []models.Bookmark{}
	err := tx.Preload("Guide").Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error
	return out, db.TranslateError(err)
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	var n int64
	err := tx.Model(&models.Bookmark{}).Count(&n).Error
	return n, db.TranslateError(err)
}

func mustExist(tx *gorm.DB, model any, id uuid.UUID, missing error) error {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
