package progress

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
	ErrUserNotFound     = apperr.New(apperr.NotFound, "user not found")
	ErrGuideNotFound    = apperr.New(apperr.NotFound, "guide not found")
	ErrProgressNotFound = apperr.New(apperr.NotFound, "progress not found")
	ErrStepNotInGuide   = apperr.New(apperr.BadRequest, "step does not belong to guide")
)

type Repository struct {
	DB      *gorm.DB
	Timeout time.Duration
}

var _ Store = (*Repository)(nil)

func NewRepository(database *gorm.DB, timeout time.Duration) *Repository {
	return &Repository{DB: database, Timeout: timeout}
}

// Upsert writes the single progress row of (p.UserID, p.GuideID).
func (r *Repository) Upsert(ctx context.Context, p *models.Progress) (*models.Progress, error) {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	var saved models.Progress
	err := tx.Transaction(func(tx *gorm.DB) error {
		if err := count(tx.Model(&models.User{}).Where("id = ?", p.UserID), ErrUserNotFound); err != nil {
			return err
		}
		if err := count(tx.Model(&models.Guide{}).Where("id = ?", p.GuideID), ErrGuideNotFound); err != nil {
			return err
		}
		if p.StepID != nil {
			q := tx.Model(&models.Step{}).Where("id = ? AND guide_id = ?", *p.StepID, p.GuideID)
			if err := count(q, ErrStepNotInGuide); err != nil {
				return err
			}
		}

		p.UpdatedAt = time.Now()
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "guide_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"step_id", "completed", "updated_at"}),
		}).Omit("Step").Create(p).Error
		if err != nil {
			return err
		}
		return tx.Preload("Step").Where("user_id = ? AND guide_id = ?", p.UserID, p.GuideID).First(&saved).Error
	})
	if err != nil {
		return nil, db.TranslateError(err)
	}
	return &saved, nil
}

func (r *Repository) Get(ctx context.Context, userID, guideID uuid.UUID) (*models.Progress, error) {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	var p models.Progress
	err := tx.Preload("Step").Where("user_id = ? AND guide_id = ?", userID, guideID).First(&p).Error
	if err != nil {
		return nil, db.TranslateError(err)
	}
	return &p, nil
}

func count(q *gorm.DB, missing error) error {
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
