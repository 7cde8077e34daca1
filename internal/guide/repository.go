package guide

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/KromaEnergia/api-guias/internal/apperr"
	"github.com/KromaEnergia/api-guias/internal/models"
	"github.com/KromaEnergia/api-guias/internal/utils/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Filter narrows the guide listing. Zero values mean "any".
type Filter struct {
	Category   string
	Difficulty string
	Language   string
	Tag        string
	Query      string
	Limit      int
	Offset     int
}

type Repository struct {
	DB      *gorm.DB
	Timeout time.Duration
}

var _ Store = (*Repository)(nil)

func NewRepository(database *gorm.DB, timeout time.Duration) *Repository {
	return &Repository{DB: database, Timeout: timeout}
}

func withSteps(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Steps", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC, id ASC") }).
		Preload("Steps.Tips")
}

// applyFilter adds the WHERE, ORDER and paging clauses for f.
func applyFilter(tx *gorm.DB, f Filter) *gorm.DB {
	if f.Category != "" {
		tx = tx.Where("category = ?", f.Category)
	}
	if f.Difficulty != "" {
		tx = tx.Where("difficulty = ?", f.Difficulty)
	}
	if f.Language != "" {
		tx = tx.Where("language = ?", f.Language)
	}
	if f.Tag != "" {
		tag, _ := json.Marshal([]string{f.Tag})
		tx = tx.Where("tags @> ?::jsonb", string(tag))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + escapeLike(q) + "%"
		tx = tx.Where("(title ILIKE ? OR description ILIKE ?)", like, like)
	}
	if f.Limit > 0 {
		tx = tx.Limit(f.Limit)
	}
	if f.Offset > 0 {
		tx = tx.Offset(f.Offset)
	}
	return tx.Order("created_at DESC, id ASC")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *Repository) List(ctx context.Context, f Filter) ([]models.Guide, error) {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	guides := []models.Guide{}
	if err := withSteps(applyFilter(tx, f)).Find(&guides).Error; err != nil {
		return nil, db.TranslateError(err)
	}
	return guides, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Guide, error) {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	var g models.Guide
	if err := withSteps(tx).First(&g, "id = ?", id).Error; err != nil {
		return nil, db.TranslateError(err)
	}
	return &g, nil
}

// Create inserts g together with its steps and tips.
func (r *Repository) Create(ctx context.Context, g *models.Guide) error {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()
	return db.TranslateError(tx.Create(g).Error)
}

// Update overwrites the guide's own columns. With replaceSteps the existing
// steps (and their tips) are deleted and g.Steps inserted in their place.
func (r *Repository) Update(ctx context.Context, g *models.Guide, replaceSteps bool) error {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	err := tx.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Guide{}).Where("id = ?", g.ID).Updates(map[string]any{
			"title":       g.Title,
			"description": g.Description,
			"category":    g.Category,
			"difficulty":  g.Difficulty,
			"duration":    g.Duration,
			"rating":      g.Rating,
			"language":    g.Language,
			"tags":        g.Tags,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNotFound
		}
		if !replaceSteps {
			return nil
		}
		if err := tx.Where("guide_id = ?", g.ID).Delete(&models.Step{}).Error; err != nil {
			return err
		}
		if len(g.Steps) == 0 {
			return nil
		}
		for i := range g.Steps {
			g.Steps[i].GuideID = g.ID
		}
		return tx.Create(&g.Steps).Error
	})
	return db.TranslateError(err)
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	res := tx.Delete(&models.Guide{}, "id = ?", id)
	if res.Error != nil {
		return db.TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// AddStep appends s to its guide. When appendLast is set s.Order is placed
// after the guide's current last step. The guide row is locked so concurrent
// appends get distinct positions.
func (r *Repository) AddStep(ctx context.Context, s *models.Step, appendLast bool) error {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	err := tx.Transaction(func(tx *gorm.DB) error {
		var g models.Guide
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&g, "id = ?", s.GuideID).Error; err != nil {
			return err
		}
		if appendLast {
			var last int
			if err := tx.Model(&models.Step{}).Where("guide_id = ?", s.GuideID).
				Select("COALESCE(MAX(position), 0)").Scan(&last).Error; err != nil {
				return err
			}
			s.Order = last + 1
		}
		return tx.Create(s).Error
	})
	return db.TranslateError(err)
}

func (r *Repository) DeleteStep(ctx context.Context, guideID, stepID uuid.UUID) error {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	res := tx.Where("guide_id = ?", guideID).Delete(&models.Step{}, "id = ?", stepID)
	if res.Error != nil {
		return db.TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *Repository) AddTip(ctx context.Context, t *models.Tip) error {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	err := tx.Transaction(func(tx *gorm.DB) error {
		var s models.Step
		if err := tx.Select("id").First(&s, "id = ?", t.StepID).Error; err != nil {
			return err
		}
		return tx.Create(t).Error
	})
	return db.TranslateError(err)
}

// StepInGuide reports whether stepID is one of guideID's steps.
func (r *Repository) StepInGuide(ctx context.Context, guideID, stepID uuid.UUID) (bool, error) {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	var n int64
	err := tx.Model(&models.Step{}).Where("id = ? AND guide_id = ?", stepID, guideID).Count(&n).Error
	return n > 0, db.TranslateError(err)
}

func (r *Repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	var n int64
	err := tx.Model(&models.Guide{}).Where("id = ?", id).Count(&n).Error
	return n > 0, db.TranslateError(err)
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	tx, cancel := db.WithTimeout(ctx, r.DB, r.Timeout)
	defer cancel()

	var n int64
	err := tx.Model(&models.Guide{}).Count(&n).Error
	return n, db.TranslateError(err)
}
