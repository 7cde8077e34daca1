package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MediaType string

const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
)

type Guide struct {
	ID          uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string                      `gorm:"not null" json:"title"`
	Description *string                     `json:"description,omitempty"`
	Category    *string                     `gorm:"index" json:"category,omitempty"`
	Difficulty  *string                     `gorm:"index" json:"difficulty,omitempty"`
	Duration    *string                     `json:"duration,omitempty"`
	Rating      float64                     `gorm:"not null;default:0" json:"rating"`
	Language    string                      `gorm:"not null;default:en" json:"language"`
	Tags        datatypes.JSONSlice[string] `gorm:"type:jsonb;not null;default:'[]'" json:"tags"`
	Steps       []Step                      `gorm:"foreignKey:GuideID;constraint:OnDelete:CASCADE" json:"steps"`
	CreatedAt   time.Time                   `json:"createdAt"`
	UpdatedAt   time.Time                   `json:"updatedAt"`
}

func (g *Guide) BeforeCreate(*gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.Language == "" {
		g.Language = "en"
	}
	if g.Tags == nil {
		g.Tags = datatypes.JSONSlice[string]{}
	}
	return nil
}

// Step is one instruction of a guide. Order is stored as "position" because
// ORDER is a reserved word.
type Step struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	GuideID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"guideId"`
	Title           string     `gorm:"not null" json:"title"`
	Body            *string    `json:"body,omitempty"`
	Order           int        `gorm:"column:position;not null;default:0" json:"order"`
	MediaURL        *string    `json:"mediaUrl,omitempty"`
	MediaType       *MediaType `gorm:"type:text" json:"mediaType,omitempty"`
	EstimateMinutes *int       `json:"estimateMinutes,omitempty"`
	Tips            []Tip      `gorm:"foreignKey:StepID;constraint:OnDelete:CASCADE" json:"tips"`
}

func (s *Step) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type Tip struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StepID uuid.UUID `gorm:"type:uuid;not null;index" json:"stepId"`
	Type   string    `gorm:"not null" json:"type"`
	Text   string    `gorm:"not null" json:"text"`
}

func (t *Tip) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
