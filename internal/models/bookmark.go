package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Bookmark struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_bookmark_user_guide" json:"userId"`
	GuideID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_bookmark_user_guide" json:"guideId"`
	Guide     *Guide    `gorm:"constraint:OnDelete:CASCADE" json:"guide,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (b *Bookmark) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Progress is the latest position of a user in a guide. There is at most one
// row per (user, guide).
type Progress struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_progress_user_guide" json:"userId"`
	GuideID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_progress_user_guide" json:"guideId"`
	StepID    *uuid.UUID `gorm:"type:uuid" json:"stepId,omitempty"`
	Step      *Step      `gorm:"constraint:OnDelete:SET NULL" json:"step,omitempty"`
	Completed bool       `gorm:"not null;default:false" json:"completed"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (Progress) TableName() string { return "user_progress" }

func (p *Progress) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
