package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BadgeType: static catalog entry
type BadgeType struct {
	ID          string // slug, e.g. "first-spot"
	Name        string
	Description string
	Rarity      string // common, rare, epic, legendary
}

// UserBadge: awarded instance. A badge ID appears at most once per user.
type UserBadge struct {
	ID          string    `gorm:"primaryKey;size:36" json:"-"`
	UserID      string    `gorm:"uniqueIndex:idx_user_badge,priority:1;size:64;not null" json:"-"`
	BadgeID     string    `gorm:"uniqueIndex:idx_user_badge,priority:2;size:64;not null" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
	Rarity      string    `gorm:"type:varchar(16)" json:"rarity"`
	EarnedAt    time.Time `gorm:"not null" json:"earned_at"`
}

func (b *UserBadge) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
