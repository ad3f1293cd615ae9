package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AchievementDaily  = "daily"
	AchievementWeekly = "weekly"
)

// AchievementCompletion is one history entry of a finished reset cycle.
type AchievementCompletion struct {
	CompletedAt time.Time `json:"completed_at"`
	XPAwarded   int64     `json:"xp_awarded"`
}

// UserAchievement tracks progress toward a resettable goal.
type UserAchievement struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	UserID      string     `gorm:"uniqueIndex:idx_user_achievement,priority:1;size:64;not null" json:"-"`
	Key         string     `gorm:"uniqueIndex:idx_user_achievement,priority:2;size:64;not null" json:"key"`
	Category    string     `gorm:"type:varchar(8);not null" json:"category"`
	Name        string     `gorm:"not null" json:"name"`
	Target      int64      `gorm:"not null" json:"target"`
	TypePrefix  string     `gorm:"size:16" json:"type_prefix,omitempty"`
	XPReward    int64      `gorm:"not null" json:"xp_reward"`
	Progress    int64      `gorm:"not null" json:"progress"`
	Completed   bool       `gorm:"not null" json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	ResetDate   time.Time  `gorm:"not null" json:"reset_date"`

	History datatypes.JSONSlice[AchievementCompletion] `json:"history"`

	Timestamps
}

func (a *UserAchievement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
