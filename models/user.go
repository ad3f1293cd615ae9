package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	FreeDailySpotLimit    = 4
	PremiumDailySpotLimit = 8
)

// User is the local player record: identity mirrored from the profile service
// plus all gamification state owned by this service.
type User struct {
	ID     string `gorm:"primaryKey;size:64" json:"id"` // same value the gateway sends as X-User-ID
	Handle string `gorm:"uniqueIndex;size:64;not null" json:"handle"`
	Email  string `gorm:"uniqueIndex;size:255;not null" json:"email"`

	Premium        bool `gorm:"not null;index" json:"premium"`
	DailySpotLimit int  `gorm:"not null" json:"daily_spot_limit"`
	SpotsRemaining int  `gorm:"not null" json:"spots_remaining"`

	TotalXP  int64 `gorm:"not null" json:"total_xp"`
	WeeklyXP int64 `gorm:"not null;index" json:"weekly_xp"`

	LastDailyReset  *time.Time `json:"last_daily_reset,omitempty"`
	LastWeeklyReset *time.Time `json:"last_weekly_reset,omitempty"`

	CurrentStreak int        `gorm:"not null" json:"current_streak"`
	LongestStreak int        `gorm:"not null" json:"longest_streak"`
	LastSpotDate  *time.Time `json:"last_spot_date,omitempty"`
	TotalSpots    int64      `gorm:"not null" json:"total_spots"`

	// LastQuotaSpendAt is when a first-of-batch spot last consumed a quota unit.
	LastQuotaSpendAt *time.Time `json:"-"`

	Timestamps
}

// NewUser returns a free-tier user with a full daily quota.
// No gorm defaults on the counters: a zero SpotsRemaining must stay zero on insert.
func NewUser(id, handle, email string) *User {
	return &User{
		ID:             id,
		Handle:         handle,
		Email:          email,
		DailySpotLimit: FreeDailySpotLimit,
		SpotsRemaining: FreeDailySpotLimit,
	}
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.DailySpotLimit == 0 {
		u.DailySpotLimit = FreeDailySpotLimit
	}
	return nil
}

// Follow is a weak identity reference between two users.
type Follow struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	FollowerID string    `gorm:"uniqueIndex:idx_follow_pair,priority:1;size:64;not null" json:"follower_id"`
	FolloweeID string    `gorm:"uniqueIndex:idx_follow_pair,priority:2;index;size:64;not null" json:"followee_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (f *Follow) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// RemoteProfile mirrors the profile service's JSON for one user (read-only).
type RemoteProfile struct {
	ExternalID string    `json:"external_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	UpdatedAt  time.Time `json:"updated_at"`
}
