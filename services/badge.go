package services

import (
	"context"
	"time"

	"plane-spot-system/logger"
	"plane-spot-system/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BadgeStats is what badge thresholds are evaluated against.
type BadgeStats struct {
	TotalSpots    int64
	CurrentStreak int
}

type badgeTrigger struct {
	models.BadgeType
	earned func(BadgeStats) bool
}

// BadgeCatalog lists every badge, in award order.
var BadgeCatalog = []badgeTrigger{
	{
		BadgeType: models.BadgeType{ID: "first-spot", Name: "First Spot", Description: "Spotted your first aircraft", Rarity: "common"},
		earned:    func(s BadgeStats) bool { return s.TotalSpots >= 1 },
	},
	{
		BadgeType: models.BadgeType{ID: "week-streak", Name: "Week Streak", Description: "Spotted on 7 consecutive days", Rarity: "rare"},
		earned:    func(s BadgeStats) bool { return s.CurrentStreak >= 7 },
	},
	{
		BadgeType: models.BadgeType{ID: "month-streak", Name: "Month Streak", Description: "Spotted on 30 consecutive days", Rarity: "epic"},
		earned:    func(s BadgeStats) bool { return s.CurrentStreak >= 30 },
	},
	{
		BadgeType: models.BadgeType{ID: "centurion", Name: "Centurion", Description: "Recorded 100 spots", Rarity: "epic"},
		earned:    func(s BadgeStats) bool { return s.TotalSpots >= 100 },
	},
}

// EvaluateBadges returns the catalog badges earned by stats that are not in held.
func EvaluateBadges(stats BadgeStats, held map[string]bool) []models.BadgeType {
	var out []models.BadgeType
	for _, trigger := range BadgeCatalog {
		if held[trigger.ID] || !trigger.earned(stats) {
			continue
		}
		out = append(out, trigger.BadgeType)
	}
	return out
}

type BadgeService struct {
	DB  *gorm.DB
	log zerolog.Logger
}

func NewBadgeService(db *gorm.DB) *BadgeService {
	return &BadgeService{DB: db, log: logger.WithComponent("badges")}
}

// AwardBadges evaluates the user's current stats and persists any new badges.
// Only badges actually inserted by this call are returned, so concurrent callers
// never both report the same grant.
func (s *BadgeService) AwardBadges(ctx context.Context, user *models.User, now time.Time) ([]models.UserBadge, error) {
	var heldIDs []string
	if err := s.DB.WithContext(ctx).Model(&models.UserBadge{}).
		Where("user_id = ?", user.ID).
		Pluck("badge_id", &heldIDs).Error; err != nil {
		return nil, err
	}
	held := make(map[string]bool, len(heldIDs))
	for _, id := range heldIDs {
		held[id] = true
	}

	var awarded []models.UserBadge
	for _, b := range EvaluateBadges(BadgeStats{TotalSpots: user.TotalSpots, CurrentStreak: user.CurrentStreak}, held) {
		ub := models.UserBadge{
			UserID:      user.ID,
			BadgeID:     b.ID,
			Name:        b.Name,
			Description: b.Description,
			Rarity:      b.Rarity,
			EarnedAt:    now.UTC(),
		}
		res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&ub)
		if res.Error != nil {
			return awarded, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		awarded = append(awarded, ub)
		s.log.Info().Str("user_id", user.ID).Str("badge", b.ID).Msg("🎖️ badge awarded")
	}
	return awarded, nil
}

// ListBadges returns a user's badges in the order they were earned.
func (s *BadgeService) ListBadges(ctx context.Context, userID string) ([]models.UserBadge, error) {
	var badges []models.UserBadge
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("earned_at ASC").
		Find(&badges).Error
	return badges, err
}
