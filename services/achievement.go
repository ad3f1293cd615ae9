package services

import (
	"context"
	"time"

	"plane-spot-system/logger"
	"plane-spot-system/models"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AchievementDef is a catalog entry; TypePrefix filters weekly spots by aircraft type.
type AchievementDef struct {
	Name       string
	Category   string
	Target     int64
	TypePrefix string
	XPReward   int64
}

func (d AchievementDef) Key() string { return slug.Make(d.Name) }

// AchievementCatalog is seeded for every user at account setup.
var AchievementCatalog = []AchievementDef{
	{Name: "Daily Spotter", Category: models.AchievementDaily, Target: 3, XPReward: 20},
	{Name: "Airbus Week", Category: models.AchievementWeekly, Target: 5, TypePrefix: "A3", XPReward: 100},
	{Name: "Boeing Week", Category: models.AchievementWeekly, Target: 5, TypePrefix: "B7", XPReward: 100},
}

// NextResetDate is the next daily or weekly boundary after now.
func NextResetDate(category string, now time.Time) time.Time {
	if category == models.AchievementWeekly {
		return NextWeeklyReset(now)
	}
	return NextDailyReset(now)
}

// achievementStep is the outcome of evaluating one achievement against a fresh count.
type achievementStep struct {
	Reset     bool
	Completed bool // transitioned false→true in this step
	Changed   bool
}

// EvaluateAchievement recomputes a in place from the authoritative count.
// Progress is overwritten, never incremented.
func EvaluateAchievement(a *models.UserAchievement, count int64, now time.Time) achievementStep {
	var step achievementStep
	if !now.Before(a.ResetDate) {
		a.Progress = 0
		a.Completed = false
		a.CompletedAt = nil
		a.ResetDate = NextResetDate(a.Category, now)
		step.Reset = true
		step.Changed = true
	}
	if a.Progress != count {
		a.Progress = count
		step.Changed = true
	}
	if a.Progress >= a.Target && !a.Completed {
		t := now.UTC()
		a.Completed = true
		a.CompletedAt = &t
		a.History = append(a.History, models.AchievementCompletion{CompletedAt: t, XPAwarded: a.XPReward})
		step.Completed = true
		step.Changed = true
	}
	return step
}

type AchievementService struct {
	DB    *gorm.DB
	Users *UserService
	now   func() time.Time
	log   zerolog.Logger
}

func NewAchievementService(db *gorm.DB, users *UserService) *AchievementService {
	return &AchievementService{
		DB:    db,
		Users: users,
		now:   func() time.Time { return time.Now().UTC() },
		log:   logger.WithComponent("achievements"),
	}
}

// EnsureAchievements seeds any catalog entries the user is missing (idempotent).
func (s *AchievementService) EnsureAchievements(ctx context.Context, userID string) error {
	now := s.now()
	rows := make([]models.UserAchievement, 0, len(AchievementCatalog))
	for _, def := range AchievementCatalog {
		rows = append(rows, models.UserAchievement{
			UserID:     userID,
			Key:        def.Key(),
			Category:   def.Category,
			Name:       def.Name,
			Target:     def.Target,
			TypePrefix: def.TypePrefix,
			XPReward:   def.XPReward,
			ResetDate:  NextResetDate(def.Category, now),
		})
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// RefreshAchievements recomputes progress for all of a user's achievements and
// persists only the rows that changed.
func (s *AchievementService) RefreshAchievements(ctx context.Context, userID string) ([]models.UserAchievement, error) {
	now := s.now()
	db := s.DB.WithContext(ctx)

	var list []models.UserAchievement
	if err := db.Where("user_id = ?", userID).Order("category ASC").Order("name ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	if len(list) == 0 {
		if _, err := s.Users.Get(ctx, userID); err != nil {
			return nil, err
		}
		if err := s.EnsureAchievements(ctx, userID); err != nil {
			return nil, err
		}
		if err := db.Where("user_id = ?", userID).Order("category ASC").Order("name ASC").Find(&list).Error; err != nil {
			return nil, err
		}
	}

	today, thisWeek := DayStart(now), WeekStart(now)
	var spotsToday int64
	if err := db.Model(&models.Spot{}).
		Where("user_id = ? AND spotted_at >= ?", userID, today).
		Count(&spotsToday).Error; err != nil {
		return nil, err
	}

	for i := range list {
		a := &list[i]
		count := spotsToday
		if a.Category == models.AchievementWeekly {
			q := db.Model(&models.Spot{}).Where("user_id = ? AND spotted_at >= ?", userID, thisWeek)
			if a.TypePrefix != "" {
				q = q.Where("flight_aircraft_type LIKE ?", a.TypePrefix+"%")
			}
			if err := q.Count(&count).Error; err != nil {
				return nil, err
			}
		}

		oldResetDate := a.ResetDate
		step := EvaluateAchievement(a, count, now)
		if !step.Changed {
			continue
		}
		if err := s.persist(ctx, a, oldResetDate, step); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// persist writes one evaluated achievement. Resets are guarded on the old reset date
// and the completion on completed=false, so a concurrent refresh can neither reset a
// cycle twice nor award its XP twice.
func (s *AchievementService) persist(ctx context.Context, a *models.UserAchievement, oldResetDate time.Time, step achievementStep) error {
	db := s.DB.WithContext(ctx)

	if step.Reset {
		res := db.Model(&models.UserAchievement{}).
			Where("id = ? AND reset_date = ?", a.ID, oldResetDate).
			Updates(map[string]any{
				"progress":     0,
				"completed":    false,
				"completed_at": nil,
				"reset_date":   a.ResetDate,
			})
		if res.Error != nil {
			return res.Error
		}
	}

	if !step.Completed {
		return db.Model(&models.UserAchievement{}).Where("id = ?", a.ID).
			Update("progress", a.Progress).Error
	}

	res := db.Model(&models.UserAchievement{}).
		Where("id = ? AND completed = ?", a.ID, false).
		Updates(map[string]any{
			"progress":     a.Progress,
			"completed":    true,
			"completed_at": a.CompletedAt,
			"history":      a.History,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 || a.XPReward <= 0 {
		return nil
	}
	if err := s.Users.AddXP(ctx, a.UserID, a.XPReward); err != nil {
		s.log.Error().Err(err).Str("user_id", a.UserID).Str("achievement", a.Key).Msg("achievement XP credit failed")
		return nil
	}
	s.log.Info().Str("user_id", a.UserID).Str("achievement", a.Key).Int64("xp", a.XPReward).Msg("🏆 achievement completed")
	return nil
}
