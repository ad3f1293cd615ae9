// services/users.go
package services

import (
	"context"
	"errors"
	"time"

	"plane-spot-system/logger"
	"plane-spot-system/metrics"
	"plane-spot-system/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserService struct {
	DB           *gorm.DB
	Achievements *AchievementService
	now          func() time.Time
	log          zerolog.Logger
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{
		DB:  db,
		now: func() time.Time { return time.Now().UTC() },
		log: logger.WithComponent("users"),
	}
}

// Profile is the client-facing view of a user's gamification state.
type Profile struct {
	ID             string     `json:"id"`
	Handle         string     `json:"handle"`
	Premium        bool       `json:"premium"`
	DailySpotLimit int        `json:"daily_spot_limit"`
	SpotsRemaining int        `json:"spots_remaining"`
	NextReset      time.Time  `json:"next_reset"`
	TotalXP        int64      `json:"total_xp"`
	WeeklyXP       int64      `json:"weekly_xp"`
	CurrentStreak  int        `json:"current_streak"`
	LongestStreak  int        `json:"longest_streak"`
	LastSpotDate   *time.Time `json:"last_spot_date"`
	TotalSpots     int64      `json:"total_spots"`
	Followers      int64      `json:"followers"`
	Following      int64      `json:"following"`
}

// Get loads a user or returns a NotFound AppError.
func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user", userID)
		}
		return nil, err
	}
	return &user, nil
}

// ApplyResets runs the daily quota and weekly XP rollovers for one user if due.
// Each rollover is a single guarded UPDATE, so concurrent requests apply it once.
// user is refreshed in place when anything changed.
func (s *UserService) ApplyResets(ctx context.Context, user *models.User, now time.Time) error {
	dailyDue := DailyResetDue(user.LastDailyReset, now)
	weeklyDue := WeeklyResetDue(user.LastWeeklyReset, now)
	if !dailyDue && !weeklyDue {
		return nil
	}

	db := s.DB.WithContext(ctx)
	if dailyDue {
		updates := map[string]any{"last_daily_reset": now}
		if !user.Premium {
			updates["spots_remaining"] = gorm.Expr("daily_spot_limit")
		}
		res := db.Model(&models.User{}).
			Where("id = ? AND (last_daily_reset IS NULL OR last_daily_reset < ?)", user.ID, DayStart(now)).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			s.log.Debug().Str("user_id", user.ID).Msg("daily quota reset")
		}
	}
	if weeklyDue {
		if err := s.resetWeeklyXP(db, user.ID, now); err != nil {
			return err
		}
	}
	return db.First(user, "id = ?", user.ID).Error
}

func (s *UserService) resetWeeklyXP(db *gorm.DB, userID string, now time.Time) error {
	return db.Model(&models.User{}).
		Where("id = ? AND (last_weekly_reset IS NULL OR last_weekly_reset < ?)", userID, WeekStart(now)).
		Updates(map[string]any{"weekly_xp": 0, "last_weekly_reset": now}).Error
}

// LoadWithResets is Get followed by ApplyResets; every quota-reading path starts here.
func (s *UserService) LoadWithResets(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.ApplyResets(ctx, user, s.now()); err != nil {
		return nil, err
	}
	return user, nil
}

// GetProfile applies resets and lapses a broken streak before building the view.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	now := s.now()
	user, err := s.LoadWithResets(ctx, userID)
	if err != nil {
		return nil, err
	}

	state := StreakState{Current: user.CurrentStreak, Longest: user.LongestStreak, LastSpot: user.LastSpotDate}
	if lapsed, changed := LapseStreak(state, now); changed {
		// conditional on last_spot_date so a concurrent spot isn't clobbered
		res := s.DB.WithContext(ctx).Model(&models.User{}).
			Where("id = ? AND last_spot_date = ?", user.ID, *user.LastSpotDate).
			Update("current_streak", lapsed.Current)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			user.CurrentStreak = lapsed.Current
		}
	}

	var followers, following int64
	if err := s.DB.WithContext(ctx).Model(&models.Follow{}).Where("followee_id = ?", user.ID).Count(&followers).Error; err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(&models.Follow{}).Where("follower_id = ?", user.ID).Count(&following).Error; err != nil {
		return nil, err
	}

	return &Profile{
		ID:             user.ID,
		Handle:         user.Handle,
		Premium:        user.Premium,
		DailySpotLimit: user.DailySpotLimit,
		SpotsRemaining: user.SpotsRemaining,
		NextReset:      NextDailyReset(now),
		TotalXP:        user.TotalXP,
		WeeklyXP:       user.WeeklyXP,
		CurrentStreak:  user.CurrentStreak,
		LongestStreak:  user.LongestStreak,
		LastSpotDate:   user.LastSpotDate,
		TotalSpots:     user.TotalSpots,
		Followers:      followers,
		Following:      following,
	}, nil
}

// AddXP credits total and weekly XP with one atomic increment.
// A pending weekly rollover is applied first so the credit is not wiped by it.
func (s *UserService) AddXP(ctx context.Context, userID string, xp int64) error {
	db := s.DB.WithContext(ctx)
	if err := s.resetWeeklyXP(db, userID, s.now()); err != nil {
		return err
	}
	res := db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
		"total_xp":  gorm.Expr("total_xp + ?", xp),
		"weekly_xp": gorm.Expr("weekly_xp + ?", xp),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("user", userID)
	}
	return nil
}

// GrantXP is the admin path for manual XP corrections.
func (s *UserService) GrantXP(ctx context.Context, userID string, xp int64, reason string) error {
	if xp <= 0 {
		return invalid("xp", "xp must be positive")
	}
	if err := s.AddXP(ctx, userID, xp); err != nil {
		return err
	}
	s.log.Info().Str("user_id", userID).Int64("xp", xp).Str("reason", reason).Msg("🎮 XP granted")
	return nil
}

// ResetAllDaily refills every non-premium user's quota. With force=false only users
// not yet reset today are touched (the midnight sweep); force=true is the manual
// recovery path and resets everyone.
func (s *UserService) ResetAllDaily(ctx context.Context, force bool) (int64, error) {
	now := s.now()
	q := s.DB.WithContext(ctx).Model(&models.User{}).Where("premium = ?", false)
	if !force {
		q = q.Where("last_daily_reset IS NULL OR last_daily_reset < ?", DayStart(now))
	}
	res := q.Updates(map[string]any{
		"spots_remaining":  gorm.Expr("daily_spot_limit"),
		"last_daily_reset": now,
	})
	if res.Error != nil {
		return 0, res.Error
	}
	kind := "daily"
	if force {
		kind = "manual"
	}
	metrics.ResetSweeps.WithLabelValues(kind).Inc()
	s.log.Info().Str("kind", kind).Int64("users", res.RowsAffected).Msg("🔁 daily quota reset sweep")
	return res.RowsAffected, nil
}

// ResetAllWeekly zeroes weekly XP for users not yet rolled over this week.
func (s *UserService) ResetAllWeekly(ctx context.Context) (int64, error) {
	now := s.now()
	res := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("last_weekly_reset IS NULL OR last_weekly_reset < ?", WeekStart(now)).
		Updates(map[string]any{"weekly_xp": 0, "last_weekly_reset": now})
	if res.Error != nil {
		return 0, res.Error
	}
	metrics.ResetSweeps.WithLabelValues("weekly").Inc()
	s.log.Info().Int64("users", res.RowsAffected).Msg("🔁 weekly XP reset sweep")
	return res.RowsAffected, nil
}

// UpsertProfile mirrors identity fields from the profile service. New users start on
// the free tier with a full quota and a seeded achievement set; existing users only
// get handle/email refreshed.
func (s *UserService) UpsertProfile(ctx context.Context, p models.RemoteProfile) (created bool, err error) {
	if p.ExternalID == "" {
		return false, invalid("external_id", "external_id is required")
	}
	user := models.NewUser(p.ExternalID, p.Username, p.Email)
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"handle", "email", "updated_at"}),
	}).Create(user)
	if res.Error != nil {
		return false, res.Error
	}

	// RowsAffected can't tell insert from update on every dialect; ask the achievements table.
	var seeded int64
	if err := s.DB.WithContext(ctx).Model(&models.UserAchievement{}).Where("user_id = ?", p.ExternalID).Count(&seeded).Error; err != nil {
		return false, err
	}
	if seeded == 0 && s.Achievements != nil {
		if err := s.Achievements.EnsureAchievements(ctx, p.ExternalID); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// LeaderboardEntry is one row of the weekly leaderboard.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"user_id"`
	Handle   string `json:"handle"`
	WeeklyXP int64  `json:"weekly_xp"`
}

// WeeklyLeaderboard ranks users by this week's XP. Users whose weekly rollover
// is still pending have no XP this week and are left out.
func (s *UserService) WeeklyLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var users []models.User
	err := s.DB.WithContext(ctx).
		Where("last_weekly_reset >= ? AND weekly_xp > 0", WeekStart(s.now())).
		Order("weekly_xp DESC").Order("handle ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	out := make([]LeaderboardEntry, len(users))
	for i, u := range users {
		out[i] = LeaderboardEntry{Rank: i + 1, UserID: u.ID, Handle: u.Handle, WeeklyXP: u.WeeklyXP}
	}
	return out, nil
}

// Follow records followerID → followeeID. Following twice is a no-op.
func (s *UserService) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return invalid("user_id", "cannot follow yourself")
	}
	if _, err := s.Get(ctx, followeeID); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follow{FollowerID: followerID, FolloweeID: followeeID}).Error
}

func (s *UserService) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return s.DB.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{}).Error
}
