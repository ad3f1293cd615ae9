package services

import (
	"context"
	"testing"
	"time"

	"plane-spot-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertSpot(t *testing.T, env *testEnv, userID, aircraftType string, at time.Time) {
	t.Helper()
	require.NoError(t, env.DB.Create(&models.Spot{
		UserID:    userID,
		Timestamp: at.UTC(),
		Flight:    testFlight("hex"+aircraftType, aircraftType),
		BaseXP:    models.BaseXPNormal,
	}).Error)
}

func achievementByKey(t *testing.T, list []models.UserAchievement, key string) models.UserAchievement {
	t.Helper()
	for _, a := range list {
		if a.Key == key {
			return a
		}
	}
	t.Fatalf("achievement %q not found", key)
	return models.UserAchievement{}
}

func TestEvaluateAchievement(t *testing.T) {
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)

	t.Run("past reset date recomputes from count", func(t *testing.T) {
		a := &models.UserAchievement{
			Category: models.AchievementDaily, Target: 3, XPReward: 20,
			Progress: 9, Completed: true, CompletedAt: timePtr(now.AddDate(0, 0, -1)),
			ResetDate: DayStart(now),
		}
		step := EvaluateAchievement(a, 1, now)
		assert.True(t, step.Reset)
		assert.False(t, step.Completed)
		assert.EqualValues(t, 1, a.Progress)
		assert.False(t, a.Completed)
		assert.Nil(t, a.CompletedAt)
		assert.Equal(t, NextDailyReset(now), a.ResetDate)
	})

	t.Run("completes once", func(t *testing.T) {
		a := &models.UserAchievement{Category: models.AchievementWeekly, Target: 5, XPReward: 100, ResetDate: NextWeeklyReset(now)}
		step := EvaluateAchievement(a, 5, now)
		assert.True(t, step.Completed)
		assert.True(t, a.Completed)
		require.Len(t, a.History, 1)
		assert.EqualValues(t, 100, a.History[0].XPAwarded)

		step = EvaluateAchievement(a, 6, now.Add(time.Hour))
		assert.False(t, step.Completed)
		assert.True(t, step.Changed)
		assert.Len(t, a.History, 1)
	})

	t.Run("unchanged count is a no-op", func(t *testing.T) {
		a := &models.UserAchievement{Category: models.AchievementDaily, Target: 3, Progress: 2, ResetDate: NextDailyReset(now)}
		assert.Equal(t, achievementStep{}, EvaluateAchievement(a, 2, now))
	})
}

func TestRefreshAchievementsResetIsIdempotent(t *testing.T) {
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	env.createUser(t, "u1")
	ctx := context.Background()

	insertSpot(t, env, "u1", "A320", now.Add(-2*time.Hour))
	insertSpot(t, env, "u1", "B738", now.Add(-time.Hour))
	insertSpot(t, env, "u1", "A321", now.AddDate(0, 0, -1)) // yesterday, same week

	// stale row: completed in an earlier cycle with a bogus counter
	require.NoError(t, env.DB.Model(&models.UserAchievement{}).
		Where("user_id = ? AND key = ?", "u1", "daily-spotter").
		Updates(map[string]any{"progress": 7, "completed": true, "reset_date": DayStart(now).Add(-time.Hour)}).Error)

	list, err := env.Achievements.RefreshAchievements(ctx, "u1")
	require.NoError(t, err)

	daily := achievementByKey(t, list, "daily-spotter")
	assert.EqualValues(t, 2, daily.Progress)
	assert.False(t, daily.Completed)
	assert.True(t, daily.ResetDate.Equal(NextDailyReset(now)))

	airbus := achievementByKey(t, list, "airbus-week")
	assert.EqualValues(t, 2, airbus.Progress)
	boeing := achievementByKey(t, list, "boeing-week")
	assert.EqualValues(t, 1, boeing.Progress)

	again, err := env.Achievements.RefreshAchievements(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, achievementByKey(t, again, "daily-spotter").Progress)
}

func TestRefreshAchievementsAwardsXPOnce(t *testing.T) {
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	env.createUser(t, "u1")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		insertSpot(t, env, "u1", "E190", now.Add(-time.Duration(i)*time.Minute))
	}

	list, err := env.Achievements.RefreshAchievements(ctx, "u1")
	require.NoError(t, err)
	daily := achievementByKey(t, list, "daily-spotter")
	assert.True(t, daily.Completed)
	require.NotNil(t, daily.CompletedAt)
	require.Len(t, daily.History, 1)
	assert.EqualValues(t, 20, env.reload(t, "u1").TotalXP)

	_, err = env.Achievements.RefreshAchievements(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 20, env.reload(t, "u1").TotalXP)

	// next day: the achievement resets and can be earned again
	env.setNow(now.AddDate(0, 0, 1))
	list, err = env.Achievements.RefreshAchievements(ctx, "u1")
	require.NoError(t, err)
	daily = achievementByKey(t, list, "daily-spotter")
	assert.False(t, daily.Completed)
	assert.EqualValues(t, 0, daily.Progress)
	assert.Len(t, daily.History, 1)
}

func TestRefreshAchievementsSeedsMissingCatalog(t *testing.T) {
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	require.NoError(t, env.DB.Create(models.NewUser("bare", "bare", "bare@example.com")).Error)

	list, err := env.Achievements.RefreshAchievements(context.Background(), "bare")
	require.NoError(t, err)
	assert.Len(t, list, len(AchievementCatalog))

	_, err = env.Achievements.RefreshAchievements(context.Background(), "ghost")
	requireKind(t, err, KindNotFound)
}
