package workers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"plane-spot-system/database"
	"plane-spot-system/models"
	"plane-spot-system/services"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func TestUserSyncWorkerSyncOnce(t *testing.T) {
	db := newTestDB(t)
	users := services.NewUserService(db)
	users.Achievements = services.NewAchievementService(db, users)

	updated := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/public/profiles", r.URL.Path)
		assert.Equal(t, "tok", r.Header.Get("X-Service-Token"))
		since := r.URL.Query().Get("since")

		resp := GetUserChangesResponse{}
		if calls.Add(1) == 1 {
			assert.Equal(t, "0001-01-01T00:00:00Z", since)
			resp.Users = []models.RemoteProfile{
				{ExternalID: "u1", Username: "alice", Email: "a@example.com", UpdatedAt: updated},
				{ExternalID: "u2", Username: "bob", UpdatedAt: updated.Add(-time.Hour)},
			}
		} else {
			assert.Equal(t, updated.Format(time.RFC3339), since)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	w := NewUserSyncWorker(users, srv.URL, "/api/v1/public/profiles", "tok")
	require.NoError(t, w.SyncOnce(context.Background()))
	assert.True(t, updated.Equal(w.lastSync))

	u, err := users.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Handle)
	assert.Equal(t, models.FreeDailySpotLimit, u.SpotsRemaining)

	var seeded int64
	require.NoError(t, db.Model(&models.UserAchievement{}).Where("user_id = ?", "u1").Count(&seeded).Error)
	assert.Positive(t, seeded)

	require.NoError(t, w.SyncOnce(context.Background()))
	assert.EqualValues(t, 2, calls.Load())
}

func TestUserSyncWorkerKeepsCursorOnFailure(t *testing.T) {
	db := newTestDB(t)
	users := services.NewUserService(db)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(GetUserChangesResponse{Users: []models.RemoteProfile{
			{ExternalID: "", UpdatedAt: time.Now().UTC()},
		}})
	}))
	defer srv.Close()

	w := NewUserSyncWorker(users, srv.URL, "/profiles", "tok")
	require.NoError(t, w.SyncOnce(context.Background()))
	assert.True(t, w.lastSync.IsZero())

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer down.Close()
	w.baseURL = down.URL
	assert.Error(t, w.SyncOnce(context.Background()))
}

func TestWalletSyncPollOnce(t *testing.T) {
	db := newTestDB(t)
	wallets := services.NewWalletService(db)
	now := time.Now().UTC()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/public/wallets", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"wallets": []models.WalletMirror{
			{UserID: "u1", Chain: "hedera", Address: "0.0.777777", IsActive: true, CreatedAt: now, UpdatedAt: now},
		}})
	}))
	defer srv.Close()

	client := NewWalletSyncClient(wallets, srv.URL, "tok")
	since := now.Add(-time.Hour)
	next, err := client.PollOnce(context.Background(), since)
	require.NoError(t, err)
	assert.True(t, next.After(since))

	addr, err := wallets.ActiveWallet(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "0.0.777777", addr)

	client.BaseURL = "http://127.0.0.1:1"
	kept, err := client.PollOnce(context.Background(), since)
	assert.Error(t, err)
	assert.Equal(t, since, kept)
}
