package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"plane-spot-system/database"
	"plane-spot-system/models"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
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
	// one connection so every query sees the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

type fakeGeocoder struct {
	place Place
	err   error
}

func (g fakeGeocoder) Reverse(ctx context.Context, lat, lon float64) (Place, error) {
	return g.place, g.err
}

type recordingQueue struct {
	mu    sync.Mutex
	items []LedgerItem
}

func (q *recordingQueue) Enqueue(item LedgerItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

func (q *recordingQueue) Items() []LedgerItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]LedgerItem(nil), q.items...)
}

type testEnv struct {
	DB           *gorm.DB
	Users        *UserService
	Achievements *AchievementService
	Badges       *BadgeService
	Wallets      *WalletService
	Spots        *SpotService
	Queue        *recordingQueue

	mu  sync.Mutex
	now time.Time
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	db := newTestDB(t)
	env := &testEnv{DB: db, now: now.UTC(), Queue: &recordingQueue{}}
	clock := env.clock

	env.Users = NewUserService(db)
	env.Users.now = clock
	env.Users.log = zerolog.Nop()

	env.Achievements = NewAchievementService(db, env.Users)
	env.Achievements.now = clock
	env.Achievements.log = zerolog.Nop()
	env.Users.Achievements = env.Achievements

	env.Badges = NewBadgeService(db)
	env.Badges.log = zerolog.Nop()

	env.Wallets = NewWalletService(db)
	env.Wallets.now = clock
	env.Wallets.log = zerolog.Nop()

	env.Spots = NewSpotService(db, env.Users, env.Badges, env.Wallets)
	env.Spots.now = clock
	env.Spots.log = zerolog.Nop()
	env.Spots.Achievements = env.Achievements
	env.Spots.Geocoder = fakeGeocoder{place: Place{City: "Lisbon", Country: "Portugal"}}
	env.Spots.Ledger = env.Queue
	return env
}

func (e *testEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *testEnv) setNow(t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = t.UTC()
}

// createUser inserts a free-tier user already reset for the current day and week.
func (e *testEnv) createUser(t *testing.T, id string, opts ...func(*models.User)) *models.User {
	t.Helper()
	now := e.clock()
	u := models.NewUser(id, "handle-"+id, id+"@example.com")
	u.LastDailyReset = &now
	u.LastWeeklyReset = &now
	for _, opt := range opts {
		opt(u)
	}
	require.NoError(t, e.DB.Create(u).Error)
	require.NoError(t, e.Achievements.EnsureAchievements(context.Background(), id))
	return u
}

func (e *testEnv) linkWallet(t *testing.T, userID string) string {
	t.Helper()
	addr := "0.0.4" + userID + "-wallet"
	_, err := e.Wallets.LinkWallet(context.Background(), userID, "hedera", addr)
	require.NoError(t, err)
	return addr
}

func (e *testEnv) reload(t *testing.T, userID string) *models.User {
	t.Helper()
	var u models.User
	require.NoError(t, e.DB.First(&u, "id = ?", userID).Error)
	return &u
}

func requireKind(t *testing.T, err error, kind ErrorKind) *AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *AppError
	require.True(t, errors.As(err, &appErr), "expected *AppError, got %T: %v", err, err)
	require.Equal(t, kind, appErr.Kind, appErr.Error())
	return appErr
}

func testFlight(id, aircraftType string) models.FlightSnapshot {
	return models.FlightSnapshot{
		FlightID:     id,
		Callsign:     "TAP123",
		FlightNumber: "TP123",
		AircraftType: aircraftType,
		OperatorICAO: "TAP",
		Altitude:     35000,
		Origin:       "LIS",
		Destination:  "JFK",
	}
}

func timePtr(t time.Time) *time.Time { return &t }
