package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"plane-spot-system/logger"
	"plane-spot-system/metrics"
	"plane-spot-system/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// WalletLookup resolves the address a user's spots are logged under.
type WalletLookup interface {
	ActiveWallet(ctx context.Context, userID string) (string, error)
}

// LedgerQueue accepts persisted spots for ledger logging.
type LedgerQueue interface {
	Enqueue(item LedgerItem)
}

// SpotInput is one detection submitted by a client.
type SpotInput struct {
	UserID           string                `json:"-"`
	Latitude         float64               `json:"latitude"`
	Longitude        float64               `json:"longitude"`
	Flight           models.FlightSnapshot `json:"flight"`
	FirstOfBatch     bool                  `json:"is_first_of_batch"`
	Teleport         bool                  `json:"teleport"`
	TeleportLocation string                `json:"teleport_location"`
}

func (in *SpotInput) validate() error {
	if in.UserID == "" {
		return invalid("user_id", "user id is required")
	}
	if in.Teleport {
		loc, ok := LookupTeleport(in.TeleportLocation)
		if !ok {
			return invalid("teleport_location", "unknown teleport location")
		}
		in.Latitude, in.Longitude = loc.Latitude, loc.Longitude
	} else {
		in.TeleportLocation = ""
	}
	if err := validateCoordinates(in.Latitude, in.Longitude); err != nil {
		return err
	}
	in.Flight.FlightID = strings.TrimSpace(in.Flight.FlightID)
	in.Flight.AircraftType = strings.TrimSpace(in.Flight.AircraftType)
	if in.Flight.FlightID == "" {
		return invalid("flight.flight_id", "flight id is required")
	}
	if in.Flight.AircraftType == "" {
		return invalid("flight.aircraft_type", "aircraft type is required")
	}
	return validateSnapshot(&in.Flight)
}

// validateSnapshot bounds client-supplied snapshot strings to their column widths.
func validateSnapshot(f *models.FlightSnapshot) error {
	fields := []struct {
		name  string
		value string
		max   int
	}{
		{"flight.flight_id", f.FlightID, 32},
		{"flight.callsign", f.Callsign, 16},
		{"flight.flight_number", f.FlightNumber, 16},
		{"flight.registration", f.Registration, 16},
		{"flight.aircraft_type", f.AircraftType, 16},
		{"flight.operator_icao", f.OperatorICAO, 8},
		{"flight.operator_iata", f.OperatorIATA, 8},
		{"flight.origin", f.Origin, 8},
		{"flight.destination", f.Destination, 8},
	}
	for _, fd := range fields {
		if err := checkLength(fd.name, fd.value, fd.max); err != nil {
			return err
		}
	}
	return nil
}

// checkLength counts characters, as varchar(n) does.
func checkLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return invalid(field, fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return nil
}

// SpotResult is returned by CreateSpot.
type SpotResult struct {
	Spot           SpotView           `json:"spot"`
	NewBadges      []models.UserBadge `json:"new_badges"`
	SpotsRemaining int                `json:"spots_remaining"`
	Premium        bool               `json:"premium"`
	NextReset      time.Time          `json:"next_reset"`
}

type SpotService struct {
	DB           *gorm.DB
	Users        *UserService
	Badges       *BadgeService
	Achievements *AchievementService
	Wallets      WalletLookup
	Geocoder     Geocoder
	Ledger       LedgerQueue

	// FollowerGrace admits non-first detections after the quota hit zero, as long as
	// the first detection of the same action spent its unit this recently.
	FollowerGrace time.Duration

	now func() time.Time
	log zerolog.Logger
}

func NewSpotService(db *gorm.DB, users *UserService, badges *BadgeService, wallets WalletLookup) *SpotService {
	return &SpotService{
		DB:            db,
		Users:         users,
		Badges:        badges,
		Wallets:       wallets,
		FollowerGrace: 30 * time.Second,
		now:           func() time.Time { return time.Now().UTC() },
		log:           logger.WithComponent("spots"),
	}
}

// CreateSpot runs the spot pipeline. Everything up to the insert is all-or-nothing;
// streak, XP, badges, achievements and ledger logging after it are best effort.
func (s *SpotService) CreateSpot(ctx context.Context, in SpotInput) (*SpotResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.now()

	user, err := s.Users.LoadWithResets(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	wallet, err := s.Wallets.ActiveWallet(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if wallet == "" {
		return nil, &AppError{Kind: KindNoWalletAddress, Message: "link a wallet before spotting"}
	}

	reserved, err := s.reserveQuota(ctx, user, in.FirstOfBatch, now)
	if err != nil {
		return nil, err
	}

	place, gerr := ResolvePlace(ctx, s.Geocoder, in.Latitude, in.Longitude)
	if gerr != nil {
		s.log.Warn().Err(gerr).Msg("reverse geocode failed, using placeholders")
	}

	spot := models.Spot{
		UserID:           user.ID,
		Latitude:         in.Latitude,
		Longitude:        in.Longitude,
		Timestamp:        now,
		City:             place.City,
		Country:          place.Country,
		Teleport:         in.Teleport,
		TeleportLocation: in.TeleportLocation,
		Flight:           in.Flight,
		BaseXP:           models.BaseXPNormal,
	}
	kind := "gps"
	if in.Teleport {
		spot.BaseXP = models.BaseXPTeleport
		kind = "teleport"
	}
	if spot.Flight.ObservedAt.IsZero() {
		spot.Flight.ObservedAt = now
	}
	spot.Flight.ObservedAt = spot.Flight.ObservedAt.UTC()

	if err := s.DB.WithContext(ctx).Create(&spot).Error; err != nil {
		if reserved {
			s.refundQuota(ctx, user.ID)
		}
		return nil, err
	}
	metrics.SpotsCreated.WithLabelValues(kind).Inc()
	s.log.Info().Str("user_id", user.ID).Str("spot_id", spot.ID).Str("flight", spot.Flight.FlightID).
		Bool("teleport", spot.Teleport).Msg("✈️ spot recorded")

	badges := s.recordProgress(ctx, user.ID, spot.BaseXP, now)

	if s.Ledger != nil {
		s.Ledger.Enqueue(LedgerItem{SpotID: spot.ID, UserID: user.ID, Entry: NewLedgerEntry(&spot, wallet)})
	}

	result := &SpotResult{
		Spot:      NewSpotView(&spot),
		NewBadges: badges,
		NextReset: NextDailyReset(now),
	}
	if fresh, err := s.Users.Get(ctx, user.ID); err == nil {
		result.SpotsRemaining = fresh.SpotsRemaining
		result.Premium = fresh.Premium
	}
	if result.NewBadges == nil {
		result.NewBadges = []models.UserBadge{}
	}
	return result, nil
}

// reserveQuota decides admission for non-premium users. Only the first detection of
// an action spends a unit, via a conditional decrement that cannot go below zero.
func (s *SpotService) reserveQuota(ctx context.Context, user *models.User, first bool, now time.Time) (bool, error) {
	if user.Premium {
		return false, nil
	}
	if first {
		res := s.DB.WithContext(ctx).Model(&models.User{}).
			Where("id = ? AND spots_remaining > 0", user.ID).
			Updates(map[string]any{
				"spots_remaining":     gorm.Expr("spots_remaining - 1"),
				"last_quota_spend_at": now,
			})
		if res.Error != nil {
			return false, res.Error
		}
		if res.RowsAffected == 0 {
			metrics.QuotaRejections.Inc()
			return false, quotaExceeded(NextDailyReset(now))
		}
		return true, nil
	}

	state := QuotaState{Premium: user.Premium, DailySpotLimit: user.DailySpotLimit, SpotsRemaining: user.SpotsRemaining}
	if !CanSpend(state, user.LastQuotaSpendAt, s.FollowerGrace, now) {
		metrics.QuotaRejections.Inc()
		return false, quotaExceeded(NextDailyReset(now))
	}
	return false, nil
}

func (s *SpotService) refundQuota(ctx context.Context, userID string) {
	err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND spots_remaining < daily_spot_limit", userID).
		Update("spots_remaining", gorm.Expr("spots_remaining + 1")).Error
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("quota refund failed")
	}
}

// recordProgress applies the post-insert updates. Each step logs and continues on failure.
func (s *SpotService) recordProgress(ctx context.Context, userID string, baseXP int, now time.Time) []models.UserBadge {
	db := s.DB.WithContext(ctx)
	log := s.log.With().Str("user_id", userID).Logger()

	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		log.Error().Err(err).Msg("reload after spot failed, skipping progress")
		return nil
	}

	// counted on its own so a failed streak write never loses the spot
	if err := db.Model(&models.User{}).Where("id = ?", userID).
		Update("total_spots", gorm.Expr("total_spots + 1")).Error; err != nil {
		log.Error().Err(err).Msg("spot count increment failed")
	}

	st := UpdateStreak(StreakState{Current: user.CurrentStreak, Longest: user.LongestStreak, LastSpot: user.LastSpotDate}, now)
	if err := db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
		"current_streak": st.Current,
		"longest_streak": gorm.Expr("CASE WHEN longest_streak > ? THEN longest_streak ELSE ? END", st.Longest, st.Longest),
		"last_spot_date": *st.LastSpot,
	}).Error; err != nil {
		log.Error().Err(err).Msg("streak update failed")
	}

	if err := s.Users.AddXP(ctx, userID, int64(baseXP)); err != nil {
		log.Error().Err(err).Int("xp", baseXP).Msg("spot XP credit failed")
	}

	var badges []models.UserBadge
	if s.Badges != nil {
		if err := db.First(&user, "id = ?", userID).Error; err == nil {
			var err error
			if badges, err = s.Badges.AwardBadges(ctx, &user, now); err != nil {
				log.Error().Err(err).Msg("badge evaluation failed")
			}
		}
	}

	if s.Achievements != nil {
		if _, err := s.Achievements.RefreshAchievements(ctx, userID); err != nil {
			log.Error().Err(err).Msg("achievement refresh failed")
		}
	}
	return badges
}

const maxSpotPageSize = 100

// SpotPage is one page of a spot feed.
type SpotPage struct {
	Spots  []SpotView `json:"spots"`
	Total  int64      `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// ListUserSpots returns a user's spots newest first.
func (s *SpotService) ListUserSpots(ctx context.Context, userID string, limit, offset int) (*SpotPage, error) {
	if limit < 1 || limit > maxSpotPageSize {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	feed := func() *gorm.DB {
		return s.DB.WithContext(ctx).Model(&models.Spot{}).Where("user_id = ?", userID)
	}

	var total int64
	if err := feed().Count(&total).Error; err != nil {
		return nil, err
	}
	var spots []models.Spot
	if err := feed().Order("spotted_at DESC").Limit(limit).Offset(offset).Find(&spots).Error; err != nil {
		return nil, err
	}

	page := &SpotPage{Spots: make([]SpotView, len(spots)), Total: total, Limit: limit, Offset: offset}
	for i := range spots {
		page.Spots[i] = NewSpotView(&spots[i])
	}
	return page, nil
}

// LatestSpot returns the most recent spot from any user.
func (s *SpotService) LatestSpot(ctx context.Context) (*SpotView, error) {
	var spot models.Spot
	err := s.DB.WithContext(ctx).Order("spotted_at DESC").Limit(1).Find(&spot).Error
	if err != nil {
		return nil, err
	}
	if spot.ID == "" {
		return nil, notFound("spot", "latest")
	}
	v := NewSpotView(&spot)
	return &v, nil
}
