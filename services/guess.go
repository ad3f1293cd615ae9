package services

import (
	"context"
	"errors"

	"plane-spot-system/metrics"
	"plane-spot-system/models"

	"gorm.io/gorm"
)

const XPPerCorrectGuess = 10

// Guess holds the player's answers for one spot.
type Guess struct {
	Type        string `json:"type"`
	Airline     string `json:"airline"`
	Destination string `json:"destination"`
}

// maxGuessLength matches the width of the guessed_* columns.
const maxGuessLength = 16

func (g Guess) validate() error {
	if err := checkLength("type", g.Type, maxGuessLength); err != nil {
		return err
	}
	if err := checkLength("airline", g.Airline, maxGuessLength); err != nil {
		return err
	}
	return checkLength("destination", g.Destination, maxGuessLength)
}

// GuessResult is the per-field breakdown of a scored guess.
type GuessResult struct {
	IsTypeCorrect        bool `json:"is_type_correct"`
	IsAirlineCorrect     bool `json:"is_airline_correct"`
	IsDestinationCorrect bool `json:"is_destination_correct"`
	BonusXP              int  `json:"bonus_xp"`
}

// ScoreGuess compares each answer against the stored snapshot with exact,
// case-sensitive equality. Empty truths never match.
func ScoreGuess(flight models.FlightSnapshot, g Guess) GuessResult {
	airline := flight.OperatorICAO
	if airline == "" {
		airline = flight.OperatorIATA
	}
	r := GuessResult{
		IsTypeCorrect:        flight.AircraftType != "" && g.Type == flight.AircraftType,
		IsAirlineCorrect:     airline != "" && g.Airline == airline,
		IsDestinationCorrect: flight.Destination != "" && g.Destination == flight.Destination,
	}
	for _, ok := range []bool{r.IsTypeCorrect, r.IsAirlineCorrect, r.IsDestinationCorrect} {
		if ok {
			r.BonusXP += XPPerCorrectGuess
		}
	}
	return r
}

// SubmitGuess scores a guess for the caller's own spot. Guesses are single-shot:
// the write is conditional on no earlier guess, so a retry cannot re-award XP.
func (s *SpotService) SubmitGuess(ctx context.Context, userID, spotID string, g Guess) (*SpotView, *GuessResult, error) {
	if err := g.validate(); err != nil {
		return nil, nil, err
	}
	var spot models.Spot
	if err := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", spotID, userID).First(&spot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, notFound("spot", spotID)
		}
		return nil, nil, err
	}
	if spot.GuessedAt != nil {
		return nil, nil, &AppError{Kind: KindAlreadyGuessed, Message: "a guess was already submitted for this spot"}
	}

	result := ScoreGuess(spot.Flight, g)
	now := s.now()

	res := s.DB.WithContext(ctx).Model(&models.Spot{}).
		Where("id = ? AND guessed_at IS NULL", spot.ID).
		Updates(map[string]any{
			"guessed_type":           g.Type,
			"guessed_airline":        g.Airline,
			"guessed_destination":    g.Destination,
			"is_type_correct":        result.IsTypeCorrect,
			"is_airline_correct":     result.IsAirlineCorrect,
			"is_destination_correct": result.IsDestinationCorrect,
			"guessed_at":             now,
			"bonus_xp":               result.BonusXP,
		})
	if res.Error != nil {
		return nil, nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil, &AppError{Kind: KindAlreadyGuessed, Message: "a guess was already submitted for this spot"}
	}

	if result.BonusXP > 0 {
		if err := s.Users.AddXP(ctx, userID, int64(result.BonusXP)); err != nil {
			s.log.Error().Err(err).Str("spot_id", spot.ID).Msg("guess XP credit failed")
		}
	}
	metrics.GuessBonusXP.Observe(float64(result.BonusXP))

	if err := s.DB.WithContext(ctx).First(&spot, "id = ?", spot.ID).Error; err != nil {
		return nil, nil, err
	}
	view := NewSpotView(&spot)
	return &view, &result, nil
}
