package services

import (
	"testing"
	"time"

	"plane-spot-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpotViewDefaults(t *testing.T) {
	v := NewSpotView(&models.Spot{ID: "s1", BaseXP: 5})

	assert.Equal(t, UnknownCity, v.City)
	assert.Equal(t, UnknownLocation, v.Country)
	assert.Equal(t, UnknownValue, v.Flight.AircraftType)
	assert.Equal(t, UnknownValue, v.Flight.Airline)
	assert.Equal(t, UnknownValue, v.Flight.FlightNumber)
	assert.Equal(t, UnknownValue, v.Flight.Destination)
	assert.Nil(t, v.Guess)
	assert.Empty(t, v.LedgerGroupID)
	assert.Equal(t, 5, v.TotalXP)
}

func TestNewSpotViewWithGuess(t *testing.T) {
	guessedAt := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	typ, correct, wrong := "A320", true, false
	group := "grp-1"

	v := NewSpotView(&models.Spot{
		City:             "Porto",
		Flight:           models.FlightSnapshot{Callsign: "TAP1", OperatorIATA: "TP", AircraftType: "A320"},
		GuessedType:      &typ,
		IsTypeCorrect:    &correct,
		IsAirlineCorrect: &wrong,
		GuessedAt:        &guessedAt,
		BaseXP:           10,
		BonusXP:          10,
		LedgerGroupID:    &group,
	})

	assert.Equal(t, "Porto", v.City)
	assert.Equal(t, "TAP1", v.Flight.FlightNumber) // falls back to callsign
	assert.Equal(t, "TP", v.Flight.Airline)
	require.NotNil(t, v.Guess)
	assert.Equal(t, "A320", v.Guess.Type)
	assert.Empty(t, v.Guess.Airline)
	assert.True(t, v.Guess.IsTypeCorrect)
	assert.False(t, v.Guess.IsAirlineCorrect)
	assert.False(t, v.Guess.IsDestinationCorrect)
	assert.Equal(t, 20, v.TotalXP)
	assert.Equal(t, "grp-1", v.LedgerGroupID)
}
