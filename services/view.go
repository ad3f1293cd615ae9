package services

import (
	"time"

	"plane-spot-system/models"
)

const (
	UnknownCity     = "Unknown City"
	UnknownLocation = "Unknown Location"
	UnknownValue    = "Unknown"
)

// FlightView is the client shape of a flight snapshot. Missing identity fields fall
// back to UnknownValue; numbers stay zero.
type FlightView struct {
	FlightID     string    `json:"flight_id"`
	Callsign     string    `json:"callsign"`
	FlightNumber string    `json:"flight_number"`
	Registration string    `json:"registration"`
	AircraftType string    `json:"aircraft_type"`
	Airline      string    `json:"airline"`
	OperatorICAO string    `json:"operator_icao"`
	OperatorIATA string    `json:"operator_iata"`
	Altitude     int       `json:"altitude"`
	GroundSpeed  int       `json:"ground_speed"`
	Heading      int       `json:"heading"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Origin       string    `json:"origin"`
	Destination  string    `json:"destination"`
	ObservedAt   time.Time `json:"observed_at"`
}

// GuessView is nil on a SpotView until the spot has been guessed.
type GuessView struct {
	Type                 string    `json:"type"`
	Airline              string    `json:"airline"`
	Destination          string    `json:"destination"`
	IsTypeCorrect        bool      `json:"is_type_correct"`
	IsAirlineCorrect     bool      `json:"is_airline_correct"`
	IsDestinationCorrect bool      `json:"is_destination_correct"`
	GuessedAt            time.Time `json:"guessed_at"`
}

// SpotView is the client shape of a spot.
type SpotView struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Latitude         float64    `json:"latitude"`
	Longitude        float64    `json:"longitude"`
	Timestamp        time.Time  `json:"timestamp"`
	City             string     `json:"city"`
	Country          string     `json:"country"`
	Teleport         bool       `json:"teleport"`
	TeleportLocation string     `json:"teleport_location,omitempty"`
	Flight           FlightView `json:"flight"`
	Guess            *GuessView `json:"guess"`
	BaseXP           int        `json:"base_xp"`
	BonusXP          int        `json:"bonus_xp"`
	TotalXP          int        `json:"total_xp"`
	LedgerGroupID    string     `json:"ledger_group_id,omitempty"`
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func derefBool(p *bool) bool {
	return p != nil && *p
}

// NewFlightView maps a stored snapshot to its client shape.
func NewFlightView(f models.FlightSnapshot) FlightView {
	airline := f.OperatorICAO
	if airline == "" {
		airline = f.OperatorIATA
	}
	return FlightView{
		FlightID:     f.FlightID,
		Callsign:     orDefault(f.Callsign, UnknownValue),
		FlightNumber: orDefault(f.FlightNumber, orDefault(f.Callsign, UnknownValue)),
		Registration: orDefault(f.Registration, UnknownValue),
		AircraftType: orDefault(f.AircraftType, UnknownValue),
		Airline:      orDefault(airline, UnknownValue),
		OperatorICAO: f.OperatorICAO,
		OperatorIATA: f.OperatorIATA,
		Altitude:     f.Altitude,
		GroundSpeed:  f.GroundSpeed,
		Heading:      f.Heading,
		Latitude:     f.Latitude,
		Longitude:    f.Longitude,
		Origin:       orDefault(f.Origin, UnknownValue),
		Destination:  orDefault(f.Destination, UnknownValue),
		ObservedAt:   f.ObservedAt,
	}
}

// NewSpotView is the single total mapping from a stored spot to the client shape.
func NewSpotView(s *models.Spot) SpotView {
	v := SpotView{
		ID:               s.ID,
		UserID:           s.UserID,
		Latitude:         s.Latitude,
		Longitude:        s.Longitude,
		Timestamp:        s.Timestamp,
		City:             orDefault(s.City, UnknownCity),
		Country:          orDefault(s.Country, UnknownLocation),
		Teleport:         s.Teleport,
		TeleportLocation: s.TeleportLocation,
		Flight:           NewFlightView(s.Flight),
		BaseXP:           s.BaseXP,
		BonusXP:          s.BonusXP,
		TotalXP:          s.BaseXP + s.BonusXP,
		LedgerGroupID:    derefString(s.LedgerGroupID),
	}
	if s.GuessedAt != nil {
		v.Guess = &GuessView{
			Type:                 derefString(s.GuessedType),
			Airline:              derefString(s.GuessedAirline),
			Destination:          derefString(s.GuessedDestination),
			IsTypeCorrect:        derefBool(s.IsTypeCorrect),
			IsAirlineCorrect:     derefBool(s.IsAirlineCorrect),
			IsDestinationCorrect: derefBool(s.IsDestinationCorrect),
			GuessedAt:            *s.GuessedAt,
		}
	}
	return v
}
