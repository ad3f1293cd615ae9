package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	BaseXPNormal   = 5
	BaseXPTeleport = 10
)

// FlightSnapshot is the aircraft state captured with a spot (and returned by flight lookup).
type FlightSnapshot struct {
	FlightID     string    `gorm:"size:32" json:"flight_id"` // ICAO 24-bit hex
	Callsign     string    `gorm:"size:16" json:"callsign"`
	FlightNumber string    `gorm:"size:16" json:"flight_number"`
	Registration string    `gorm:"size:16" json:"registration"`
	AircraftType string    `gorm:"size:16;index" json:"aircraft_type"`
	OperatorICAO string    `gorm:"size:8" json:"operator_icao"`
	OperatorIATA string    `gorm:"size:8" json:"operator_iata"`
	Altitude     int       `json:"altitude"`     // feet
	GroundSpeed  int       `json:"ground_speed"` // knots
	Heading      int       `json:"heading"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Origin       string    `gorm:"size:8" json:"origin"`
	Destination  string    `gorm:"size:8" json:"destination"`
	ObservedAt   time.Time `json:"observed_at"`
}

// Spot is one observed-aircraft event.
type Spot struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:64;not null;index:idx_spots_user_time,priority:1" json:"user_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `gorm:"column:spotted_at;not null;index:idx_spots_user_time,priority:2,sort:desc;index:idx_spots_time,sort:desc" json:"timestamp"`

	City             string `gorm:"size:128" json:"city"`
	Country          string `gorm:"size:128" json:"country"`
	Teleport         bool   `gorm:"not null" json:"teleport"`
	TeleportLocation string `gorm:"size:64" json:"teleport_location,omitempty"`

	Flight FlightSnapshot `gorm:"embedded;embeddedPrefix:flight_" json:"flight"`

	GuessedType          *string    `gorm:"size:16" json:"guessed_type"`
	GuessedAirline       *string    `gorm:"size:16" json:"guessed_airline"`
	GuessedDestination   *string    `gorm:"size:16" json:"guessed_destination"`
	IsTypeCorrect        *bool      `json:"is_type_correct"`
	IsAirlineCorrect     *bool      `json:"is_airline_correct"`
	IsDestinationCorrect *bool      `json:"is_destination_correct"`
	GuessedAt            *time.Time `json:"guessed_at"`

	BaseXP  int `gorm:"not null" json:"base_xp"`
	BonusXP int `gorm:"not null" json:"bonus_xp"`

	LedgerGroupID *string `gorm:"size:128;index" json:"ledger_group_id"`

	Timestamps
}

func (s *Spot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
