package journey

import (
	"fmt"
	"time"
)

const (
	StartingLevel    = 50
	WarningThreshold = 10 // money or energy at or below this triggers a caution
)

// User is a player registered by the host platform.
type User struct {
	UserID       string    `json:"user_id"`
	PlayerNumber int64     `json:"player_number"` // Random in [1, 1e9], unique
	DeviceID     string    `json:"device_id,omitempty"`
	CreatedDate  time.Time `json:"created_date"`
	MaxTurnsEver int       `json:"max_turns_ever"` // High-water mark across journeys
}

// Journey is one attempt by a player at one city's question sequence.
type Journey struct {
	PlayerNumber   int64     `json:"player_number"`
	CityID         int       `json:"city_id"`
	QuestionNumber int       `json:"question_number"` // Completed questions
	MoneyLevel     int       `json:"money_level"`
	EnergyLevel    int       `json:"energy_level"`
	TurnsCompleted int       `json:"turns_completed"`
	Active         bool      `json:"active"`
	StartedDate    time.Time `json:"started_date"`
}

// New returns a fresh active journey with starting levels.
func New(playerNumber int64, cityID int, now time.Time) Journey {
	return Journey{
		PlayerNumber:   playerNumber,
		CityID:         cityID,
		QuestionNumber: 0,
		MoneyLevel:     StartingLevel,
		EnergyLevel:    StartingLevel,
		Active:         true,
		StartedDate:    now,
	}
}

// Key identifies the record, "<player>/<city>".
func (j Journey) Key() string {
	return fmt.Sprintf("%d/%d", j.PlayerNumber, j.CityID)
}

// Pending is the number of the question the player is currently being asked.
func (j Journey) Pending() int {
	return j.QuestionNumber + 1
}

// Depleted reports whether either resource has run out.
func (j Journey) Depleted() bool {
	return j.MoneyLevel <= 0 || j.EnergyLevel <= 0
}

// Low reports whether either resource is at or below the warning threshold.
func (j Journey) Low() bool {
	return j.MoneyLevel <= WarningThreshold || j.EnergyLevel <= WarningThreshold
}
