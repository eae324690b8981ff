package content

import "context"

// DefaultFact is returned by RandomFact when no facts can be read.
const DefaultFact = "Nagasaki is known for its delicious Japanese sake."

// City is a static reference entity. Names are matched case-sensitively.
type City struct {
	ID   int    `json:"city_id"`
	Name string `json:"city_name"`
}

// Question is one node of a city's story sequence.
type Question struct {
	CityID         int    `json:"city_id"`
	Number         int    `json:"question_number"`    // 1-based, unique per city, may have gaps
	Text           string `json:"question_text"`      // Asked to the player
	YesText        string `json:"yes_text"`           // Narration after a "yes"
	NoText         string `json:"no_text"`            // Narration after a "no"
	YesMoneyDelta  int    `json:"yes_money_delta"`
	YesEnergyDelta int    `json:"yes_energy_delta"`
	NoMoneyDelta   int    `json:"no_money_delta"`
	NoEnergyDelta  int    `json:"no_energy_delta"`
	Tip            string `json:"tip_text,omitempty"` // Optional travel tip
}

// Store is a read-only view of the story graph.
type Store interface {
	// ResolveCityID returns the id of the city with exactly this name.
	// Fails with apperror.ErrNotFound when there is none.
	ResolveCityID(ctx context.Context, name string) (int, error)

	// ResolveCityName returns the name of the city with this id.
	ResolveCityName(ctx context.Context, id int) (string, error)

	// GetQuestion returns nil, nil when the question does not exist.
	// That is the content exhaustion signal, not an error.
	GetQuestion(ctx context.Context, cityID, number int) (*Question, error)

	// RandomFact never fails; it falls back to DefaultFact.
	RandomFact(ctx context.Context) string

	// ListCities returns all cities ordered by id.
	ListCities(ctx context.Context) ([]City, error)
}

// Rand is the source of randomness used for fact and reprompt selection.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}
