package storage

import (
	"context"

	"github.com/jwebster45206/journey-engine/pkg/journey"
)

// MaxPlayerNumber bounds randomly assigned player numbers to [1, MaxPlayerNumber].
const MaxPlayerNumber = 1_000_000_000

// DefaultPlayerNumberRetries is how many random player numbers CreateUser
// tries before giving up with apperror.ErrConflict.
const DefaultPlayerNumberRetries = 5

// Storage persists users and journeys.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// User registry
	// GetUser returns nil if the user doesn't exist
	GetUser(ctx context.Context, userID string) (*journey.User, error)
	CreateUser(ctx context.Context, userID, deviceID string) (*journey.User, error)
	// BumpMaxTurns raises max_turns_ever to turns only if it is greater
	BumpMaxTurns(ctx context.Context, user *journey.User, turns int) error

	// Journeys
	// FindActiveJourney returns nil if the player has no active journey and
	// apperror.ErrConsistency if more than one is active
	FindActiveJourney(ctx context.Context, playerNumber int64) (*journey.Journey, error)
	// StartJourney overwrites any record for the player and city
	StartJourney(ctx context.Context, playerNumber int64, cityID int) (*journey.Journey, error)
	// SaveProgress writes levels, question number and turns only while the
	// stored record is active. It never changes the active flag. Fails with
	// apperror.ErrNotFound for a missing record and apperror.ErrStaleState
	// once the journey has ended
	SaveProgress(ctx context.Context, j *journey.Journey) error
	// Deactivate flips active to false only if it is currently true and
	// otherwise fails with apperror.ErrStaleState
	Deactivate(ctx context.Context, j *journey.Journey) error
}
