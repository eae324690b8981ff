// Package storagetest holds behavioural tests every storage.Storage
// implementation must pass.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jwebster45206/journey-engine/pkg/apperror"
	"github.com/jwebster45206/journey-engine/pkg/content"
	"github.com/jwebster45206/journey-engine/pkg/journey"
	"github.com/jwebster45206/journey-engine/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Harness is a storage under test plus a back door for seeding records the
// public API refuses to create.
type Harness struct {
	Storage storage.Storage
	// PutJourney writes a journey record verbatim.
	PutJourney func(t *testing.T, j journey.Journey)
	// GetJourney reads the stored record for a player and city, active or
	// not; nil when absent.
	GetJourney func(t *testing.T, playerNumber int64, cityID int) *journey.Journey
}

// Factory builds a fresh, empty storage that draws player numbers from rng
// and allows storage.DefaultPlayerNumberRetries attempts.
type Factory func(t *testing.T, rng content.Rand) Harness

// SequenceRand replays values in order, repeating the last one. IntN returns
// value-1 so that player numbers come out equal to the listed values.
type SequenceRand struct {
	mu     sync.Mutex
	values []int
	i      int
}

func NewSequenceRand(values ...int) *SequenceRand {
	return &SequenceRand{values: values}
}

func (s *SequenceRand) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.i]
	if s.i < len(s.values)-1 {
		s.i++
	}
	return (v - 1) % n
}

// Run executes the full suite against the factory.
func Run(t *testing.T, factory Factory) {
	t.Run("UserLifecycle", func(t *testing.T) { testUserLifecycle(t, factory) })
	t.Run("PlayerNumberCollision", func(t *testing.T) { testPlayerNumberCollision(t, factory) })
	t.Run("PlayerNumberExhausted", func(t *testing.T) { testPlayerNumberExhausted(t, factory) })
	t.Run("BumpMaxTurns", func(t *testing.T) { testBumpMaxTurns(t, factory) })
	t.Run("StartAndFind", func(t *testing.T) { testStartAndFind(t, factory) })
	t.Run("SaveProgress", func(t *testing.T) { testSaveProgress(t, factory) })
	t.Run("DeactivateTwice", func(t *testing.T) { testDeactivateTwice(t, factory) })
	t.Run("DeactivateMissing", func(t *testing.T) { testDeactivateMissing(t, factory) })
	t.Run("RestartOverwrites", func(t *testing.T) { testRestartOverwrites(t, factory) })
	t.Run("MultipleActive", func(t *testing.T) { testMultipleActive(t, factory) })
	t.Run("ConcurrentDeactivate", func(t *testing.T) { testConcurrentDeactivate(t, factory) })
}

func testUserLifecycle(t *testing.T, factory Factory) {
	h := factory(t, NewSequenceRand(123))
	ctx := context.Background()

	missing, err := h.Storage.GetUser(ctx, "amzn1.ask.account.A")
	require.NoError(t, err)
	assert.Nil(t, missing)

	created, err := h.Storage.CreateUser(ctx, "amzn1.ask.account.A", "device-1")
	require.NoError(t, err)
	assert.Equal(t, int64(123), created.PlayerNumber)
	assert.Equal(t, "device-1", created.DeviceID)
	assert.Zero(t, created.MaxTurnsEver)
	assert.False(t, created.CreatedDate.IsZero())

	loaded, err := h.Storage.GetUser(ctx, "amzn1.ask.account.A")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, created.PlayerNumber, loaded.PlayerNumber)
	assert.Equal(t, "device-1", loaded.DeviceID)

	_, err = h.Storage.CreateUser(ctx, "amzn1.ask.account.A", "device-2")
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func testPlayerNumberCollision(t *testing.T, factory Factory) {
	h := factory(t, NewSequenceRand(7, 7, 7, 8))
	ctx := context.Background()

	first, err := h.Storage.CreateUser(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(7), first.PlayerNumber)

	second, err := h.Storage.CreateUser(ctx, "user-2", "")
	require.NoError(t, err)
	assert.Equal(t, int64(8), second.PlayerNumber)
}

func testPlayerNumberExhausted(t *testing.T, factory Factory) {
	h := factory(t, NewSequenceRand(5))
	ctx := context.Background()

	_, err := h.Storage.CreateUser(ctx, "user-1", "")
	require.NoError(t, err)

	_, err = h.Storage.CreateUser(ctx, "user-2", "")
	assert.ErrorIs(t, err, apperror.ErrConflict)

	u, err := h.Storage.GetUser(ctx, "user-2")
	require.NoError(t, err)
	assert.Nil(t, u, "failed creation must not leave a user behind")
}

func testBumpMaxTurns(t *testing.T, factory Factory) {
	h := factory(t, NewSequenceRand(11))
	ctx := context.Background()

	u, err := h.Storage.CreateUser(ctx, "user-1", "")
	require.NoError(t, err)

	require.NoError(t, h.Storage.BumpMaxTurns(ctx, u, 4))
	require.NoError(t, h.Storage.BumpMaxTurns(ctx, u, 2))

	loaded, err := h.Storage.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.MaxTurnsEver)

	require.NoError(t, h.Storage.BumpMaxTurns(ctx, u, 9))
	loaded, err = h.Storage.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.MaxTurnsEver)
}

func testStartAndFind(t *testing.T, factory Factory) {
	h := factory(t, NewSequenceRand(1))
	ctx := context.Background()

	none, err := h.Storage.FindActiveJourney(ctx, 77)
	require.NoError(t, err)
	assert.Nil(t, none)

	j, err := h.Storage.StartJourney(ctx, 77, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, j.QuestionNumber)
	assert.Equal(t, 50, j.MoneyLevel)
	assert.Equal(t, 50, j.EnergyLevel)
	assert.True(t, j.Active)

	found, err := h.Storage.FindActiveJourney(ctx, 77)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 1, found.CityID)
	assert.Equal(t, int64(77), found.PlayerNumber)
	assert.Equal(t, 50, found.MoneyLevel)

	other, err := h.Storage.FindActiveJourney(ctx, 78)
	require.NoError(t, err)
	assert.Nil(t, other)
}

func testSaveProgress(t *testing.T, factory Factory) {
	h := factory(t, NewSequenceRand(1))
	ctx := context.Background()

	j, err := h.Storage.StartJourney(ctx, 5, 2)
	require.NoError(t, err)

	j.MoneyLevel = 55
	j.EnergyLevel = 40
	j.QuestionNumber = 1
	j.TurnsCompleted = 1
	require.NoError(t, h.Storage.SaveProgress(ctx, j))

	found, err := h.Storage.FindActiveJourney(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 55, found.MoneyLevel)
	assert.Equal(t, 40, found.EnergyLevel)
	assert.Equal(t, 1, found.QuestionNumber)
	assert.Equal(t, 1, found.TurnsCompleted)

	// A late write against an ended journey is rejected and changes nothing.
	require.NoError(t, h.Storage.Deactivate(ctx, found))
	late := *found
	late.Active = true
	late.MoneyLevel = 999
	late.QuestionNumber = 5
	err = h.Storage.SaveProgress(ctx, &late)
	assert.ErrorIs(t, err, apperror.ErrStaleState)

	again, err := h.Storage.FindActiveJourney(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, again)

	stored := h.GetJourney(t, 5, 2)
	require.NotNil(t, stored)
	assert.False(t, stored.Active)
	assert.Equal(t, 55, stored.MoneyLevel)
	assert.Equal(t, 1, stored.QuestionNumber)
}

func testDeactivateTwice(t *testing.T, factory Factory) {
	h := factory(t, NewSequenceRand(1))
	ctx := context.Background()

	j, err := h.Storage.StartJourney(ctx, 9, 1)
	require.NoError(t, err)
	j.MoneyLevel = 30
	require.NoError(t, h.Storage.SaveProgress(ctx, j))

	require.NoError(t, h.Storage.Deactivate(ctx, j))
	assert.False(t, j.Active)

	stale := *j
	stale.MoneyLevel = -100
	err = h.Storage.Deactivate(ctx, &stale)
	assert.ErrorIs(t, err, apperror.ErrStaleState)

	stored := h.GetJourney(t, 9, 1)
	require.NotNil(t, stored)
	assert.False(t, stored.Active)
	assert.Equal(t, 30, stored.MoneyLevel, "a failed deactivation must not touch levels")
	assert.Equal(t, 50, stored.EnergyLevel)

	found, err := h.Storage.FindActiveJourney(ctx, 9)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func testDeactivateMissing(t *testing.T, factory Factory) {
	h := factory(t, NewSequenceRand(1))
	ctx := context.Background()

	ghost := journey.New(404, 1, journeyTime())
	err := h.Storage.Deactivate(ctx, &ghost)
	assert.ErrorIs(t, err, apperror.ErrStaleState)
}

func journeyTime() time.Time {
	return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func testRestartOverwrites(t *testing.T, factory Factory) {
	h := factory(t, NewSequenceRand(1))
	ctx := context.Background()

	j, err := h.Storage.StartJourney(ctx, 3, 1)
	require.NoError(t, err)
	j.QuestionNumber = 6
	j.MoneyLevel = 2
	j.TurnsCompleted = 6
	require.NoError(t, h.Storage.SaveProgress(ctx, j))
	require.NoError(t, h.Storage.Deactivate(ctx, j))

	fresh, err := h.Storage.StartJourney(ctx, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.QuestionNumber)

	found, err := h.Storage.FindActiveJourney(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 0, found.QuestionNumber)
	assert.Equal(t, 50, found.MoneyLevel)
	assert.Equal(t, 0, found.TurnsCompleted)
	assert.True(t, found.Active)
}

func testMultipleActive(t *testing.T, factory Factory) {
	h := factory(t, NewSequenceRand(1))
	ctx := context.Background()

	h.PutJourney(t, journey.New(12, 1, journeyTime()))
	h.PutJourney(t, journey.New(12, 2, journeyTime()))

	_, err := h.Storage.FindActiveJourney(ctx, 12)
	assert.ErrorIs(t, err, apperror.ErrConsistency)

	inactive := journey.New(13, 1, journeyTime())
	inactive.Active = false
	h.PutJourney(t, inactive)
	h.PutJourney(t, journey.New(13, 2, journeyTime()))

	found, err := h.Storage.FindActiveJourney(ctx, 13)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 2, found.CityID)
}

func testConcurrentDeactivate(t *testing.T, factory Factory) {
	h := factory(t, NewSequenceRand(1))
	ctx := context.Background()

	for round := 0; round < 5; round++ {
		j, err := h.Storage.StartJourney(ctx, 21, 1)
		require.NoError(t, err)

		const writers = 16
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			wins    int
			stale   int
			unknown []error
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				cp := *j
				err := h.Storage.Deactivate(ctx, &cp)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case errors.Is(err, apperror.ErrStaleState):
					stale++
				default:
					unknown = append(unknown, err)
				}
			}()
		}
		wg.Wait()

		assert.Empty(t, unknown)
		assert.Equal(t, 1, wins, "exactly one writer may deactivate")
		assert.Equal(t, writers-1, stale)

		found, err := h.Storage.FindActiveJourney(ctx, 21)
		require.NoError(t, err)
		assert.Nil(t, found)
	}
}
