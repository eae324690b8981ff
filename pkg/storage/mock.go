package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/jwebster45206/journey-engine/pkg/apperror"
	"github.com/jwebster45206/journey-engine/pkg/content"
	"github.com/jwebster45206/journey-engine/pkg/journey"
)

type journeyKey struct {
	player int64
	city   int
}

// MockStorage is an in-memory implementation of Storage for tests and local
// runs. It honours the same conditional-write semantics as the Redis backend.
type MockStorage struct {
	mu        sync.RWMutex
	users     map[string]*journey.User
	players   map[int64]string
	journeys  map[journeyKey]*journey.Journey
	rng       content.Rand
	retries   int
	now       func() time.Time
	pingError error
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		users:    make(map[string]*journey.User),
		players:  make(map[int64]string),
		journeys: make(map[journeyKey]*journey.Journey),
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		retries:  DefaultPlayerNumberRetries,
		now:      time.Now,
	}
}

// SetRand replaces the player number generator (for testing)
func (m *MockStorage) SetRand(rng content.Rand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rng = rng
}

// SetPlayerNumberRetries sets the collision retry budget
func (m *MockStorage) SetPlayerNumberRetries(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries = n
}

// SetClock replaces time.Now (for testing)
func (m *MockStorage) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// PutJourney stores a journey record as-is, bypassing every check (for testing)
func (m *MockStorage) PutJourney(j journey.Journey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journeys[journeyKey{j.PlayerNumber, j.CityID}] = &j
}

// GetJourney returns a copy of the stored record for the player and city (for testing)
func (m *MockStorage) GetJourney(playerNumber int64, cityID int) *journey.Journey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.journeys[journeyKey{playerNumber, cityID}]
	if !ok {
		return nil
	}
	cp := *j
	return &cp
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) GetUser(ctx context.Context, userID string) (*journey.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *MockStorage) CreateUser(ctx context.Context, userID, deviceID string) (*journey.User, error) {
	if userID == "" {
		return nil, errors.New("user id cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; ok {
		return nil, apperror.Conflict("user", userID)
	}

	for attempt := 0; attempt < m.retries; attempt++ {
		n := int64(m.rng.IntN(MaxPlayerNumber)) + 1
		if _, taken := m.players[n]; taken {
			continue
		}
		u := &journey.User{
			UserID:       userID,
			PlayerNumber: n,
			DeviceID:     deviceID,
			CreatedDate:  m.now().UTC(),
		}
		m.players[n] = userID
		m.users[userID] = u
		cp := *u
		return &cp, nil
	}
	return nil, apperror.Conflict("player number", fmt.Sprintf("%d attempts exhausted for user %s", m.retries, userID))
}

func (m *MockStorage) BumpMaxTurns(ctx context.Context, user *journey.User, turns int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[user.UserID]
	if !ok {
		return apperror.NotFound("user", user.UserID)
	}
	if turns > u.MaxTurnsEver {
		u.MaxTurnsEver = turns
	}
	user.MaxTurnsEver = u.MaxTurnsEver
	return nil
}

func (m *MockStorage) FindActiveJourney(ctx context.Context, playerNumber int64) (*journey.Journey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found []journey.Journey
	for key, j := range m.journeys {
		if key.player == playerNumber && j.Active {
			found = append(found, *j)
		}
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return &found[0], nil
	default:
		return nil, apperror.Consistency("player %d has %d active journeys", playerNumber, len(found))
	}
}

func (m *MockStorage) StartJourney(ctx context.Context, playerNumber int64, cityID int) (*journey.Journey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := journey.New(playerNumber, cityID, m.now().UTC())
	stored := j
	m.journeys[journeyKey{playerNumber, cityID}] = &stored
	return &j, nil
}

func (m *MockStorage) SaveProgress(ctx context.Context, j *journey.Journey) error {
	if j == nil {
		return errors.New("journey cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.journeys[journeyKey{j.PlayerNumber, j.CityID}]
	if !ok {
		return apperror.NotFound("journey", j.Key())
	}
	if !stored.Active {
		return apperror.StaleState("journey", j.Key())
	}
	stored.QuestionNumber = j.QuestionNumber
	stored.MoneyLevel = j.MoneyLevel
	stored.EnergyLevel = j.EnergyLevel
	stored.TurnsCompleted = j.TurnsCompleted
	return nil
}

func (m *MockStorage) Deactivate(ctx context.Context, j *journey.Journey) error {
	if j == nil {
		return errors.New("journey cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.journeys[journeyKey{j.PlayerNumber, j.CityID}]
	if !ok || !stored.Active {
		return apperror.StaleState("journey", j.Key())
	}
	stored.Active = false
	j.Active = false
	return nil
}

// ClaimPlayerNumber marks a player number as taken (for testing)
func (m *MockStorage) ClaimPlayerNumber(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[n] = "claimed-" + strconv.FormatInt(n, 10)
}
