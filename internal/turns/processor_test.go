package turns

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jwebster45206/journey-engine/pkg/apperror"
	"github.com/jwebster45206/journey-engine/pkg/content"
	"github.com/jwebster45206/journey-engine/pkg/journey"
	"github.com/jwebster45206/journey-engine/pkg/storage"
	"github.com/jwebster45206/journey-engine/pkg/storage/storagetest"
	"github.com/jwebster45206/journey-engine/pkg/turn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRand int

func (f fixedRand) IntN(n int) int { return int(f) % n }

const playerNumber = 100

func testCatalog(t *testing.T) *content.Catalog {
	t.Helper()
	files := []content.CityFile{
		{ID: 1, Name: "Tokyo", Questions: []content.Question{
			{Number: 1, Text: "Ride the Yamanote line?", YesText: "You squeeze aboard.", NoText: "You walk to Shibuya.",
				YesMoneyDelta: 5, YesEnergyDelta: -10, NoEnergyDelta: -5, Tip: "Avoid rush hour."},
			{Number: 2, Text: "Try the sushi at Tsukiji?", YesText: "Delicious and pricey.", NoText: "You skip it.",
				YesMoneyDelta: -60},
			{Number: 3, Text: "Visit Senso-ji?", YesText: "Incense everywhere.", NoText: "Next time."},
		}},
		{ID: 2, Name: "Kyoto", Questions: []content.Question{
			{Number: 1, Text: "Walk through Fushimi Inari?", YesText: "Thousands of gates.", NoText: "Maybe tomorrow."},
		}},
		{ID: 3, Name: "Osaka"},
	}
	c, err := content.NewCatalog(files, []string{"Kyoto has over 1,600 temples."}, fixedRand(0))
	require.NoError(t, err)
	return c
}

func newTestProcessor(t *testing.T) (*Processor, *storage.MockStorage) {
	t.Helper()
	store := storage.NewMockStorage()
	store.SetRand(storagetest.NewSequenceRand(playerNumber))
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewProcessor(store, testCatalog(t), logger, fixedRand(0)), store
}

func process(t *testing.T, p *Processor, ev turn.Event) turn.Result {
	t.Helper()
	if ev.UserID == "" {
		ev.UserID = "user-1"
	}
	res, err := p.Process(context.Background(), ev)
	require.NoError(t, err)
	return res
}

func TestProcess_NewPlayerResume(t *testing.T) {
	p, store := newTestProcessor(t)

	res := process(t, p, turn.Event{Type: turn.Resume, DeviceID: "echo-1"})
	assert.Equal(t, introMessage, res.Directive.PrimaryText)
	assert.Equal(t, "Do you want to explore Tokyo, Kyoto, or Osaka?", res.Directive.FollowupText)
	assert.False(t, res.Directive.Ended)
	assert.Equal(t, int64(playerNumber), res.Session.PlayerNumber)
	assert.Nil(t, res.Session.Journey)

	u, err := store.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "echo-1", u.DeviceID)

	res = process(t, p, turn.Event{Type: turn.Resume})
	assert.Equal(t, noActiveJourneyMessage, res.Directive.PrimaryText)
}

func TestProcess_TokyoScenario(t *testing.T) {
	p, store := newTestProcessor(t)

	res := process(t, p, turn.Event{Type: turn.StartCity, City: "Tokyo"})
	assert.Equal(t, "Welcome to your new Tokyo journey!", res.Directive.PrimaryText)
	assert.Equal(t, "Ride the Yamanote line?", res.Directive.FollowupText)
	assert.Equal(t, answerReprompts[0], res.Directive.Reprompt)
	assert.False(t, res.Directive.Ended)
	require.NotNil(t, res.Session.Journey)
	assert.Equal(t, "Tokyo", res.Session.City)
	assert.Equal(t, 0, res.Session.Journey.QuestionNumber)
	assert.Equal(t, 50, res.Session.Journey.MoneyLevel)
	assert.Equal(t, 50, res.Session.Journey.EnergyLevel)

	res = process(t, p, turn.Event{Type: turn.Answer, Answer: "yes", Session: res.Session})
	assert.Equal(t, "You squeeze aboard.", res.Directive.PrimaryText)
	assert.Equal(t, "Try the sushi at Tsukiji?", res.Directive.FollowupText)
	assert.False(t, res.Directive.Ended)
	assert.False(t, res.Directive.Warning)

	stored := store.GetJourney(playerNumber, 1)
	require.NotNil(t, stored)
	assert.Equal(t, 55, stored.MoneyLevel)
	assert.Equal(t, 40, stored.EnergyLevel)
	assert.Equal(t, 1, stored.QuestionNumber)
	assert.True(t, stored.Active)

	u, err := store.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, u.MaxTurnsEver)
}

func TestProcess_UnknownCity(t *testing.T) {
	p, store := newTestProcessor(t)

	res := process(t, p, turn.Event{Type: turn.StartCity, City: "atlantis"})
	assert.Equal(t, unknownCityMessage, res.Directive.PrimaryText)
	assert.Contains(t, res.Directive.FollowupText, "Tokyo")
	assert.Nil(t, res.Session.Journey)

	active, err := store.FindActiveJourney(context.Background(), playerNumber)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestProcess_CityNameCasing(t *testing.T) {
	catalog, err := content.NewCatalog([]content.CityFile{
		{ID: 1, Name: "McAllen", Questions: []content.Question{{Number: 1, Text: "Cross the bridge?", YesText: "y", NoText: "n"}}},
		{ID: 2, Name: "NYC", Questions: []content.Question{{Number: 1, Text: "Ride the subway?", YesText: "y", NoText: "n"}}},
		{ID: 3, Name: "New York", Questions: []content.Question{{Number: 1, Text: "See Broadway?", YesText: "y", NoText: "n"}}},
	}, nil, fixedRand(0))
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	tests := []struct {
		heard    string
		city     string
		question string
	}{
		{"McAllen", "McAllen", "Cross the bridge?"},
		{"NYC", "NYC", "Ride the subway?"},
		{"new york", "New York", "See Broadway?"},
	}
	for _, tt := range tests {
		t.Run(tt.heard, func(t *testing.T) {
			p := NewProcessor(storage.NewMockStorage(), catalog, logger, fixedRand(0))
			res := process(t, p, turn.Event{Type: turn.StartCity, City: tt.heard})
			assert.Equal(t, "Welcome to your new "+tt.city+" journey!", res.Directive.PrimaryText)
			assert.Equal(t, tt.question, res.Directive.FollowupText)
			assert.Equal(t, tt.city, res.Session.City)
		})
	}
}

func TestProcess_StartCityContinuesActiveJourney(t *testing.T) {
	p, store := newTestProcessor(t)
	process(t, p, turn.Event{Type: turn.StartCity, City: "Tokyo"})
	process(t, p, turn.Event{Type: turn.Answer, Answer: "no"})

	res := process(t, p, turn.Event{Type: turn.StartCity, City: "Kyoto"})
	assert.Equal(t, welcomeBackMessage, res.Directive.PrimaryText)
	assert.Equal(t, "Try the sushi at Tsukiji?", res.Directive.FollowupText)
	assert.Equal(t, "Tokyo", res.Session.City)
	assert.Nil(t, store.GetJourney(playerNumber, 2), "no Kyoto journey may start")
}

func TestProcess_ResumeActiveJourney(t *testing.T) {
	p, _ := newTestProcessor(t)
	process(t, p, turn.Event{Type: turn.StartCity, City: "Tokyo"})

	res := process(t, p, turn.Event{Type: turn.Resume})
	assert.Equal(t, welcomeBackMessage, res.Directive.PrimaryText)
	assert.Equal(t, "Ride the Yamanote line?", res.Directive.FollowupText)
}

func TestProcess_AnswerWithoutJourney(t *testing.T) {
	p, store := newTestProcessor(t)

	res := process(t, p, turn.Event{Type: turn.Answer, Answer: "yes"})
	assert.Equal(t, noJourneyMessage, res.Directive.PrimaryText)
	assert.False(t, res.Directive.Ended)

	u, err := store.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Nil(t, u, "answering never registers a user")
}

func TestProcess_ResourceDepleted(t *testing.T) {
	p, store := newTestProcessor(t)
	process(t, p, turn.Event{Type: turn.StartCity, City: "Tokyo"})
	process(t, p, turn.Event{Type: turn.Answer, Answer: "yes"})

	res := process(t, p, turn.Event{Type: turn.Answer, Answer: "yes"})
	assert.True(t, res.Directive.Ended)
	assert.Equal(t, "Delicious and pricey. "+depletedMessage, res.Directive.PrimaryText)
	assert.Nil(t, res.Session.Journey)

	stored := store.GetJourney(playerNumber, 1)
	require.NotNil(t, stored)
	assert.False(t, stored.Active)
	assert.Equal(t, -5, stored.MoneyLevel)
	assert.Equal(t, 2, stored.TurnsCompleted)

	u, err := store.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, u.MaxTurnsEver)

	res = process(t, p, turn.Event{Type: turn.Answer, Answer: "no"})
	assert.Equal(t, noJourneyMessage, res.Directive.PrimaryText)
}

func TestProcess_NoMoreContent(t *testing.T) {
	p, store := newTestProcessor(t)
	process(t, p, turn.Event{Type: turn.StartCity, City: "Kyoto"})

	// The preview of question 2 misses but the turn still narrates.
	res := process(t, p, turn.Event{Type: turn.Answer, Answer: "yes"})
	assert.Equal(t, "Thousands of gates.", res.Directive.PrimaryText)
	assert.Equal(t, continuePrompt, res.Directive.FollowupText)
	assert.False(t, res.Directive.Ended)

	res = process(t, p, turn.Event{Type: turn.Answer, Answer: "yes"})
	assert.Equal(t, gameEndMessage, res.Directive.PrimaryText)
	assert.True(t, res.Directive.Ended)

	stored := store.GetJourney(playerNumber, 2)
	require.NotNil(t, stored)
	assert.False(t, stored.Active)
	assert.Equal(t, 1, stored.QuestionNumber)
	assert.Equal(t, 50, stored.MoneyLevel)
}

func TestProcess_CityWithoutContentEndsImmediately(t *testing.T) {
	p, store := newTestProcessor(t)

	res := process(t, p, turn.Event{Type: turn.StartCity, City: "Osaka"})
	assert.Equal(t, gameEndMessage, res.Directive.PrimaryText)
	assert.True(t, res.Directive.Ended)

	stored := store.GetJourney(playerNumber, 3)
	require.NotNil(t, stored)
	assert.False(t, stored.Active)
}

func TestProcess_LowResourceWarning(t *testing.T) {
	p, store := newTestProcessor(t)
	process(t, p, turn.Event{Type: turn.Resume})

	j := journey.New(playerNumber, 1, time.Now())
	j.EnergyLevel = 14
	store.PutJourney(j)

	res := process(t, p, turn.Event{Type: turn.Answer, Answer: "no"})
	assert.True(t, res.Directive.Warning)
	assert.False(t, res.Directive.Ended)
	assert.Equal(t, "You walk to Shibuya. "+lowWarning, res.Directive.PrimaryText)
	assert.Equal(t, 9, res.Session.Journey.EnergyLevel)
}

func TestProcess_RequestTip(t *testing.T) {
	p, _ := newTestProcessor(t)

	res := process(t, p, turn.Event{Type: turn.RequestTip})
	assert.Equal(t, tipUnavailable, res.Directive.PrimaryText)

	process(t, p, turn.Event{Type: turn.StartCity, City: "Tokyo"})
	res = process(t, p, turn.Event{Type: turn.RequestTip})
	assert.Equal(t, "Avoid rush hour.", res.Directive.TipText)
	assert.Equal(t, "Hello explorer! Avoid rush hour.", res.Directive.PrimaryText)
	assert.Equal(t, "Ride the Yamanote line?", res.Directive.FollowupText)

	process(t, p, turn.Event{Type: turn.Answer, Answer: "no"})
	res = process(t, p, turn.Event{Type: turn.RequestTip})
	assert.Equal(t, noTipForQuestion, res.Directive.PrimaryText)
	assert.Empty(t, res.Directive.TipText)
	assert.Equal(t, "Try the sushi at Tsukiji?", res.Directive.FollowupText)
}

func TestProcess_Help(t *testing.T) {
	p, _ := newTestProcessor(t)

	res := process(t, p, turn.Event{Type: turn.Help})
	assert.Equal(t, helpMessage, res.Directive.PrimaryText)
	assert.Contains(t, res.Directive.FollowupText, "explore")

	process(t, p, turn.Event{Type: turn.StartCity, City: "Tokyo"})
	res = process(t, p, turn.Event{Type: turn.Help})
	assert.Equal(t, "Ride the Yamanote line?", res.Directive.FollowupText)
}

func TestProcess_End(t *testing.T) {
	p, _ := newTestProcessor(t)

	res := process(t, p, turn.Event{Type: turn.End})
	assert.True(t, res.Directive.Ended)
	assert.Equal(t,
		"Goodbye! Kyoto has over 1,600 temples. New journeys to Sapporo, Nagasaki, and Okinawa coming soon!",
		res.Directive.PrimaryText)
}

func TestProcess_InvalidEvent(t *testing.T) {
	p, _ := newTestProcessor(t)

	_, err := p.Process(context.Background(), turn.Event{Type: turn.Answer, UserID: "u", Answer: "perhaps"})
	assert.ErrorIs(t, err, turn.ErrInvalidEvent)
}

// racingStorage loses every deactivation to a concurrent turn.
type racingStorage struct {
	*storage.MockStorage
}

func (r racingStorage) Deactivate(ctx context.Context, j *journey.Journey) error {
	_ = r.MockStorage.Deactivate(ctx, j)
	return apperror.StaleState("journey", j.Key())
}

func TestProcess_StaleDeactivate(t *testing.T) {
	mock := storage.NewMockStorage()
	mock.SetRand(storagetest.NewSequenceRand(playerNumber))
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	p := NewProcessor(racingStorage{mock}, testCatalog(t), logger, fixedRand(0))

	process(t, p, turn.Event{Type: turn.StartCity, City: "Kyoto"})
	process(t, p, turn.Event{Type: turn.Answer, Answer: "no"})

	res := process(t, p, turn.Event{Type: turn.Answer, Answer: "no"})
	assert.Equal(t, alreadyEndedMessage, res.Directive.PrimaryText)
	assert.True(t, res.Directive.Ended)
}

// endingStorage lets a concurrent turn end the journey right after this
// turn has loaded it.
type endingStorage struct {
	*storage.MockStorage
}

func (e endingStorage) FindActiveJourney(ctx context.Context, player int64) (*journey.Journey, error) {
	j, err := e.MockStorage.FindActiveJourney(ctx, player)
	if err != nil || j == nil {
		return j, err
	}
	ended := *j
	if err := e.MockStorage.Deactivate(ctx, &ended); err != nil {
		return nil, err
	}
	return j, nil
}

func TestProcess_AnswerAfterConcurrentEnd(t *testing.T) {
	mock := storage.NewMockStorage()
	mock.SetRand(storagetest.NewSequenceRand(playerNumber))
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	// Start on the plain mock so the journey is active.
	process(t, NewProcessor(mock, testCatalog(t), logger, fixedRand(0)), turn.Event{Type: turn.StartCity, City: "Tokyo"})

	p := NewProcessor(endingStorage{mock}, testCatalog(t), logger, fixedRand(0))
	res := process(t, p, turn.Event{Type: turn.Answer, Answer: "yes"})
	assert.Equal(t, alreadyEndedMessage, res.Directive.PrimaryText)
	assert.True(t, res.Directive.Ended)
	assert.Nil(t, res.Session.Journey)

	stored := mock.GetJourney(playerNumber, 1)
	require.NotNil(t, stored)
	assert.False(t, stored.Active)
	assert.Equal(t, journey.StartingLevel, stored.MoneyLevel)
	assert.Equal(t, journey.StartingLevel, stored.EnergyLevel)
	assert.Equal(t, 0, stored.QuestionNumber)
}

func TestProcess_ConsistencyViolation(t *testing.T) {
	p, store := newTestProcessor(t)
	process(t, p, turn.Event{Type: turn.Resume})

	store.PutJourney(journey.New(playerNumber, 1, time.Now()))
	store.PutJourney(journey.New(playerNumber, 2, time.Now()))

	res := process(t, p, turn.Event{Type: turn.Answer, Answer: "yes"})
	assert.Equal(t, genericApology, res.Directive.PrimaryText)
	assert.False(t, res.Directive.Ended)

	// Neither journey was touched.
	assert.Equal(t, 0, store.GetJourney(playerNumber, 1).QuestionNumber)
	assert.Equal(t, 0, store.GetJourney(playerNumber, 2).QuestionNumber)
}

// failingContent breaks every question lookup.
type failingContent struct {
	*content.Catalog
}

func (failingContent) GetQuestion(context.Context, int, int) (*content.Question, error) {
	return nil, errors.New("content backend offline")
}

func TestProcess_UnclassifiedErrorDegradesToApology(t *testing.T) {
	store := storage.NewMockStorage()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	p := NewProcessor(store, failingContent{testCatalog(t)}, logger, fixedRand(0))

	res := process(t, p, turn.Event{Type: turn.StartCity, City: "Tokyo"})
	assert.Equal(t, genericApology, res.Directive.PrimaryText)
	assert.True(t, strings.HasPrefix(res.Directive.Reprompt, "Do you want to explore"))
}

func TestCityPrompt(t *testing.T) {
	assert.Equal(t, fallbackCityPrompt, cityPrompt(nil))
	assert.Equal(t, "Do you want to explore Tokyo?", cityPrompt([]content.City{{ID: 1, Name: "Tokyo"}}))
	assert.Equal(t, "Do you want to explore Tokyo or Kyoto?",
		cityPrompt([]content.City{{ID: 1, Name: "Tokyo"}, {ID: 2, Name: "Kyoto"}}))
}

func TestGoodbye(t *testing.T) {
	assert.Equal(t,
		"Goodbye! Nagasaki is known for its delicious Japanese sake. New journeys to Sapporo, Nagasaki, and Okinawa coming soon!",
		goodbye(content.DefaultFact))
}
