package turns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/jwebster45206/journey-engine/pkg/apperror"
	"github.com/jwebster45206/journey-engine/pkg/content"
	"github.com/jwebster45206/journey-engine/pkg/journey"
	"github.com/jwebster45206/journey-engine/pkg/storage"
	"github.com/jwebster45206/journey-engine/pkg/turn"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Processor turns inbound events into directives. It is the only place
// errors from the repository, the content store and the state machine are
// translated into player-facing text.
type Processor struct {
	storage storage.Storage
	content content.Store
	logger  *slog.Logger

	mu  sync.Mutex // guards rng
	rng content.Rand
}

// NewProcessor creates a new turn processor. A nil rng uses a randomly
// seeded generator for reprompt selection.
func NewProcessor(store storage.Storage, cs content.Store, logger *slog.Logger, rng content.Rand) *Processor {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Processor{
		storage: store,
		content: cs,
		logger:  logger,
		rng:     rng,
	}
}

// turnState is what one turn knows about the player after its lookups.
type turnState struct {
	user       *journey.User
	registered bool // user was created by this turn
	active     *journey.Journey
	city       string
}

func (s turnState) session() turn.Session {
	var sess turn.Session
	if s.user != nil {
		sess.PlayerNumber = s.user.PlayerNumber
	}
	if s.active != nil && s.active.Active {
		snapshot := *s.active
		sess.Journey = &snapshot
		sess.City = s.city
	}
	return sess
}

// Process handles one turn. The returned error is non-nil only when the
// event itself is malformed (turn.ErrInvalidEvent); every other failure is
// logged and answered with an apology directive.
func (p *Processor) Process(ctx context.Context, ev turn.Event) (turn.Result, error) {
	if err := ev.Validate(); err != nil {
		return turn.Result{}, err
	}
	log := p.logger.With("user_id", ev.UserID, "turn", ev.Type.String())

	var (
		st  turnState
		dir turn.Directive
		err error
	)
	switch ev.Type {
	case turn.Resume:
		st, dir, err = p.resume(ctx, ev)
	case turn.StartCity:
		st, dir, err = p.startCity(ctx, ev)
	case turn.Answer:
		st, dir, err = p.answer(ctx, ev, log)
	case turn.RequestTip:
		st, dir, err = p.requestTip(ctx, ev)
	case turn.Help:
		st, dir, err = p.help(ctx, ev)
	case turn.End:
		dir = turn.Directive{PrimaryText: goodbye(p.content.RandomFact(ctx)), Ended: true}
	}
	if err != nil {
		if errors.Is(err, apperror.ErrStaleState) {
			// Another turn ended the journey; the snapshot we loaded is gone.
			st.active = nil
		}
		return turn.Result{Directive: p.fail(ctx, log, err), Session: st.session()}, nil
	}

	if st.user != nil {
		log = log.With("player_number", st.user.PlayerNumber)
	}
	log.Debug("Turn processed", "ended", dir.Ended, "warning", dir.Warning)
	return turn.Result{Directive: dir, Session: st.session()}, nil
}

// load fetches the user and their active journey. With create set, a user
// seen for the first time is registered.
func (p *Processor) load(ctx context.Context, ev turn.Event, create bool) (turnState, error) {
	var st turnState

	user, err := p.storage.GetUser(ctx, ev.UserID)
	if err != nil {
		return st, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		if !create {
			return st, nil
		}
		if user, err = p.storage.CreateUser(ctx, ev.UserID, ev.DeviceID); err != nil {
			return st, fmt.Errorf("failed to register user: %w", err)
		}
		st.user = user
		st.registered = true
		return st, nil
	}
	st.user = user

	active, err := p.storage.FindActiveJourney(ctx, user.PlayerNumber)
	if err != nil {
		return st, fmt.Errorf("failed to find active journey: %w", err)
	}
	if active != nil {
		name, err := p.content.ResolveCityName(ctx, active.CityID)
		if err != nil {
			return st, fmt.Errorf("failed to resolve city of active journey: %w", err)
		}
		st.active = active
		st.city = name
	}
	return st, nil
}

func (p *Processor) resume(ctx context.Context, ev turn.Event) (turnState, turn.Directive, error) {
	st, err := p.load(ctx, ev, true)
	if err != nil {
		return st, turn.Directive{}, err
	}

	prompt := p.cityPrompt(ctx)
	switch {
	case st.registered:
		return st, turn.Directive{PrimaryText: introMessage, FollowupText: prompt, Reprompt: prompt}, nil
	case st.active != nil:
		return p.continueJourney(ctx, st, welcomeBackMessage)
	default:
		return st, turn.Directive{PrimaryText: noActiveJourneyMessage, FollowupText: prompt, Reprompt: prompt}, nil
	}
}

func (p *Processor) startCity(ctx context.Context, ev turn.Event) (turnState, turn.Directive, error) {
	st, err := p.load(ctx, ev, true)
	if err != nil {
		return st, turn.Directive{}, err
	}
	if st.active != nil {
		return p.continueJourney(ctx, st, welcomeBackMessage)
	}

	cityID, city, err := p.resolveCity(ctx, ev.City)
	if errors.Is(err, apperror.ErrNotFound) {
		p.logger.Info("Unsupported city requested", "user_id", ev.UserID, "city", ev.City)
		prompt := p.cityPrompt(ctx)
		return st, turn.Directive{PrimaryText: unknownCityMessage, FollowupText: prompt, Reprompt: prompt}, nil
	}
	if err != nil {
		return st, turn.Directive{}, fmt.Errorf("failed to resolve city %q: %w", ev.City, err)
	}

	j, err := p.storage.StartJourney(ctx, st.user.PlayerNumber, cityID)
	if err != nil {
		return st, turn.Directive{}, fmt.Errorf("failed to start journey: %w", err)
	}
	st.active = j
	st.city = city
	p.logger.Info("Journey started", "player_number", j.PlayerNumber, "city", city)

	return p.continueJourney(ctx, st, fmt.Sprintf(newJourneyFormat, city))
}

// resolveCity tries the name as given, so stored names like "McAllen" or
// "NYC" match, then title-cases it ("new york" becomes "New York") for what
// the speech layer heard.
func (p *Processor) resolveCity(ctx context.Context, name string) (int, string, error) {
	id, err := p.content.ResolveCityID(ctx, name)
	if !errors.Is(err, apperror.ErrNotFound) {
		return id, name, err
	}
	titled := cases.Title(language.Und).String(name)
	if titled == name {
		return 0, name, err
	}
	id, err = p.content.ResolveCityID(ctx, titled)
	return id, titled, err
}

// continueJourney asks the pending question of st.active, ending the journey
// when the city has no question left.
func (p *Processor) continueJourney(ctx context.Context, st turnState, greeting string) (turnState, turn.Directive, error) {
	q, err := journey.Current(ctx, p.content, *st.active)
	if err != nil {
		return st, turn.Directive{}, err
	}
	if q == nil {
		return p.endJourney(ctx, st, gameEndMessage)
	}
	return st, turn.Directive{
		PrimaryText:  greeting,
		FollowupText: q.Text,
		Reprompt:     p.answerReprompt(),
	}, nil
}

// endJourney deactivates st.active and tells the player why.
func (p *Processor) endJourney(ctx context.Context, st turnState, text string) (turnState, turn.Directive, error) {
	if err := p.storage.Deactivate(ctx, st.active); err != nil {
		return st, turn.Directive{}, fmt.Errorf("failed to end journey: %w", err)
	}
	p.logger.Info("Journey ended", "journey", st.active.Key(), "turns", st.active.TurnsCompleted)
	prompt := p.cityPrompt(ctx)
	return st, turn.Directive{PrimaryText: text, FollowupText: prompt, Reprompt: prompt, Ended: true}, nil
}

func (p *Processor) answer(ctx context.Context, ev turn.Event, log *slog.Logger) (turnState, turn.Directive, error) {
	st, err := p.load(ctx, ev, false)
	if err != nil {
		return st, turn.Directive{}, err
	}
	if st.active == nil {
		prompt := p.cityPrompt(ctx)
		return st, turn.Directive{PrimaryText: noJourneyMessage, FollowupText: prompt, Reprompt: prompt}, nil
	}

	answer, err := journey.ParseAnswer(ev.Answer)
	if err != nil {
		return st, turn.Directive{}, err
	}

	next, outcome, err := journey.Advance(ctx, p.content, *st.active, answer)
	if err != nil {
		return st, turn.Directive{}, err
	}

	var dir turn.Directive
	switch outcome.Reason {
	case journey.NotEnded:
		if err := p.storage.SaveProgress(ctx, &next); err != nil {
			return st, turn.Directive{}, fmt.Errorf("failed to save progress: %w", err)
		}
		st.active = &next
		dir = turn.Directive{
			PrimaryText: outcome.Narration,
			Warning:     outcome.Warning,
			Reprompt:    p.answerReprompt(),
		}
		if outcome.Warning {
			dir.PrimaryText += " " + lowWarning
		}
		if outcome.Next != nil {
			dir.FollowupText = outcome.Next.Text
		} else {
			dir.FollowupText = continuePrompt
		}

	case journey.ResourceDepleted:
		if err := p.storage.SaveProgress(ctx, &next); err != nil {
			return st, turn.Directive{}, fmt.Errorf("failed to save progress: %w", err)
		}
		st.active = &next
		if st, dir, err = p.endJourney(ctx, st, outcome.Narration+" "+depletedMessage); err != nil {
			return st, dir, err
		}

	case journey.NoMoreContent:
		if st, dir, err = p.endJourney(ctx, st, gameEndMessage); err != nil {
			return st, dir, err
		}
	}

	if err := p.storage.BumpMaxTurns(ctx, st.user, next.TurnsCompleted); err != nil {
		log.Warn("Failed to update max turns", "player_number", st.user.PlayerNumber, "error", err)
	}
	return st, dir, nil
}

func (p *Processor) requestTip(ctx context.Context, ev turn.Event) (turnState, turn.Directive, error) {
	st, err := p.load(ctx, ev, false)
	if err != nil {
		return st, turn.Directive{}, err
	}
	if st.active == nil {
		prompt := p.cityPrompt(ctx)
		return st, turn.Directive{PrimaryText: tipUnavailable, FollowupText: prompt, Reprompt: prompt}, nil
	}

	q, err := journey.Current(ctx, p.content, *st.active)
	if err != nil {
		return st, turn.Directive{}, err
	}
	if q == nil {
		return p.endJourney(ctx, st, gameEndMessage)
	}
	if q.Tip == "" {
		return st, turn.Directive{PrimaryText: noTipForQuestion, FollowupText: q.Text, Reprompt: p.answerReprompt()}, nil
	}
	return st, turn.Directive{
		PrimaryText:  fmt.Sprintf(tipFormat, q.Tip),
		FollowupText: q.Text,
		Reprompt:     fmt.Sprintf(tipRepromptFormat, q.Tip),
		TipText:      q.Tip,
	}, nil
}

// help explains the game and repeats whatever the player is being asked.
func (p *Processor) help(ctx context.Context, ev turn.Event) (turnState, turn.Directive, error) {
	st, err := p.load(ctx, ev, false)
	if err != nil {
		return st, turn.Directive{}, err
	}

	if st.active != nil {
		q, err := journey.Current(ctx, p.content, *st.active)
		if err != nil {
			return st, turn.Directive{}, err
		}
		if q != nil {
			return st, turn.Directive{PrimaryText: helpMessage, FollowupText: q.Text, Reprompt: p.answerReprompt()}, nil
		}
	}
	prompt := p.cityPrompt(ctx)
	return st, turn.Directive{PrimaryText: helpMessage, FollowupText: prompt, Reprompt: prompt}, nil
}

// fail logs err in full and picks the player-facing message for its kind.
func (p *Processor) fail(ctx context.Context, log *slog.Logger, err error) turn.Directive {
	prompt := p.cityPrompt(ctx)

	switch apperror.Kind(err) {
	case apperror.ErrStaleState:
		log.Warn("Journey already ended by another turn", "error", err)
		return turn.Directive{PrimaryText: alreadyEndedMessage, FollowupText: prompt, Reprompt: prompt, Ended: true}
	case apperror.ErrConsistency:
		log.Error("Invariant violated", "error", err)
	case apperror.ErrConflict:
		log.Error("Could not register user", "error", err)
	default:
		log.Error("Turn failed", "error", err)
	}
	return turn.Directive{PrimaryText: genericApology, Reprompt: prompt}
}

func (p *Processor) cityPrompt(ctx context.Context) string {
	cities, err := p.content.ListCities(ctx)
	if err != nil {
		p.logger.Warn("Failed to list cities", "error", err)
		return fallbackCityPrompt
	}
	return cityPrompt(cities)
}

func (p *Processor) answerReprompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return answerReprompts[p.rng.IntN(len(answerReprompts))]
}
