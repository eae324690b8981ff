package journey

import (
	"context"
	"fmt"

	"github.com/jwebster45206/journey-engine/pkg/content"
)

// Answer is the player's reply to the pending question.
type Answer int

const (
	AnswerYes Answer = iota + 1
	AnswerNo
)

func (a Answer) String() string {
	switch a {
	case AnswerYes:
		return "yes"
	case AnswerNo:
		return "no"
	default:
		return "unknown"
	}
}

// ParseAnswer accepts "yes" or "no".
func ParseAnswer(s string) (Answer, error) {
	switch s {
	case "yes":
		return AnswerYes, nil
	case "no":
		return AnswerNo, nil
	default:
		return 0, fmt.Errorf("invalid answer %q", s)
	}
}

// EndReason says why a journey stopped.
type EndReason int

const (
	NotEnded EndReason = iota
	NoMoreContent
	ResourceDepleted
)

func (r EndReason) String() string {
	switch r {
	case NoMoreContent:
		return "no_more_content"
	case ResourceDepleted:
		return "resource_depleted"
	default:
		return "not_ended"
	}
}

// Outcome is the result of one answered turn.
type Outcome struct {
	Ended     bool
	Reason    EndReason
	Warning   bool
	Narration string            // Yes/no text of the answered question
	Next      *content.Question // Preview of the following question; nil when missing
}

// QuestionSource is the part of content.Store the machine reads from.
type QuestionSource interface {
	GetQuestion(ctx context.Context, cityID, number int) (*content.Question, error)
}

// Apply is the pure transition for answering the pending question. q is the
// question at j.Pending(), or nil when the city has no such question.
// The returned outcome never carries Next; Advance fills it.
func Apply(j Journey, q *content.Question, a Answer) (Journey, Outcome) {
	if q == nil {
		j.Active = false
		return j, Outcome{Ended: true, Reason: NoMoreContent}
	}

	var narration string
	switch a {
	case AnswerYes:
		j.MoneyLevel += q.YesMoneyDelta
		j.EnergyLevel += q.YesEnergyDelta
		narration = q.YesText
	case AnswerNo:
		j.MoneyLevel += q.NoMoneyDelta
		j.EnergyLevel += q.NoEnergyDelta
		narration = q.NoText
	}
	j.QuestionNumber++
	j.TurnsCompleted++

	if j.Depleted() {
		j.Active = false
		return j, Outcome{Ended: true, Reason: ResourceDepleted, Narration: narration}
	}

	return j, Outcome{Warning: j.Low(), Narration: narration}
}

// Advance answers the pending question of an active journey, looking up the
// answered question and, when the journey continues, the next one.
func Advance(ctx context.Context, src QuestionSource, j Journey, a Answer) (Journey, Outcome, error) {
	if a != AnswerYes && a != AnswerNo {
		return j, Outcome{}, fmt.Errorf("invalid answer %d", a)
	}

	q, err := src.GetQuestion(ctx, j.CityID, j.Pending())
	if err != nil {
		return j, Outcome{}, fmt.Errorf("failed to look up question %d: %w", j.Pending(), err)
	}

	next, outcome := Apply(j, q, a)
	if outcome.Ended {
		return next, outcome, nil
	}

	// A missing preview is tolerated; the following answer ends the journey.
	preview, err := src.GetQuestion(ctx, next.CityID, next.Pending())
	if err != nil {
		return j, Outcome{}, fmt.Errorf("failed to look up question %d: %w", next.Pending(), err)
	}
	outcome.Next = preview
	return next, outcome, nil
}

// Current resolves the question j is waiting on. A nil question means the
// city has no content left for this journey.
func Current(ctx context.Context, src QuestionSource, j Journey) (*content.Question, error) {
	q, err := src.GetQuestion(ctx, j.CityID, j.Pending())
	if err != nil {
		return nil, fmt.Errorf("failed to look up question %d: %w", j.Pending(), err)
	}
	return q, nil
}
