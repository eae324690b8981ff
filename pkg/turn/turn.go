// Package turn defines the abstract events a voice adapter sends to the turn
// processor and the directives it gets back.
package turn

import (
	"errors"
	"fmt"

	"github.com/jwebster45206/journey-engine/pkg/journey"
)

// Type is the closed set of turns a player can take.
type Type int

const (
	Resume Type = iota + 1
	StartCity
	Answer
	RequestTip
	Help
	End
)

var typeNames = map[Type]string{
	Resume:     "resume",
	StartCity:  "start_city",
	Answer:     "answer",
	RequestTip: "request_tip",
	Help:       "help",
	End:        "end",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("turn(%d)", int(t))
}

// ParseType maps a wire name such as "start_city" to its Type.
func ParseType(s string) (Type, error) {
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown turn type %q", s)
}

func (t Type) MarshalText() ([]byte, error) {
	if _, ok := typeNames[t]; !ok {
		return nil, fmt.Errorf("unknown turn type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Session is carried by the adapter between turns of one conversation. The
// repository stays authoritative; the journey here is a snapshot for display.
type Session struct {
	City         string           `json:"city,omitempty"`
	PlayerNumber int64            `json:"player_number,omitempty"`
	Journey      *journey.Journey `json:"journey,omitempty"`
}

// Event is one inbound turn.
type Event struct {
	Type     Type    `json:"type"`
	UserID   string  `json:"user_id"`
	DeviceID string  `json:"device_id,omitempty"`
	City     string  `json:"city,omitempty"`   // StartCity only
	Answer   string  `json:"answer,omitempty"` // Answer only: "yes" or "no"
	Session  Session `json:"session"`
}

var ErrInvalidEvent = errors.New("invalid turn event")

// Validate checks that the event carries what its type needs.
func (e Event) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidEvent)
	}
	switch e.Type {
	case StartCity:
		if e.City == "" {
			return fmt.Errorf("%w: city is required to start a journey", ErrInvalidEvent)
		}
	case Answer:
		if _, err := journey.ParseAnswer(e.Answer); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
	case Resume, RequestTip, Help, End:
	default:
		return fmt.Errorf("%w: unknown type %d", ErrInvalidEvent, int(e.Type))
	}
	return nil
}

// Directive is plain content for the adapter to render. Ended means no
// question is pending: the journey or the conversation is over.
type Directive struct {
	PrimaryText  string `json:"primary_text"`
	FollowupText string `json:"followup_text,omitempty"`
	Reprompt     string `json:"reprompt,omitempty"`
	TipText      string `json:"tip_text,omitempty"`
	Ended        bool   `json:"ended"`
	Warning      bool   `json:"warning"`
}

// Result pairs a directive with the session to send back on the next turn.
type Result struct {
	Directive Directive `json:"directive"`
	Session   Session   `json:"session"`
}
