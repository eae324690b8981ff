package runner

import (
	"time"

	"github.com/jwebster45206/journey-engine/pkg/turn"
)

// TestSuite is one scripted conversation. Every suite runs as a fresh user.
// Can either be a regular test with Steps, or a suite that references other Cases.
type TestSuite struct {
	Name  string     `json:"name"`
	Steps []TestStep `json:"steps,omitempty"`
	Cases []string   `json:"cases,omitempty"` // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep is a single turn and its expected outcome.
type TestStep struct {
	Name         string       `json:"name,omitempty"`
	Type         turn.Type    `json:"type"`
	City         string       `json:"city,omitempty"`
	Answer       string       `json:"answer,omitempty"`
	Expectations Expectations `json:"expect"`
}

// Expectations defines what to check after a step executes. Nil fields are
// not checked.
type Expectations struct {
	Ended          *bool `json:"ended,omitempty"`
	Warning        *bool `json:"warning,omitempty"`
	Active         *bool `json:"active,omitempty"` // Session carries a journey
	QuestionNumber *int  `json:"question_number,omitempty"`
	MoneyLevel     *int  `json:"money_level,omitempty"`
	EnergyLevel    *int  `json:"energy_level,omitempty"`
	TurnsCompleted *int  `json:"turns_completed,omitempty"`

	PrimaryContains    []string `json:"primary_contains,omitempty"`
	PrimaryNotContains []string `json:"primary_not_contains,omitempty"`
	FollowupContains   []string `json:"followup_contains,omitempty"`
	TipContains        []string `json:"tip_contains,omitempty"`
	PrimaryRegex       string   `json:"primary_regex,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName  string
	StepName  string
	Success   bool
	Error     error
	Duration  time.Duration
	Directive turn.Directive
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	Error    error
	Duration time.Duration
	UserID   string // Synthetic user the suite ran as
}
