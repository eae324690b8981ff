package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/journey-engine/pkg/turn"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes scripted conversations against a running journey-engine API.
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 30 * time.Second},
		Timeout:           10 * time.Second,
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(data, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}
	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence.
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		subJobs, err := LoadTestSuiteWithExpansion(filepath.Join(casesDir, caseFile), casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}
		jobs = append(jobs, subJobs...)
	}
	return jobs, nil
}

// RunSuite plays every step of suite as a new user, echoing the returned
// session into the next turn the way a voice platform would.
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job:     TestJob{Name: suite.Name, Suite: suite},
		Results: make([]TestResult, 0, len(suite.Steps)),
		UserID:  "integration-" + uuid.NewString(),
	}

	var session turn.Session
	for i, step := range suite.Steps {
		stepName := step.Name
		if stepName == "" {
			stepName = fmt.Sprintf("step %d (%s)", i+1, step.Type)
		}

		stepStart := time.Now()
		res, err := r.sendTurn(ctx, turn.Event{
			Type:     step.Type,
			UserID:   result.UserID,
			DeviceID: "integration",
			City:     step.City,
			Answer:   step.Answer,
			Session:  session,
		})

		tr := TestResult{
			TestName: suite.Name,
			StepName: stepName,
			Duration: time.Since(stepStart),
		}
		if err == nil {
			tr.Directive = res.Directive
			session = res.Session
			err = CheckExpectations(step.Expectations, *res)
		}
		tr.Error = err
		tr.Success = err == nil
		result.Results = append(result.Results, tr)

		r.logf("  %s %s (%s)", passMark(tr.Success), stepName, tr.Duration.Round(time.Millisecond))
		if err != nil {
			r.logf("      %v", err)
			if r.ErrorHandlingMode == ErrorHandlingExit {
				result.Error = fmt.Errorf("step '%s' failed: %w", stepName, err)
				break
			}
		}
	}

	if result.Error == nil {
		failed := 0
		for _, tr := range result.Results {
			if !tr.Success {
				failed++
			}
		}
		if failed > 0 {
			result.Error = fmt.Errorf("%d of %d steps failed", failed, len(result.Results))
		}
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

func (r *Runner) sendTurn(ctx context.Context, ev turn.Event) (*turn.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/v1/turns", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send turn: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var res turn.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to parse turn response: %w", err)
	}
	return &res, nil
}

// CheckExpectations compares one turn's result against exp and reports every
// mismatch in a single error.
func CheckExpectations(exp Expectations, res turn.Result) error {
	var failures []string
	fail := func(format string, args ...interface{}) {
		failures = append(failures, fmt.Sprintf(format, args...))
	}

	d := res.Directive
	j := res.Session.Journey

	if exp.Ended != nil && d.Ended != *exp.Ended {
		fail("ended: expected %v, got %v", *exp.Ended, d.Ended)
	}
	if exp.Warning != nil && d.Warning != *exp.Warning {
		fail("warning: expected %v, got %v", *exp.Warning, d.Warning)
	}
	if exp.Active != nil && (j != nil) != *exp.Active {
		fail("active journey: expected %v, got %v", *exp.Active, j != nil)
	}

	checkInt := func(name string, want *int, got func() int) {
		if want == nil {
			return
		}
		if j == nil {
			fail("%s: expected %d, but the session has no journey", name, *want)
			return
		}
		if g := got(); g != *want {
			fail("%s: expected %d, got %d", name, *want, g)
		}
	}
	checkInt("question_number", exp.QuestionNumber, func() int { return j.QuestionNumber })
	checkInt("money_level", exp.MoneyLevel, func() int { return j.MoneyLevel })
	checkInt("energy_level", exp.EnergyLevel, func() int { return j.EnergyLevel })
	checkInt("turns_completed", exp.TurnsCompleted, func() int { return j.TurnsCompleted })

	for _, s := range exp.PrimaryContains {
		if !strings.Contains(d.PrimaryText, s) {
			fail("primary_text does not contain %q: %q", s, d.PrimaryText)
		}
	}
	for _, s := range exp.PrimaryNotContains {
		if strings.Contains(d.PrimaryText, s) {
			fail("primary_text unexpectedly contains %q", s)
		}
	}
	for _, s := range exp.FollowupContains {
		if !strings.Contains(d.FollowupText, s) {
			fail("followup_text does not contain %q: %q", s, d.FollowupText)
		}
	}
	for _, s := range exp.TipContains {
		if !strings.Contains(d.TipText, s) {
			fail("tip_text does not contain %q: %q", s, d.TipText)
		}
	}
	if exp.PrimaryRegex != "" {
		re, err := regexp.Compile(exp.PrimaryRegex)
		if err != nil {
			fail("invalid primary_regex %q: %v", exp.PrimaryRegex, err)
		} else if !re.MatchString(d.PrimaryText) {
			fail("primary_text does not match %q: %q", exp.PrimaryRegex, d.PrimaryText)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("%s", strings.Join(failures, "; "))
	}
	return nil
}

func (r *Runner) logf(format string, args ...interface{}) {
	if r.Logger != nil {
		r.Logger(format, args...)
	}
}

func passMark(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}
