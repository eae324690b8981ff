package runner

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jwebster45206/journey-engine/internal/handlers"
	"github.com/jwebster45206/journey-engine/internal/storage"
	"github.com/jwebster45206/journey-engine/internal/turns"
	pkgstorage "github.com/jwebster45206/journey-engine/pkg/storage"
	"github.com/jwebster45206/journey-engine/pkg/turn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type firstRand struct{}

func (firstRand) IntN(int) int { return 0 }

// newTestServer serves the shipped content from an in-memory repository.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	catalog, err := storage.LoadCatalog(filepath.Join("..", "..", "data"), firstRand{}, logger)
	require.NoError(t, err)

	p := turns.NewProcessor(pkgstorage.NewMockStorage(), catalog, logger, firstRand{})
	mux := http.NewServeMux()
	mux.Handle("/v1/turns", handlers.NewTurnHandler(p, logger))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunner_ShippedCases(t *testing.T) {
	srv := newTestServer(t)
	files, err := filepath.Glob(filepath.Join("..", "cases", "*.json"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	r := NewRunner(srv.URL + "/")
	r.Logger = t.Logf

	for _, f := range files {
		jobs, err := LoadTestSuiteWithExpansion(f, filepath.Join("..", "cases"))
		require.NoError(t, err)
		for _, job := range jobs {
			t.Run(job.Name, func(t *testing.T) {
				result, err := r.RunSuite(context.Background(), job.Suite)
				require.NoError(t, err)
				for _, step := range result.Results {
					assert.True(t, step.Success, "%s: %v", step.StepName, step.Error)
				}
			})
		}
	}
}

func TestRunner_ReportsFailures(t *testing.T) {
	srv := newTestServer(t)
	r := NewRunner(srv.URL)

	wrong := 99
	suite := TestSuite{
		Name: "wrong expectations",
		Steps: []TestStep{
			{Type: turn.StartCity, City: "Tokyo", Expectations: Expectations{MoneyLevel: &wrong}},
			{Type: turn.Help, Expectations: Expectations{PrimaryContains: []string{"explorer"}}},
		},
	}

	result, err := r.RunSuite(context.Background(), suite)
	require.Error(t, err)
	require.Len(t, result.Results, 2)
	assert.False(t, result.Results[0].Success)
	assert.Contains(t, result.Results[0].Error.Error(), "money_level: expected 99, got 50")
	assert.True(t, result.Results[1].Success)

	r.ErrorHandlingMode = ErrorHandlingExit
	result, err = r.RunSuite(context.Background(), suite)
	require.Error(t, err)
	assert.Len(t, result.Results, 1)
}

func TestRunner_APIError(t *testing.T) {
	srv := newTestServer(t)
	r := NewRunner(srv.URL)

	// An answer without a yes/no value is rejected with 400.
	result, err := r.RunSuite(context.Background(), TestSuite{
		Name:  "bad answer",
		Steps: []TestStep{{Type: turn.Answer, Answer: "maybe"}},
	})
	require.Error(t, err)
	assert.Contains(t, result.Results[0].Error.Error(), "status 400")
}

func TestCheckExpectations(t *testing.T) {
	yes := true
	res := turn.Result{Directive: turn.Directive{PrimaryText: "Goodbye! fact.", Ended: true}}

	assert.NoError(t, CheckExpectations(Expectations{Ended: &yes, PrimaryRegex: `^Goodbye!`}, res))

	err := CheckExpectations(Expectations{Active: &yes, QuestionNumber: new(int), PrimaryNotContains: []string{"fact"}}, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "active journey")
	assert.Contains(t, err.Error(), "session has no journey")
	assert.Contains(t, err.Error(), "unexpectedly contains")
}

func TestLoadTestSuiteWithExpansion(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}
	write("a.json", `{"name":"a","steps":[{"type":"resume","expect":{}}]}`)
	write("b.json", `{"name":"b","steps":[{"type":"help","expect":{}}]}`)
	seq := write("seq.json", `{"name":"seq","cases":["a.json","b.json"]}`)

	jobs, err := LoadTestSuiteWithExpansion(seq, dir)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Name)
	assert.Equal(t, turn.Help, jobs[1].Suite.Steps[0].Type)

	write("broken.json", `{"name":"broken","cases":["missing.json"]}`)
	_, err = LoadTestSuiteWithExpansion(filepath.Join(dir, "broken.json"), dir)
	assert.Error(t, err)
}
