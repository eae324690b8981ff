package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jwebster45206/journey-engine/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tokyoJSON = `{
	"city_id": 1,
	"city_name": "Tokyo",
	"questions": [
		{"question_number": 1, "question_text": "Ride the train?", "yes_text": "Packed.", "no_text": "You walk.",
		 "yes_money_delta": 5, "yes_energy_delta": -10, "no_money_delta": 0, "no_energy_delta": -5,
		 "tip_text": "Buy a Suica card."},
		{"question_number": 3, "question_text": "Eat ramen?", "yes_text": "Slurp.", "no_text": "Hungry."}
	]
}`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "cities", "tokyo.json"), tokyoJSON)
	writeFile(t, filepath.Join(dir, "cities", "README.md"), "not content")
	writeFile(t, filepath.Join(dir, "facts.json"), `["Kyoto has over 1,600 temples."]`)

	catalog, err := LoadCatalog(dir, nil, testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	id, err := catalog.ResolveCityID(ctx, "Tokyo")
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	q, err := catalog.GetQuestion(ctx, 1, 1)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, 1, q.CityID)
	assert.Equal(t, "Buy a Suica card.", q.Tip)

	gap, err := catalog.GetQuestion(ctx, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, gap)

	assert.Equal(t, "Kyoto has over 1,600 temples.", catalog.RandomFact(ctx))
}

func TestLoadCatalog_MissingFacts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "cities", "tokyo.json"), tokyoJSON)

	catalog, err := LoadCatalog(dir, nil, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "Nagasaki is known for its delicious Japanese sake.", catalog.RandomFact(context.Background()))
}

func TestLoadCatalog_Errors(t *testing.T) {
	t.Run("missing cities dir", func(t *testing.T) {
		_, err := LoadCatalog(t.TempDir(), nil, testLogger())
		assert.Error(t, err)
	})

	t.Run("malformed city", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "cities", "broken.json"), `{"city_id": "one"}`)
		_, err := LoadCatalog(dir, nil, testLogger())
		assert.Error(t, err)
	})

	t.Run("malformed facts", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "cities", "tokyo.json"), tokyoJSON)
		writeFile(t, filepath.Join(dir, "facts.json"), `{"fact": "nope"}`)
		_, err := LoadCatalog(dir, nil, testLogger())
		assert.Error(t, err)
	})

	t.Run("duplicate city", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "cities", "tokyo.json"), tokyoJSON)
		writeFile(t, filepath.Join(dir, "cities", "tokyo_copy.json"), tokyoJSON)
		_, err := LoadCatalog(dir, nil, testLogger())
		assert.ErrorIs(t, err, apperror.ErrConsistency)
	})
}
