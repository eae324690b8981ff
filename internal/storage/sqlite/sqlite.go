// Package sqlite implements content.Store on a SQLite database.
//
// The schema mirrors the keyed-store layout the content was first authored
// for: lookups are plain scans on the documented keys, and more than one row
// on a unique key is reported as a consistency error instead of being masked
// by a constraint.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/jwebster45206/journey-engine/pkg/apperror"
	"github.com/jwebster45206/journey-engine/pkg/content"

	_ "modernc.org/sqlite"
)

// ContentStore reads cities, questions and facts from SQLite.
type ContentStore struct {
	conn   *sql.DB
	logger *slog.Logger

	mu  sync.Mutex // guards rng
	rng content.Rand
}

var _ content.Store = (*ContentStore)(nil)

// New opens the database at dbPath (":memory:" for tests) and creates the
// schema if needed. A nil rng uses a randomly seeded generator.
func New(dbPath string, rng content.Rand, logger *slog.Logger) (*ContentStore, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := &ContentStore{conn: conn, logger: logger, rng: rng}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return s, nil
}

func (s *ContentStore) Close() error {
	return s.conn.Close()
}

func (s *ContentStore) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS cities (
			city_id   INTEGER NOT NULL,
			city_name TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cities_id ON cities(city_id);
		CREATE INDEX IF NOT EXISTS idx_cities_name ON cities(city_name);

		CREATE TABLE IF NOT EXISTS questions (
			city_id          INTEGER NOT NULL,
			question_number  INTEGER NOT NULL,
			question_text    TEXT NOT NULL,
			yes_text         TEXT NOT NULL DEFAULT '',
			no_text          TEXT NOT NULL DEFAULT '',
			yes_money_delta  INTEGER NOT NULL DEFAULT 0,
			yes_energy_delta INTEGER NOT NULL DEFAULT 0,
			no_money_delta   INTEGER NOT NULL DEFAULT 0,
			no_energy_delta  INTEGER NOT NULL DEFAULT 0,
			tip_text         TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_questions_key ON questions(city_id, question_number);

		CREATE TABLE IF NOT EXISTS facts (
			fact_id INTEGER PRIMARY KEY AUTOINCREMENT,
			text    TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating content tables: %w", err)
	}
	return nil
}

func (s *ContentStore) ResolveCityID(ctx context.Context, name string) (int, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT city_id FROM cities WHERE city_name = ?`, name)
	if err != nil {
		return 0, fmt.Errorf("sqlite: resolving city %q: %w", name, err)
	}
	ids, err := scanAll(rows, func(r *sql.Rows) (int, error) {
		var id int
		return id, r.Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("sqlite: resolving city %q: %w", name, err)
	}

	switch len(ids) {
	case 0:
		return 0, apperror.NotFound("city", name)
	case 1:
		return ids[0], nil
	default:
		return 0, apperror.Consistency("%d cities named %q", len(ids), name)
	}
}

func (s *ContentStore) ResolveCityName(ctx context.Context, id int) (string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT city_name FROM cities WHERE city_id = ?`, id)
	if err != nil {
		return "", fmt.Errorf("sqlite: resolving city %d: %w", id, err)
	}
	names, err := scanAll(rows, func(r *sql.Rows) (string, error) {
		var name string
		return name, r.Scan(&name)
	})
	if err != nil {
		return "", fmt.Errorf("sqlite: resolving city %d: %w", id, err)
	}

	switch len(names) {
	case 0:
		return "", apperror.NotFound("city", fmt.Sprint(id))
	case 1:
		return names[0], nil
	default:
		return "", apperror.Consistency("%d cities with id %d", len(names), id)
	}
}

func (s *ContentStore) GetQuestion(ctx context.Context, cityID, number int) (*content.Question, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT city_id, question_number, question_text, yes_text, no_text,
		       yes_money_delta, yes_energy_delta, no_money_delta, no_energy_delta, tip_text
		FROM questions
		WHERE city_id = ? AND question_number = ?`, cityID, number)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading question %d/%d: %w", cityID, number, err)
	}
	questions, err := scanAll(rows, func(r *sql.Rows) (content.Question, error) {
		var q content.Question
		err := r.Scan(&q.CityID, &q.Number, &q.Text, &q.YesText, &q.NoText,
			&q.YesMoneyDelta, &q.YesEnergyDelta, &q.NoMoneyDelta, &q.NoEnergyDelta, &q.Tip)
		return q, err
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading question %d/%d: %w", cityID, number, err)
	}

	switch len(questions) {
	case 0:
		return nil, nil
	case 1:
		return &questions[0], nil
	default:
		return nil, apperror.Consistency("%d questions numbered %d for city %d", len(questions), number, cityID)
	}
}

// RandomFact logs and falls back to content.DefaultFact on any read failure.
func (s *ContentStore) RandomFact(ctx context.Context) string {
	rows, err := s.conn.QueryContext(ctx, `SELECT text FROM facts ORDER BY fact_id`)
	if err != nil {
		s.logger.Warn("Failed to read facts", "error", err)
		return content.DefaultFact
	}
	facts, err := scanAll(rows, func(r *sql.Rows) (string, error) {
		var text string
		return text, r.Scan(&text)
	})
	if err != nil {
		s.logger.Warn("Failed to read facts", "error", err)
		return content.DefaultFact
	}
	if len(facts) == 0 {
		return content.DefaultFact
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return facts[s.rng.IntN(len(facts))]
}

func (s *ContentStore) ListCities(ctx context.Context) ([]content.City, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT city_id, city_name FROM cities ORDER BY city_id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing cities: %w", err)
	}
	cities, err := scanAll(rows, func(r *sql.Rows) (content.City, error) {
		var c content.City
		return c, r.Scan(&c.ID, &c.Name)
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing cities: %w", err)
	}
	return cities, nil
}

// Seed replaces all content with the given cities and facts in one
// transaction. The input is validated by content.NewCatalog first, so a
// seeded database never holds duplicate keys.
func (s *ContentStore) Seed(ctx context.Context, files []content.CityFile, facts []string) error {
	if _, err := content.NewCatalog(files, facts, s.rng); err != nil {
		return fmt.Errorf("sqlite: invalid content: %w", err)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning seed: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM questions`, `DELETE FROM cities`, `DELETE FROM facts`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: clearing content: %w", err)
		}
	}

	for _, f := range files {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cities (city_id, city_name) VALUES (?, ?)`, f.ID, f.Name); err != nil {
			return fmt.Errorf("sqlite: inserting city %q: %w", f.Name, err)
		}
		for _, q := range f.Questions {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO questions (city_id, question_number, question_text, yes_text, no_text,
					yes_money_delta, yes_energy_delta, no_money_delta, no_energy_delta, tip_text)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				f.ID, q.Number, q.Text, q.YesText, q.NoText,
				q.YesMoneyDelta, q.YesEnergyDelta, q.NoMoneyDelta, q.NoEnergyDelta, q.Tip,
			); err != nil {
				return fmt.Errorf("sqlite: inserting question %d for %q: %w", q.Number, f.Name, err)
			}
		}
	}

	for _, fact := range facts {
		if _, err := tx.ExecContext(ctx, `INSERT INTO facts (text) VALUES (?)`, fact); err != nil {
			return fmt.Errorf("sqlite: inserting fact: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing seed: %w", err)
	}
	s.logger.Info("Seeded content", "cities", len(files), "facts", len(facts))
	return nil
}

func scanAll[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
