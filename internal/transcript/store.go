// Package transcript persists every completion call of a generation run to
// SQLite so runs can be inspected after the fact.
package transcript

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var ErrRunNotFound = errors.New("run not found")

// Run is one generation invocation.
type Run struct {
	ID        string
	Schema    string // schema in its JSON authoring form
	Chunk     string
	StartedAt time.Time
	Calls     int
}

// Call is one completer invocation within a run.
type Call struct {
	RunID    string
	Seq      int
	Prompt   string
	Response string
	Error    string
	Duration time.Duration
}

// Store is a SQLite-backed transcript. Safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or opens the transcript database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		schema_json TEXT NOT NULL,
		chunk TEXT NOT NULL,
		started_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS calls (
		run_id TEXT NOT NULL REFERENCES runs(id),
		seq INTEGER NOT NULL,
		prompt TEXT NOT NULL,
		response TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	) WITHOUT ROWID;
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun registers a new run and returns its ID.
func (s *Store) BeginRun(ctx context.Context, schemaJSON, chunk string) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, schema_json, chunk, started_at) VALUES (?, ?, ?, ?)`,
		id, schemaJSON, chunk, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// Record appends a call to its run.
func (s *Store) Record(ctx context.Context, c Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calls (run_id, seq, prompt, response, error, duration_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		c.RunID, c.Seq, c.Prompt, c.Response, c.Error, c.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert call %s/%d: %w", c.RunID, c.Seq, err)
	}
	return nil
}

// Runs lists runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.schema_json, r.chunk, r.started_at, COUNT(c.seq)
		FROM runs r LEFT JOIN calls c ON c.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var r Run
		var started int64
		if err := rows.Scan(&r.ID, &r.Schema, &r.Chunk, &started, &r.Calls); err != nil {
			return nil, err
		}
		r.StartedAt = time.UnixMilli(started)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Calls returns the calls of a run in sequence order.
func (s *Store) Calls(ctx context.Context, runID string) ([]Call, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, prompt, response, error, duration_ms
		FROM calls WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Call
	for rows.Next() {
		c := Call{RunID: runID}
		var ms int64
		if err := rows.Scan(&c.Seq, &c.Prompt, &c.Response, &c.Error, &ms); err != nil {
			return nil, err
		}
		c.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, c)
	}
	return out, rows.Err()
}
