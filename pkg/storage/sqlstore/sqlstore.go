// Package sqlstore implements storage.Driver on database/sql. The sqlite and
// postgres packages embed it and differ only in dialect and connection setup.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/bpmnchat/pkg/storage"
)

// Dialect captures the SQL differences between backends.
type Dialect struct {
	Name string

	// Placeholder renders the nth (1-based) bind parameter.
	Placeholder func(n int) string
}

var (
	// SQLite uses "?" placeholders.
	SQLite = Dialect{Name: "sqlite3", Placeholder: func(int) string { return "?" }}

	// Postgres uses "$n" placeholders.
	Postgres = Dialect{Name: "postgres", Placeholder: func(n int) string { return "$" + strconv.Itoa(n) }}
)

const schema = `CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	provider    TEXT NOT NULL,
	model       TEXT NOT NULL,
	reasoner    BOOLEAN NOT NULL,
	prompt      TEXT NOT NULL,
	text        TEXT NOT NULL,
	reasoning   TEXT NOT NULL,
	diagram     TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	error       TEXT NOT NULL,
	stats       TEXT NOT NULL,
	started_at  BIGINT NOT NULL,
	finished_at BIGINT NOT NULL
)`

const indexSchema = `CREATE INDEX IF NOT EXISTS sessions_started_at ON sessions (started_at)`

var columns = []string{
	"id", "provider", "model", "reasoner", "prompt", "text", "reasoning",
	"diagram", "outcome", "error", "stats", "started_at", "finished_at",
}

// Driver is a database/sql backed storage.Driver.
type Driver struct {
	DB      *sql.DB
	Dialect Dialect
}

// Migrate creates the sessions table if it does not exist.
func (d *Driver) Migrate(ctx context.Context) error {
	for _, stmt := range []string{schema, indexSchema} {
		if _, err := d.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Put upserts rec.
func (d *Driver) Put(ctx context.Context, rec *storage.Record) error {
	if rec == nil {
		return storage.ErrNilRecord
	}

	stats, err := json.Marshal(rec.Stats)
	if err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}

	placeholders := make([]string, len(columns))
	updates := make([]string, 0, len(columns)-1)
	for i, col := range columns {
		placeholders[i] = d.Dialect.Placeholder(i + 1)
		if col != "id" {
			updates = append(updates, col+" = excluded."+col)
		}
	}

	query := fmt.Sprintf(
		"INSERT INTO sessions (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)

	_, err = d.DB.ExecContext(ctx, query,
		rec.ID, rec.Provider, rec.Model, rec.Reasoner, rec.Prompt, rec.Text,
		rec.Reasoning, rec.Diagram, rec.Outcome, rec.Error, string(stats),
		toMillis(rec.StartedAt), toMillis(rec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("storing record %s: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves a record by ID.
func (d *Driver) Get(ctx context.Context, id string) (*storage.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE id = %s",
		strings.Join(columns, ", "), d.Dialect.Placeholder(1))

	rec, err := scan(d.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("loading record %s: %w", id, err)
	}
	return rec, nil
}

// List returns records newest first.
func (d *Driver) List(ctx context.Context, opts storage.ListOptions) ([]*storage.Record, error) {
	var (
		b    strings.Builder
		args []any
	)

	fmt.Fprintf(&b, "SELECT %s FROM sessions", strings.Join(columns, ", "))
	if opts.Outcome != "" {
		args = append(args, opts.Outcome)
		fmt.Fprintf(&b, " WHERE outcome = %s", d.Dialect.Placeholder(len(args)))
	}
	b.WriteString(" ORDER BY started_at DESC, id ASC")
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&b, " LIMIT %s", d.Dialect.Placeholder(len(args)))
	}

	rows, err := d.DB.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var result []*storage.Record
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*storage.Record, error) {
	var (
		rec               storage.Record
		stats             string
		started, finished int64
	)

	err := row.Scan(
		&rec.ID, &rec.Provider, &rec.Model, &rec.Reasoner, &rec.Prompt, &rec.Text,
		&rec.Reasoning, &rec.Diagram, &rec.Outcome, &rec.Error, &stats,
		&started, &finished,
	)
	if err != nil {
		return nil, err
	}

	if stats != "" {
		if err := json.Unmarshal([]byte(stats), &rec.Stats); err != nil {
			return nil, fmt.Errorf("decoding stats: %w", err)
		}
	}
	rec.StartedAt = fromMillis(started)
	rec.FinishedAt = fromMillis(finished)
	return &rec, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
