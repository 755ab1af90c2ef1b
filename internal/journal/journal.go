// Package journal records broker activity (accepted messages, rejected
// payloads, game transitions, discovery results and gateway failures) in
// the journal_entries table.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a journal entry.
type Kind string

// Entry kinds written by the broker.
const (
	KindMessage    Kind = "message"
	KindRejected   Kind = "rejected"
	KindTransition Kind = "transition"
	KindDiscovery  Kind = "discovery"
	KindFailure    Kind = "failure"
)

const (
	defaultLimit = 50
	maxLimit     = 500

	// timeLayout keeps lexical order equal to chronological order.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Entry is one row of the journal.
type Entry struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	Source     string         `json:"source,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Filter selects journal entries.
type Filter struct {
	Kind  Kind // optional
	Limit int  // default 50, max 500
}

// Repository stores and lists journal entries.
type Repository interface {
	Record(ctx context.Context, e *Entry) error
	List(ctx context.Context, f Filter) ([]Entry, error)
}

// SQLiteRepository is the SQLite-backed Repository.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a journal repository on an open database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts e. ID and OccurredAt are filled in when empty.
func (r *SQLiteRepository) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "jrn-" + uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	var details *string
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshalling journal details: %w", err)
		}
		s := string(b)
		details = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO journal_entries (id, kind, source, details, occurred_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), e.Source, details, e.OccurredAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// List returns entries matching f, newest first. It never returns a nil
// slice so callers can encode the result directly.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) ([]Entry, error) {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}

	query := "SELECT id, kind, source, details, occurred_at FROM journal_entries"
	var args []any
	if f.Kind != "" {
		query += " WHERE kind = ?"
		args = append(args, string(f.Kind))
	}
	query += " ORDER BY occurred_at DESC, rowid DESC LIMIT ?"
	args = append(args, f.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e          Entry
			kind       string
			details    sql.NullString
			occurredAt string
		)
		if err := rows.Scan(&e.ID, &kind, &e.Source, &details, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		e.Kind = Kind(kind)
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				return nil, fmt.Errorf("decoding journal details %s: %w", e.ID, err)
			}
		}
		if e.OccurredAt, err = time.Parse(timeLayout, occurredAt); err != nil {
			return nil, fmt.Errorf("parsing journal timestamp %q: %w", occurredAt, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}
	return entries, nil
}
