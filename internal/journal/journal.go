// Package journal records index operations that failed after their store
// write committed. Entries make store/index divergence observable and let
// operators replay affected owners through reconciliation.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Target is the kind of document an entry refers to.
type Target string

// Targets.
const (
	TargetFiles      Target = "files"
	TargetCollection Target = "collection"
)

// Entry is one failed index call.
type Entry struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"owner_id"`
	Target     Target     `json:"target"`
	Op         string     `json:"op"`
	IDs        []string   `json:"ids"`
	Error      string     `json:"error"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Journal is a sqlite-backed failure log.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the journal at path. Use ":memory:" in tests.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serialises
	// writers, which sqlite requires anyway.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	logger.Info("index failure journal opened", "path", path)
	return &Journal{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores e, assigning ID and CreatedAt when unset.
func (j *Journal) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.IDs == nil {
		e.IDs = []string{}
	}

	ids, err := json.Marshal(e.IDs)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal ids: %w", err)
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT INTO index_failures (id, owner_id, target, op, ids, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, string(e.Target), e.Op, string(ids), e.Error, formatTime(e.CreatedAt),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert journal entry: %w", err)
	}
	return e, nil
}

// ListUnresolved returns up to limit unresolved entries, oldest first.
// A non-positive limit returns all of them.
func (j *Journal) ListUnresolved(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, owner_id, target, op, ids, error, created_at, resolved_at
		 FROM index_failures
		 WHERE resolved_at IS NULL
		 ORDER BY created_at, id
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UnresolvedOwners returns the distinct owners with unresolved entries.
func (j *Journal) UnresolvedOwners(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT DISTINCT owner_id FROM index_failures WHERE resolved_at IS NULL ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("query owners: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

// ResolveOwner marks the unresolved entries of ownerID recorded at or before
// cutoff as resolved and returns how many were affected. Later entries stay
// open for the next reconciliation.
func (j *Journal) ResolveOwner(ctx context.Context, ownerID string, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		`UPDATE index_failures SET resolved_at = ?
		 WHERE owner_id = ? AND resolved_at IS NULL AND created_at <= ?`,
		formatTime(time.Now()), ownerID, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("resolve owner %s: %w", ownerID, err)
	}
	return res.RowsAffected()
}

// CountUnresolved returns the number of unresolved entries.
func (j *Journal) CountUnresolved(ctx context.Context) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM index_failures WHERE resolved_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count journal: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e         Entry
		target    string
		ids       string
		createdAt string
		resolved  sql.NullString
	)
	if err := row.Scan(&e.ID, &e.OwnerID, &target, &e.Op, &ids, &e.Error, &createdAt, &resolved); err != nil {
		return Entry{}, fmt.Errorf("scan journal entry: %w", err)
	}
	e.Target = Target(target)

	if err := json.Unmarshal([]byte(ids), &e.IDs); err != nil {
		return Entry{}, fmt.Errorf("decode ids of %s: %w", e.ID, err)
	}

	var err error
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return Entry{}, fmt.Errorf("parse created_at of %s: %w", e.ID, err)
	}
	if resolved.Valid {
		t, err := parseTime(resolved.String)
		if err != nil {
			return Entry{}, fmt.Errorf("parse resolved_at of %s: %w", e.ID, err)
		}
		e.ResolvedAt = &t
	}
	return e, nil
}

// timeLayout is fixed width so stored timestamps order correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
