// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/doc-improver/pkg/types"
)

// Registry is the SQLite-backed session ledger. One row per live session;
// rows are deleted on purge, so nothing outlives the session files.
type Registry struct {
	db *sql.DB
}

// OpenRegistry opens or creates the session database at path.
func OpenRegistry(path string) (*Registry, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}

	r := &Registry{db: db}
	if err := r.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return r, nil
}

// Close releases the database connection.
func (r *Registry) Close() error {
	return r.db.Close()
}

func (r *Registry) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			error_kind TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			source_name TEXT NOT NULL DEFAULT '',
			output_path TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Create records a fresh session in the received state.
func (r *Registry) Create(ctx context.Context, id, sourceName string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, state, source_name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, string(types.StateReceived), sourceName, now, now,
	)
	if err != nil {
		return fmt.Errorf("recording session %s: %w", id, err)
	}
	return nil
}

// Get returns the session row for id.
func (r *Registry) Get(ctx context.Context, id string) (*types.Session, error) {
	var (
		s                    types.Session
		state, kind          string
		createdAt, updatedAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, state, error_kind, error_message, source_name, output_path, created_at, updated_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &state, &kind, &s.ErrorMessage, &s.SourceName, &s.OutputPath, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.Ef(types.KindNotFound, "unknown session")
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	s.State = types.SessionState(state)
	s.ErrorKind = types.ErrorKind(kind)
	s.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	s.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &s, nil
}

// Transition atomically advances a session from one state to the next. The
// expected prior state makes races observable: a compare-and-swap update
// that matches no row is reported with the state actually found.
func (r *Registry) Transition(ctx context.Context, id string, from, to types.SessionState) error {
	if !allowedTransition(from, to) {
		return transitionError(id, from, to, from)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET state = ?, updated_at = ? WHERE id = ? AND state = ?`,
		string(to), time.Now().UTC().Format(time.RFC3339Nano), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	cur, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return transitionError(id, from, to, cur.State)
}

// Fail moves a session to the failed state, recording the classified error.
// Terminal sessions are left untouched.
func (r *Registry) Fail(ctx context.Context, id string, kind types.ErrorKind, message string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET state = ?, error_kind = ?, error_message = ?, updated_at = ?
		 WHERE id = ? AND state NOT IN (?, ?)`,
		string(types.StateFailed), string(kind), message,
		time.Now().UTC().Format(time.RFC3339Nano),
		id, string(types.StateReady), string(types.StateFailed),
	)
	if err != nil {
		return fmt.Errorf("failing session %s: %w", id, err)
	}
	return nil
}

// Ready completes a session: reassembling -> ready with the output path.
func (r *Registry) Ready(ctx context.Context, id, outputPath string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET state = ?, output_path = ?, updated_at = ? WHERE id = ? AND state = ?`,
		string(types.StateReady), outputPath,
		time.Now().UTC().Format(time.RFC3339Nano),
		id, string(types.StateReassembling),
	)
	if err != nil {
		return fmt.Errorf("completing session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	cur, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return transitionError(id, types.StateReassembling, types.StateReady, cur.State)
}

// Delete removes the session row. Deleting an unknown session is a no-op,
// matching the idempotent purge semantics of the asset store.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

// ExpiredBefore lists sessions last touched before the cutoff. The sweep
// purges these together with their working directories.
func (r *Registry) ExpiredBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE updated_at < ? ORDER BY updated_at`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("listing expired sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning expired session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
