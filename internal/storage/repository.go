// Package storage persists check state between runs: the last reported
// changes, email threading identifiers and the consecutive failure log.
// It replaces nothing in-memory; every run reads what the previous run
// left behind.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// State is the single persisted row describing the last completed check.
type State struct {
	// ChangesJSON is the serialized core.Changes of the last reported
	// comparison, empty when nothing has been reported yet.
	ChangesJSON string

	// ChangesSheet is the sheet the last reported changes live on; it is
	// hidden when a newer changes sheet supersedes it.
	ChangesSheet string

	SuccessEmailID string
	ErrorEmailID   string
	LastSuccessAt  time.Time
	HasSucceeded   bool
}

// Failure is one recorded failed check.
type Failure struct {
	OccurredAt time.Time
	Message    string
}

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadState reads the persisted check state.
func (r *Repository) LoadState(ctx context.Context) (State, error) {
	var (
		s             State
		changesJSON   sql.NullString
		changesSheet  sql.NullString
		successEmail  sql.NullString
		errorEmail    sql.NullString
		lastSuccessAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT changes_json, changes_sheet, success_email_id, error_email_id, last_success_at
		FROM check_state WHERE id = 1`).
		Scan(&changesJSON, &changesSheet, &successEmail, &errorEmail, &lastSuccessAt)
	if err != nil {
		return State{}, fmt.Errorf("load check state: %w", err)
	}
	s.ChangesJSON = changesJSON.String
	s.ChangesSheet = changesSheet.String
	s.SuccessEmailID = successEmail.String
	s.ErrorEmailID = errorEmail.String
	if lastSuccessAt.Valid {
		s.LastSuccessAt = lastSuccessAt.Time
		s.HasSucceeded = true
	}
	return s, nil
}

// SaveChanges records the latest reported changes and the sheet they were
// found on.
func (r *Repository) SaveChanges(ctx context.Context, changesJSON []byte, sheetName string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE check_state
		SET changes_json = ?, changes_sheet = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1`,
		string(changesJSON), sheetName)
	if err != nil {
		return fmt.Errorf("save changes: %w", err)
	}
	slog.InfoContext(ctx, "Saved reported changes",
		"component", "storage", "sheet", sheetName, "bytes", len(changesJSON))
	return nil
}

// RecordSuccess marks a completed check: the failure streak is cleared and
// any error email thread is closed.
func (r *Repository) RecordSuccess(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin success transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE check_state
		SET last_success_at = CURRENT_TIMESTAMP, error_email_id = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1`); err != nil {
		return fmt.Errorf("record success: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM check_failures`); err != nil {
		return fmt.Errorf("clear failures: %w", err)
	}
	return tx.Commit()
}

// RecordFailure appends a failed check and returns the length of the
// current failure streak.
func (r *Repository) RecordFailure(ctx context.Context, message string) (int, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO check_failures (message) VALUES (?)`, message); err != nil {
		return 0, fmt.Errorf("record failure: %w", err)
	}
	var count int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM check_failures`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count failures: %w", err)
	}
	return count, nil
}

// Failures returns the current failure streak, oldest first.
func (r *Repository) Failures(ctx context.Context) ([]Failure, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT occurred_at, message FROM check_failures ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()

	var out []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.OccurredAt, &f.Message); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// SetSuccessEmailID remembers the Message-ID of the last changes email so
// follow-ups about the same baseline can thread onto it.
func (r *Repository) SetSuccessEmailID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE check_state SET success_email_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1`, id); err != nil {
		return fmt.Errorf("set success email id: %w", err)
	}
	return nil
}

// SetErrorEmailID remembers the Message-ID of the last error report.
func (r *Repository) SetErrorEmailID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE check_state SET error_email_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1`, id); err != nil {
		return fmt.Errorf("set error email id: %w", err)
	}
	return nil
}
