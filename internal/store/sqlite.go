// Package store provides session persistence backends for the treatment engine.
//
// This file implements an SQLite-backed session store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/BTreeMap/shiftengine/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: creating SQLite store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY under
	// concurrent turns.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "path", dsn)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LoadSession(ctx context.Context, id string) (*models.SessionContext, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id)
	c, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore LoadSession failed", "error", err, "session", id)
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return c, nil
}

func (s *SQLiteStore) SaveSession(ctx context.Context, c *models.SessionContext) error {
	row, err := encodeSession(c)
	if err != nil {
		return err
	}
	query := `INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			current_phase = excluded.current_phase,
			current_step = excluded.current_step,
			work_type = excluded.work_type,
			selected_method = excluded.selected_method,
			original_problem_statement = excluded.original_problem_statement,
			current_statement = excluded.current_statement,
			goal_deadline = excluded.goal_deadline,
			user_responses = excluded.user_responses,
			metadata = excluded.metadata,
			completed = excluded.completed,
			updated_at = excluded.updated_at`
	_, err = s.db.ExecContext(ctx, query,
		c.SessionID, c.CurrentPhase, c.CurrentStep, nilIfEmpty(string(c.WorkType)), nilIfEmpty(string(c.SelectedMethod)),
		nilIfEmpty(c.OriginalProblemStatement), nilIfEmpty(c.CurrentStatement), nilIfEmpty(c.GoalDeadline),
		row.responsesJSON, row.metadataJSON, c.Completed, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "session", c.SessionID)
		return fmt.Errorf("failed to save session %s: %w", c.SessionID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "session", c.SessionID, "step", c.CurrentStep)
	return nil
}

func (s *SQLiteStore) AppendInteraction(ctx context.Context, it models.Interaction) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO interactions (`+interactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.SessionID, it.StepID, nilIfEmpty(it.Input), nilIfEmpty(it.Classification), it.Outcome,
		nilIfEmpty(it.Message), it.NextStep, it.UsedAssist, it.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore AppendInteraction failed", "error", err, "session", it.SessionID)
		return fmt.Errorf("failed to append interaction for %s: %w", it.SessionID, err)
	}
	return nil
}

func (s *SQLiteStore) ListInteractions(ctx context.Context, sessionID string) ([]models.Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+interactionColumns+` FROM interactions WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore ListInteractions query failed", "error", err, "session", sessionID)
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var out []models.Interaction
	for rows.Next() {
		it, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate interaction rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	if err := s.db.Close(); err != nil {
		slog.Error("SQLiteStore Close failed", "error", err)
		return err
	}
	return nil
}
