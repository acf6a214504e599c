// Package store provides session persistence backends for the treatment engine.
//
// This file implements a PostgreSQL-backed session store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/shiftengine/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) LoadSession(ctx context.Context, id string) (*models.SessionContext, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = $1`, id)
	c, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		slog.Error("PostgresStore LoadSession failed", "error", err, "session", id)
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return c, nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, c *models.SessionContext) error {
	row, err := encodeSession(c)
	if err != nil {
		return err
	}
	query := `INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (session_id) DO UPDATE SET
			current_phase = EXCLUDED.current_phase,
			current_step = EXCLUDED.current_step,
			work_type = EXCLUDED.work_type,
			selected_method = EXCLUDED.selected_method,
			original_problem_statement = EXCLUDED.original_problem_statement,
			current_statement = EXCLUDED.current_statement,
			goal_deadline = EXCLUDED.goal_deadline,
			user_responses = EXCLUDED.user_responses,
			metadata = EXCLUDED.metadata,
			completed = EXCLUDED.completed,
			updated_at = EXCLUDED.updated_at`
	_, err = s.db.ExecContext(ctx, query,
		c.SessionID, c.CurrentPhase, c.CurrentStep, nilIfEmpty(string(c.WorkType)), nilIfEmpty(string(c.SelectedMethod)),
		nilIfEmpty(c.OriginalProblemStatement), nilIfEmpty(c.CurrentStatement), nilIfEmpty(c.GoalDeadline),
		row.responsesJSON, row.metadataJSON, c.Completed, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "session", c.SessionID)
		return fmt.Errorf("failed to save session %s: %w", c.SessionID, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "session", c.SessionID, "step", c.CurrentStep)
	return nil
}

func (s *PostgresStore) AppendInteraction(ctx context.Context, it models.Interaction) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO interactions (`+interactionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		it.SessionID, it.StepID, nilIfEmpty(it.Input), nilIfEmpty(it.Classification), it.Outcome,
		nilIfEmpty(it.Message), it.NextStep, it.UsedAssist, it.CreatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore AppendInteraction failed", "error", err, "session", it.SessionID)
		return fmt.Errorf("failed to append interaction for %s: %w", it.SessionID, err)
	}
	return nil
}

func (s *PostgresStore) ListInteractions(ctx context.Context, sessionID string) ([]models.Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+interactionColumns+` FROM interactions WHERE session_id = $1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		slog.Error("PostgresStore ListInteractions query failed", "error", err, "session", sessionID)
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

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	}
	return err
}
