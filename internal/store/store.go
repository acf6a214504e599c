// Package store provides session persistence backends for the treatment engine.
//
// It includes an in-memory store for tests and harnesses, plus SQLite and
// PostgreSQL stores selected by DSN.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/BTreeMap/shiftengine/internal/models"
)

// ErrSessionNotFound is returned by LoadSession for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists session snapshots and their interaction history.
// SaveSession is on the critical path of every turn; AppendInteraction is
// history only.
type SessionStore interface {
	LoadSession(ctx context.Context, id string) (*models.SessionContext, error)
	SaveSession(ctx context.Context, c *models.SessionContext) error
	AppendInteraction(ctx context.Context, it models.Interaction) error
	ListInteractions(ctx context.Context, sessionID string) ([]models.Interaction, error)
	Close() error
}

// Opts holds configuration options for the database backed stores.
type Opts struct {
	DSN string // database connection string
}

// Option defines a configuration option for the stores.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType returns the database/sql driver name for dsn: "postgres" for
// PostgreSQL URLs or keyword/value strings, "sqlite3" for everything else.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(lower, "host=") || strings.Contains(lower, "dbname=") || strings.Contains(lower, "user=") {
		return "postgres"
	}
	return "sqlite3"
}

// NewFromDSN opens the backend matching dsn. An empty dsn yields an in-memory
// store.
func NewFromDSN(dsn string) (SessionStore, error) {
	if dsn == "" {
		slog.Info("store.NewFromDSN: no DSN configured, using in-memory store")
		return NewInMemoryStore(), nil
	}
	switch DetectDSNType(dsn) {
	case "postgres":
		slog.Info("store.NewFromDSN: using PostgreSQL store")
		return NewPostgresStore(WithPostgresDSN(dsn))
	default:
		slog.Info("store.NewFromDSN: using SQLite store", "path", dsn)
		return NewSQLiteStore(WithSQLiteDSN(dsn))
	}
}

// InMemoryStore keeps sessions in a map. Snapshots are deep-copied in and out
// so callers never share state with the store.
type InMemoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]*models.SessionContext
	interactions map[string][]models.Interaction
}

// NewInMemoryStore returns an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:     make(map[string]*models.SessionContext),
		interactions: make(map[string][]models.Interaction),
	}
}

func (s *InMemoryStore) LoadSession(_ context.Context, id string) (*models.SessionContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return c.Clone(), nil
}

func (s *InMemoryStore) SaveSession(ctx context.Context, c *models.SessionContext) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to save session %s: %w", c.SessionID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[c.SessionID] = c.Clone()
	return nil
}

func (s *InMemoryStore) AppendInteraction(_ context.Context, it models.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions[it.SessionID] = append(s.interactions[it.SessionID], it)
	return nil
}

func (s *InMemoryStore) ListInteractions(_ context.Context, sessionID string) ([]models.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Interaction, len(s.interactions[sessionID]))
	copy(out, s.interactions[sessionID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
