// Package testutil provides test helpers shared by the harness packages.
package testutil

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/shiftengine/internal/flow"
	"github.com/BTreeMap/shiftengine/internal/models"
	"github.com/BTreeMap/shiftengine/internal/store"
)

// NewEngine builds an engine over a fresh in-memory store. The engine is
// closed when the test ends.
func NewEngine(t *testing.T, opts ...flow.EngineOption) (*flow.Engine, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	e, err := flow.NewEngine(st, opts...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, st
}

// MutateSession loads a stored session, applies fn and saves it back,
// bypassing the engine.
func MutateSession(t *testing.T, st store.SessionStore, id string, fn func(*models.SessionContext)) {
	t.Helper()
	ctx := context.Background()
	c, err := st.LoadSession(ctx, id)
	require.NoError(t, err)
	fn(c)
	require.NoError(t, st.SaveSession(ctx, c))
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(data, target), "failed to unmarshal JSON: %s", data)
}
