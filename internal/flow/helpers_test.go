package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/shiftengine/internal/models"
	"github.com/BTreeMap/shiftengine/internal/store"
)

// fakeAssist is a LinguisticAssist that counts calls and returns a canned reply.
type fakeAssist struct {
	mu      sync.Mutex
	calls   int
	reply   string
	err     error
	block   bool
	targets []models.Phrasing
}

func (f *fakeAssist) Normalize(ctx context.Context, text string, target models.Phrasing) (string, error) {
	f.mu.Lock()
	f.calls++
	f.targets = append(f.targets, target)
	reply, err, block := f.reply, f.err, f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return reply, err
}

func (f *fakeAssist) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeRecorder captures metrics calls.
type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []models.TurnOutcome
	assist   []string
	skips    []string
	failures []string
}

func (r *fakeRecorder) ObserveTurn(o models.TurnOutcome, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *fakeRecorder) ObserveChain(int) {}

func (r *fakeRecorder) IncAssist(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assist = append(r.assist, result)
}

func (r *fakeRecorder) IncAssistSkip(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skips = append(r.skips, reason)
}

func (r *fakeRecorder) IncPersistenceFailure(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, op)
}

func (r *fakeRecorder) Skips() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.skips...)
}

func (r *fakeRecorder) Failures() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.failures...)
}

// flakyStore wraps a SessionStore and fails selected operations on demand.
type flakyStore struct {
	store.SessionStore
	mu         sync.Mutex
	failSave   bool
	failAppend bool
}

var errStoreDown = errors.New("store unavailable")

func (s *flakyStore) SaveSession(ctx context.Context, c *models.SessionContext) error {
	s.mu.Lock()
	fail := s.failSave
	s.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return s.SessionStore.SaveSession(ctx, c)
}

func (s *flakyStore) AppendInteraction(ctx context.Context, it models.Interaction) error {
	s.mu.Lock()
	fail := s.failAppend
	s.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return s.SessionStore.AppendInteraction(ctx, it)
}

func (s *flakyStore) setFailSave(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSave = v
}

var testClock = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }

// tickingClock advances one second on every call.
func tickingClock() func() time.Time {
	var (
		mu  sync.Mutex
		now = testClock()
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newTestEngine(t *testing.T, st store.SessionStore, opts ...EngineOption) *Engine {
	t.Helper()
	opts = append([]EngineOption{WithClock(testClock)}, opts...)
	e, err := NewEngine(st, opts...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

// turn sends input and fails the test on error.
func turn(t *testing.T, e *Engine, id, input string) models.TurnResult {
	t.Helper()
	res, err := e.ContinueSession(context.Background(), id, input)
	require.NoError(t, err, "input %q", input)
	return res
}

// turns sends each input in order and returns the last result.
func turns(t *testing.T, e *Engine, id string, inputs ...string) models.TurnResult {
	t.Helper()
	var res models.TurnResult
	for _, in := range inputs {
		res = turn(t, e, id, in)
	}
	return res
}

// problemShiftingPass answers a full Problem Shifting cycle up to and
// including a "no" at the final check.
var problemShiftingPass = []string{"tight in my chest", "heavy", "to slow down", "calm", "peaceful", "no"}

// contextAt returns a populated context positioned at step.
func contextAt(step models.StepID) *models.SessionContext {
	c := models.NewSessionContext("ctx", "", step, testClock())
	if def, err := DefaultRegistry().Get(step); err == nil {
		c.CurrentPhase = def.Phase
	}
	c.WorkType = models.WorkTypeProblem
	c.SelectedMethod = models.MethodProblemShifting
	c.OriginalProblemStatement = "I feel anxious"
	c.CurrentStatement = "I feel anxious"
	c.Metadata.ReturnToCheck = StepDigFutureCheck
	return c
}
