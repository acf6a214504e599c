package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/shiftengine/internal/models"
	"github.com/BTreeMap/shiftengine/internal/store"
	"github.com/BTreeMap/shiftengine/internal/util"
)

// DefaultSaveTimeout bounds the critical-path snapshot write.
const DefaultSaveTimeout = 5 * time.Second

const (
	genericFailureMessage = "Sorry, something went wrong on our side. Please send your last answer again."
	sessionClosedMessage  = "This session is complete. Thank you for taking part."
)

// ErrSessionExists is returned by StartSession for an id already in use.
var ErrSessionExists = errors.New("session already exists")

// Engine runs treatment turns against a session store. It is safe for
// concurrent use; turns on the same session are serialized.
type Engine struct {
	store   store.SessionStore
	reg     *Registry
	router  *Router
	chainer *Chainer
	gate    *assistGate
	metrics Recorder
	locks   *sessionLocks

	saveTimeout time.Duration
	now         func() time.Time

	pending sync.WaitGroup
}

// engineOpts holds the tunables applied by EngineOption.
type engineOpts struct {
	registry      *Registry
	assist        LinguisticAssist
	assistTimeout time.Duration
	saveTimeout   time.Duration
	maxChainHops  int
	maxDepth      int
	recorder      Recorder
	clock         func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*engineOpts)

// WithAssist enables the linguistic assist.
func WithAssist(a LinguisticAssist) EngineOption {
	return func(o *engineOpts) {
		o.assist = a
	}
}

// WithAssistTimeout bounds each assist call.
func WithAssistTimeout(d time.Duration) EngineOption {
	return func(o *engineOpts) {
		o.assistTimeout = d
	}
}

// WithSaveTimeout bounds the snapshot write of each turn.
func WithSaveTimeout(d time.Duration) EngineOption {
	return func(o *engineOpts) {
		o.saveTimeout = d
	}
}

// WithMaxChainHops caps the auto-advance chain.
func WithMaxChainHops(n int) EngineOption {
	return func(o *engineOpts) {
		o.maxChainHops = n
	}
}

// WithMaxDiggingDepth caps nested digging-deeper sub-sessions.
func WithMaxDiggingDepth(n int) EngineOption {
	return func(o *engineOpts) {
		o.maxDepth = n
	}
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) EngineOption {
	return func(o *engineOpts) {
		o.recorder = r
	}
}

// WithRegistry replaces the built-in step catalog.
func WithRegistry(reg *Registry) EngineOption {
	return func(o *engineOpts) {
		o.registry = reg
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(o *engineOpts) {
		o.clock = now
	}
}

// NewEngine builds an engine over st. The step catalog is checked for
// totality against the routing table before the engine is returned.
func NewEngine(st store.SessionStore, opts ...EngineOption) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("session store is required")
	}
	cfg := engineOpts{
		assistTimeout: DefaultAssistTimeout,
		saveTimeout:   DefaultSaveTimeout,
		maxChainHops:  DefaultMaxChainHops,
		maxDepth:      DefaultMaxDiggingDepth,
		recorder:      noopRecorder{},
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.registry == nil {
		cfg.registry = DefaultRegistry()
	}

	router := NewRouter(cfg.registry, DiggingManager{MaxDepth: cfg.maxDepth})
	if err := cfg.registry.Validate(router); err != nil {
		slog.Error("Engine.NewEngine: step catalog failed validation", "error", err)
		return nil, err
	}

	e := &Engine{
		store:       st,
		reg:         cfg.registry,
		router:      router,
		chainer:     NewChainer(cfg.registry, router, cfg.maxChainHops),
		metrics:     cfg.recorder,
		locks:       newSessionLocks(),
		saveTimeout: cfg.saveTimeout,
		now:         cfg.clock,
	}
	if cfg.assist != nil {
		e.gate = &assistGate{assist: cfg.assist, timeout: cfg.assistTimeout, metrics: cfg.recorder}
	}
	slog.Info("Engine.NewEngine: engine ready", "steps", len(cfg.registry.IDs()), "assist", e.gate.enabled(), "max_chain_hops", cfg.maxChainHops)
	return e, nil
}

// StartSession creates a session at the work type selection and returns its
// opening message. An empty sessionID is replaced with a generated one.
func (e *Engine) StartSession(ctx context.Context, sessionID string) (models.TurnResult, error) {
	if sessionID == "" {
		sessionID = util.GenerateSessionID()
	}
	unlock := e.locks.Lock(sessionID)
	defer unlock()

	if _, err := e.store.LoadSession(ctx, sessionID); err == nil {
		return models.TurnResult{}, ErrSessionExists
	} else if !errors.Is(err, store.ErrSessionNotFound) {
		return models.TurnResult{}, &PersistenceError{Op: "load", Err: err, Retryable: true}
	}

	def, err := e.reg.Get(StepWorkTypeSelection)
	if err != nil {
		return models.TurnResult{}, err
	}
	now := e.now()
	c := models.NewSessionContext(sessionID, def.Phase, def.ID, now)
	res, err := e.chainer.Resolve(c, def.ID, emptyInput())
	if err != nil {
		return models.TurnResult{}, err
	}
	c.CurrentStep, c.CurrentPhase = res.Step, res.Phase
	if err := e.save(ctx, c); err != nil {
		return models.TurnResult{}, err
	}
	slog.Info("Engine.StartSession: session created", "session", sessionID)
	return models.TurnResult{
		SessionID:            sessionID,
		Message:              res.Message,
		NextStep:             res.Step,
		ExpectedResponseType: res.ResponseType,
		CanContinue:          true,
	}, nil
}

// ContinueSession applies one user turn to the session and returns the
// scripted reply. Validation failures are not errors: they come back as a
// clarification with the step unchanged. Configuration errors leave the
// session untouched; a failed snapshot write returns a retryable
// PersistenceError.
func (e *Engine) ContinueSession(ctx context.Context, sessionID, input string) (models.TurnResult, error) {
	started := e.now()
	unlock := e.locks.Lock(sessionID)
	defer unlock()

	c, err := e.store.LoadSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return models.TurnResult{}, err
		}
		e.metrics.IncPersistenceFailure("load")
		return models.TurnResult{}, &PersistenceError{Op: "load", Err: err, Retryable: true}
	}
	if c.Completed {
		return models.TurnResult{
			SessionID:            sessionID,
			Message:              sessionClosedMessage,
			NextStep:             c.CurrentStep,
			ExpectedResponseType: models.ResponseNone,
			CanContinue:          false,
		}, nil
	}

	def, err := e.reg.Get(c.CurrentStep)
	if err != nil {
		return e.fail(c, input, Input{}, err, started)
	}

	in := Classify(input)
	verdict := Validate(def, in, c.Metadata)
	if verdict.Status == ValidationClarify {
		return e.clarify(ctx, c, def, in, verdict, started)
	}

	work := c.Clone()
	work.RecordResponse(def.ID, in.Text)
	work.Metadata.RetryCount = 0

	next, patch, err := e.router.Route(work, def.ID, in)
	if err != nil {
		return e.fail(c, input, in, err, started)
	}
	patch.Apply(work)

	usedAssist := e.maybeNormalize(ctx, work, def, in, verdict, next)

	res, err := e.chainer.Resolve(work, next, in)
	e.metrics.ObserveChain(res.Hops)
	if err != nil {
		result, ferr := e.fail(c, input, in, err, started)
		if res.Message != "" {
			result.Message = res.Message
		}
		return result, ferr
	}

	work.CurrentStep = res.Step
	work.CurrentPhase = res.Phase
	work.UpdatedAt = e.now()
	if err := e.save(ctx, work); err != nil {
		e.metrics.ObserveTurn(models.OutcomeFailed, e.now().Sub(started))
		return models.TurnResult{
			SessionID:            sessionID,
			Message:              genericFailureMessage,
			NextStep:             c.CurrentStep,
			ExpectedResponseType: def.ResponseType,
			CanContinue:          true,
		}, err
	}

	outcome := models.OutcomeAdvanced
	if work.Completed {
		outcome = models.OutcomeCompleted
	}
	result := models.TurnResult{
		SessionID:            sessionID,
		Message:              res.Message,
		NextStep:             res.Step,
		ExpectedResponseType: res.ResponseType,
		CanContinue:          !work.Completed,
		UsedAssist:           usedAssist,
	}
	e.record(def.ID, in, outcome, result)
	e.metrics.ObserveTurn(outcome, e.now().Sub(started))
	slog.Debug("Engine.ContinueSession: turn applied", "session", sessionID, "from", def.ID, "to", res.Step, "hops", res.Hops, "assist", usedAssist)
	return result, nil
}

// clarify persists the bumped retry counter and returns the rule's message.
func (e *Engine) clarify(ctx context.Context, c *models.SessionContext, def *StepDefinition, in Input, v ValidationResult, started time.Time) (models.TurnResult, error) {
	work := c.Clone()
	work.Metadata.RetryCount++
	work.UpdatedAt = e.now()
	if err := e.save(ctx, work); err != nil {
		e.metrics.ObserveTurn(models.OutcomeFailed, e.now().Sub(started))
		return models.TurnResult{
			SessionID:            c.SessionID,
			Message:              genericFailureMessage,
			NextStep:             def.ID,
			ExpectedResponseType: def.ResponseType,
			CanContinue:          true,
		}, err
	}
	result := models.TurnResult{
		SessionID:            c.SessionID,
		Message:              v.Message,
		NextStep:             def.ID,
		ExpectedResponseType: def.ResponseType,
		CanContinue:          true,
	}
	e.record(def.ID, in, models.OutcomeClarification, result)
	e.metrics.ObserveTurn(models.OutcomeClarification, e.now().Sub(started))
	slog.Debug("Engine.ContinueSession: clarification requested", "session", c.SessionID, "step", def.ID, "rule", v.Rule, "retry", work.Metadata.RetryCount)
	return result, nil
}

// fail reports a turn that could not be applied. The stored session is left
// as it was.
func (e *Engine) fail(c *models.SessionContext, raw string, in Input, err error, started time.Time) (models.TurnResult, error) {
	slog.Error("Engine.ContinueSession: turn failed", "session", c.SessionID, "step", c.CurrentStep, "error", err)
	result := models.TurnResult{
		SessionID:   c.SessionID,
		Message:     genericFailureMessage,
		NextStep:    c.CurrentStep,
		CanContinue: true,
	}
	if def, derr := e.reg.Get(c.CurrentStep); derr == nil {
		result.ExpectedResponseType = def.ResponseType
	}
	if in.Text == "" {
		in.Text = raw
	}
	e.record(c.CurrentStep, in, models.OutcomeFailed, result)
	e.metrics.ObserveTurn(models.OutcomeFailed, e.now().Sub(started))
	return result, err
}

// maybeNormalize is the only place the linguistic assist is invoked. It runs
// when the step that was just answered asks for it, the answer is ambiguous
// free text, and some step the chain will render substitutes the normalized
// slot. It reports whether the rephrased text was used.
func (e *Engine) maybeNormalize(ctx context.Context, work *models.SessionContext, def *StepDefinition, in Input, v ValidationResult, next models.StepID) bool {
	trigger := def.AITrigger
	if trigger == nil {
		return false
	}
	skip := func(reason string) bool {
		slog.Debug("Engine.maybeNormalize: assist skipped", "session", work.SessionID, "step", def.ID, "reason", reason)
		e.metrics.IncAssistSkip(reason)
		return false
	}
	if in.IsChoice() || in.Kind != InputFreeText {
		return skip(SkipChoiceInput)
	}
	if v.Status != ValidationAmbiguous {
		return skip(SkipNotAmbiguous)
	}
	if !e.gate.enabled() {
		return skip(SkipDisabled)
	}
	path, err := e.chainer.Plan(work, next)
	if err != nil {
		return skip(SkipPlanFailed)
	}
	substituted := false
	for _, id := range path {
		if step, err := e.reg.Get(id); err == nil && step.SubstitutesSlot(trigger.Slot) {
			substituted = true
			break
		}
	}
	if !substituted {
		return skip(SkipSlotUnused)
	}

	text, ok := e.gate.normalize(ctx, in.Text, trigger.Target)
	if !ok {
		return false
	}
	switch trigger.Slot {
	case SlotCurrentStatement:
		work.CurrentStatement = text
	case SlotGoalDeadline:
		work.GoalDeadline = text
	default:
		slog.Warn("Engine.maybeNormalize: slot cannot be normalized", "slot", trigger.Slot)
		return false
	}
	return true
}

func (e *Engine) save(ctx context.Context, c *models.SessionContext) error {
	ctx, cancel := context.WithTimeout(ctx, e.saveTimeout)
	defer cancel()
	if err := e.store.SaveSession(ctx, c); err != nil {
		slog.Error("Engine.save: snapshot write failed", "session", c.SessionID, "error", err)
		e.metrics.IncPersistenceFailure("save")
		return &PersistenceError{Op: "save", Err: err, Retryable: true}
	}
	return nil
}

// record appends the turn to history without blocking the caller. Failures
// are logged and counted only.
func (e *Engine) record(step models.StepID, in Input, outcome models.TurnOutcome, result models.TurnResult) {
	it := models.Interaction{
		SessionID:      result.SessionID,
		StepID:         step,
		Input:          in.Text,
		Classification: in.Kind.String(),
		Outcome:        outcome,
		Message:        result.Message,
		NextStep:       result.NextStep,
		UsedAssist:     result.UsedAssist,
		CreatedAt:      e.now(),
	}
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.saveTimeout)
		defer cancel()
		if err := e.store.AppendInteraction(ctx, it); err != nil {
			slog.Warn("Engine.record: history append failed", "session", it.SessionID, "step", it.StepID, "error", err)
			e.metrics.IncPersistenceFailure("append")
		}
	}()
}

// Snapshot returns a copy of the stored session.
func (e *Engine) Snapshot(ctx context.Context, sessionID string) (*models.SessionContext, error) {
	unlock := e.locks.Lock(sessionID)
	defer unlock()
	return e.store.LoadSession(ctx, sessionID)
}

// History returns the recorded turns of a session, oldest first.
func (e *Engine) History(ctx context.Context, sessionID string) ([]models.Interaction, error) {
	return e.store.ListInteractions(ctx, sessionID)
}

// Registry returns the step catalog the engine runs.
func (e *Engine) Registry() *Registry {
	return e.reg
}

// Close waits for pending history writes. It does not close the store.
func (e *Engine) Close() {
	e.pending.Wait()
}
