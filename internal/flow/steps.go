// Package flow implements the treatment dialogue engine: the step registry,
// input classification, validation, transition routing, auto-advance
// chaining and the digging-deeper stack.
package flow

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/BTreeMap/shiftengine/internal/models"
)

// Phase identifiers.
const (
	PhaseIntro            models.PhaseID = "intro"
	PhaseDiscovery        models.PhaseID = "discovery"
	PhaseProblemShifting  models.PhaseID = "problem_shifting"
	PhaseIdentityShifting models.PhaseID = "identity_shifting"
	PhaseBeliefShifting   models.PhaseID = "belief_shifting"
	PhaseBlockageShifting models.PhaseID = "blockage_shifting"
	PhaseRealityShifting  models.PhaseID = "reality_shifting"
	PhaseTraumaShifting   models.PhaseID = "trauma_shifting"
	PhaseDiggingDeeper    models.PhaseID = "digging_deeper"
	PhaseIntegration      models.PhaseID = "integration"
)

// Slot names a piece of session text a template may substitute.
type Slot string

// Substitution slots.
const (
	SlotCurrentStatement  Slot = "current_statement"
	SlotOriginalStatement Slot = "original_statement"
	SlotGoalDeadline      Slot = "goal_deadline"
	SlotDiscoveredProblem Slot = "discovered_problem"
)

// AITrigger marks a step whose answer may be normalized before it is
// substituted into later templates.
type AITrigger struct {
	Target models.Phrasing
	Slot   Slot
}

// RenderFunc produces a step's scripted message. It must be pure and may only
// substitute text the user typed.
type RenderFunc func(in Input, c *models.SessionContext) string

// StepDefinition is one immutable entry of the step catalog.
type StepDefinition struct {
	ID           models.StepID
	Phase        models.PhaseID
	ResponseType models.ResponseType
	Rules        []Rule
	Render       RenderFunc
	// Substitutes lists the slots Render reads.
	Substitutes []Slot
	// Next is the default transition; empty means a router handler decides.
	Next      models.StepID
	AITrigger *AITrigger
	// CycleEntry steps open a modality cycle and carry the bridge phrase.
	CycleEntry bool
	Terminal   bool
}

// SubstitutesSlot reports whether the step's template reads slot.
func (s *StepDefinition) SubstitutesSlot(slot Slot) bool {
	for _, sl := range s.Substitutes {
		if sl == slot {
			return true
		}
	}
	return false
}

// Registry is the static step catalog.
type Registry struct {
	steps map[models.StepID]*StepDefinition
}

// NewRegistry builds a registry from one or more step groups.
func NewRegistry(groups ...[]StepDefinition) (*Registry, error) {
	r := &Registry{steps: make(map[models.StepID]*StepDefinition)}
	for _, group := range groups {
		for i := range group {
			def := group[i]
			if def.ID == "" {
				return nil, &ConfigurationError{Reason: "step with empty id"}
			}
			if _, dup := r.steps[def.ID]; dup {
				return nil, &ConfigurationError{Step: def.ID, Reason: "duplicate step id"}
			}
			if def.Render == nil {
				return nil, &ConfigurationError{Step: def.ID, Reason: "step has no renderer"}
			}
			r.steps[def.ID] = &def
		}
	}
	return r, nil
}

// Get returns the definition for id.
func (r *Registry) Get(id models.StepID) (*StepDefinition, error) {
	def, ok := r.steps[id]
	if !ok {
		return nil, &ConfigurationError{Step: id, Reason: "unknown step"}
	}
	return def, nil
}

// IDs returns every registered step id in lexical order.
func (r *Registry) IDs() []models.StepID {
	ids := make([]models.StepID, 0, len(r.steps))
	for id := range r.steps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Validate checks that every step can leave: it is terminal, has a router
// handler, or has a registered default next step.
func (r *Registry) Validate(router *Router) error {
	for _, id := range r.IDs() {
		def := r.steps[id]
		if def.Terminal {
			continue
		}
		if router.HasHandler(id) {
			continue
		}
		if def.Next == "" {
			return &ConfigurationError{Step: id, Reason: "no router handler and no default next step"}
		}
		if _, ok := r.steps[def.Next]; !ok {
			return &ConfigurationError{Step: id, Reason: fmt.Sprintf("default next step %q is not registered", def.Next)}
		}
	}
	return nil
}

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *Registry
)

// DefaultRegistry returns the built-in treatment catalog.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		reg, err := NewRegistry(
			introSteps(),
			discoverySteps(),
			problemShiftingSteps(),
			identityShiftingSteps(),
			beliefShiftingSteps(),
			blockageShiftingSteps(),
			realityShiftingSteps(),
			traumaShiftingSteps(),
			diggingSteps(),
			integrationSteps(),
		)
		if err != nil {
			slog.Error("flow.DefaultRegistry: invalid step catalog", "error", err)
			panic(err)
		}
		defaultRegistry = reg
	})
	return defaultRegistry
}

// Shared rule sets.
var (
	choiceRules = []Rule{{Kind: RuleNeedsClarification, ExpectChoice: true, Message: "Please reply with the number of your choice."}}
	yesNoRules  = []Rule{{Kind: RuleNeedsClarification, ExpectChoice: true, Message: "Please answer yes or no."}}

	feelingRules = []Rule{
		{Kind: RuleMinLength, Limit: 2},
		{Kind: RuleMaxLength, Limit: 300},
		{Kind: RuleOffTopic},
		{Kind: RuleNeedsClarification},
		{Kind: RuleStuckPattern},
	}

	descriptionRules = []Rule{
		{Kind: RuleMinLength, Limit: 3},
		{Kind: RuleMaxLength, Limit: 500},
		{Kind: RuleMultipleTopics, Limit: 2},
		{Kind: RuleOffTopic},
		{Kind: RuleNeedsClarification},
		{Kind: RuleTooLong, Limit: 12},
		{Kind: RuleStuckPattern},
	}

	openRules = []Rule{
		{Kind: RuleMinLength, Limit: 1},
		{Kind: RuleMaxLength, Limit: 1000},
		{Kind: RuleNeedsClarification},
	}
)

// bridge prefixes text with the repeat phrase the first time a cycle-entry
// step is shown after a cycle restarts.
func bridge(c *models.SessionContext, text string) string {
	m := c.Metadata.Modality
	if m.Cycles > 0 && !m.BridgePhraseUsed {
		return "Okay, let's go through it again.\n\n" + text
	}
	return text
}

func static(text string) RenderFunc {
	return func(Input, *models.SessionContext) string { return text }
}
