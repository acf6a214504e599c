// Package models defines the session data model shared by the treatment engine,
// its persistence backends and the harness API.
package models

import (
	"time"
)

// WorkType is the top-level category chosen at session start.
type WorkType string

// Work type constants.
const (
	WorkTypeProblem            WorkType = "PROBLEM"
	WorkTypeGoal               WorkType = "GOAL"
	WorkTypeNegativeExperience WorkType = "NEGATIVE_EXPERIENCE"
)

// IsValid reports whether w is a known work type.
func (w WorkType) IsValid() bool {
	switch w {
	case WorkTypeProblem, WorkTypeGoal, WorkTypeNegativeExperience:
		return true
	default:
		return false
	}
}

// Method is one of the six reframing techniques (modalities).
type Method string

// Method constants. MethodNone means no modality has been selected yet.
const (
	MethodNone             Method = ""
	MethodProblemShifting  Method = "PROBLEM_SHIFTING"
	MethodIdentityShifting Method = "IDENTITY_SHIFTING"
	MethodBeliefShifting   Method = "BELIEF_SHIFTING"
	MethodBlockageShifting Method = "BLOCKAGE_SHIFTING"
	MethodRealityShifting  Method = "REALITY_SHIFTING"
	MethodTraumaShifting   Method = "TRAUMA_SHIFTING"
)

// IsValid reports whether m is a known method (including MethodNone).
func (m Method) IsValid() bool {
	switch m {
	case MethodNone, MethodProblemShifting, MethodIdentityShifting, MethodBeliefShifting,
		MethodBlockageShifting, MethodRealityShifting, MethodTraumaShifting:
		return true
	default:
		return false
	}
}

// ProblemMethods lists the modalities offered at method selection, in menu order.
var ProblemMethods = []Method{
	MethodProblemShifting,
	MethodIdentityShifting,
	MethodBeliefShifting,
	MethodBlockageShifting,
}

// ResponseType describes what kind of answer a step expects.
type ResponseType string

// Response type constants.
const (
	ResponseAuto        ResponseType = "AUTO"
	ResponseYesNo       ResponseType = "YES_NO"
	ResponseSelection   ResponseType = "SELECTION"
	ResponseFeeling     ResponseType = "FEELING"
	ResponseDescription ResponseType = "DESCRIPTION"
	ResponseOpen        ResponseType = "OPEN"
	// ResponseNone marks the terminal step; no further answer is expected.
	ResponseNone ResponseType = "NONE"
)

// Phrasing is the target shape the linguistic assist normalizes text towards.
type Phrasing string

// Phrasing targets.
const (
	PhrasingProblem Phrasing = "problem"
	PhrasingGoal    Phrasing = "goal"
)

// StepID identifies a step in the registry.
type StepID string

// PhaseID identifies an ordered group of steps.
type PhaseID string

// StepComplete is the terminal step every finished session lands on.
const StepComplete StepID = "complete"

// DiggingFrame is one nested sub-session spawned by a digging-deeper check.
type DiggingFrame struct {
	DiscoveredProblem string `json:"discovered_problem"`
	ReturnStep        StepID `json:"return_step"`
	Depth             int    `json:"depth"`
	ParentStatement   string `json:"parent_statement,omitempty"`
	ParentMethod      Method `json:"parent_method,omitempty"`
}

// ModalityState holds the transient flags owned by the active modality.
// It is replaced wholesale whenever a modality is entered.
type ModalityState struct {
	Cycles           int    `json:"cycles,omitempty"`
	BridgePhraseUsed bool   `json:"bridge_phrase_used,omitempty"`
	RedirectStep     StepID `json:"redirect_step,omitempty"`
	RedirectTaken    bool   `json:"redirect_taken,omitempty"`
}

// IsZero reports whether no modality flag is set.
func (m ModalityState) IsZero() bool {
	return m == ModalityState{}
}

// Metadata is the bounded bag of per-session engine state.
type Metadata struct {
	CycleCount               int            `json:"cycle_count"`
	ReturnToCheck            StepID         `json:"return_to_check,omitempty"`
	DiggingStack             []DiggingFrame `json:"digging_stack,omitempty"`
	DiggingPermissionGranted bool           `json:"digging_permission_granted,omitempty"`
	SelectionFromDigging     bool           `json:"selection_from_digging,omitempty"`
	RetryCount               int            `json:"retry_count,omitempty"`
	Modality                 ModalityState  `json:"modality"`
}

// Depth returns the number of open digging-deeper frames.
func (m Metadata) Depth() int {
	return len(m.DiggingStack)
}

// Top returns the innermost digging frame, if any.
func (m Metadata) Top() (DiggingFrame, bool) {
	if len(m.DiggingStack) == 0 {
		return DiggingFrame{}, false
	}
	return m.DiggingStack[len(m.DiggingStack)-1], true
}

// SessionContext is the full persisted state of one treatment session.
type SessionContext struct {
	SessionID                string            `json:"session_id"`
	CurrentPhase             PhaseID           `json:"current_phase"`
	CurrentStep              StepID            `json:"current_step"`
	WorkType                 WorkType          `json:"work_type,omitempty"`
	SelectedMethod           Method            `json:"selected_method,omitempty"`
	OriginalProblemStatement string            `json:"original_problem_statement,omitempty"`
	CurrentStatement         string            `json:"current_statement,omitempty"`
	GoalDeadline             string            `json:"goal_deadline,omitempty"`
	UserResponses            map[StepID]string `json:"user_responses"`
	Metadata                 Metadata          `json:"metadata"`
	Completed                bool              `json:"completed"`
	CreatedAt                time.Time         `json:"created_at"`
	UpdatedAt                time.Time         `json:"updated_at"`
}

// NewSessionContext returns an empty context positioned at step.
func NewSessionContext(sessionID string, phase PhaseID, step StepID, now time.Time) *SessionContext {
	return &SessionContext{
		SessionID:     sessionID,
		CurrentPhase:  phase,
		CurrentStep:   step,
		UserResponses: make(map[StepID]string),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Response returns the last raw response recorded for step.
func (c *SessionContext) Response(step StepID) string {
	if c.UserResponses == nil {
		return ""
	}
	return c.UserResponses[step]
}

// RecordResponse stores raw as the latest response for step.
func (c *SessionContext) RecordResponse(step StepID, raw string) {
	if c.UserResponses == nil {
		c.UserResponses = make(map[StepID]string)
	}
	c.UserResponses[step] = raw
}

// Clone returns a deep copy of c.
func (c *SessionContext) Clone() *SessionContext {
	if c == nil {
		return nil
	}
	out := *c
	out.UserResponses = make(map[StepID]string, len(c.UserResponses))
	for k, v := range c.UserResponses {
		out.UserResponses[k] = v
	}
	if c.Metadata.DiggingStack != nil {
		out.Metadata.DiggingStack = make([]DiggingFrame, len(c.Metadata.DiggingStack))
		copy(out.Metadata.DiggingStack, c.Metadata.DiggingStack)
	}
	return &out
}
