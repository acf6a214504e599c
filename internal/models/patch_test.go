package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() *SessionContext {
	return NewSessionContext("s_test", "intro", "work_type_selection", time.Unix(0, 0))
}

func TestContextPatch_OriginalStatementIsWriteOnce(t *testing.T) {
	c := newTestContext()

	ContextPatch{OriginalStatement: Ref("I feel anxious"), CurrentStatement: Ref("I feel anxious")}.Apply(c)
	ContextPatch{OriginalStatement: Ref("something else"), CurrentStatement: Ref("something else")}.Apply(c)

	assert.Equal(t, "I feel anxious", c.OriginalProblemStatement)
	assert.Equal(t, "something else", c.CurrentStatement)
}

func TestContextPatch_IncrementCycleRearmsBridge(t *testing.T) {
	c := newTestContext()
	c.Metadata.Modality = ModalityState{Cycles: 1, BridgePhraseUsed: true}
	c.Metadata.CycleCount = 4

	ContextPatch{IncrementCycle: true}.Apply(c)

	assert.Equal(t, 5, c.Metadata.CycleCount)
	assert.Equal(t, 2, c.Metadata.Modality.Cycles)
	assert.False(t, c.Metadata.Modality.BridgePhraseUsed)
}

func TestContextPatch_ResetModalityBeforeModality(t *testing.T) {
	c := newTestContext()
	c.Metadata.Modality = ModalityState{Cycles: 3, RedirectStep: "ts_redirect", RedirectTaken: true}

	ContextPatch{ResetModality: true}.Apply(c)
	assert.True(t, c.Metadata.Modality.IsZero())

	c.Metadata.Modality = ModalityState{Cycles: 3}
	ContextPatch{ResetModality: true, Modality: &ModalityState{RedirectStep: "ts_redirect"}}.Apply(c)
	assert.Equal(t, ModalityState{RedirectStep: "ts_redirect"}, c.Metadata.Modality)
}

func TestContextPatch_PushPopFrames(t *testing.T) {
	c := newTestContext()

	ContextPatch{PushFrame: &DiggingFrame{DiscoveredProblem: "a", ReturnStep: "dig_future_check", Depth: 1}}.Apply(c)
	ContextPatch{PushFrame: &DiggingFrame{DiscoveredProblem: "b", ReturnStep: "dig_anything_else", Depth: 2}}.Apply(c)
	require.Equal(t, 2, c.Metadata.Depth())

	top, ok := c.Metadata.Top()
	require.True(t, ok)
	assert.Equal(t, "b", top.DiscoveredProblem)

	ContextPatch{PopFrame: true}.Apply(c)
	top, ok = c.Metadata.Top()
	require.True(t, ok)
	assert.Equal(t, "a", top.DiscoveredProblem)

	ContextPatch{PopFrame: true}.Apply(c)
	ContextPatch{PopFrame: true}.Apply(c)
	assert.Equal(t, 0, c.Metadata.Depth())
	assert.Nil(t, c.Metadata.DiggingStack)
}

func TestContextPatch_ResetPassKeepsCycleCount(t *testing.T) {
	c := newTestContext()
	c.Metadata = Metadata{
		CycleCount:               2,
		ReturnToCheck:            "dig_future_check",
		DiggingStack:             []DiggingFrame{{DiscoveredProblem: "x", Depth: 1}},
		DiggingPermissionGranted: true,
		SelectionFromDigging:     true,
	}

	ContextPatch{ResetPass: true}.Apply(c)

	assert.Equal(t, Metadata{CycleCount: 2}, c.Metadata)
}

func TestContextPatch_IsEmpty(t *testing.T) {
	assert.True(t, ContextPatch{}.IsEmpty())
	assert.False(t, ContextPatch{Complete: true}.IsEmpty())
	assert.False(t, ContextPatch{ReturnToCheck: Ref(StepID(""))}.IsEmpty())
}

func TestSessionContext_CloneIsDeep(t *testing.T) {
	c := newTestContext()
	c.RecordResponse("problem_description", "I feel anxious")
	c.Metadata.DiggingStack = []DiggingFrame{{DiscoveredProblem: "x", Depth: 1}}

	cp := c.Clone()
	cp.RecordResponse("problem_description", "changed")
	cp.Metadata.DiggingStack[0].DiscoveredProblem = "changed"

	assert.Equal(t, "I feel anxious", c.Response("problem_description"))
	assert.Equal(t, "x", c.Metadata.DiggingStack[0].DiscoveredProblem)
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, WorkTypeGoal.IsValid())
	assert.False(t, WorkType("OTHER").IsValid())
	assert.True(t, MethodNone.IsValid())
	assert.True(t, MethodTraumaShifting.IsValid())
	assert.False(t, Method("HYPNOSIS").IsValid())
}
