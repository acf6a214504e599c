package flow

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/shiftengine/internal/models"
)

func newTestChainer(reg *Registry, maxHops int) *Chainer {
	return NewChainer(reg, NewRouter(reg, DiggingManager{}), maxHops)
}

func TestResolveStopsOnNonAutoStep(t *testing.T) {
	ch := newTestChainer(DefaultRegistry(), 0)
	c := contextAt(StepPSCheck)

	res, err := ch.Resolve(c, StepPSFeelProblem, Classify("ignored"))
	require.NoError(t, err)
	assert.Equal(t, StepPSFeelProblem, res.Step)
	assert.Equal(t, 0, res.Hops)
	assert.False(t, res.Partial)
	assert.Equal(t, "Feel the problem 'I feel anxious'... what does it feel like?", res.Message)
}

func TestResolveReplacesResponseFieldsWithLandedStep(t *testing.T) {
	ch := newTestChainer(DefaultRegistry(), 0)
	c := contextAt(StepMethodSelection)

	res, err := ch.Resolve(c, StepPSIntro, emptyInput())
	require.NoError(t, err)

	landed, _ := DefaultRegistry().Get(StepPSFeelProblem)
	assert.Equal(t, StepPSFeelProblem, res.Step)
	assert.Equal(t, PhaseProblemShifting, res.Phase)
	assert.Equal(t, models.ResponseFeeling, res.ResponseType)
	assert.Equal(t, landed.Rules, res.Rules)
	assert.Nil(t, res.AITrigger)
	assert.Equal(t, 1, res.Hops)

	parts := strings.Split(res.Message, "\n\n")
	require.Len(t, parts, 2)
	assert.True(t, strings.HasPrefix(parts[0], "We'll use Problem Shifting."))
	assert.True(t, strings.HasPrefix(parts[1], "Feel the problem 'I feel anxious'"))
}

func TestResolvePopsSubSessionThroughPassComplete(t *testing.T) {
	ch := newTestChainer(DefaultRegistry(), 0)
	c := contextAt(StepDigAnythingElse)
	c.CurrentStatement = "I can't say no"
	c.Metadata.DiggingPermissionGranted = true
	c.Metadata.DiggingStack = []models.DiggingFrame{{
		DiscoveredProblem: "I can't say no",
		ReturnStep:        StepDigFutureCheck,
		Depth:             1,
		ParentStatement:   "I feel anxious",
		ParentMethod:      models.MethodProblemShifting,
	}}

	res, err := ch.Resolve(c, StepPassComplete, emptyInput())
	require.NoError(t, err)
	assert.Equal(t, StepDigFutureCheck, res.Step)
	assert.Equal(t, models.ResponseYesNo, res.ResponseType)
	assert.Contains(t, res.Message, "We've cleared 'I can't say no'.")
	assert.Contains(t, res.Message, "Do you feel 'I feel anxious' could come back in the future?")
	assert.Equal(t, 0, c.Metadata.Depth())
	assert.Equal(t, "I feel anxious", c.OriginalProblemStatement)
}

func TestResolveTopLevelCompletionReachesIntegration(t *testing.T) {
	ch := newTestChainer(DefaultRegistry(), 0)
	c := contextAt(StepPSCheck)

	res, err := ch.Resolve(c, StepPassComplete, emptyInput())
	require.NoError(t, err)
	assert.Equal(t, StepIntegrationFeelings, res.Step)
	assert.Equal(t, PhaseIntegration, res.Phase)
	assert.Equal(t, 2, res.Hops)
	assert.Contains(t, res.Message, "How do you feel about 'I feel anxious' now?")
}

func TestResolveTerminalStep(t *testing.T) {
	ch := newTestChainer(DefaultRegistry(), 0)
	res, err := ch.Resolve(contextAt(models.StepComplete), models.StepComplete, emptyInput())
	require.NoError(t, err)
	assert.True(t, res.Terminal)
	assert.Equal(t, models.ResponseNone, res.ResponseType)
}

func TestResolveRendersFirstStepWithUserInput(t *testing.T) {
	reg, err := NewRegistry([]StepDefinition{
		{ID: "echo", ResponseType: models.ResponseAuto, Next: "wait", Render: func(in Input, _ *models.SessionContext) string {
			return "you said " + in.Text
		}},
		{ID: "wait", ResponseType: models.ResponseOpen, Next: "wait", Render: func(in Input, _ *models.SessionContext) string {
			return "kind " + in.Kind.String()
		}},
	})
	require.NoError(t, err)
	res, err := newTestChainer(reg, 0).Resolve(contextAt("echo"), "echo", Classify("hello"))
	require.NoError(t, err)
	assert.Equal(t, "you said hello\n\nkind empty", res.Message)
}

func loopRegistry(t *testing.T, n int) *Registry {
	t.Helper()
	steps := make([]StepDefinition, 0, n+1)
	for i := 0; i < n; i++ {
		id := models.StepID("auto_" + string(rune('a'+i)))
		next := models.StepID("auto_" + string(rune('a'+i+1)))
		if i == n-1 {
			next = "end"
		}
		steps = append(steps, StepDefinition{ID: id, ResponseType: models.ResponseAuto, Render: static(string(id)), Next: next})
	}
	steps = append(steps, StepDefinition{ID: "end", ResponseType: models.ResponseOpen, Render: static("end"), Next: "end"})
	reg, err := NewRegistry(steps)
	require.NoError(t, err)
	return reg
}

func TestResolveMaxHops(t *testing.T) {
	reg := loopRegistry(t, 4)

	res, err := newTestChainer(reg, 4).Resolve(contextAt("auto_a"), "auto_a", emptyInput())
	require.NoError(t, err)
	assert.Equal(t, models.StepID("end"), res.Step)
	assert.Equal(t, 4, res.Hops)

	res, err = newTestChainer(reg, 3).Resolve(contextAt("auto_a"), "auto_a", emptyInput())
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.True(t, res.Partial)
	assert.Equal(t, "auto_a\n\nauto_b\n\nauto_c\n\nauto_d", res.Message)
}

func TestResolveSelfLoopingAutoStep(t *testing.T) {
	reg, err := NewRegistry([]StepDefinition{
		{ID: "spin", ResponseType: models.ResponseAuto, Render: static("spin"), Next: "spin"},
	})
	require.NoError(t, err)
	res, err := newTestChainer(reg, 0).Resolve(contextAt("spin"), "spin", emptyInput())
	assert.Error(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, "spin", res.Message)
}

func TestPlanDoesNotMutate(t *testing.T) {
	ch := newTestChainer(DefaultRegistry(), 0)
	c := contextAt(StepDigAnythingElse)
	c.Metadata.DiggingStack = []models.DiggingFrame{{DiscoveredProblem: "x", ReturnStep: StepDigFutureCheck, Depth: 1, ParentStatement: "I feel anxious"}}
	before := c.Clone()

	path, err := ch.Plan(c, StepPassComplete)
	require.NoError(t, err)
	assert.Equal(t, []models.StepID{StepPassComplete, StepDigFutureCheck}, path)
	if diff := cmp.Diff(before, c); diff != "" {
		t.Fatalf("Plan mutated the context (-before +after):\n%s", diff)
	}

	path, err = ch.Plan(c, StepPSIntro)
	require.NoError(t, err)
	assert.Equal(t, []models.StepID{StepPSIntro, StepPSFeelProblem}, path)
}
