package flow

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/shiftengine/internal/models"
)

func newTestRouter() *Router {
	return NewRouter(DefaultRegistry(), DiggingManager{})
}

func TestRouterIsPureAndDeterministic(t *testing.T) {
	r := newTestRouter()
	inputs := []string{"1", "2", "3", "4", "yes", "no", "a knot in my stomach", ""}
	for _, id := range DefaultRegistry().IDs() {
		for _, raw := range inputs {
			c := contextAt(id)
			before := c.Clone()
			in := Classify(raw)

			next1, patch1, err1 := r.Route(c, id, in)
			next2, patch2, err2 := r.Route(c, id, in)

			if diff := cmp.Diff(before, c); diff != "" {
				t.Fatalf("Route(%s, %q) mutated the context (-before +after):\n%s", id, raw, diff)
			}
			assert.Equal(t, next1, next2, "step %s input %q", id, raw)
			assert.Equal(t, err1 == nil, err2 == nil)
			if diff := cmp.Diff(patch1, patch2); diff != "" {
				t.Fatalf("Route(%s, %q) patches differ:\n%s", id, raw, diff)
			}
		}
	}
}

func TestRouterNextStepIsAlwaysRegistered(t *testing.T) {
	r := newTestRouter()
	reg := DefaultRegistry()
	for _, id := range reg.IDs() {
		for _, raw := range []string{"1", "2", "3", "4", "yes", "no", "something else"} {
			next, _, err := r.Route(contextAt(id), id, Classify(raw))
			if err != nil {
				continue
			}
			_, gerr := reg.Get(next)
			assert.NoError(t, gerr, "step %s input %q routed to %q", id, raw, next)
		}
	}
}

func TestWorkTypeSelection(t *testing.T) {
	r := newTestRouter()
	tests := []struct {
		input    string
		next     models.StepID
		workType models.WorkType
		method   models.Method
	}{
		{"1", StepMethodSelection, models.WorkTypeProblem, models.MethodNone},
		{"2", StepGoalDescription, models.WorkTypeGoal, models.MethodRealityShifting},
		{"3", StepNegativeExperienceDescription, models.WorkTypeNegativeExperience, models.MethodTraumaShifting},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c := models.NewSessionContext("s", PhaseIntro, StepWorkTypeSelection, testClock())
			next, patch, err := r.Route(c, StepWorkTypeSelection, Classify(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.next, next)
			patch.Apply(c)
			assert.Equal(t, tt.workType, c.WorkType)
			assert.Equal(t, tt.method, c.SelectedMethod)
		})
	}

	c := models.NewSessionContext("s", PhaseIntro, StepWorkTypeSelection, testClock())
	next, patch, err := r.Route(c, StepWorkTypeSelection, Classify("4"))
	require.NoError(t, err)
	assert.Equal(t, StepWorkTypeSelection, next)
	assert.True(t, patch.IsEmpty())
}

func TestMethodSelection(t *testing.T) {
	r := newTestRouter()

	c := models.NewSessionContext("s", PhaseIntro, StepMethodSelection, testClock())
	next, _, err := r.Route(c, StepMethodSelection, Classify("3"))
	require.NoError(t, err)
	assert.Equal(t, StepProblemDescription, next)

	c.CurrentStatement = "I feel anxious"
	next, patch, err := r.Route(c, StepMethodSelection, Classify("2"))
	require.NoError(t, err)
	assert.Equal(t, StepISIntro, next)
	assert.Equal(t, models.MethodIdentityShifting, *patch.Method)
	assert.True(t, patch.ResetModality)
}

func TestMethodSelectionFromDiggingUsesDiscoveredProblem(t *testing.T) {
	r := newTestRouter()
	c := contextAt(StepMethodSelection)
	c.Metadata.Modality = models.ModalityState{Cycles: 2, BridgePhraseUsed: true}
	c.Metadata.DiggingStack = []models.DiggingFrame{{DiscoveredProblem: "I can't say no", ReturnStep: StepDigFutureCheck, Depth: 1}}
	c.Metadata.SelectionFromDigging = true

	next, patch, err := r.Route(c, StepMethodSelection, Classify("4"))
	require.NoError(t, err)
	assert.Equal(t, StepBKSIntro, next)

	patch.Apply(c)
	assert.Equal(t, "I can't say no", c.CurrentStatement)
	assert.Equal(t, "I feel anxious", c.OriginalProblemStatement)
	assert.False(t, c.Metadata.SelectionFromDigging)
	assert.True(t, c.Metadata.Modality.IsZero())
	assert.Equal(t, 1, c.Metadata.Depth())
}

func TestGoalDeadlineDate(t *testing.T) {
	r := newTestRouter()
	tests := []struct {
		input    string
		next     models.StepID
		deadline string
	}{
		{"next June", StepConfirmStatement, "next June"},
		{"yes", StepGoalDeadlineDate, "end of May"},
		{"3", StepGoalDeadlineDate, "end of May"},
		{"no", StepConfirmStatement, ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c := models.NewSessionContext("s", PhaseDiscovery, StepGoalDeadlineDate, testClock())
			c.WorkType = models.WorkTypeGoal
			c.GoalDeadline = "end of May"
			next, patch, err := r.Route(c, StepGoalDeadlineDate, Classify(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.next, next)
			patch.Apply(c)
			assert.Equal(t, tt.deadline, c.GoalDeadline)
		})
	}
}

func TestConfirmStatementRoutes(t *testing.T) {
	r := newTestRouter()

	t.Run("goal accepted", func(t *testing.T) {
		c := models.NewSessionContext("s", PhaseDiscovery, StepConfirmStatement, testClock())
		c.WorkType = models.WorkTypeGoal
		c.SelectedMethod = models.MethodRealityShifting
		c.CurrentStatement = "run a marathon"
		next, patch, err := r.Route(c, StepConfirmStatement, Classify("yes"))
		require.NoError(t, err)
		assert.Equal(t, StepRSIntro, next)
		patch.Apply(c)
		assert.Equal(t, "run a marathon", c.OriginalProblemStatement)
	})

	t.Run("negative experience keeps the typed description", func(t *testing.T) {
		c := models.NewSessionContext("s", PhaseDiscovery, StepConfirmStatement, testClock())
		c.WorkType = models.WorkTypeNegativeExperience
		c.SelectedMethod = models.MethodTraumaShifting
		c.RecordResponse(StepNegativeExperienceDescription, "the car accident last winter on the icy road")
		c.CurrentStatement = "the car accident"
		_, patch, err := r.Route(c, StepConfirmStatement, Classify("yes"))
		require.NoError(t, err)
		patch.Apply(c)
		assert.Equal(t, "the car accident last winter on the icy road", c.OriginalProblemStatement)
	})

	t.Run("goal rejected", func(t *testing.T) {
		c := models.NewSessionContext("s", PhaseDiscovery, StepConfirmStatement, testClock())
		c.WorkType = models.WorkTypeGoal
		next, _, err := r.Route(c, StepConfirmStatement, Classify("no"))
		require.NoError(t, err)
		assert.Equal(t, StepGoalDescription, next)
	})

	t.Run("redirect accepted", func(t *testing.T) {
		c := contextAt(StepConfirmStatement)
		c.WorkType = models.WorkTypeNegativeExperience
		c.SelectedMethod = models.MethodTraumaShifting
		c.Metadata.Modality.RedirectStep = StepTSRedirect
		next, patch, err := r.Route(c, StepConfirmStatement, Classify("yes"))
		require.NoError(t, err)
		assert.Equal(t, StepTSFeelRedirect, next)
		patch.Apply(c)
		assert.True(t, c.Metadata.Modality.RedirectTaken)
		assert.Empty(t, c.Metadata.Modality.RedirectStep)
	})

	t.Run("redirect rejected", func(t *testing.T) {
		c := contextAt(StepConfirmStatement)
		c.WorkType = models.WorkTypeNegativeExperience
		c.Metadata.Modality.RedirectStep = StepTSRedirect
		next, _, err := r.Route(c, StepConfirmStatement, Classify("no"))
		require.NoError(t, err)
		assert.Equal(t, StepTSRedirect, next)
	})
}

func TestStillAProblemCycles(t *testing.T) {
	r := newTestRouter()
	c := contextAt(StepPSCheck)

	next, patch, err := r.Route(c, StepPSCheck, Classify("yes"))
	require.NoError(t, err)
	assert.Equal(t, StepPSFeelProblem, next)
	assert.True(t, patch.IncrementCycle)

	next, _, err = r.Route(c, StepPSCheck, Classify("no"))
	require.NoError(t, err)
	assert.Equal(t, StepModalityResolved, next)

	next, _, err = r.Route(c, StepPSCheck, Classify("maybe"))
	require.NoError(t, err)
	assert.Equal(t, StepPSCheck, next)
}

func TestLeavingCycleEntryRetiresBridgePhrase(t *testing.T) {
	r := newTestRouter()
	c := contextAt(StepPSFeelProblem)
	c.Metadata.Modality.Cycles = 1

	next, patch, err := r.Route(c, StepPSFeelProblem, Classify("tight"))
	require.NoError(t, err)
	assert.Equal(t, StepPSFeelSensation, next)
	require.NotNil(t, patch.Modality)
	assert.True(t, patch.Modality.BridgePhraseUsed)
	assert.Equal(t, 1, patch.Modality.Cycles)

	c.Metadata.Modality.Cycles = 0
	_, patch, err = r.Route(c, StepPSFeelProblem, Classify("tight"))
	require.NoError(t, err)
	assert.Nil(t, patch.Modality)
}

func TestModalityResolved(t *testing.T) {
	r := newTestRouter()

	c := contextAt(StepModalityResolved)
	next, _, err := r.Route(c, StepModalityResolved, emptyInput())
	require.NoError(t, err)
	assert.Equal(t, StepDiggingPermission, next)

	c.Metadata.DiggingPermissionGranted = true
	next, _, err = r.Route(c, StepModalityResolved, emptyInput())
	require.NoError(t, err)
	assert.Equal(t, StepDigFutureCheck, next)

	c.SelectedMethod = models.MethodRealityShifting
	next, _, err = r.Route(c, StepModalityResolved, emptyInput())
	require.NoError(t, err)
	assert.Equal(t, StepPassComplete, next)

	c = contextAt(StepModalityResolved)
	c.Metadata.DiggingStack = make([]models.DiggingFrame, DefaultMaxDiggingDepth)
	next, _, err = r.Route(c, StepModalityResolved, emptyInput())
	require.NoError(t, err)
	assert.Equal(t, StepPassComplete, next)
}

func TestDiggingChecksConvergeOnRestate(t *testing.T) {
	r := newTestRouter()
	for i, check := range DiggingChecks {
		c := contextAt(check)
		next, patch, err := r.Route(c, check, Classify("yes"))
		require.NoError(t, err)
		assert.Equal(t, StepRestateProblem, next)
		require.NotNil(t, patch.ReturnToCheck)
		assert.Equal(t, check, *patch.ReturnToCheck)

		next, _, err = r.Route(c, check, Classify("no"))
		require.NoError(t, err)
		if i+1 < len(DiggingChecks) {
			assert.Equal(t, DiggingChecks[i+1], next)
		} else {
			assert.Equal(t, StepPassComplete, next)
		}
	}
}

func TestRestateProblem(t *testing.T) {
	r := newTestRouter()

	c := contextAt(StepRestateProblem)
	c.Metadata.ReturnToCheck = StepDigScenarioCheck
	next, patch, err := r.Route(c, StepRestateProblem, Classify("I can't say no"))
	require.NoError(t, err)
	assert.Equal(t, StepMethodSelection, next)
	patch.Apply(c)
	top, ok := c.Metadata.Top()
	require.True(t, ok)
	assert.Equal(t, models.DiggingFrame{
		DiscoveredProblem: "I can't say no",
		ReturnStep:        StepDigScenarioCheck,
		Depth:             1,
		ParentStatement:   "I feel anxious",
		ParentMethod:      models.MethodProblemShifting,
	}, top)
	assert.Empty(t, c.Metadata.ReturnToCheck)
	assert.True(t, c.Metadata.SelectionFromDigging)

	c = contextAt(StepRestateProblem)
	c.Metadata.ReturnToCheck = StepDigAnythingElse
	next, patch, err = r.Route(c, StepRestateProblem, Classify("no"))
	require.NoError(t, err)
	assert.Equal(t, StepDigAnythingElse, next)
	patch.Apply(c)
	assert.Empty(t, c.Metadata.ReturnToCheck)

	c = contextAt(StepRestateProblem)
	c.Metadata.ReturnToCheck = ""
	_, _, err = r.Route(c, StepRestateProblem, Classify("something"))
	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestPassCompletePopsOrIntegrates(t *testing.T) {
	r := newTestRouter()

	c := contextAt(StepPassComplete)
	next, patch, err := r.Route(c, StepPassComplete, emptyInput())
	require.NoError(t, err)
	assert.Equal(t, StepIntegrationIntro, next)
	assert.True(t, patch.IsEmpty())

	c.Metadata.DiggingStack = []models.DiggingFrame{{
		DiscoveredProblem: "I can't say no",
		ReturnStep:        StepDigScenarioCheck,
		Depth:             1,
		ParentStatement:   "I feel anxious",
		ParentMethod:      models.MethodBeliefShifting,
	}}
	c.CurrentStatement = "I can't say no"
	next, patch, err = r.Route(c, StepPassComplete, emptyInput())
	require.NoError(t, err)
	assert.Equal(t, StepDigScenarioCheck, next)
	patch.Apply(c)
	assert.Equal(t, 0, c.Metadata.Depth())
	assert.Equal(t, "I feel anxious", c.CurrentStatement)
	assert.Equal(t, models.MethodBeliefShifting, c.SelectedMethod)
}

func TestTerminalStepStays(t *testing.T) {
	r := newTestRouter()
	next, patch, err := r.Route(contextAt(models.StepComplete), models.StepComplete, Classify("hello"))
	require.NoError(t, err)
	assert.Equal(t, models.StepComplete, next)
	assert.True(t, patch.IsEmpty())
}

func TestRouteUnknownStep(t *testing.T) {
	_, _, err := newTestRouter().Route(contextAt(StepPSCheck), "nowhere", Classify("yes"))
	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}
