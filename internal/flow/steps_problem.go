package flow

import (
	"fmt"

	"github.com/BTreeMap/shiftengine/internal/models"
)

// Problem Shifting step ids.
const (
	StepPSIntro              models.StepID = "ps_intro"
	StepPSFeelProblem        models.StepID = "ps_feel_problem"
	StepPSFeelSensation      models.StepID = "ps_feel_sensation"
	StepPSNeedToHappen       models.StepID = "ps_need_to_happen"
	StepPSFeelSolution       models.StepID = "ps_feel_solution"
	StepPSFeelSolutionDeeper models.StepID = "ps_feel_solution_deeper"
	StepPSCheck              models.StepID = "ps_check"
)

// Identity Shifting step ids.
const (
	StepISIntro         models.StepID = "is_intro"
	StepISFeelProblem   models.StepID = "is_feel_problem"
	StepISFeelIdentity  models.StepID = "is_feel_identity"
	StepISFeelDeeper    models.StepID = "is_feel_deeper"
	StepISWhoWithout    models.StepID = "is_who_without"
	StepISFeelWithout   models.StepID = "is_feel_without"
	StepISIdentityCheck models.StepID = "is_identity_check"
	StepISProblemCheck  models.StepID = "is_problem_check"
)

// Belief Shifting step ids.
const (
	StepBSIntro         models.StepID = "bs_intro"
	StepBSFeelProblem   models.StepID = "bs_feel_problem"
	StepBSFeelBelief    models.StepID = "bs_feel_belief"
	StepBSFeelDeeper    models.StepID = "bs_feel_deeper"
	StepBSRatherBelieve models.StepID = "bs_rather_believe"
	StepBSBeliefCheck   models.StepID = "bs_belief_check"
	StepBSProblemCheck  models.StepID = "bs_problem_check"
)

// Blockage Shifting step ids.
const (
	StepBKSIntro       models.StepID = "bks_intro"
	StepBKSFeelProblem models.StepID = "bks_feel_problem"
	StepBKSWhatNow     models.StepID = "bks_what_now"
	StepBKSFeelNow     models.StepID = "bks_feel_now"
	StepBKSCheck       models.StepID = "bks_check"
)

const eyesClosedIntro = "Please close your eyes and keep them closed throughout the process. " +
	"Answer each question with the first thing that comes up; there are no wrong answers."

func feelWhatHappens(feeling string) string {
	return fmt.Sprintf("Feel '%s'... what happens in yourself when you feel '%s'?", feeling, feeling)
}

func problemShiftingSteps() []StepDefinition {
	return []StepDefinition{
		{
			ID:           StepPSIntro,
			Phase:        PhaseProblemShifting,
			ResponseType: models.ResponseAuto,
			Render:       static("We'll use Problem Shifting. " + eyesClosedIntro),
			Next:         StepPSFeelProblem,
		},
		{
			ID:           StepPSFeelProblem,
			Phase:        PhaseProblemShifting,
			ResponseType: models.ResponseFeeling,
			Rules:        feelingRules,
			Substitutes:  []Slot{SlotCurrentStatement},
			CycleEntry:   true,
			Next:         StepPSFeelSensation,
			Render: func(_ Input, c *models.SessionContext) string {
				return bridge(c, fmt.Sprintf("Feel the problem '%s'... what does it feel like?", c.CurrentStatement))
			},
		},
		{
			ID:           StepPSFeelSensation,
			Phase:        PhaseProblemShifting,
			ResponseType: models.ResponseFeeling,
			Rules:        feelingRules,
			Next:         StepPSNeedToHappen,
			Render: func(_ Input, c *models.SessionContext) string {
				return feelWhatHappens(c.Response(StepPSFeelProblem))
			},
		},
		{
			ID:           StepPSNeedToHappen,
			Phase:        PhaseProblemShifting,
			ResponseType: models.ResponseOpen,
			Rules:        openRules,
			Next:         StepPSFeelSolution,
			Render:       static("What needs to happen for the problem to not be a problem?"),
		},
		{
			ID:           StepPSFeelSolution,
			Phase:        PhaseProblemShifting,
			ResponseType: models.ResponseFeeling,
			Rules:        feelingRules,
			Next:         StepPSFeelSolutionDeeper,
			Render: func(_ Input, c *models.SessionContext) string {
				return fmt.Sprintf("What would you feel like if '%s' had already happened?", c.Response(StepPSNeedToHappen))
			},
		},
		{
			ID:           StepPSFeelSolutionDeeper,
			Phase:        PhaseProblemShifting,
			ResponseType: models.ResponseFeeling,
			Rules:        feelingRules,
			Next:         StepPSCheck,
			Render: func(_ Input, c *models.SessionContext) string {
				f := c.Response(StepPSFeelSolution)
				return fmt.Sprintf("Feel '%s'... what does '%s' feel like?", f, f)
			},
		},
		{
			ID:           StepPSCheck,
			Phase:        PhaseProblemShifting,
			ResponseType: models.ResponseYesNo,
			Rules:        yesNoRules,
			Substitutes:  []Slot{SlotCurrentStatement},
			Render: func(_ Input, c *models.SessionContext) string {
				return fmt.Sprintf("Feel the problem '%s'... does it still feel like a problem?", c.CurrentStatement)
			},
		},
	}
}

func identityShiftingSteps() []StepDefinition {
	return []StepDefinition{
		{
			ID:           StepISIntro,
			Phase:        PhaseIdentityShifting,
			ResponseType: models.ResponseAuto,
			Render:       static("We'll use Identity Shifting. " + eyesClosedIntro),
			Next:         StepISFeelProblem,
		},
		{
			ID:           StepISFeelProblem,
			Phase:        PhaseIdentityShifting,
			ResponseType: models.ResponseFeeling,
			Rules:        feelingRules,
			Substitutes:  []Slot{SlotCurrentStatement},
			CycleEntry:   true,
			Next:         StepISFeelIdentity,
			Render: func(_ Input, c *models.SessionContext) string {
				return bridge(c, fmt.Sprintf("Feel the problem '%s'... what kind of person are you being when you experience it?", c.CurrentStatement))
			},
		},
		{
			ID:           StepISFeelIdentity,
			Phase:        PhaseIdentityShifting,
			ResponseType: models.ResponseFeeling,
			Rules:        feelingRules,
			CycleEntry:   true,
			Next:         StepISFeelDeeper,
			Render: func(_ Input, c *models.SessionContext) string {
				return bridge(c, fmt.Sprintf("Feel yourself being '%s'... what does it feel like?", c.Response(StepISFeelProblem)))
			},
		},
		{
			ID:           StepISFeelDeeper,
			Phase:        PhaseIdentityShifting,
			ResponseType: models.ResponseFeeling,
			Rules:        feelingRules,
			Next:         StepISWhoWithout,
			Render: func(_ Input, c *models.SessionContext) string {
				return feelWhatHappens(c.Response(StepISFeelIdentity))
			},
		},
		{
			ID:           StepISWhoWithout,
			Phase:        PhaseIdentityShifting,
			ResponseType: models.ResponseOpen,
			Rules:        openRules,
			Next:         StepISFeelWithout,
			Render: func(_ Input, c *models.SessionContext) string {
				return fmt.Sprintf("Who would you be if you weren't being '%s'?", c.Response(StepISFeelProblem))
			},
		},
		{
			ID:           StepISFeelWithout,
			Phase:        PhaseIdentityShifting,
			ResponseType: models.ResponseFeeling,
			Rules:        feelingRules,
			Next:         StepISIdentityCheck,
			Render: func(_ Input, c *models.SessionContext) string {
				return fmt.Sprintf("Feel yourself being '%s'... what does it feel like?", c.Response(StepISWhoWithout))
			},
		},
		{
			ID:           StepISIdentityCheck,
			Phase:        PhaseIdentityShifting,
			ResponseType: models.ResponseYesNo,
			Rules:        yesNoRules,
			Render: func(_ Input, c *models.SessionContext) string {
				return fmt.Sprintf("Can you still feel yourself being '%s'?", c.Response(StepISFeelProblem))
			},
		},
		{
			ID:           StepISProblemCheck,
			Phase:        PhaseIdentityShifting,
			ResponseType: models.ResponseYesNo,
			Rules:        yesNoRules,
			Substitutes:  []Slot{SlotCurrentStatement},
			Render: func(_ Input, c *models.SessionContext) string {
				return fmt.Sprintf("Feel the problem '%s'... does it still feel like a problem?", c.CurrentStatement)
			},
		},
	}
}

func beliefShiftingSteps() []StepDefinition {
	return []StepDefinition{
		{
			ID:           StepBSIntro,
			Phase:        PhaseBeliefShifting,
			ResponseType: models.ResponseAuto,
			Render:       static("We'll use Belief Shifting. " + eyesClosedIntro),
			Next:         StepBSFeelProblem,
		},
		{
			ID:           StepBSFeelProblem,
			Phase:        PhaseBeliefShifting,
			ResponseType: models.ResponseFeeling,
			Rules:        feelingRules,
			Substitutes:  []Slot{SlotCurrentStatement},
			CycleEntry:   true,
			Next:         StepBSFeelBelief,
			Render: func(_ Input, c *models.SessionContext) string {
				return bridge(c, fmt.Sprintf("Feel the problem '%s'... what do you believe about yourself that keeps this problem in place?", c.CurrentStatement))
			},
		},
		{
			ID:           StepBSFeelBelief,
			Phase:        PhaseBeliefShifting,
			ResponseType: models.ResponseFeeling,
			Rules:        feelingRules,
			CycleEntry:   true,
			Next:         StepBSFeelDeeper,
			Render: func(_ Input, c *models.SessionContext) string {
				return bridge(c, fmt.Sprintf("Feel yourself believing '%s'... what does it feel like?", c.Response(StepBSFeelProblem)))
			},
		},
		{
			ID:           StepBSFeelDeeper,
			Phase:        PhaseBeliefShifting,
			ResponseType: models.ResponseFeeling,
			Rules:        feelingRules,
			Next:         StepBSRatherBelieve,
			Render: func(_ Input, c *models.SessionContext) string {
				return feelWhatHappens(c.Response(StepBSFeelBelief))
			},
		},
		{
			ID:           StepBSRatherBelieve,
			Phase:        PhaseBeliefShifting,
			ResponseType: models.ResponseOpen,
			Rules:        openRules,
			Next:         StepBSBeliefCheck,
			Render: func(_ Input, c *models.SessionContext) string {
				return fmt.Sprintf("What would you rather believe instead of '%s'?", c.Response(StepBSFeelProblem))
			},
		},
		{
			ID:           StepBSBeliefCheck,
			Phase:        PhaseBeliefShifting,
			ResponseType: models.ResponseYesNo,
			Rules:        yesNoRules,
			Render: func(_ Input, c *models.SessionContext) string {
				return fmt.Sprintf("Feel yourself believing '%s'... does it still feel true?", c.Response(StepBSFeelProblem))
			},
		},
		{
			ID:           StepBSProblemCheck,
			Phase:        PhaseBeliefShifting,
			ResponseType: models.ResponseYesNo,
			Rules:        yesNoRules,
			Substitutes:  []Slot{SlotCurrentStatement},
			Render: func(_ Input, c *models.SessionContext) string {
				return fmt.Sprintf("Feel the problem '%s'... does it still feel like a problem?", c.CurrentStatement)
			},
		},
	}
}

func blockageShiftingSteps() []StepDefinition {
	return []StepDefinition{
		{
			ID:           StepBKSIntro,
			Phase:        PhaseBlockageShifting,
			ResponseType: models.ResponseAuto,
			Render:       static("We'll use Blockage Shifting. " + eyesClosedIntro),
			Next:         StepBKSFeelProblem,
		},
		{
			ID:           StepBKSFeelProblem,
			Phase:        PhaseBlockageShifting,
			ResponseType: models.ResponseFeeling,
			Rules:        feelingRules,
			Substitutes:  []Slot{SlotCurrentStatement},
			Next:         StepBKSWhatNow,
			Render: func(_ Input, c *models.SessionContext) string {
				return fmt.Sprintf("Feel the problem '%s'... what does it feel like?", c.CurrentStatement)
			},
		},
		{
			ID:           StepBKSWhatNow,
			Phase:        PhaseBlockageShifting,
			ResponseType: models.ResponseFeeling,
			Rules:        feelingRules,
			CycleEntry:   true,
			Next:         StepBKSFeelNow,
			Render: func(_ Input, c *models.SessionContext) string {
				return bridge(c, "What are you feeling now?")
			},
		},
		{
			ID:           StepBKSFeelNow,
			Phase:        PhaseBlockageShifting,
			ResponseType: models.ResponseFeeling,
			Rules:        feelingRules,
			Next:         StepBKSCheck,
			Render: func(_ Input, c *models.SessionContext) string {
				f := c.Response(StepBKSWhatNow)
				return fmt.Sprintf("Feel '%s'... what does '%s' feel like?", f, f)
			},
		},
		{
			ID:           StepBKSCheck,
			Phase:        PhaseBlockageShifting,
			ResponseType: models.ResponseYesNo,
			Rules:        yesNoRules,
			Substitutes:  []Slot{SlotCurrentStatement},
			Render: func(_ Input, c *models.SessionContext) string {
				return fmt.Sprintf("Feel the problem '%s'... is there still a problem?", c.CurrentStatement)
			},
		},
	}
}
