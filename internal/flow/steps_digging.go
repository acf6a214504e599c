package flow

import (
	"fmt"

	"github.com/BTreeMap/shiftengine/internal/models"
)

// Digging-deeper step ids.
const (
	StepModalityResolved  models.StepID = "modality_resolved"
	StepDiggingPermission models.StepID = "digging_permission"
	StepDigFutureCheck    models.StepID = "dig_future_check"
	StepDigScenarioCheck  models.StepID = "dig_scenario_check"
	StepDigAnythingElse   models.StepID = "dig_anything_else"
	StepRestateProblem    models.StepID = "restate_problem"
	StepPassComplete      models.StepID = "pass_complete"
)

// Integration step ids.
const (
	StepIntegrationIntro    models.StepID = "integration_intro"
	StepIntegrationFeelings models.StepID = "integration_feelings"
	StepIntegrationLearning models.StepID = "integration_learning"
	StepIntegrationAction   models.StepID = "integration_action"
)

// DiggingChecks lists the "still unresolved?" checks in the order they are
// asked. Each one converges on StepRestateProblem when answered yes.
var DiggingChecks = []models.StepID{StepDigFutureCheck, StepDigScenarioCheck, StepDigAnythingElse}

func diggingSteps() []StepDefinition {
	return []StepDefinition{
		{
			ID:           StepModalityResolved,
			Phase:        PhaseDiggingDeeper,
			ResponseType: models.ResponseAuto,
			Render:       static("Great, that problem has cleared."),
		},
		{
			ID:           StepDiggingPermission,
			Phase:        PhaseDiggingDeeper,
			ResponseType: models.ResponseYesNo,
			Rules:        yesNoRules,
			Render: static("Would it be okay to dig a little deeper and check whether anything else is connected to it? " +
				"It only takes a moment."),
		},
		{
			ID:           StepDigFutureCheck,
			Phase:        PhaseDiggingDeeper,
			ResponseType: models.ResponseYesNo,
			Rules:        yesNoRules,
			Substitutes:  []Slot{SlotCurrentStatement},
			Render: func(_ Input, c *models.SessionContext) string {
				return fmt.Sprintf("Do you feel '%s' could come back in the future?", c.CurrentStatement)
			},
		},
		{
			ID:           StepDigScenarioCheck,
			Phase:        PhaseDiggingDeeper,
			ResponseType: models.ResponseYesNo,
			Rules:        yesNoRules,
			Substitutes:  []Slot{SlotCurrentStatement},
			Render: func(_ Input, c *models.SessionContext) string {
				return fmt.Sprintf("Is there any situation in which '%s' could still be a problem for you?", c.CurrentStatement)
			},
		},
		{
			ID:           StepDigAnythingElse,
			Phase:        PhaseDiggingDeeper,
			ResponseType: models.ResponseYesNo,
			Rules:        yesNoRules,
			Render:       static("Is there anything else about this that is still a problem for you?"),
		},
		{
			ID:           StepRestateProblem,
			Phase:        PhaseDiggingDeeper,
			ResponseType: models.ResponseDescription,
			Rules:        descriptionRules,
			Render:       static("In a few words, what is the problem there? (Or say no to go back.)"),
		},
		{
			ID:           StepPassComplete,
			Phase:        PhaseDiggingDeeper,
			ResponseType: models.ResponseAuto,
			Render: func(_ Input, c *models.SessionContext) string {
				if top, ok := c.Metadata.Top(); ok {
					return fmt.Sprintf("We've cleared '%s'. Let's go back to where we were.", top.DiscoveredProblem)
				}
				return "That completes the work on this."
			},
		},
	}
}

func integrationSteps() []StepDefinition {
	return []StepDefinition{
		{
			ID:           StepIntegrationIntro,
			Phase:        PhaseIntegration,
			ResponseType: models.ResponseAuto,
			Render:       static("You can open your eyes now. Let's take a moment to integrate what has shifted."),
			Next:         StepIntegrationFeelings,
		},
		{
			ID:           StepIntegrationFeelings,
			Phase:        PhaseIntegration,
			ResponseType: models.ResponseOpen,
			Rules:        openRules,
			Substitutes:  []Slot{SlotOriginalStatement},
			Next:         StepIntegrationLearning,
			Render: func(_ Input, c *models.SessionContext) string {
				return fmt.Sprintf("How do you feel about '%s' now?", c.OriginalProblemStatement)
			},
		},
		{
			ID:           StepIntegrationLearning,
			Phase:        PhaseIntegration,
			ResponseType: models.ResponseOpen,
			Rules:        openRules,
			Next:         StepIntegrationAction,
			Render:       static("What have you noticed or learned from this session?"),
		},
		{
			ID:           StepIntegrationAction,
			Phase:        PhaseIntegration,
			ResponseType: models.ResponseOpen,
			Rules:        openRules,
			Render:       static("What is one small thing you'll do differently from now on?"),
		},
		{
			ID:           models.StepComplete,
			Phase:        PhaseIntegration,
			ResponseType: models.ResponseNone,
			Terminal:     true,
			Render: func(_ Input, c *models.SessionContext) string {
				return fmt.Sprintf("Thank you. You've completed the session on '%s'. Take care of yourself.", c.OriginalProblemStatement)
			},
		},
	}
}
