package flow

import (
	"fmt"

	"github.com/BTreeMap/shiftengine/internal/models"
)

// Reality Shifting step ids.
const (
	StepRSIntro           models.StepID = "rs_intro"
	StepRSFeelGoal        models.StepID = "rs_feel_goal"
	StepRSDoubtCheck      models.StepID = "rs_doubt_check"
	StepRSDoubtReason     models.StepID = "rs_doubt_reason"
	StepRSFeelDoubt       models.StepID = "rs_feel_doubt"
	StepRSFeelDoubtDeeper models.StepID = "rs_feel_doubt_deeper"
	StepRSDoubtCleared    models.StepID = "rs_doubt_cleared"
)

// goalWithDeadline renders the goal statement, appending the deadline when the
// user gave one.
func goalWithDeadline(c *models.SessionContext) string {
	if c.GoalDeadline != "" {
		return fmt.Sprintf("'%s' by '%s'", c.CurrentStatement, c.GoalDeadline)
	}
	return fmt.Sprintf("'%s'", c.CurrentStatement)
}

func realityShiftingSteps() []StepDefinition {
	return []StepDefinition{
		{
			ID:           StepRSIntro,
			Phase:        PhaseRealityShifting,
			ResponseType: models.ResponseAuto,
			Render:       static("We'll use Reality Shifting to work on your goal. " + eyesClosedIntro),
			Next:         StepRSFeelGoal,
		},
		{
			ID:           StepRSFeelGoal,
			Phase:        PhaseRealityShifting,
			ResponseType: models.ResponseFeeling,
			Rules:        feelingRules,
			Substitutes:  []Slot{SlotCurrentStatement, SlotGoalDeadline},
			CycleEntry:   true,
			Next:         StepRSDoubtCheck,
			Render: func(_ Input, c *models.SessionContext) string {
				return bridge(c, fmt.Sprintf("Imagine %s has already happened... what does it feel like?", goalWithDeadline(c)))
			},
		},
		{
			ID:           StepRSDoubtCheck,
			Phase:        PhaseRealityShifting,
			ResponseType: models.ResponseYesNo,
			Rules:        yesNoRules,
			Substitutes:  []Slot{SlotCurrentStatement, SlotGoalDeadline},
			Render: func(_ Input, c *models.SessionContext) string {
				return fmt.Sprintf("Is there any doubt that %s will happen?", goalWithDeadline(c))
			},
		},
		{
			ID:           StepRSDoubtReason,
			Phase:        PhaseRealityShifting,
			ResponseType: models.ResponseOpen,
			Rules:        openRules,
			Next:         StepRSFeelDoubt,
			Render:       static("What is the doubt? What's the reason it might not happen?"),
		},
		{
			ID:           StepRSFeelDoubt,
			Phase:        PhaseRealityShifting,
			ResponseType: models.ResponseFeeling,
			Rules:        feelingRules,
			CycleEntry:   true,
			Next:         StepRSFeelDoubtDeeper,
			Render: func(_ Input, c *models.SessionContext) string {
				return bridge(c, fmt.Sprintf("Feel the doubt '%s'... what does it feel like?", c.Response(StepRSDoubtReason)))
			},
		},
		{
			ID:           StepRSFeelDoubtDeeper,
			Phase:        PhaseRealityShifting,
			ResponseType: models.ResponseFeeling,
			Rules:        feelingRules,
			Next:         StepRSDoubtCleared,
			Render: func(_ Input, c *models.SessionContext) string {
				return feelWhatHappens(c.Response(StepRSFeelDoubt))
			},
		},
		{
			ID:           StepRSDoubtCleared,
			Phase:        PhaseRealityShifting,
			ResponseType: models.ResponseYesNo,
			Rules:        yesNoRules,
			Render: func(_ Input, c *models.SessionContext) string {
				return fmt.Sprintf("Can you still feel the doubt '%s'?", c.Response(StepRSDoubtReason))
			},
		},
	}
}
