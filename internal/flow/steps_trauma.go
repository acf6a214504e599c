package flow

import (
	"fmt"

	"github.com/BTreeMap/shiftengine/internal/models"
)

// Trauma Shifting step ids.
const (
	StepTSIntro        models.StepID = "ts_intro"
	StepTSRecallCheck  models.StepID = "ts_recall_check"
	StepTSRedirect     models.StepID = "ts_redirect"
	StepTSWorstMoment  models.StepID = "ts_worst_moment"
	StepTSFeelMoment   models.StepID = "ts_feel_moment"
	StepTSFeelRedirect models.StepID = "ts_feel_redirect"
	StepTSFeelDeeper   models.StepID = "ts_feel_deeper"
	StepTSCheck        models.StepID = "ts_check"
)

// traumaFeeling returns the feeling the deeper step builds on: the redirect
// branch when it was taken, the worst-moment branch otherwise.
func traumaFeeling(c *models.SessionContext) string {
	if c.Metadata.Modality.RedirectTaken {
		return c.Response(StepTSFeelRedirect)
	}
	return c.Response(StepTSFeelMoment)
}

func traumaShiftingSteps() []StepDefinition {
	return []StepDefinition{
		{
			ID:           StepTSIntro,
			Phase:        PhaseTraumaShifting,
			ResponseType: models.ResponseAuto,
			Render: static("We'll use Trauma Shifting. You won't need to relive the experience or describe any details. " +
				eyesClosedIntro),
			Next: StepTSRecallCheck,
		},
		{
			ID:           StepTSRecallCheck,
			Phase:        PhaseTraumaShifting,
			ResponseType: models.ResponseYesNo,
			Rules:        yesNoRules,
			Substitutes:  []Slot{SlotCurrentStatement},
			Render: func(_ Input, c *models.SessionContext) string {
				return fmt.Sprintf("Is it okay for you to think about '%s' for a moment?", c.CurrentStatement)
			},
		},
		{
			ID:           StepTSRedirect,
			Phase:        PhaseTraumaShifting,
			ResponseType: models.ResponseDescription,
			Rules:        descriptionRules,
			Render:       static("That's okay. What is the feeling or problem you're left with because of it? A few words is enough."),
		},
		{
			ID:           StepTSWorstMoment,
			Phase:        PhaseTraumaShifting,
			ResponseType: models.ResponseYesNo,
			Rules:        yesNoRules,
			CycleEntry:   true,
			Next:         StepTSFeelMoment,
			Render: func(_ Input, c *models.SessionContext) string {
				return bridge(c, "Think of the worst moment of it, just for a second, without going into it. Have you got it?")
			},
		},
		{
			ID:           StepTSFeelMoment,
			Phase:        PhaseTraumaShifting,
			ResponseType: models.ResponseFeeling,
			Rules:        feelingRules,
			Next:         StepTSFeelDeeper,
			Render:       static("What do you feel when you think of that moment?"),
		},
		{
			ID:           StepTSFeelRedirect,
			Phase:        PhaseTraumaShifting,
			ResponseType: models.ResponseFeeling,
			Rules:        feelingRules,
			Substitutes:  []Slot{SlotCurrentStatement},
			CycleEntry:   true,
			Next:         StepTSFeelDeeper,
			Render: func(_ Input, c *models.SessionContext) string {
				return bridge(c, fmt.Sprintf("Feel '%s'... what does it feel like?", c.CurrentStatement))
			},
		},
		{
			ID:           StepTSFeelDeeper,
			Phase:        PhaseTraumaShifting,
			ResponseType: models.ResponseFeeling,
			Rules:        feelingRules,
			Next:         StepTSCheck,
			Render: func(_ Input, c *models.SessionContext) string {
				return feelWhatHappens(traumaFeeling(c))
			},
		},
		{
			ID:           StepTSCheck,
			Phase:        PhaseTraumaShifting,
			ResponseType: models.ResponseYesNo,
			Rules:        yesNoRules,
			Substitutes:  []Slot{SlotOriginalStatement},
			Render: func(_ Input, c *models.SessionContext) string {
				return fmt.Sprintf("Think about '%s' now... is it still a problem for you?", c.OriginalProblemStatement)
			},
		},
	}
}
