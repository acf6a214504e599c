package flow

import (
	"fmt"

	"github.com/BTreeMap/shiftengine/internal/models"
)

// Intro and discovery step ids.
const (
	StepWorkTypeSelection             models.StepID = "work_type_selection"
	StepMethodSelection               models.StepID = "method_selection"
	StepProblemDescription            models.StepID = "problem_description"
	StepGoalDescription               models.StepID = "goal_description"
	StepGoalDeadlineCheck             models.StepID = "goal_deadline_check"
	StepGoalDeadlineDate              models.StepID = "goal_deadline_date"
	StepNegativeExperienceDescription models.StepID = "negative_experience_description"
	StepConfirmStatement              models.StepID = "confirm_statement"
)

var deadlineKeywords = []string{
	"0", "1", "2", "3", "4", "5", "6", "7", "8", "9",
	"today", "tomorrow", "tonight", "week", "month", "year", "end of", "next", "by ",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec",
	"spring", "summer", "autumn", "fall", "winter",
}

func introSteps() []StepDefinition {
	return []StepDefinition{
		{
			ID:           StepWorkTypeSelection,
			Phase:        PhaseIntro,
			ResponseType: models.ResponseSelection,
			Rules:        choiceRules,
			Render: static("Welcome. What would you like to work on today?\n" +
				"1. A problem\n2. A goal\n3. A negative experience\n(Reply with 1, 2 or 3)"),
		},
		{
			ID:           StepMethodSelection,
			Phase:        PhaseIntro,
			ResponseType: models.ResponseSelection,
			Rules:        choiceRules,
			Substitutes:  []Slot{SlotDiscoveredProblem},
			Render: func(_ Input, c *models.SessionContext) string {
				menu := "1. Problem Shifting\n2. Identity Shifting\n3. Belief Shifting\n4. Blockage Shifting\n(Reply with 1, 2, 3 or 4)"
				if top, ok := c.Metadata.Top(); ok && c.Metadata.SelectionFromDigging {
					return fmt.Sprintf("Let's work on '%s'. Which method would you like to use?\n%s", top.DiscoveredProblem, menu)
				}
				return "Which method would you like to use?\n" + menu
			},
		},
	}
}

func discoverySteps() []StepDefinition {
	return []StepDefinition{
		{
			ID:           StepProblemDescription,
			Phase:        PhaseDiscovery,
			ResponseType: models.ResponseDescription,
			Rules:        descriptionRules,
			AITrigger:    &AITrigger{Target: models.PhrasingProblem, Slot: SlotCurrentStatement},
			Render:       static("In a few words, what is the problem you'd like to work on?"),
		},
		{
			ID:           StepGoalDescription,
			Phase:        PhaseDiscovery,
			ResponseType: models.ResponseDescription,
			Rules:        descriptionRules,
			AITrigger:    &AITrigger{Target: models.PhrasingGoal, Slot: SlotCurrentStatement},
			Render:       static("In a few words, what is the goal you'd like to achieve?"),
		},
		{
			ID:           StepGoalDeadlineCheck,
			Phase:        PhaseDiscovery,
			ResponseType: models.ResponseYesNo,
			Rules:        yesNoRules,
			Substitutes:  []Slot{SlotCurrentStatement},
			Render: func(_ Input, c *models.SessionContext) string {
				return fmt.Sprintf("Is there a date by which you want '%s' to have happened?", c.CurrentStatement)
			},
		},
		{
			ID:           StepGoalDeadlineDate,
			Phase:        PhaseDiscovery,
			ResponseType: models.ResponseOpen,
			Rules: []Rule{
				{Kind: RuleMinLength, Limit: 1},
				{Kind: RuleMaxLength, Limit: 100},
				{Kind: RuleContainsKeyword, Keywords: deadlineKeywords, Message: "When would that be? A date, a month or something like 'in three weeks' is fine."},
			},
			Render: static("By when?"),
		},
		{
			ID:           StepNegativeExperienceDescription,
			Phase:        PhaseDiscovery,
			ResponseType: models.ResponseDescription,
			Rules: []Rule{
				{Kind: RuleMinLength, Limit: 3},
				{Kind: RuleMaxLength, Limit: 500},
				{Kind: RuleOffTopic},
				{Kind: RuleNeedsClarification},
				{Kind: RuleStuckPattern},
			},
			Render: static("Without going into any detail, what was the negative experience? A short title is enough."),
		},
		{
			ID:           StepConfirmStatement,
			Phase:        PhaseDiscovery,
			ResponseType: models.ResponseYesNo,
			Rules:        yesNoRules,
			Substitutes:  []Slot{SlotCurrentStatement, SlotGoalDeadline},
			Render:       renderConfirmStatement,
		},
	}
}

func renderConfirmStatement(_ Input, c *models.SessionContext) string {
	if c.Metadata.Modality.RedirectStep != "" {
		return fmt.Sprintf("So what you'd like to work on is '%s'. Is that right?", c.CurrentStatement)
	}
	switch c.WorkType {
	case models.WorkTypeGoal:
		if c.GoalDeadline != "" {
			return fmt.Sprintf("So your goal is '%s' by '%s'. Is that right?", c.CurrentStatement, c.GoalDeadline)
		}
		return fmt.Sprintf("So your goal is '%s'. Is that right?", c.CurrentStatement)
	case models.WorkTypeNegativeExperience:
		return fmt.Sprintf("So the experience you'd like to work on is '%s'. Is that right?", c.CurrentStatement)
	default:
		return fmt.Sprintf("So the problem is '%s'. Is that right?", c.CurrentStatement)
	}
}
