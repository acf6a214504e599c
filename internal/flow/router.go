package flow

import (
	"log/slog"

	"github.com/BTreeMap/shiftengine/internal/models"
)

// Handler decides the transition out of one step. Handlers are pure: they read
// the context and the classified input and describe every mutation in the
// returned patch. Returning the step's own id keeps the session where it is.
type Handler func(c *models.SessionContext, in Input) (models.StepID, models.ContextPatch, error)

// Router resolves (context, step, input) to the next step and a context patch.
// Steps without a handler follow their registered default.
type Router struct {
	reg      *Registry
	dig      DiggingManager
	handlers map[models.StepID]Handler
}

// NewRouter builds the routing table over reg.
func NewRouter(reg *Registry, dig DiggingManager) *Router {
	r := &Router{reg: reg, dig: dig}
	r.handlers = map[models.StepID]Handler{
		StepWorkTypeSelection:             r.workTypeSelection,
		StepMethodSelection:               r.methodSelection,
		StepProblemDescription:            r.problemDescription,
		StepGoalDescription:               r.goalDescription,
		StepGoalDeadlineCheck:             r.goalDeadlineCheck,
		StepGoalDeadlineDate:              r.goalDeadlineDate,
		StepNegativeExperienceDescription: r.negativeExperienceDescription,
		StepConfirmStatement:              r.confirmStatement,

		StepPSCheck:         stillAProblem(StepPSCheck, StepPSFeelProblem, StepModalityResolved),
		StepISIdentityCheck: stillAProblem(StepISIdentityCheck, StepISFeelIdentity, StepISProblemCheck),
		StepISProblemCheck:  stillAProblem(StepISProblemCheck, StepISFeelProblem, StepModalityResolved),
		StepBSBeliefCheck:   stillAProblem(StepBSBeliefCheck, StepBSFeelBelief, StepBSProblemCheck),
		StepBSProblemCheck:  stillAProblem(StepBSProblemCheck, StepBSFeelProblem, StepModalityResolved),
		StepBKSCheck:        stillAProblem(StepBKSCheck, StepBKSWhatNow, StepModalityResolved),

		StepRSDoubtCheck:   yesNo(StepRSDoubtCheck, StepRSDoubtReason, StepModalityResolved),
		StepRSDoubtCleared: r.doubtCleared,

		StepTSRecallCheck: yesNo(StepTSRecallCheck, StepTSWorstMoment, StepTSRedirect),
		StepTSRedirect:    r.traumaRedirect,
		StepTSCheck:       r.traumaCheck,

		StepModalityResolved:  r.modalityResolved,
		StepDiggingPermission: r.diggingPermission,
		StepRestateProblem:    r.restateProblem,
		StepPassComplete:      r.passComplete,

		StepIntegrationAction: r.integrationAction,
	}
	for i, check := range DiggingChecks {
		next := StepPassComplete
		if i+1 < len(DiggingChecks) {
			next = DiggingChecks[i+1]
		}
		r.handlers[check] = diggingCheck(check, next)
	}
	return r
}

// HasHandler reports whether step has an explicit routing rule.
func (r *Router) HasHandler(step models.StepID) bool {
	_, ok := r.handlers[step]
	return ok
}

// Route returns the step that follows step for input in, and the patch to
// apply. It never mutates c.
func (r *Router) Route(c *models.SessionContext, step models.StepID, in Input) (models.StepID, models.ContextPatch, error) {
	def, err := r.reg.Get(step)
	if err != nil {
		return "", models.ContextPatch{}, err
	}
	if def.Terminal {
		return step, models.ContextPatch{}, nil
	}

	var (
		next  models.StepID
		patch models.ContextPatch
	)
	if h, ok := r.handlers[step]; ok {
		next, patch, err = h(c, in)
		if err != nil {
			return "", models.ContextPatch{}, err
		}
	} else if def.Next != "" {
		next = def.Next
	} else {
		return "", models.ContextPatch{}, &ConfigurationError{Step: step, Reason: "no router handler and no default next step"}
	}

	if _, err := r.reg.Get(next); err != nil {
		slog.Error("Router.Route: transition to unregistered step", "from", step, "to", next)
		return "", models.ContextPatch{}, err
	}

	// Leaving a cycle entry retires the bridge phrase for the current cycle.
	if next != step && def.CycleEntry && patch.Modality == nil && !patch.ResetModality && !patch.IncrementCycle {
		m := c.Metadata.Modality
		if m.Cycles > 0 && !m.BridgePhraseUsed {
			m.BridgePhraseUsed = true
			patch.Modality = &m
		}
	}
	return next, patch, nil
}

func stay(step models.StepID) (models.StepID, models.ContextPatch, error) {
	return step, models.ContextPatch{}, nil
}

// yesNo routes a plain yes/no step. Anything else keeps the session on it.
func yesNo(step, onYes, onNo models.StepID) Handler {
	return func(c *models.SessionContext, in Input) (models.StepID, models.ContextPatch, error) {
		switch in.Kind {
		case InputAffirmative:
			return onYes, models.ContextPatch{}, nil
		case InputNegative:
			return onNo, models.ContextPatch{}, nil
		default:
			return stay(step)
		}
	}
}

// stillAProblem routes a modality's "is it still there?" check: yes repeats
// the cycle from entry, no moves on.
func stillAProblem(step, entry, onNo models.StepID) Handler {
	return func(c *models.SessionContext, in Input) (models.StepID, models.ContextPatch, error) {
		switch in.Kind {
		case InputAffirmative:
			return entry, models.ContextPatch{IncrementCycle: true}, nil
		case InputNegative:
			return onNo, models.ContextPatch{}, nil
		default:
			return stay(step)
		}
	}
}

// diggingCheck routes one "still unresolved?" check. Every yes converges on
// the shared restate step, remembering which check to come back to.
func diggingCheck(check, onNo models.StepID) Handler {
	return func(c *models.SessionContext, in Input) (models.StepID, models.ContextPatch, error) {
		switch in.Kind {
		case InputAffirmative:
			return StepRestateProblem, models.ContextPatch{ReturnToCheck: models.Ref(check)}, nil
		case InputNegative:
			return onNo, models.ContextPatch{}, nil
		default:
			return stay(check)
		}
	}
}

// MethodIntro returns the first step of method.
func MethodIntro(m models.Method) (models.StepID, bool) {
	switch m {
	case models.MethodProblemShifting:
		return StepPSIntro, true
	case models.MethodIdentityShifting:
		return StepISIntro, true
	case models.MethodBeliefShifting:
		return StepBSIntro, true
	case models.MethodBlockageShifting:
		return StepBKSIntro, true
	case models.MethodRealityShifting:
		return StepRSIntro, true
	case models.MethodTraumaShifting:
		return StepTSIntro, true
	default:
		return "", false
	}
}

func (r *Router) workTypeSelection(c *models.SessionContext, in Input) (models.StepID, models.ContextPatch, error) {
	if in.Kind != InputNumeric {
		return stay(StepWorkTypeSelection)
	}
	patch := models.ContextPatch{ResetPass: true, ResetModality: true}
	switch in.Number {
	case 1:
		patch.WorkType = models.Ref(models.WorkTypeProblem)
		patch.Method = models.Ref(models.MethodNone)
		return StepMethodSelection, patch, nil
	case 2:
		patch.WorkType = models.Ref(models.WorkTypeGoal)
		patch.Method = models.Ref(models.MethodRealityShifting)
		return StepGoalDescription, patch, nil
	case 3:
		patch.WorkType = models.Ref(models.WorkTypeNegativeExperience)
		patch.Method = models.Ref(models.MethodTraumaShifting)
		return StepNegativeExperienceDescription, patch, nil
	default:
		return stay(StepWorkTypeSelection)
	}
}

func (r *Router) methodSelection(c *models.SessionContext, in Input) (models.StepID, models.ContextPatch, error) {
	if in.Kind != InputNumeric || in.Number < 1 || in.Number > len(models.ProblemMethods) {
		return stay(StepMethodSelection)
	}
	method := models.ProblemMethods[in.Number-1]
	patch := models.ContextPatch{Method: models.Ref(method), ResetModality: true}

	if top, ok := c.Metadata.Top(); ok && c.Metadata.SelectionFromDigging {
		patch.CurrentStatement = models.Ref(top.DiscoveredProblem)
		patch.SelectionFromDigging = models.Ref(false)
		intro, _ := MethodIntro(method)
		return intro, patch, nil
	}
	if c.CurrentStatement != "" {
		intro, _ := MethodIntro(method)
		return intro, patch, nil
	}
	return StepProblemDescription, patch, nil
}

func (r *Router) problemDescription(c *models.SessionContext, in Input) (models.StepID, models.ContextPatch, error) {
	if in.Kind != InputFreeText {
		return stay(StepProblemDescription)
	}
	patch := models.ContextPatch{
		OriginalStatement: models.Ref(in.Text),
		CurrentStatement:  models.Ref(in.Text),
	}
	intro, ok := MethodIntro(c.SelectedMethod)
	if !ok {
		return StepMethodSelection, patch, nil
	}
	return intro, patch, nil
}

func (r *Router) goalDescription(c *models.SessionContext, in Input) (models.StepID, models.ContextPatch, error) {
	if in.Kind != InputFreeText {
		return stay(StepGoalDescription)
	}
	return StepGoalDeadlineCheck, models.ContextPatch{CurrentStatement: models.Ref(in.Text)}, nil
}

func (r *Router) goalDeadlineCheck(c *models.SessionContext, in Input) (models.StepID, models.ContextPatch, error) {
	switch in.Kind {
	case InputAffirmative:
		return StepGoalDeadlineDate, models.ContextPatch{}, nil
	case InputNegative:
		return StepConfirmStatement, models.ContextPatch{GoalDeadline: models.Ref("")}, nil
	default:
		return stay(StepGoalDeadlineCheck)
	}
}

// goalDeadlineDate takes the deadline itself. A bare yes or a menu number is
// not a date; a no withdraws the deadline.
func (r *Router) goalDeadlineDate(c *models.SessionContext, in Input) (models.StepID, models.ContextPatch, error) {
	switch in.Kind {
	case InputNegative:
		return StepConfirmStatement, models.ContextPatch{GoalDeadline: models.Ref("")}, nil
	case InputFreeText:
		return StepConfirmStatement, models.ContextPatch{GoalDeadline: models.Ref(in.Text)}, nil
	default:
		return stay(StepGoalDeadlineDate)
	}
}

func (r *Router) negativeExperienceDescription(c *models.SessionContext, in Input) (models.StepID, models.ContextPatch, error) {
	if in.Kind != InputFreeText {
		return stay(StepNegativeExperienceDescription)
	}
	return StepConfirmStatement, models.ContextPatch{CurrentStatement: models.Ref(in.Text)}, nil
}

// confirmStatement accepts or rejects the statement just described. A
// rejection returns to the technique redirect that led here, if any, else to
// the description step of the active work type.
func (r *Router) confirmStatement(c *models.SessionContext, in Input) (models.StepID, models.ContextPatch, error) {
	m := c.Metadata.Modality
	switch in.Kind {
	case InputAffirmative:
		if m.RedirectStep != "" {
			m.RedirectStep = ""
			m.RedirectTaken = true
			return StepTSFeelRedirect, models.ContextPatch{Modality: &m}, nil
		}
		patch := models.ContextPatch{OriginalStatement: models.Ref(describedStatement(c))}
		intro, ok := MethodIntro(c.SelectedMethod)
		if !ok {
			return StepMethodSelection, patch, nil
		}
		return intro, patch, nil
	case InputNegative:
		if m.RedirectStep != "" {
			return m.RedirectStep, models.ContextPatch{}, nil
		}
		switch c.WorkType {
		case models.WorkTypeGoal:
			return StepGoalDescription, models.ContextPatch{}, nil
		case models.WorkTypeNegativeExperience:
			return StepNegativeExperienceDescription, models.ContextPatch{}, nil
		default:
			return StepProblemDescription, models.ContextPatch{}, nil
		}
	default:
		return stay(StepConfirmStatement)
	}
}

// describedStatement is the statement as the user typed it at the description
// step of the active work type. CurrentStatement may hold the assist's
// rephrasing and is only used when no raw answer was recorded.
func describedStatement(c *models.SessionContext) string {
	var raw string
	switch c.WorkType {
	case models.WorkTypeGoal:
		raw = c.Response(StepGoalDescription)
	case models.WorkTypeNegativeExperience:
		raw = c.Response(StepNegativeExperienceDescription)
	default:
		raw = c.Response(StepProblemDescription)
	}
	if raw == "" {
		return c.CurrentStatement
	}
	return raw
}

func (r *Router) doubtCleared(c *models.SessionContext, in Input) (models.StepID, models.ContextPatch, error) {
	switch in.Kind {
	case InputAffirmative:
		return StepRSFeelDoubt, models.ContextPatch{IncrementCycle: true}, nil
	case InputNegative:
		return StepRSFeelGoal, models.ContextPatch{IncrementCycle: true}, nil
	default:
		return stay(StepRSDoubtCleared)
	}
}

func (r *Router) traumaRedirect(c *models.SessionContext, in Input) (models.StepID, models.ContextPatch, error) {
	if in.Kind != InputFreeText {
		return stay(StepTSRedirect)
	}
	m := c.Metadata.Modality
	m.RedirectStep = StepTSRedirect
	return StepConfirmStatement, models.ContextPatch{CurrentStatement: models.Ref(in.Text), Modality: &m}, nil
}

func (r *Router) traumaCheck(c *models.SessionContext, in Input) (models.StepID, models.ContextPatch, error) {
	switch in.Kind {
	case InputAffirmative:
		if c.Metadata.Modality.RedirectTaken {
			return StepTSFeelRedirect, models.ContextPatch{IncrementCycle: true}, nil
		}
		return StepTSWorstMoment, models.ContextPatch{IncrementCycle: true}, nil
	case InputNegative:
		return StepModalityResolved, models.ContextPatch{}, nil
	default:
		return stay(StepTSCheck)
	}
}

// modalityResolved is the join point every modality reaches once its problem
// has cleared. Permission to dig deeper is asked once per top-level pass.
func (r *Router) modalityResolved(c *models.SessionContext, _ Input) (models.StepID, models.ContextPatch, error) {
	if c.SelectedMethod == models.MethodRealityShifting || !r.dig.CanDig(c) {
		return StepPassComplete, models.ContextPatch{}, nil
	}
	if c.Metadata.DiggingPermissionGranted {
		return DiggingChecks[0], models.ContextPatch{}, nil
	}
	return StepDiggingPermission, models.ContextPatch{}, nil
}

func (r *Router) diggingPermission(c *models.SessionContext, in Input) (models.StepID, models.ContextPatch, error) {
	switch in.Kind {
	case InputAffirmative:
		return DiggingChecks[0], models.ContextPatch{GrantDiggingPermission: true}, nil
	case InputNegative:
		return StepPassComplete, models.ContextPatch{}, nil
	default:
		return stay(StepDiggingPermission)
	}
}

func (r *Router) restateProblem(c *models.SessionContext, in Input) (models.StepID, models.ContextPatch, error) {
	back := c.Metadata.ReturnToCheck
	if back == "" {
		return "", models.ContextPatch{}, &ConfigurationError{Step: StepRestateProblem, Reason: "reached without a pending check"}
	}
	switch in.Kind {
	case InputFreeText:
		patch, err := r.dig.Push(c, in.Text, back)
		if err != nil {
			return "", models.ContextPatch{}, err
		}
		return StepMethodSelection, patch, nil
	case InputNegative:
		return back, models.ContextPatch{ReturnToCheck: models.Ref[models.StepID]("")}, nil
	default:
		return stay(StepRestateProblem)
	}
}

func (r *Router) passComplete(c *models.SessionContext, _ Input) (models.StepID, models.ContextPatch, error) {
	frame, patch, ok := r.dig.Pop(c)
	if !ok {
		return StepIntegrationIntro, models.ContextPatch{}, nil
	}
	slog.Debug("Router.passComplete: closing sub-session", "session", c.SessionID, "depth", frame.Depth, "return", frame.ReturnStep)
	return frame.ReturnStep, patch, nil
}

func (r *Router) integrationAction(c *models.SessionContext, in Input) (models.StepID, models.ContextPatch, error) {
	return models.StepComplete, models.ContextPatch{Complete: true}, nil
}
