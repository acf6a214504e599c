package flow

import (
	"github.com/BTreeMap/shiftengine/internal/models"
)

// DefaultMaxDiggingDepth bounds how many sub-sessions may be nested inside one
// top-level pass.
const DefaultMaxDiggingDepth = 3

// DiggingManager builds the patches that open and close digging-deeper
// sub-sessions. The stack itself lives in the session metadata; the manager
// never recurses and never touches the original statement.
type DiggingManager struct {
	MaxDepth int
}

// Depth returns the number of open frames.
func (d DiggingManager) Depth(c *models.SessionContext) int {
	return c.Metadata.Depth()
}

// Top returns the innermost open frame.
func (d DiggingManager) Top(c *models.SessionContext) (models.DiggingFrame, bool) {
	return c.Metadata.Top()
}

// CanDig reports whether another frame may be pushed.
func (d DiggingManager) CanDig(c *models.SessionContext) bool {
	limit := d.MaxDepth
	if limit <= 0 {
		limit = DefaultMaxDiggingDepth
	}
	return c.Metadata.Depth() < limit
}

// Push opens a sub-session for discovered. The frame records where to resume
// and the enclosing pass's statement and method so Pop can restore them. The
// pending returnToCheck pointer is consumed.
func (d DiggingManager) Push(c *models.SessionContext, discovered string, returnStep models.StepID) (models.ContextPatch, error) {
	if returnStep == "" {
		return models.ContextPatch{}, &ConfigurationError{Step: StepRestateProblem, Reason: "no check step to return to"}
	}
	if !d.CanDig(c) {
		return models.ContextPatch{}, &ConfigurationError{Step: StepRestateProblem, Reason: "digging stack is full"}
	}
	frame := models.DiggingFrame{
		DiscoveredProblem: discovered,
		ReturnStep:        returnStep,
		Depth:             c.Metadata.Depth() + 1,
		ParentStatement:   c.CurrentStatement,
		ParentMethod:      c.SelectedMethod,
	}
	return models.ContextPatch{
		PushFrame:            &frame,
		ReturnToCheck:        models.Ref[models.StepID](""),
		SelectionFromDigging: models.Ref(true),
	}, nil
}

// Pop closes the innermost sub-session. The returned patch restores the parent
// pass's statement and method and clears the finished modality's flags.
func (d DiggingManager) Pop(c *models.SessionContext) (models.DiggingFrame, models.ContextPatch, bool) {
	top, ok := c.Metadata.Top()
	if !ok {
		return models.DiggingFrame{}, models.ContextPatch{}, false
	}
	return top, models.ContextPatch{
		PopFrame:         true,
		CurrentStatement: models.Ref(top.ParentStatement),
		Method:           models.Ref(top.ParentMethod),
		ResetModality:    true,
	}, true
}
