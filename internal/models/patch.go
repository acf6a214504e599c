package models

// ContextPatch is a declarative mutation of a SessionContext produced by a
// transition. Nil pointers and false flags leave the corresponding field alone.
type ContextPatch struct {
	// ResetPass starts a new top-level pass: digging stack, permission,
	// returnToCheck and the digging selection flag are cleared.
	ResetPass bool `json:"reset_pass,omitempty"`

	WorkType *WorkType `json:"work_type,omitempty"`
	Method   *Method   `json:"method,omitempty"`

	// ResetModality clears every flag owned by the previous modality. It is
	// applied before Modality.
	ResetModality bool           `json:"reset_modality,omitempty"`
	Modality      *ModalityState `json:"modality,omitempty"`

	// OriginalStatement is write-once; it is ignored when already set.
	OriginalStatement *string `json:"original_statement,omitempty"`
	CurrentStatement  *string `json:"current_statement,omitempty"`
	GoalDeadline      *string `json:"goal_deadline,omitempty"`

	PopFrame  bool          `json:"pop_frame,omitempty"`
	PushFrame *DiggingFrame `json:"push_frame,omitempty"`

	// ReturnToCheck set to the empty id clears the pointer.
	ReturnToCheck          *StepID `json:"return_to_check,omitempty"`
	GrantDiggingPermission bool    `json:"grant_digging_permission,omitempty"`
	SelectionFromDigging   *bool   `json:"selection_from_digging,omitempty"`

	// IncrementCycle bumps the session cycle count and the modality cycle,
	// re-arming the bridge phrase.
	IncrementCycle bool `json:"increment_cycle,omitempty"`

	Complete bool `json:"complete,omitempty"`
}

// Ref returns a pointer to v. It keeps patch literals short.
func Ref[T any](v T) *T {
	return &v
}

// IsEmpty reports whether applying p would change nothing.
func (p ContextPatch) IsEmpty() bool {
	return !p.ResetPass && p.WorkType == nil && p.Method == nil && !p.ResetModality &&
		p.Modality == nil && p.OriginalStatement == nil && p.CurrentStatement == nil &&
		p.GoalDeadline == nil && !p.PopFrame && p.PushFrame == nil && p.ReturnToCheck == nil &&
		!p.GrantDiggingPermission && p.SelectionFromDigging == nil && !p.IncrementCycle && !p.Complete
}

// Apply mutates c according to p. The write-once original statement and the
// monotonic cycle count are enforced here rather than by callers.
func (p ContextPatch) Apply(c *SessionContext) {
	md := &c.Metadata
	if p.ResetPass {
		md.DiggingStack = nil
		md.DiggingPermissionGranted = false
		md.ReturnToCheck = ""
		md.SelectionFromDigging = false
	}
	if p.WorkType != nil {
		c.WorkType = *p.WorkType
	}
	if p.Method != nil {
		c.SelectedMethod = *p.Method
	}
	if p.ResetModality {
		md.Modality = ModalityState{}
	}
	if p.Modality != nil {
		md.Modality = *p.Modality
	}
	if p.OriginalStatement != nil && c.OriginalProblemStatement == "" {
		c.OriginalProblemStatement = *p.OriginalStatement
	}
	if p.CurrentStatement != nil {
		c.CurrentStatement = *p.CurrentStatement
	}
	if p.GoalDeadline != nil {
		c.GoalDeadline = *p.GoalDeadline
	}
	if p.PopFrame && len(md.DiggingStack) > 0 {
		md.DiggingStack = md.DiggingStack[:len(md.DiggingStack)-1]
		if len(md.DiggingStack) == 0 {
			md.DiggingStack = nil
		}
	}
	if p.PushFrame != nil {
		md.DiggingStack = append(md.DiggingStack, *p.PushFrame)
	}
	if p.ReturnToCheck != nil {
		md.ReturnToCheck = *p.ReturnToCheck
	}
	if p.GrantDiggingPermission {
		md.DiggingPermissionGranted = true
	}
	if p.SelectionFromDigging != nil {
		md.SelectionFromDigging = *p.SelectionFromDigging
	}
	if p.IncrementCycle {
		md.CycleCount++
		md.Modality.Cycles++
		md.Modality.BridgePhraseUsed = false
	}
	if p.Complete {
		c.Completed = true
	}
}
