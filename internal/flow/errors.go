package flow

import (
	"errors"
	"fmt"

	"github.com/BTreeMap/shiftengine/internal/models"
)

// ConfigurationError reports a defect in the step catalog or routing table:
// an unknown step, a step that cannot leave, or a chain that never settles.
// It is never caused by user input.
type ConfigurationError struct {
	Step   models.StepID
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("flow configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("flow configuration error at step %q: %s", e.Step, e.Reason)
}

// PersistenceError wraps a failed store operation. Retryable errors leave the
// session at its previously saved state, so the caller may resend the turn.
type PersistenceError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err carries a retryable PersistenceError.
func IsRetryable(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe) && pe.Retryable
}
