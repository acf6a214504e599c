package flow

import (
	"time"

	"github.com/BTreeMap/shiftengine/internal/models"
)

// Recorder receives engine measurements. internal/metrics provides the
// Prometheus implementation.
type Recorder interface {
	ObserveTurn(outcome models.TurnOutcome, elapsed time.Duration)
	ObserveChain(hops int)
	IncAssist(result string)
	IncAssistSkip(reason string)
	IncPersistenceFailure(op string)
}

// Assist results and skip reasons reported to the Recorder.
const (
	AssistUsed     = "used"
	AssistError    = "error"
	AssistTimeout  = "timeout"
	AssistRejected = "rejected"

	SkipDisabled     = "disabled"
	SkipChoiceInput  = "choice_input"
	SkipNotAmbiguous = "not_ambiguous"
	SkipSlotUnused   = "slot_unused"
	SkipPlanFailed   = "plan_failed"
)

type noopRecorder struct{}

func (noopRecorder) ObserveTurn(models.TurnOutcome, time.Duration) {}
func (noopRecorder) ObserveChain(int) {}
func (noopRecorder) IncAssist(string) {}
func (noopRecorder) IncAssistSkip(string) {}
func (noopRecorder) IncPersistenceFailure(string) {}
