package flow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BTreeMap/shiftengine/internal/models"
)

// DefaultAssistTimeout bounds a single linguistic assist call.
const DefaultAssistTimeout = 3 * time.Second

// LinguisticAssist rephrases free text towards a problem or goal statement.
// Implementations must honor ctx cancellation.
type LinguisticAssist interface {
	Normalize(ctx context.Context, text string, target models.Phrasing) (string, error)
}

// assistGate wraps a LinguisticAssist with a timeout and a guaranteed
// fallback to the original text.
type assistGate struct {
	assist  LinguisticAssist
	timeout time.Duration
	metrics Recorder
}

func (g *assistGate) enabled() bool {
	return g != nil && g.assist != nil
}

type normalizeResult struct {
	text string
	err  error
}

// normalize returns the rephrased text and true, or text unchanged and false
// when the call failed, timed out or produced something unusable.
func (g *assistGate) normalize(ctx context.Context, text string, target models.Phrasing) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan normalizeResult, 1)
	go func() {
		out, err := g.assist.Normalize(ctx, text, target)
		done <- normalizeResult{text: out, err: err}
	}()

	var r normalizeResult
	select {
	case r = <-done:
	case <-ctx.Done():
		r = normalizeResult{err: ctx.Err()}
	}

	if r.err != nil {
		result := AssistError
		if errors.Is(r.err, context.DeadlineExceeded) {
			result = AssistTimeout
		}
		slog.Warn("assistGate.normalize: falling back to original text", "result", result, "error", r.err)
		g.metrics.IncAssist(result)
		return text, false
	}

	out := strings.TrimSpace(r.text)
	out = strings.Trim(out, "\"'")
	if !acceptableRephrase(text, out) {
		slog.Debug("assistGate.normalize: rephrase rejected", "original_len", len(text), "rephrase_len", len(out))
		g.metrics.IncAssist(AssistRejected)
		return text, false
	}
	g.metrics.IncAssist(AssistUsed)
	return out, true
}

// acceptableRephrase guards against empty, multi-line or runaway output.
func acceptableRephrase(original, out string) bool {
	if out == "" || strings.ContainsAny(out, "\r\n") {
		return false
	}
	return utf8.RuneCountInString(out) <= utf8.RuneCountInString(original)+40
}
