package flow

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/BTreeMap/shiftengine/internal/models"
)

// RuleKind names a validation rule.
type RuleKind string

// Validation rule kinds, in the order steps usually declare them.
const (
	RuleMinLength          RuleKind = "minLength"
	RuleMaxLength          RuleKind = "maxLength"
	RuleContainsKeyword    RuleKind = "containsKeyword"
	RuleMultipleTopics     RuleKind = "multipleTopicsDetected"
	RuleOffTopic           RuleKind = "offTopic"
	RuleNeedsClarification RuleKind = "needsClarification"
	RuleTooLong            RuleKind = "tooLong"
	RuleStuckPattern       RuleKind = "stuckPattern"
)

// Rule is one declared validation rule of a step. Limit is the rule's
// threshold (characters, words or separators depending on Kind).
type Rule struct {
	Kind     RuleKind
	Limit    int
	Keywords []string
	// ExpectChoice makes needsClarification reject any free text; used by
	// selection and yes/no steps.
	ExpectChoice bool
	Message      string
}

// ValidationStatus is the verdict of the validation engine.
type ValidationStatus int

// Validation statuses.
const (
	ValidationPass ValidationStatus = iota
	ValidationClarify
	ValidationAmbiguous
)

// String returns a short label for logs.
func (s ValidationStatus) String() string {
	switch s {
	case ValidationClarify:
		return "clarify"
	case ValidationAmbiguous:
		return "ambiguous"
	default:
		return "pass"
	}
}

// ValidationResult carries the verdict and, for ValidationClarify, the
// scripted clarification to send back.
type ValidationResult struct {
	Status  ValidationStatus
	Rule    RuleKind
	Message string
}

var (
	offTopicPrefixes = []string{"what do you mean", "why ", "can you ", "how does ", "how do ", "who are you", "are you "}
	vagueTokens      = map[string]struct{}{"um": {}, "umm": {}, "hmm": {}, "hm": {}, "uh": {}, "er": {}, "?": {}, "...": {}, "idk?": {}}
	stuckPhrases     = map[string]struct{}{
		"i don't know": {}, "i dont know": {}, "idk": {}, "dunno": {}, "no idea": {}, "not sure": {},
		"i'm not sure": {}, "im not sure": {}, "nothing": {}, "i don't feel anything": {}, "i dont feel anything": {},
	}
	topicSeparators = []string{" and ", ",", ";", " also ", " plus ", " as well as "}
)

// Validate runs the step's rules against the classified input. Choice inputs
// (numbers, yes, no) pass unconditionally without any rule being evaluated.
// For free text the first failing blocking rule wins; tooLong never blocks and
// only marks the input ambiguous.
func Validate(step *StepDefinition, in Input, md models.Metadata) ValidationResult {
	if in.IsChoice() {
		return ValidationResult{Status: ValidationPass}
	}

	ambiguous := false
	for _, r := range step.Rules {
		failed := ruleFails(r, in)
		if !failed {
			continue
		}
		if r.Kind == RuleTooLong {
			ambiguous = true
			continue
		}
		msg := clarificationFor(r, md.RetryCount)
		slog.Debug("flow.Validate: rule failed", "step", step.ID, "rule", r.Kind, "retry", md.RetryCount)
		return ValidationResult{Status: ValidationClarify, Rule: r.Kind, Message: msg}
	}
	if ambiguous {
		return ValidationResult{Status: ValidationAmbiguous, Rule: RuleTooLong}
	}
	return ValidationResult{Status: ValidationPass}
}

func ruleFails(r Rule, in Input) bool {
	switch r.Kind {
	case RuleMinLength:
		return utf8.RuneCountInString(in.Text) < r.Limit
	case RuleMaxLength:
		return r.Limit > 0 && utf8.RuneCountInString(in.Text) > r.Limit
	case RuleContainsKeyword:
		for _, kw := range r.Keywords {
			if strings.Contains(in.Norm, kw) {
				return false
			}
		}
		return true
	case RuleMultipleTopics:
		limit := r.Limit
		if limit <= 0 {
			limit = 2
		}
		return countSeparators(in.Norm) >= limit
	case RuleOffTopic:
		if strings.HasSuffix(in.Text, "?") {
			return true
		}
		for _, p := range offTopicPrefixes {
			if strings.HasPrefix(in.Norm, p) {
				return true
			}
		}
		return false
	case RuleNeedsClarification:
		if r.ExpectChoice {
			return true
		}
		_, vague := vagueTokens[in.Norm]
		return vague || in.Norm == ""
	case RuleTooLong:
		return r.Limit > 0 && len(strings.Fields(in.Text)) > r.Limit
	case RuleStuckPattern:
		_, stuck := stuckPhrases[in.Norm]
		return stuck
	default:
		return false
	}
}

func countSeparators(norm string) int {
	n := 0
	for _, sep := range topicSeparators {
		n += strings.Count(norm, sep)
	}
	return n
}

func clarificationFor(r Rule, retries int) string {
	if r.Kind == RuleStuckPattern {
		switch {
		case retries >= 2:
			return "That's completely fine. If nothing comes up, just describe it as 'blank' or 'empty' and we'll work with that."
		case retries == 1:
			return "Take your time. Even a single word is enough, so just notice whatever is there, however small."
		}
	}
	if r.Message != "" {
		return r.Message
	}
	switch r.Kind {
	case RuleMinLength:
		return "Could you tell me a little more?"
	case RuleMaxLength:
		return "That's quite a lot. Could you sum it up in a sentence?"
	case RuleContainsKeyword:
		return fmt.Sprintf("Could you phrase that using one of: %s?", strings.Join(r.Keywords, ", "))
	case RuleMultipleTopics:
		return "It sounds like there may be more than one thing here. Which one feels most important to work on right now?"
	case RuleOffTopic:
		return "Let's stay with the process for now. There's no right or wrong answer, so just say the first thing that comes to mind."
	case RuleNeedsClarification:
		return "I didn't quite catch that. Could you say it another way?"
	case RuleStuckPattern:
		return "That's okay, there's no right answer. What's the first thing that comes to mind?"
	default:
		return "Could you say that another way?"
	}
}
