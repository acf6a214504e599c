package flow

import (
	"strings"
)

// InputKind tags a classified user input.
type InputKind int

// Input kinds. InputEmpty is only produced for auto-advance hops.
const (
	InputFreeText InputKind = iota
	InputNumeric
	InputAffirmative
	InputNegative
	InputEmpty
)

// String returns the label used in logs and history rows.
func (k InputKind) String() string {
	switch k {
	case InputNumeric:
		return "numeric"
	case InputAffirmative:
		return "affirmative"
	case InputNegative:
		return "negative"
	case InputEmpty:
		return "empty"
	default:
		return "free_text"
	}
}

// Input is the once-per-turn classification of raw user text.
type Input struct {
	Kind   InputKind
	Number int    // set for InputNumeric
	Text   string // trimmed raw text, original casing
	Norm   string // trimmed, case-folded, trailing punctuation removed
}

// IsChoice reports whether the input is a button-equivalent answer. Choice
// inputs bypass validation rules and the linguistic assist entirely.
func (in Input) IsChoice() bool {
	return in.Kind == InputNumeric || in.Kind == InputAffirmative || in.Kind == InputNegative
}

// emptyInput is fed to the router while chaining through auto steps.
func emptyInput() Input {
	return Input{Kind: InputEmpty}
}

var affirmativeTokens = map[string]struct{}{
	"yes": {}, "y": {}, "yeah": {}, "yea": {}, "yep": {}, "yup": {}, "sure": {},
	"ok": {}, "okay": {}, "correct": {}, "right": {}, "that's right": {}, "thats right": {},
	"absolutely": {}, "definitely": {}, "of course": {}, "it is": {}, "i do": {},
	"yes it is": {}, "yes i do": {}, "still": {}, "it does": {}, "i can": {}, "there is": {},
}

var negativeTokens = map[string]struct{}{
	"no": {}, "n": {}, "nope": {}, "nah": {}, "not really": {}, "not at all": {},
	"it's not": {}, "its not": {}, "it isn't": {}, "it is not": {}, "i don't": {}, "i dont": {},
	"no it's not": {}, "no it isn't": {}, "no longer": {}, "it doesn't": {}, "it does not": {},
	"i can't": {}, "i cant": {}, "there isn't": {}, "there is not": {}, "not anymore": {},
}

// Classify maps raw user text onto a tagged Input. It is the only place in
// the engine that interprets yes/no/number answers.
func Classify(raw string) Input {
	text := strings.TrimSpace(raw)
	norm := normalizeAnswer(text)
	in := Input{Kind: InputFreeText, Text: text, Norm: norm}

	if len(norm) == 1 && norm[0] >= '1' && norm[0] <= '4' {
		in.Kind = InputNumeric
		in.Number = int(norm[0] - '0')
		return in
	}
	if _, ok := affirmativeTokens[norm]; ok {
		in.Kind = InputAffirmative
		return in
	}
	if _, ok := negativeTokens[norm]; ok {
		in.Kind = InputNegative
		return in
	}
	return in
}

// normalizeAnswer case-folds s, collapses inner whitespace, unifies curly
// apostrophes and strips trailing punctuation.
func normalizeAnswer(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "’", "'")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimRight(s, ".!,;: ")
}
