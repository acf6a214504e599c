package flow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BTreeMap/shiftengine/internal/models"
)

func TestAssistGateUsesRephrase(t *testing.T) {
	rec := &fakeRecorder{}
	g := &assistGate{assist: &fakeAssist{reply: "  \"I feel anxious at work\"\n"}, timeout: time.Second, metrics: rec}

	out, ok := g.normalize(context.Background(), "so basically whenever I am at work I get anxious", models.PhrasingProblem)
	assert.True(t, ok)
	assert.Equal(t, "I feel anxious at work", out)
	assert.Equal(t, []string{AssistUsed}, rec.assist)
}

func TestAssistGateFallsBack(t *testing.T) {
	original := "whenever I have to talk to my manager I freeze up completely"
	tests := []struct {
		name   string
		assist *fakeAssist
		result string
	}{
		{"error", &fakeAssist{err: errors.New("boom")}, AssistError},
		{"timeout", &fakeAssist{block: true}, AssistTimeout},
		{"empty", &fakeAssist{reply: "   "}, AssistRejected},
		{"multiline", &fakeAssist{reply: "I freeze.\nAlso this."}, AssistRejected},
		{"runaway", &fakeAssist{reply: original + strings.Repeat(" and more", 10)}, AssistRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			g := &assistGate{assist: tt.assist, timeout: 20 * time.Millisecond, metrics: rec}
			out, ok := g.normalize(context.Background(), original, models.PhrasingProblem)
			assert.False(t, ok)
			assert.Equal(t, original, out)
			assert.Equal(t, []string{tt.result}, rec.assist)
			if !tt.assist.block {
				assert.Equal(t, 1, tt.assist.Calls())
			}
		})
	}
}

func TestAssistGateEnabled(t *testing.T) {
	var g *assistGate
	assert.False(t, g.enabled())
	assert.False(t, (&assistGate{}).enabled())
	assert.True(t, (&assistGate{assist: &fakeAssist{}}).enabled())
}
