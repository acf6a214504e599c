package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/shiftengine/internal/models"
)

func TestPrometheusRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.ObserveTurn(models.OutcomeAdvanced, 20*time.Millisecond)
	r.ObserveTurn(models.OutcomeAdvanced, 30*time.Millisecond)
	r.ObserveTurn(models.OutcomeClarification, time.Millisecond)
	r.IncAssist("used")
	r.IncAssistSkip("slot_unused")
	r.IncAssistSkip("slot_unused")
	r.IncPersistenceFailure("save")
	r.ObserveChain(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.turnsTotal.WithLabelValues("advanced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.turnsTotal.WithLabelValues("clarification")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.assistTotal.WithLabelValues("used")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.assistSkipsTotal.WithLabelValues("slot_unused")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.persistenceFailures.WithLabelValues("save")))

	count, err := testutil.GatherAndCount(reg, "shiftengine_chain_hops")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPrometheusRecorderExposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewPrometheusRecorder(reg)
	r.IncAssist("timeout")

	expected := `
# HELP shiftengine_assist_calls_total Total number of linguistic assist calls by result
# TYPE shiftengine_assist_calls_total counter
shiftengine_assist_calls_total{result="timeout"} 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "shiftengine_assist_calls_total")
	assert.NoError(t, err)
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusRecorder(prometheus.NewRegistry())
		NewPrometheusRecorder(prometheus.NewRegistry())
	})
}
