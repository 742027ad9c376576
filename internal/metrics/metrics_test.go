package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestModelOutcome(t *testing.T) {
	before := testutil.ToFloat64(modelOutcomes.WithLabelValues("m-test", "success"))
	ModelOutcome("m-test", "success")
	ModelOutcome("m-test", "success")
	assert.Equal(t, before+2, testutil.ToFloat64(modelOutcomes.WithLabelValues("m-test", "success")))
}

func TestSummaryCache(t *testing.T) {
	hits := testutil.ToFloat64(summaryCache.WithLabelValues("hit"))
	misses := testutil.ToFloat64(summaryCache.WithLabelValues("miss"))

	SummaryCacheHit()
	SummaryCacheMiss()
	SummaryCacheMiss()

	assert.Equal(t, hits+1, testutil.ToFloat64(summaryCache.WithLabelValues("hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(summaryCache.WithLabelValues("miss")))
}

func TestFallbackCounters(t *testing.T) {
	switches := testutil.ToFloat64(fallbackSwitches)
	resets := testutil.ToFloat64(emergencyResets)

	FallbackSwitch()
	EmergencyReset()

	assert.Equal(t, switches+1, testutil.ToFloat64(fallbackSwitches))
	assert.Equal(t, resets+1, testutil.ToFloat64(emergencyResets))
}
