package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimer(t *testing.T) {
	timer := NewTimer()
	require.NotNil(t, timer)
	assert.False(t, timer.start.IsZero())
	assert.Less(t, time.Since(timer.start), time.Second)
}

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	first := timer.Duration()
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	assert.Greater(t, timer.Duration(), first)
}

func TestTimerObserveDurationVec(t *testing.T) {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "test_duration_vec_seconds",
		Help: "Test duration histogram vec",
	}, []string{"operation"})

	NewTimer().ObserveDurationVec(vec, "create_chain")
	NewTimer().ObserveDurationVec(vec, "create_chain")

	assert.Equal(t, 1, testutil.CollectAndCount(vec))
}

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(OperationsTotal.WithLabelValues("test_op", ResultError))

	ObserveOperation("test_op", NewTimer(), assert.AnError)
	ObserveOperation("test_op", NewTimer(), nil)

	assert.Equal(t, before+1, testutil.ToFloat64(OperationsTotal.WithLabelValues("test_op", ResultError)))
	assert.Equal(t, float64(1), testutil.ToFloat64(OperationsTotal.WithLabelValues("test_op", ResultSuccess)))
}
