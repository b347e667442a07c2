package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecorderEmpty(t *testing.T) {
	s := NewRecorder().Summary()

	assert.Zero(t, s.Total)
	assert.Zero(t, s.Failed)
	assert.Zero(t, s.P50)
}

func TestRecorderSummary(t *testing.T) {
	r := NewRecorder()
	for i := 1; i <= 100; i++ {
		r.Record(time.Duration(i)*time.Millisecond, nil)
	}

	s := r.Summary()
	assert.Equal(t, int64(100), s.Total)
	assert.Zero(t, s.Failed)

	// HdrHistogram keeps 3 significant digits, allow 1% slack.
	assert.InDelta(t, float64(50*time.Millisecond), float64(s.P50), float64(time.Millisecond))
	assert.InDelta(t, float64(95*time.Millisecond), float64(s.P95), float64(time.Millisecond))
	assert.InDelta(t, float64(99*time.Millisecond), float64(s.P99), float64(2*time.Millisecond))
	assert.LessOrEqual(t, s.Min, s.P50)
	assert.GreaterOrEqual(t, s.Max, s.P99)
}

func TestRecorderFailedFetchesExcludedFromLatency(t *testing.T) {
	r := NewRecorder()
	r.Record(10*time.Millisecond, nil)
	r.Record(5*time.Second, errors.New("connect refused"))

	s := r.Summary()
	assert.Equal(t, int64(2), s.Total)
	assert.Equal(t, int64(1), s.Failed)
	assert.Less(t, s.Max, time.Second, "failed fetch latency is not recorded")
}

func TestRecorderClampsOutliers(t *testing.T) {
	r := NewRecorder()
	r.Record(0, nil)
	r.Record(time.Hour, nil)

	s := r.Summary()
	assert.Equal(t, int64(2), s.Total)
	assert.GreaterOrEqual(t, s.Min, time.Microsecond)
	assert.LessOrEqual(t, s.Max, 61*time.Second)
}
