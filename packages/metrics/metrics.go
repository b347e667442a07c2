// Package metrics aggregates fetch latencies for the session.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Recorder collects per-fetch latencies into a histogram.
type Recorder struct {
	mu sync.Mutex

	totalFetches  atomic.Int64
	failedFetches atomic.Int64

	// Latency histogram (in microseconds for precision)
	histogram *hdrhistogram.Histogram
}

// Summary is a snapshot of the latency distribution.
type Summary struct {
	Total  int64
	Failed int64
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
}

// NewRecorder creates an empty latency recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		// Histogram: 1us to 60s range, 3 significant digits
		histogram: hdrhistogram.New(1, 60_000_000, 3),
	}
}

// Record adds one fetch outcome. Failed fetches count but do not skew
// the latency distribution.
func (r *Recorder) Record(duration time.Duration, err error) {
	r.totalFetches.Add(1)
	if err != nil {
		r.failedFetches.Add(1)
		return
	}

	latencyUs := duration.Microseconds()
	if latencyUs < 1 {
		latencyUs = 1
	}
	if latencyUs > 60_000_000 {
		latencyUs = 60_000_000
	}

	r.mu.Lock()
	_ = r.histogram.RecordValue(latencyUs)
	r.mu.Unlock()
}

// Summary snapshots the distribution so far.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }

	s := Summary{
		Total:  r.totalFetches.Load(),
		Failed: r.failedFetches.Load(),
	}
	if r.histogram.TotalCount() == 0 {
		return s
	}
	s.Min = us(r.histogram.Min())
	s.Max = us(r.histogram.Max())
	s.Mean = time.Duration(r.histogram.Mean()) * time.Microsecond
	s.P50 = us(r.histogram.ValueAtQuantile(50))
	s.P95 = us(r.histogram.ValueAtQuantile(95))
	s.P99 = us(r.histogram.ValueAtQuantile(99))
	return s
}
