package stats

import (
	"sync"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minLatency = int64(time.Microsecond)
	maxLatency = int64(time.Minute)
	sigFigs    = 3
)

// Quantiles summarizes one latency histogram.
type Quantiles struct {
	Count int64
	P50   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// Latency keeps one HDR histogram per index. Values are recorded in
// nanoseconds, clamped to [1µs, 1m].
type Latency struct {
	mu    sync.Mutex
	hists []*hdrhistogram.Histogram
}

// NewLatency creates n histograms.
func NewLatency(n int) *Latency {
	l := &Latency{hists: make([]*hdrhistogram.Histogram, n)}
	for i := range l.hists {
		l.hists[i] = hdrhistogram.New(minLatency, maxLatency, sigFigs)
	}
	return l
}

// Record adds one observation to histogram i.
func (l *Latency) Record(i int, d time.Duration) {
	if i < 0 || i >= len(l.hists) {
		return
	}
	v := int64(d)
	if v < minLatency {
		v = minLatency
	} else if v > maxLatency {
		v = maxLatency
	}
	l.mu.Lock()
	_ = l.hists[i].RecordValue(v)
	l.mu.Unlock()
}

// Quantiles returns the summary of histogram i.
func (l *Latency) Quantiles(i int) Quantiles {
	if i < 0 || i >= len(l.hists) {
		return Quantiles{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	h := l.hists[i]
	if h.TotalCount() == 0 {
		return Quantiles{}
	}
	return Quantiles{
		Count: h.TotalCount(),
		P50:   time.Duration(h.ValueAtQuantile(50)),
		P99:   time.Duration(h.ValueAtQuantile(99)),
		Max:   time.Duration(h.Max()),
	}
}
