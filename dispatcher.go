package tsdispatch

import (
	"context"
	"log/slog"
	"math"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/tsdispatch/stats"
	"golang.org/x/time/rate"
)

type registration struct {
	consumer Consumer
	mask     Mask
}

// dispatcher fans drained events out to registered consumers. The
// registration list is copy-on-write: the drain loop iterates a snapshot
// while Register and Unregister swap in a new slice.
type dispatcher struct {
	mu        sync.Mutex
	consumers atomic.Pointer[[]registration]

	consumed *stats.Set
	failed   *stats.Set
	latency  *stats.Latency

	ctx        context.Context
	logger     *slog.Logger
	limiter    *rate.Limiter
	suppressed atomic.Int64
}

func newDispatcher(ctx context.Context, logger *slog.Logger, logRate float64) *dispatcher {
	limit := rate.Inf
	burst := 1
	if logRate > 0 {
		limit = rate.Limit(logRate)
		burst = int(math.Max(1, math.Ceil(logRate)))
	}
	n := NumKinds()
	d := &dispatcher{
		consumed: stats.NewSet(n),
		failed:   stats.NewSet(n),
		latency:  stats.NewLatency(n),
		ctx:      ctx,
		logger:   logger,
		limiter:  rate.NewLimiter(limit, burst),
	}
	d.consumers.Store(&[]registration{})
	return d
}

// register appends c. Registering the same consumer twice is a no-op.
func (d *dispatcher) register(c Consumer) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur := *d.consumers.Load()
	for _, r := range cur {
		if r.consumer == c {
			return false
		}
	}
	next := make([]registration, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, registration{consumer: c, mask: c.Mask()})
	d.consumers.Store(&next)
	return true
}

func (d *dispatcher) unregister(c Consumer) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur := *d.consumers.Load()
	for i, r := range cur {
		if r.consumer != c {
			continue
		}
		next := make([]registration, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		next = append(next, cur[i+1:]...)
		d.consumers.Store(&next)
		return true
	}
	return false
}

func (d *dispatcher) list() []Consumer {
	cur := *d.consumers.Load()
	out := make([]Consumer, len(cur))
	for i, r := range cur {
		out[i] = r.consumer
	}
	return out
}

// dispatch is the ring handler. It runs on the drain goroutine only.
func (d *dispatcher) dispatch(seq int64, ev *Event) {
	regs := *d.consumers.Load()
	if len(regs) == 0 {
		return
	}
	if !ev.set {
		// claimed and committed without a payload
		return
	}
	ev.seq = seq
	k := ev.kind
	ord := k.Ordinal()
	for _, r := range regs {
		if !r.mask.Enabled(k) {
			continue
		}
		d.consumed.Inc(ord)
		if err := d.invoke(r.consumer, seq, ev); err != nil {
			d.failed.Inc(ord)
			d.logFailure(err)
		}
	}
	if !ev.committed.IsZero() {
		d.latency.Record(ord, time.Since(ev.committed))
	}
}

// invoke calls one consumer, turning a panic into a *ConsumerError.
func (d *dispatcher) invoke(c Consumer, seq int64, ev *Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &ConsumerError{
				Consumer: c.Name(),
				Kind:     ev.kind,
				Seq:      seq,
				Panic:    p,
				Stack:    debug.Stack(),
			}
		}
	}()
	if herr := c.Handle(d.ctx, ev); herr != nil {
		return &ConsumerError{Consumer: c.Name(), Kind: ev.kind, Seq: seq, Err: herr}
	}
	return nil
}

func (d *dispatcher) logFailure(err error) {
	if !d.limiter.Allow() {
		d.suppressed.Add(1)
		return
	}
	ce := err.(*ConsumerError)
	attrs := []any{"consumer", ce.Consumer, "kind", ce.Kind.String(), "seq", ce.Seq}
	if ce.Panic != nil {
		attrs = append(attrs, "panic", ce.Panic, "stack", string(ce.Stack))
	} else {
		attrs = append(attrs, "error", ce.Err)
	}
	if n := d.suppressed.Swap(0); n > 0 {
		attrs = append(attrs, "suppressed", n)
	}
	d.logger.Error("consumer failed", attrs...)
}
