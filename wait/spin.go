package wait

import (
	"runtime"
	"time"
)

// Defaults used when optional parameters are omitted.
const (
	DefaultParkInterval = time.Microsecond
	DefaultSleepRetries = 200

	yieldSpinTries = 100
	sleepInterval  = 100 * time.Nanosecond
)

// BusySpin re-checks in a tight loop. Lowest latency; it keeps a core busy
// for as long as the waiter is waiting.
type BusySpin struct{}

// NewBusySpin creates a BusySpin strategy.
func NewBusySpin() BusySpin { return BusySpin{} }

func (BusySpin) Wait(cond func() bool) bool {
	for !cond() {
	}
	return true
}

func (BusySpin) Signal()      {}
func (BusySpin) Name() string { return NameBusySpin }

// Yielding spins a fixed number of times and then yields the processor
// between checks.
type Yielding struct{}

// NewYielding creates a Yielding strategy.
func NewYielding() Yielding { return Yielding{} }

func (Yielding) Wait(cond func() bool) bool {
	for n := yieldSpinTries; !cond(); {
		if n > 0 {
			n--
			continue
		}
		runtime.Gosched()
	}
	return true
}

func (Yielding) Signal()      {}
func (Yielding) Name() string { return NameYielding }

// Sleep spins, then yields, then sleeps for short intervals. The retry
// budget is split between the spin and yield phases.
type Sleep struct {
	retries int
}

// NewSleep creates a Sleep strategy with the given retry budget.
func NewSleep(retries int) Sleep {
	if retries <= 0 {
		retries = DefaultSleepRetries
	}
	return Sleep{retries: retries}
}

func (s Sleep) Wait(cond func() bool) bool {
	counter := s.retries
	for !cond() {
		switch {
		case counter > s.retries/2:
			counter--
		case counter > 0:
			counter--
			runtime.Gosched()
		default:
			time.Sleep(sleepInterval)
		}
	}
	return true
}

func (Sleep) Signal()      {}
func (Sleep) Name() string { return NameSleep }

// Retries returns the retry budget.
func (s Sleep) Retries() int { return s.retries }

// Park sleeps for a fixed interval between checks.
type Park struct {
	interval time.Duration
}

// NewPark creates a Park strategy.
func NewPark(interval time.Duration) Park {
	if interval <= 0 {
		interval = DefaultParkInterval
	}
	return Park{interval: interval}
}

func (p Park) Wait(cond func() bool) bool {
	for !cond() {
		time.Sleep(p.interval)
	}
	return true
}

func (Park) Signal()      {}
func (Park) Name() string { return NamePark }

// Interval returns the park interval.
func (p Park) Interval() time.Duration { return p.interval }

// PhasedBackoff spins for spinTimeout, yields until spinTimeout+yieldTimeout
// has elapsed and then hands the wait to its fallback strategy.
type PhasedBackoff struct {
	spinTimeout  time.Duration
	yieldTimeout time.Duration
	fallback     Strategy
}

// NewPhasedBackoff creates a PhasedBackoff strategy. A nil fallback is
// replaced with Block.
func NewPhasedBackoff(spinTimeout, yieldTimeout time.Duration, fallback Strategy) *PhasedBackoff {
	if fallback == nil {
		fallback = NewBlock()
	}
	return &PhasedBackoff{
		spinTimeout:  spinTimeout,
		yieldTimeout: yieldTimeout,
		fallback:     fallback,
	}
}

func (p *PhasedBackoff) Wait(cond func() bool) bool {
	start := time.Now()
	limit := p.spinTimeout + p.yieldTimeout
	for i := 0; ; i++ {
		if cond() {
			return true
		}
		// time.Since is comparatively expensive, sample it every few spins.
		if i%64 != 0 {
			continue
		}
		elapsed := time.Since(start)
		if elapsed > limit {
			return p.fallback.Wait(cond)
		}
		if elapsed > p.spinTimeout {
			runtime.Gosched()
		}
	}
}

// Signal forwards to the fallback, which is the only phase that parks.
func (p *PhasedBackoff) Signal() { p.fallback.Signal() }

func (p *PhasedBackoff) Name() string { return NamePhasedBackoff }

// Fallback returns the strategy used once both timeouts have elapsed.
func (p *PhasedBackoff) Fallback() Strategy { return p.fallback }

// Compile-time interface checks
var (
	_ Strategy = BusySpin{}
	_ Strategy = Yielding{}
	_ Strategy = Sleep{}
	_ Strategy = Park{}
	_ Strategy = (*PhasedBackoff)(nil)
)
