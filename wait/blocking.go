package wait

import (
	"sync"
	"sync/atomic"
	"time"
)

// Block parks waiters on a condition variable until signaled.
// Every Signal takes the lock, which keeps CPU use low at the cost of
// latency on the publishing side.
type Block struct {
	mu   sync.Mutex
	cond *sync.Cond
}

// NewBlock creates a Block strategy.
func NewBlock() *Block {
	b := &Block{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *Block) Wait(cond func() bool) bool {
	if cond() {
		return true
	}
	b.mu.Lock()
	for !cond() {
		b.cond.Wait()
	}
	b.mu.Unlock()
	return true
}

func (b *Block) Signal() {
	b.mu.Lock()
	b.cond.Broadcast()
	b.mu.Unlock()
}

func (b *Block) Name() string { return NameBlock }

// LiteBlock is Block that skips the lock on Signal when nobody is parked,
// which is the common case under low contention.
type LiteBlock struct {
	mu           sync.Mutex
	cond         *sync.Cond
	signalNeeded atomic.Bool
}

// NewLiteBlock creates a LiteBlock strategy.
func NewLiteBlock() *LiteBlock {
	b := &LiteBlock{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *LiteBlock) Wait(cond func() bool) bool {
	if cond() {
		return true
	}
	b.mu.Lock()
	for {
		// Publish the intent to park before the final check so a concurrent
		// Signal either sees the flag or we see its state change.
		b.signalNeeded.Store(true)
		if cond() {
			break
		}
		b.cond.Wait()
	}
	b.mu.Unlock()
	return true
}

func (b *LiteBlock) Signal() {
	if b.signalNeeded.Swap(false) {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	}
}

func (b *LiteBlock) Name() string { return NameLiteBlock }

// Timeout parks waiters like Block but bounds every wait. When the bound
// expires Wait returns the current cond value and the caller re-checks,
// which gives the drain loop a periodic liveness check.
type Timeout struct {
	timeout time.Duration
	waiters atomic.Int32
	mu      sync.Mutex
	wake    chan struct{}
}

// NewTimeout creates a Timeout strategy. A non-positive timeout is raised
// to one millisecond.
func NewTimeout(timeout time.Duration) *Timeout {
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	return &Timeout{
		timeout: timeout,
		wake:    make(chan struct{}),
	}
}

func (t *Timeout) Wait(cond func() bool) bool {
	if cond() {
		return true
	}
	t.waiters.Add(1)
	defer t.waiters.Add(-1)

	t.mu.Lock()
	wake := t.wake
	t.mu.Unlock()

	if cond() {
		return true
	}

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()
	select {
	case <-wake:
	case <-timer.C:
	}
	return cond()
}

func (t *Timeout) Signal() {
	if t.waiters.Load() == 0 {
		return
	}
	t.mu.Lock()
	close(t.wake)
	t.wake = make(chan struct{})
	t.mu.Unlock()
}

func (t *Timeout) Name() string { return NameTimeout }

// Duration returns the wait bound.
func (t *Timeout) Duration() time.Duration { return t.timeout }

// Compile-time interface checks
var (
	_ Strategy = (*Block)(nil)
	_ Strategy = (*LiteBlock)(nil)
	_ Strategy = (*Timeout)(nil)
)
