// Package ring provides a fixed-capacity, pre-allocated ring buffer with
// multi-producer claims and a single ordered drain loop.
//
// Producers claim a sequence, fill the slot in place and commit it. The
// drain loop hands slots to a handler strictly in sequence order, only once
// every lower sequence has been committed, and then recycles the slot.
//
//	r, err := ring.New[Event](1024, wait.NewBlock())
//	if err != nil {
//	    return err
//	}
//	r.Start(func(seq int64, ev *Event) { dispatch(ev) })
//	defer r.Shutdown(ctx)
//
//	seq, ev, err := r.Claim()
//	if err != nil {
//	    return err // ring.ErrClosed after Shutdown
//	}
//	ev.Value = 42
//	r.Commit(seq)
//
// Slot ownership is enforced by the sequence protocol rather than a mutex:
// a slot belongs to its producer between Claim and Commit, to the drain
// loop between Commit and the end of the handler call, and is free after.
package ring

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rbaliyan/tsdispatch/wait"
)

// Ring errors
var (
	ErrInvalidSize    = errors.New("ring size must be a positive power of two")
	ErrClosed         = errors.New("ring is shut down")
	ErrAlreadyRunning = errors.New("ring drain loop already started")
	ErrNilHandler     = errors.New("ring handler is nil")
)

const unpublished = -1

// Handler receives each committed slot in sequence order.
type Handler[T any] func(seq int64, slot *T)

// Option configures a Ring
type Option[T any] func(*Ring[T])

// WithRecycle sets a function called on each slot after the handler
// returns and before the slot is released to producers.
func WithRecycle[T any](fn func(*T)) Option[T] {
	return func(r *Ring[T]) {
		r.recycle = fn
	}
}

// Ring is a multi-producer, single-consumer ring buffer.
type Ring[T any] struct {
	slots     []T
	published []atomic.Int64 // sequence committed at each index
	size      int64
	mask      int64

	next       atomic.Int64 // next sequence to hand out
	dispatched atomic.Int64 // highest sequence fully dispatched
	inflight   atomic.Int64 // claims not yet committed
	waiting    atomic.Int32 // producers parked on a full buffer

	strategy wait.Strategy
	recycle  func(*T)

	started atomic.Bool
	closed  atomic.Bool
	done    chan struct{}
}

// New creates a ring with size pre-allocated slots.
func New[T any](size int, strategy wait.Strategy, opts ...Option[T]) (*Ring[T], error) {
	if size <= 0 || size&(size-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if strategy == nil {
		strategy = wait.NewBlock()
	}

	r := &Ring[T]{
		slots:     make([]T, size),
		published: make([]atomic.Int64, size),
		size:      int64(size),
		mask:      int64(size - 1),
		strategy:  strategy,
		done:      make(chan struct{}),
	}
	for i := range r.published {
		r.published[i].Store(unpublished)
	}
	r.dispatched.Store(-1)

	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Claim reserves the next sequence and returns its slot. If the buffer is
// full the caller waits, per the wait strategy, until the drain loop frees
// the slot. Every successful Claim must be followed by Commit.
func (r *Ring[T]) Claim() (int64, *T, error) {
	// Count the claim before checking closed so Shutdown cannot miss it.
	r.inflight.Add(1)
	if r.closed.Load() {
		r.inflight.Add(-1)
		r.strategy.Signal()
		return unpublished, nil, ErrClosed
	}

	seq := r.next.Add(1) - 1
	wrap := seq - r.size
	if r.dispatched.Load() < wrap {
		r.waiting.Add(1)
		hasRoom := func() bool { return r.dispatched.Load() >= wrap }
		for !hasRoom() {
			r.strategy.Wait(hasRoom)
		}
		r.waiting.Add(-1)
	}
	return seq, &r.slots[seq&r.mask], nil
}

// Commit makes a claimed slot visible to the drain loop.
func (r *Ring[T]) Commit(seq int64) {
	r.published[seq&r.mask].Store(seq)
	r.inflight.Add(-1)
	r.strategy.Signal()
}

// Publish claims a slot, fills it with fill and commits it. The slot is
// committed even if fill panics, so the drain loop never stalls behind it.
func (r *Ring[T]) Publish(fill func(*T)) (int64, error) {
	seq, slot, err := r.Claim()
	if err != nil {
		return seq, err
	}
	defer r.Commit(seq)
	fill(slot)
	return seq, nil
}

// Start runs the drain loop on its own goroutine.
func (r *Ring[T]) Start(handler Handler[T]) error {
	if handler == nil {
		return ErrNilHandler
	}
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	go r.drain(handler)
	return nil
}

// Shutdown stops accepting claims, waits for every committed and in-flight
// claim to be dispatched and releases parked goroutines. It is idempotent;
// concurrent callers all wait for the same drain to finish. If the drain
// loop was never started, Shutdown starts one that discards slots after
// recycling them so that blocked producers are released.
func (r *Ring[T]) Shutdown(ctx context.Context) error {
	if r.closed.CompareAndSwap(false, true) {
		if r.started.CompareAndSwap(false, true) {
			go r.drain(func(int64, *T) {})
		}
		r.strategy.Signal()
	}

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the drain loop has exited after Shutdown.
func (r *Ring[T]) Done() <-chan struct{} {
	return r.done
}

// Closed reports whether Shutdown has been called.
func (r *Ring[T]) Closed() bool {
	return r.closed.Load()
}

// Capacity returns the number of slots.
func (r *Ring[T]) Capacity() int64 {
	return r.size
}

// Cursor returns the highest sequence handed to a producer, -1 if none.
func (r *Ring[T]) Cursor() int64 {
	return r.next.Load() - 1
}

// Dispatched returns the highest sequence fully dispatched, -1 if none.
func (r *Ring[T]) Dispatched() int64 {
	return r.dispatched.Load()
}

// Remaining returns the number of slots currently free for claims.
func (r *Ring[T]) Remaining() int64 {
	used := r.next.Load() - (r.dispatched.Load() + 1)
	if free := r.size - used; free > 0 {
		return free
	}
	return 0
}

func (r *Ring[T]) drain(handler Handler[T]) {
	defer close(r.done)

	next := r.dispatched.Load() + 1
	for {
		idx := next & r.mask
		if r.published[idx].Load() != next {
			if r.finished(next) {
				return
			}
			ready := func() bool {
				return r.published[idx].Load() == next || r.finished(next)
			}
			r.strategy.Wait(ready)
			continue
		}

		slot := &r.slots[idx]
		handler(next, slot)
		if r.recycle != nil {
			r.recycle(slot)
		}

		r.dispatched.Store(next)
		if r.waiting.Load() > 0 {
			r.strategy.Signal()
		}
		next++
	}
}

// finished reports whether the ring is shut down and every sequence below
// next has been dispatched. No claim is in flight, so the cursor is final.
func (r *Ring[T]) finished(next int64) bool {
	return r.closed.Load() && r.inflight.Load() == 0 && r.next.Load() == next
}
