// Package deferred provides a single-assignment completion handle.
//
// A Deferred travels with a query event: the producer returns it to its
// caller while the consumer that eventually handles the event resolves or
// rejects it. Cancellation is explicit, it is never inferred from the
// handle being dropped.
package deferred

import (
	"context"
	"errors"
	"sync"
)

// Deferred errors
var (
	// ErrCancelled is the error of a Deferred completed through Cancel.
	ErrCancelled = errors.New("deferred cancelled")
	// ErrPending is returned by Result while the Deferred is incomplete.
	ErrPending = errors.New("deferred pending")
)

// Deferred holds a value or an error that becomes available exactly once.
type Deferred[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// New creates a pending Deferred.
func New[T any]() *Deferred[T] {
	return &Deferred[T]{done: make(chan struct{})}
}

// Resolved creates a Deferred already completed with v.
func Resolved[T any](v T) *Deferred[T] {
	d := New[T]()
	d.Resolve(v)
	return d
}

// Failed creates a Deferred already completed with err.
func Failed[T any](err error) *Deferred[T] {
	d := New[T]()
	d.Reject(err)
	return d
}

// Resolve completes the Deferred with v. Returns false if it was already
// completed.
func (d *Deferred[T]) Resolve(v T) bool {
	return d.complete(v, nil)
}

// Reject completes the Deferred with err. A nil err is replaced by
// ErrCancelled so that a rejected handle never looks successful.
func (d *Deferred[T]) Reject(err error) bool {
	if err == nil {
		err = ErrCancelled
	}
	var zero T
	return d.complete(zero, err)
}

// Cancel completes the Deferred with ErrCancelled.
func (d *Deferred[T]) Cancel() bool {
	return d.Reject(ErrCancelled)
}

func (d *Deferred[T]) complete(v T, err error) bool {
	completed := false
	d.once.Do(func() {
		d.value = v
		d.err = err
		completed = true
		close(d.done)
	})
	return completed
}

// Done is closed when the Deferred completes.
func (d *Deferred[T]) Done() <-chan struct{} {
	return d.done
}

// IsDone reports whether the Deferred has completed.
func (d *Deferred[T]) IsDone() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the Deferred completes or ctx is done. Context expiry
// does not cancel the Deferred; call Cancel for that.
func (d *Deferred[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-d.done:
		return d.value, d.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the outcome without blocking, or ErrPending.
func (d *Deferred[T]) Result() (T, error) {
	if !d.IsDone() {
		var zero T
		return zero, ErrPending
	}
	return d.value, d.err
}
