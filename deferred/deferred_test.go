package deferred

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	d := New[int]()
	if d.IsDone() {
		t.Fatal("new deferred is done")
	}
	if _, err := d.Result(); !errors.Is(err, ErrPending) {
		t.Fatalf("Result() error = %v on pending deferred, want ErrPending", err)
	}

	go func() {
		time.Sleep(5 * time.Millisecond)
		d.Resolve(42)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := d.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if v != 42 {
		t.Errorf("value = %d, want 42", v)
	}
	if d.Resolve(7) {
		t.Error("second Resolve returned true")
	}
	if d.Reject(errors.New("late")) {
		t.Error("Reject after Resolve returned true")
	}
	if v, err := d.Result(); v != 42 || err != nil {
		t.Errorf("Result() = %d, %v; want 42, nil", v, err)
	}
}

func TestRejectAndCancel(t *testing.T) {
	boom := errors.New("boom")
	d := Failed[string](boom)
	if _, err := d.Wait(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Wait error = %v, want boom", err)
	}

	c := New[string]()
	if !c.Cancel() {
		t.Fatal("Cancel returned false on pending deferred")
	}
	if _, err := c.Wait(context.Background()); !errors.Is(err, ErrCancelled) {
		t.Errorf("Wait error = %v, want ErrCancelled", err)
	}

	n := New[string]()
	n.Reject(nil)
	if _, err := n.Wait(context.Background()); !errors.Is(err, ErrCancelled) {
		t.Errorf("Reject(nil) error = %v, want ErrCancelled", err)
	}
}

func TestWaitContext(t *testing.T) {
	d := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, err := d.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait error = %v, want DeadlineExceeded", err)
	}
	if d.IsDone() {
		t.Error("context expiry completed the deferred")
	}
}

func TestConcurrentCompletion(t *testing.T) {
	d := New[int]()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if d.Resolve(i) {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	if got := wins.Load(); got != 1 {
		t.Errorf("winners = %d, want 1", got)
	}
	select {
	case <-d.Done():
	default:
		t.Error("Done() not closed")
	}
}

func TestResolved(t *testing.T) {
	d := Resolved(struct{}{})
	if !d.IsDone() {
		t.Fatal("Resolved deferred is pending")
	}
	if _, err := d.Wait(context.Background()); err != nil {
		t.Errorf("Wait error = %v", err)
	}
}
