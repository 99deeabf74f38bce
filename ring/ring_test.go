package ring

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbaliyan/tsdispatch/wait"
)

type slot struct {
	producer int
	value    int
}

func TestNewInvalidSize(t *testing.T) {
	for _, size := range []int{-1, 0, 3, 6, 1000} {
		if _, err := New[slot](size, wait.NewBlock()); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("New(%d) error = %v, want ErrInvalidSize", size, err)
		}
	}
	for _, size := range []int{1, 2, 4, 1024} {
		r, err := New[slot](size, nil)
		if err != nil {
			t.Errorf("New(%d) failed: %v", size, err)
			continue
		}
		if r.Capacity() != int64(size) {
			t.Errorf("Capacity() = %d, want %d", r.Capacity(), size)
		}
	}
}

func TestOrderedDispatch(t *testing.T) {
	strategies := []wait.Strategy{
		wait.NewBlock(),
		wait.NewLiteBlock(),
		wait.NewTimeout(time.Millisecond),
		wait.NewYielding(),
		wait.NewSleep(50),
		wait.NewPhasedBackoff(10*time.Microsecond, 10*time.Microsecond, wait.NewBlock()),
	}

	for _, s := range strategies {
		t.Run(s.Name(), func(t *testing.T) {
			const producers = 8
			const perProducer = 2000

			r, err := New[slot](64, s)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			var (
				lastSeq  int64 = -1
				count    int
				outOfSeq int
				lastByP  = make([]int, producers)
			)
			for i := range lastByP {
				lastByP[i] = -1
			}
			var perProducerOrder atomic.Int32

			err = r.Start(func(seq int64, s *slot) {
				if seq != lastSeq+1 {
					outOfSeq++
				}
				lastSeq = seq
				count++
				if s.value <= lastByP[s.producer] {
					perProducerOrder.Add(1)
				}
				lastByP[s.producer] = s.value
			})
			if err != nil {
				t.Fatalf("Start failed: %v", err)
			}

			var wg sync.WaitGroup
			for p := 0; p < producers; p++ {
				wg.Add(1)
				go func(p int) {
					defer wg.Done()
					for i := 0; i < perProducer; i++ {
						_, err := r.Publish(func(s *slot) {
							s.producer = p
							s.value = i
						})
						if err != nil {
							t.Errorf("Publish failed: %v", err)
							return
						}
					}
				}(p)
			}
			wg.Wait()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.Shutdown(ctx); err != nil {
				t.Fatalf("Shutdown failed: %v", err)
			}

			if count != producers*perProducer {
				t.Errorf("dispatched %d events, want %d", count, producers*perProducer)
			}
			if outOfSeq != 0 {
				t.Errorf("%d events dispatched out of sequence order", outOfSeq)
			}
			if n := perProducerOrder.Load(); n != 0 {
				t.Errorf("%d events reordered within a producer", n)
			}
			if r.Dispatched() != int64(producers*perProducer-1) {
				t.Errorf("Dispatched() = %d, want %d", r.Dispatched(), producers*perProducer-1)
			}
		})
	}
}

// With four slots and no drain loop, the fifth claimant must wait until a
// slot is freed.
func TestBackpressure(t *testing.T) {
	r, err := New[slot](4, wait.NewBlock())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var claimed atomic.Int32
	seqs := make(chan int64, 5)
	for i := 0; i < 5; i++ {
		go func() {
			seq, _, err := r.Claim()
			if err != nil {
				t.Errorf("Claim failed: %v", err)
				return
			}
			claimed.Add(1)
			seqs <- seq
		}()
	}

	time.Sleep(50 * time.Millisecond)
	if got := claimed.Load(); got != 4 {
		t.Fatalf("claims completed = %d, want 4", got)
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", r.Remaining())
	}

	// Commit the four granted claims, then start draining to free space.
	for i := 0; i < 4; i++ {
		r.Commit(<-seqs)
	}

	var dispatched atomic.Int32
	if err := r.Start(func(int64, *slot) { dispatched.Add(1) }); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case seq := <-seqs:
		if seq != 4 {
			t.Errorf("blocked claim got sequence %d, want 4", seq)
		}
		r.Commit(seq)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked claim was never released")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if got := dispatched.Load(); got != 5 {
		t.Errorf("dispatched = %d, want 5", got)
	}
}

func TestShutdownDrainsCommitted(t *testing.T) {
	r, err := New[slot](128, wait.NewLiteBlock())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var dispatched atomic.Int32
	release := make(chan struct{})
	r.Start(func(seq int64, _ *slot) {
		if seq == 0 {
			<-release // hold the drain loop so events pile up
		}
		dispatched.Add(1)
	})

	for i := 0; i < 100; i++ {
		if _, err := r.Publish(func(s *slot) { s.value = i }); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	shutdownDone := make(chan error, 1)
	go func() { shutdownDone <- r.Shutdown(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	close(release)

	select {
	case err := <-shutdownDone:
		if err != nil {
			t.Fatalf("Shutdown failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return")
	}
	if got := dispatched.Load(); got != 100 {
		t.Errorf("dispatched = %d, want 100", got)
	}
}

func TestShutdownReleasesBlockedProducers(t *testing.T) {
	r, err := New[slot](2, wait.NewBlock())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Publish(func(*slot) {})
		}()
	}
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("producers still blocked after Shutdown")
	}
}

func TestClaimAfterShutdown(t *testing.T) {
	r, _ := New[slot](8, wait.NewBlock())
	r.Start(func(int64, *slot) {})

	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown failed: %v", err)
	}
	if _, _, err := r.Claim(); !errors.Is(err, ErrClosed) {
		t.Errorf("Claim after Shutdown error = %v, want ErrClosed", err)
	}
	if _, err := r.Publish(func(*slot) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish after Shutdown error = %v, want ErrClosed", err)
	}
	if !r.Closed() {
		t.Error("Closed() = false after Shutdown")
	}
}

func TestStartTwice(t *testing.T) {
	r, _ := New[slot](8, wait.NewBlock())
	defer r.Shutdown(context.Background())

	if err := r.Start(nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("Start(nil) error = %v, want ErrNilHandler", err)
	}
	if err := r.Start(func(int64, *slot) {}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := r.Start(func(int64, *slot) {}); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start error = %v, want ErrAlreadyRunning", err)
	}
}

func TestRecycleAndWraparound(t *testing.T) {
	var recycled atomic.Int32
	r, _ := New[slot](4, wait.NewLiteBlock(), WithRecycle(func(s *slot) {
		s.value = 0
		recycled.Add(1)
	}))

	var sum atomic.Int64
	r.Start(func(_ int64, s *slot) {
		sum.Add(int64(s.value))
	})

	// 50 events through 4 slots wraps the ring many times.
	want := int64(0)
	for i := 1; i <= 50; i++ {
		want += int64(i)
		if _, err := r.Publish(func(s *slot) { s.value = i }); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	if got := sum.Load(); got != want {
		t.Errorf("sum = %d, want %d", got, want)
	}
	if got := recycled.Load(); got != 50 {
		t.Errorf("recycled = %d, want 50", got)
	}
	for i := range r.slots {
		if r.slots[i].value != 0 {
			t.Errorf("slot %d not recycled: %d", i, r.slots[i].value)
		}
	}
}

func TestCursorAndRemaining(t *testing.T) {
	r, _ := New[slot](8, wait.NewBlock())
	if r.Cursor() != -1 || r.Dispatched() != -1 {
		t.Fatalf("Cursor/Dispatched = %d/%d, want -1/-1", r.Cursor(), r.Dispatched())
	}
	for i := 0; i < 3; i++ {
		seq, _, err := r.Claim()
		if err != nil {
			t.Fatalf("Claim failed: %v", err)
		}
		r.Commit(seq)
	}
	if r.Cursor() != 2 {
		t.Errorf("Cursor() = %d, want 2", r.Cursor())
	}
	if r.Remaining() != 5 {
		t.Errorf("Remaining() = %d, want 5", r.Remaining())
	}
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if r.Remaining() != 8 {
		t.Errorf("Remaining() after drain = %d, want 8", r.Remaining())
	}
}
