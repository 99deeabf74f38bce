package mongo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rbaliyan/tsdispatch"
	"github.com/rbaliyan/tsdispatch/adapter"
	"github.com/rbaliyan/tsdispatch/deferred"
	"github.com/rbaliyan/tsdispatch/sink"
	"go.mongodb.org/mongo-driver/bson"
)

// memStore is an in-memory Store.
type memStore struct {
	mu      sync.Mutex
	tsmeta  map[string]*tsdispatch.TSMeta
	uids    map[string]*tsdispatch.UIDMeta
	notes   map[string]*tsdispatch.Annotation
	block   chan struct{}
	entered chan struct{}
	err     error
}

func newMemStore() *memStore {
	return &memStore{
		tsmeta: make(map[string]*tsdispatch.TSMeta),
		uids:   make(map[string]*tsdispatch.UIDMeta),
		notes:  make(map[string]*tsdispatch.Annotation),
	}
}

func (s *memStore) wait(ctx context.Context) error {
	if s.block == nil {
		return nil
	}
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	select {
	case <-s.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *memStore) UpsertTSMeta(ctx context.Context, m *tsdispatch.TSMeta) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tsmeta[m.TSUID] = m
	return nil
}

func (s *memStore) DeleteTSMeta(_ context.Context, tsuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tsmeta, tsuid)
	return nil
}

func (s *memStore) UpsertUIDMeta(_ context.Context, m *tsdispatch.UIDMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uids[m.Key()] = m
	return nil
}

func (s *memStore) DeleteUIDMeta(_ context.Context, m *tsdispatch.UIDMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uids, m.Key())
	return nil
}

func (s *memStore) UpsertAnnotation(_ context.Context, a *tsdispatch.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[a.Key()] = a
	return nil
}

func (s *memStore) DeleteAnnotation(_ context.Context, a *tsdispatch.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.notes, a.Key())
	return nil
}

func (s *memStore) Search(_ context.Context, q *tsdispatch.SearchQuery) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var hits []string
	for id, m := range s.tsmeta {
		if strings.HasPrefix(m.Metric, q.Query) {
			hits = append(hits, id)
		}
	}
	sort.Strings(hits)
	q.Results = nil
	for _, id := range hits {
		q.Results = append(q.Results, Summarize(q.Type, s.tsmeta[id]))
	}
	q.TotalResults = len(hits)
	return nil
}

func (s *memStore) count() (int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tsmeta), len(s.uids), len(s.notes)
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestIndexAndSearchThroughEngine(t *testing.T) {
	store := newMemStore()
	c := New(store, WithWorkers(1), WithLogger(quiet))
	defer c.Close()
	e, err := tsdispatch.New(tsdispatch.MapHost{}, tsdispatch.WithLogger(quiet), tsdispatch.WithConsumers(c))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Shutdown(context.Background())
	s := adapter.NewSearch(e)

	s.IndexTSMeta(&tsdispatch.TSMeta{TSUID: "01", Metric: "sys.cpu.user"})
	s.IndexTSMeta(&tsdispatch.TSMeta{TSUID: "02", Metric: "sys.cpu.nice"})
	s.IndexTSMeta(&tsdispatch.TSMeta{TSUID: "03", Metric: "proc.loadavg"})
	s.IndexUIDMeta(&tsdispatch.UIDMeta{UID: "000001", Type: "METRIC", Name: "sys.cpu.user"})
	s.IndexAnnotation(&tsdispatch.Annotation{TSUID: "01", StartTime: 5, Description: "reboot"})
	s.DeleteTSMeta("03")

	// a single worker runs jobs in order, so the query sees every write
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q, err := s.ExecuteQuery(ctx, &tsdispatch.SearchQuery{Type: tsdispatch.SearchTSUIDs, Query: "sys.cpu"}).Wait(ctx)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if diff := cmp.Diff([]any{"01", "02"}, q.Results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	if q.TotalResults != 2 || q.Time < 0 {
		t.Errorf("total = %d time = %v", q.TotalResults, q.Time)
	}
	if ts, uids, notes := store.count(); ts != 2 || uids != 1 || notes != 1 {
		t.Errorf("store holds %d/%d/%d, want 2/1/1", ts, uids, notes)
	}
}

func TestSearchError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("index offline")
	c := New(store, WithLogger(quiet))
	defer c.Close()

	result := deferred.New[*tsdispatch.SearchQuery]()
	var ev tsdispatch.Event
	ev.SetSearchQuery(&tsdispatch.SearchQuery{Type: tsdispatch.SearchTSMeta}, result)
	if err := c.Handle(context.Background(), &ev); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := result.Wait(ctx); !errors.Is(err, store.err) {
		t.Errorf("error = %v, want %v", err, store.err)
	}
}

func TestQueueFull(t *testing.T) {
	store := newMemStore()
	store.block = make(chan struct{})
	store.entered = make(chan struct{}, 8)
	c := New(store, WithWorkers(1), WithQueueSize(1), WithLogger(quiet))

	index := func() error {
		var ev tsdispatch.Event
		ev.SetTSMetaIndex(&tsdispatch.TSMeta{TSUID: "01"})
		return c.Handle(context.Background(), &ev)
	}
	if err := index(); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	<-store.entered

	// one job held by the worker, one queued, the rest overflow
	var full int
	for i := 0; i < 4; i++ {
		if err := index(); errors.Is(err, ErrQueueFull) {
			full++
		}
	}
	if full != 3 {
		t.Errorf("%d overflows, want 3", full)
	}

	result := deferred.New[*tsdispatch.SearchQuery]()
	var ev tsdispatch.Event
	ev.SetSearchQuery(&tsdispatch.SearchQuery{}, result)
	if err := c.Handle(context.Background(), &ev); !errors.Is(err, ErrQueueFull) {
		t.Errorf("query error = %v, want ErrQueueFull", err)
	}
	if _, err := result.Result(); !errors.Is(err, ErrQueueFull) {
		t.Errorf("query result error = %v, want ErrQueueFull", err)
	}

	close(store.block)
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := index(); !errors.Is(err, ErrStopped) {
		t.Errorf("error after Close = %v, want ErrStopped", err)
	}
}

func TestJobTimeout(t *testing.T) {
	store := newMemStore()
	store.block = make(chan struct{})
	defer close(store.block)
	c := New(store, WithTimeout(20*time.Millisecond), WithLogger(quiet))

	var ev tsdispatch.Event
	ev.SetTSMetaIndex(&tsdispatch.TSMeta{TSUID: "01"})
	if err := c.Handle(context.Background(), &ev); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on a job past its timeout")
	}
	if ts, _, _ := store.count(); ts != 0 {
		t.Errorf("timed out job was applied")
	}
}

func TestSummarize(t *testing.T) {
	m := &tsdispatch.TSMeta{TSUID: "01", Metric: "sys.cpu", Tags: map[string]string{"host": "a"}}
	if got := Summarize(tsdispatch.SearchTSUIDs, m); got != "01" {
		t.Errorf("TSUIDS = %v", got)
	}
	if got := Summarize(tsdispatch.SearchTSMeta, m); got != m {
		t.Errorf("TSMETA = %v", got)
	}
	want := map[string]any{"tsuid": "01", "metric": "sys.cpu", "tags": map[string]string{"host": "a"}}
	if diff := cmp.Diff(want, Summarize(tsdispatch.SearchTSMetaSummary, m)); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestMatching(t *testing.T) {
	if got := matching(""); len(got) != 0 {
		t.Errorf("empty query filter = %v", got)
	}
	if or, ok := matching("sys", "metric", "description")["$or"]; !ok || len(or.(bson.A)) != 2 {
		t.Errorf("filter = %v", or)
	}
}

func TestFactoryConfigErrors(t *testing.T) {
	for _, key := range []string{"workers", "queue", "timeout"} {
		_, err := Factory(tsdispatch.MapHost{sink.Key(Name, key): "-x"})
		if !errors.Is(err, tsdispatch.ErrConfig) {
			t.Errorf("%s error = %v, want ErrConfig", key, err)
		}
	}
}
