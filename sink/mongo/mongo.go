// Package mongo is the search consumer. It indexes metadata and
// annotations into MongoDB and answers search queries from the same
// collections.
//
// Handle never touches the database: it queues a job and returns, so a
// slow store cannot stall the dispatch loop. A fixed pool of workers runs
// the jobs, each under its own timeout. When the queue is full the event
// fails; a query event is also rejected with ErrQueueFull.
//
// Registered as "mongo". Settings:
//
//	tsd.dispatch.mongo.uri       connection string ("mongodb://localhost:27017")
//	tsd.dispatch.mongo.database  database name ("tsdb")
//	tsd.dispatch.mongo.workers   worker count (4)
//	tsd.dispatch.mongo.queue     queued jobs before failing (1024)
//	tsd.dispatch.mongo.timeout   per job timeout (5s)
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/rbaliyan/tsdispatch"
	"github.com/rbaliyan/tsdispatch/deferred"
	"github.com/rbaliyan/tsdispatch/sink"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Name is the factory name.
const Name = "mongo"

// Defaults.
const (
	DefaultWorkers = 4
	DefaultQueue   = 1024
	DefaultTimeout = 5 * time.Second
)

// Errors
var (
	ErrQueueFull = errors.New("mongo: job queue full")
	ErrStopped   = errors.New("mongo: consumer stopped")
)

func init() {
	tsdispatch.MustRegisterConsumer(Name, Factory)
}

type job struct {
	kind   tsdispatch.Kind
	tsuid  string
	tsMeta *tsdispatch.TSMeta
	uid    *tsdispatch.UIDMeta
	note   *tsdispatch.Annotation
	query  *tsdispatch.SearchQuery
	result *deferred.Deferred[*tsdispatch.SearchQuery]
}

// Consumer runs store operations on a worker pool.
type Consumer struct {
	store   Store
	client  *mongo.Client // owned, disconnected on Close
	logger  *slog.Logger
	timeout time.Duration
	mask    tsdispatch.Mask

	mu      sync.RWMutex
	stopped bool
	jobs    chan job
	wg      sync.WaitGroup
}

// Option configures a Consumer.
type Option func(*config)

type config struct {
	workers int
	queue   int
	timeout time.Duration
	logger  *slog.Logger
}

// WithWorkers sets the worker count.
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithQueueSize sets how many jobs may wait.
func WithQueueSize(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.queue = n
		}
	}
}

// WithTimeout bounds each job.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger for failures that happen after Handle returned.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// New starts a consumer over store.
func New(store Store, opts ...Option) *Consumer {
	cfg := config{
		workers: DefaultWorkers,
		queue:   DefaultQueue,
		timeout: DefaultTimeout,
		logger:  sink.Logger(Name),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Consumer{
		store:   store,
		logger:  cfg.logger,
		timeout: cfg.timeout,
		mask:    tsdispatch.SearchMask(),
		jobs:    make(chan job, cfg.queue),
	}
	c.wg.Add(cfg.workers)
	for i := 0; i < cfg.workers; i++ {
		go c.worker()
	}
	return c
}

// Factory connects to the configured server and ensures indexes.
func Factory(host tsdispatch.Host) (tsdispatch.Consumer, error) {
	workers, err := intSetting(host, "workers", DefaultWorkers)
	if err != nil {
		return nil, err
	}
	queue, err := intSetting(host, "queue", DefaultQueue)
	if err != nil {
		return nil, err
	}
	timeout, err := time.ParseDuration(tsdispatch.Lookup(host, sink.Key(Name, "timeout"), DefaultTimeout.String()))
	if err != nil {
		return nil, fmt.Errorf("%s: timeout: %w", Name, tsdispatch.ErrConfig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	uri := tsdispatch.Lookup(host, sink.Key(Name, "uri"), "mongodb://localhost:27017")
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", Name, err)
	}
	store := NewMongoStore(client.Database(tsdispatch.Lookup(host, sink.Key(Name, "database"), "tsdb")))
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: %w", Name, err)
	}

	c := New(store, WithWorkers(workers), WithQueueSize(queue), WithTimeout(timeout))
	c.client = client
	return c, nil
}

func intSetting(host tsdispatch.Host, key string, def int) (int, error) {
	n, err := strconv.Atoi(tsdispatch.Lookup(host, sink.Key(Name, key), strconv.Itoa(def)))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: invalid %s: %w", Name, key, tsdispatch.ErrConfig)
	}
	return n, nil
}

func (c *Consumer) Name() string          { return Name }
func (c *Consumer) Mask() tsdispatch.Mask { return c.mask }

// Handle queues the event for a worker. The event slot is reused once
// Handle returns, so the job keeps only the payload pointers.
func (c *Consumer) Handle(_ context.Context, ev *tsdispatch.Event) error {
	j := job{
		kind:   ev.Kind(),
		tsuid:  ev.TSUID(),
		tsMeta: ev.TSMeta(),
		uid:    ev.UIDMeta(),
		note:   ev.Annotation(),
		query:  ev.Query(),
		result: ev.Result(),
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stopped {
		j.reject(ErrStopped)
		return ErrStopped
	}
	select {
	case c.jobs <- j:
		return nil
	default:
		j.reject(ErrQueueFull)
		return ErrQueueFull
	}
}

func (j job) reject(err error) {
	if j.result != nil {
		j.result.Reject(err)
	}
}

func (c *Consumer) worker() {
	defer c.wg.Done()
	for j := range c.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		err := c.run(ctx, j)
		cancel()
		if err != nil {
			c.logger.Warn("search job failed", "kind", j.kind, "tsuid", j.tsuid, "error", err)
		}
	}
}

func (c *Consumer) run(ctx context.Context, j job) error {
	switch j.kind {
	case tsdispatch.KindTSMetaIndex:
		return c.store.UpsertTSMeta(ctx, j.tsMeta)
	case tsdispatch.KindTSMetaDelete:
		return c.store.DeleteTSMeta(ctx, j.tsuid)
	case tsdispatch.KindUIDMetaIndex:
		return c.store.UpsertUIDMeta(ctx, j.uid)
	case tsdispatch.KindUIDMetaDelete:
		return c.store.DeleteUIDMeta(ctx, j.uid)
	case tsdispatch.KindAnnotationIndex:
		return c.store.UpsertAnnotation(ctx, j.note)
	case tsdispatch.KindAnnotationDelete:
		return c.store.DeleteAnnotation(ctx, j.note)
	case tsdispatch.KindSearchQuery:
		return c.search(ctx, j)
	}
	return nil
}

func (c *Consumer) search(ctx context.Context, j job) error {
	if j.query == nil || j.result == nil {
		return fmt.Errorf("%w: query event without query", tsdispatch.ErrInvalidArgument)
	}
	start := time.Now()
	if err := c.store.Search(ctx, j.query); err != nil {
		j.result.Reject(err)
		return err
	}
	j.query.Time = float64(time.Since(start).Microseconds()) / 1000
	j.result.Resolve(j.query)
	return nil
}

// Close stops accepting jobs, waits for queued ones and disconnects an
// owned client.
func (c *Consumer) Close() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.jobs)
	c.mu.Unlock()

	c.wg.Wait()
	if c.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.client.Disconnect(ctx)
}
