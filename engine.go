package tsdispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rbaliyan/tsdispatch/ring"
	"github.com/rbaliyan/tsdispatch/stats"
	"github.com/rbaliyan/tsdispatch/wait"
	"go.opentelemetry.io/otel/metric"
)

const (
	engineRunning = 1
	engineStopped = 0
)

// Claim is a slot reserved by a producer. Fill Event with one of its
// setters, then pass the claim to Engine.Commit exactly once.
type Claim struct {
	Seq   int64
	Event *Event
}

// Engine owns the ring buffer, the drain loop and the consumer list.
type Engine struct {
	status   int32
	id       string
	cfg      Config
	host     Host
	logger   *slog.Logger
	ring     *ring.Ring[Event]
	strategy wait.Strategy
	disp     *dispatcher
	received *stats.Group
	static   []Consumer
	metrics  metric.Registration
	cancel   context.CancelFunc
	stopOnce sync.Once
	stopErr  error
}

// New builds an engine from the host configuration and starts its drain
// loop. host is required; configuration problems return ErrConfig.
func New(host Host, opts ...Option) (*Engine, error) {
	if host == nil {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidArgument)
	}
	o := newOptions(opts...)

	var cfg Config
	if o.config != nil {
		cfg = *o.config
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	} else {
		var err error
		if cfg, err = DecodeConfig(host.Config()); err != nil {
			return nil, err
		}
	}
	if o.logRate != nil {
		cfg.FailureLogRate = *o.logRate
	}

	strategy, err := wait.New(cfg.WaitStrategy, cfg.WaitParams...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	r, err := ring.New[Event](cfg.BufferSize, strategy, ring.WithRecycle(func(ev *Event) { ev.Reset() }))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	id := uuid.New().String()
	logger := o.logger.With("component", "tsdispatch>"+id[:8])

	static, err := loadConsumers(host, cfg.Consumers, cfg.FailOnConsumerLoad, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		status:   engineRunning,
		id:       id,
		cfg:      cfg,
		host:     host,
		logger:   logger,
		ring:     r,
		strategy: strategy,
		disp:     newDispatcher(ctx, logger.With("component", "dispatcher"), cfg.FailureLogRate),
		received: stats.NewGroup(NumKinds()),
		static:   static,
		cancel:   cancel,
	}
	for _, c := range static {
		e.disp.register(c)
	}
	for _, c := range o.consumers {
		if c != nil {
			e.disp.register(c)
		}
	}

	if e.metrics, err = e.registerMetrics(o.meterProvider); err != nil {
		// metrics are best effort
		logger.Warn("engine metrics disabled", "error", err)
	}

	if err := r.Start(e.disp.dispatch); err != nil {
		cancel()
		return nil, errors.Join(err, closeConsumers(static))
	}
	logger.Info("engine started",
		"buffer_size", cfg.BufferSize,
		"wait_strategy", strategy.Name(),
		"consumers", len(e.disp.list()))
	return e, nil
}

// ID returns the engine instance id.
func (e *Engine) ID() string {
	return e.id
}

// Host returns the host the engine was built with.
func (e *Engine) Host() Host {
	return e.host
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Logger returns the engine logger for adapters and consumers.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// WaitStrategy returns the name of the wait strategy in use.
func (e *Engine) WaitStrategy() string {
	return e.strategy.Name()
}

// Running returns true until Shutdown is called.
func (e *Engine) Running() bool {
	return atomic.LoadInt32(&e.status) == engineRunning
}

// Register adds c to the dispatch list. It returns false if c was
// already registered.
func (e *Engine) Register(c Consumer) bool {
	if c == nil {
		return false
	}
	if e.disp.register(c) {
		e.logger.Debug("registered consumer", "consumer", c.Name(), "mask", c.Mask().String())
		return true
	}
	return false
}

// Unregister removes c. It returns false if c was not registered. An
// event already being dispatched may still reach c.
func (e *Engine) Unregister(c Consumer) bool {
	if c == nil {
		return false
	}
	if e.disp.unregister(c) {
		e.logger.Debug("unregistered consumer", "consumer", c.Name())
		return true
	}
	return false
}

// Consumers returns the registered consumers in dispatch order.
func (e *Engine) Consumers() []Consumer {
	return e.disp.list()
}

// Claim reserves the next slot, waiting per the wait strategy while the
// buffer is full. It returns ErrClosed after Shutdown.
func (e *Engine) Claim() (Claim, error) {
	seq, ev, err := e.ring.Claim()
	if err != nil {
		if errors.Is(err, ring.ErrClosed) {
			return Claim{}, ErrClosed
		}
		return Claim{}, err
	}
	return Claim{Seq: seq, Event: ev}, nil
}

// Commit makes a claimed slot visible to the drain loop.
func (e *Engine) Commit(c Claim) {
	c.Event.seq = c.Seq
	c.Event.committed = time.Now()
	e.ring.Commit(c.Seq)
}

// Publish claims a slot, fills it and commits it.
func (e *Engine) Publish(fill func(*Event)) error {
	c, err := e.Claim()
	if err != nil {
		return err
	}
	defer e.Commit(c)
	fill(c.Event)
	return nil
}

// ReceivedCounters returns a new per-kind counter set that is summed into
// the engine's received statistics. Each adapter owns one.
func (e *Engine) ReceivedCounters() *stats.Set {
	return e.received.NewMember()
}

// Collector returns a Prometheus collector for the engine statistics.
func (e *Engine) Collector(namespace string) prometheus.Collector {
	return stats.NewCollector(namespace, e.samples, e.ring.Remaining)
}

// Shutdown stops accepting claims, dispatches everything already
// committed and closes consumers loaded from configuration. It is
// idempotent. If ctx expires first the drain keeps running in the
// background and ctx.Err() is returned.
func (e *Engine) Shutdown(ctx context.Context) error {
	if atomic.CompareAndSwapInt32(&e.status, engineRunning, engineStopped) {
		e.logger.Info("engine shutting down", "pending", e.ring.Cursor()-e.ring.Dispatched())
	}
	if err := e.ring.Shutdown(ctx); err != nil {
		return err
	}
	e.stopOnce.Do(func() {
		e.cancel()
		var errs []error
		if e.metrics != nil {
			errs = append(errs, e.metrics.Unregister())
		}
		errs = append(errs, closeConsumers(e.static))
		e.stopErr = errors.Join(errs...)
		e.logger.Info("engine stopped", "dispatched", e.ring.Dispatched()+1)
	})
	return e.stopErr
}

func closeConsumers(cs []Consumer) error {
	var errs []error
	for _, c := range cs {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close consumer %q: %w", c.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
