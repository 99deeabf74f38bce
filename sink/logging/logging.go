// Package logging provides a consumer that logs every event it receives.
// Registered as "logging"; the level is read from tsd.dispatch.logging.level
// (debug by default) and the kinds from tsd.dispatch.logging.kinds.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rbaliyan/tsdispatch"
	"github.com/rbaliyan/tsdispatch/sink"
)

// Name is the factory name.
const Name = "logging"

func init() {
	tsdispatch.MustRegisterConsumer(Name, Factory)
}

// Consumer logs events.
type Consumer struct {
	logger *slog.Logger
	level  slog.Level
	mask   tsdispatch.Mask
}

// New creates a logging consumer. A nil logger uses the default logger.
func New(logger *slog.Logger, level slog.Level, mask tsdispatch.Mask) *Consumer {
	if logger == nil {
		logger = sink.Logger(Name)
	}
	return &Consumer{logger: logger, level: level, mask: mask}
}

// Factory builds the consumer from host configuration.
func Factory(host tsdispatch.Host) (tsdispatch.Consumer, error) {
	mask, err := sink.Mask(host, Name, tsdispatch.AllMask())
	if err != nil {
		return nil, err
	}
	var level slog.Level
	raw := tsdispatch.Lookup(host, sink.Key(Name, "level"), "debug")
	if err := level.UnmarshalText([]byte(strings.ToUpper(raw))); err != nil {
		return nil, fmt.Errorf("%s: %w", Name, err)
	}
	return New(nil, level, mask), nil
}

func (c *Consumer) Name() string          { return Name }
func (c *Consumer) Mask() tsdispatch.Mask { return c.mask }

// Handle implements tsdispatch.Consumer
func (c *Consumer) Handle(ctx context.Context, ev *tsdispatch.Event) error {
	if !c.logger.Enabled(ctx, c.level) {
		return nil
	}
	r := sink.FromEvent(ev)
	attrs := []slog.Attr{
		slog.String("kind", r.Kind),
		slog.Int64("seq", r.Seq),
	}
	if r.TSUID != "" {
		attrs = append(attrs, slog.String("tsuid", r.TSUID))
	}
	if r.Metric != "" {
		attrs = append(attrs, slog.String("metric", r.Metric), slog.Int64("timestamp", r.Timestamp))
	}
	if r.Value != nil {
		attrs = append(attrs, slog.Any("value", r.Value))
	}
	if q := ev.Query(); q != nil {
		attrs = append(attrs, slog.String("query", q.Query), slog.String("type", string(q.Type)))
	}
	c.logger.LogAttrs(ctx, c.level, "event", attrs...)
	return nil
}
