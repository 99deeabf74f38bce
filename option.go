package tsdispatch

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// options holds engine construction settings (unexported)
type options struct {
	logger        *slog.Logger
	config        *Config
	meterProvider metric.MeterProvider
	consumers     []Consumer
	logRate       *float64
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithConfig uses cfg instead of decoding the host configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = &cfg
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for engine metrics.
// Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// WithConsumers registers consumers before the drain loop starts, after
// the configured ones.
func WithConsumers(c ...Consumer) Option {
	return func(o *options) {
		o.consumers = append(o.consumers, c...)
	}
}

// WithFailureLogRate overrides the consumer failure log rate (lines per second, 0 = unlimited).
func WithFailureLogRate(perSecond float64) Option {
	return func(o *options) {
		o.logRate = &perSecond
	}
}

func newOptions(opts ...Option) *options {
	o := &options{
		logger:        slog.Default(),
		meterProvider: otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
