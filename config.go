package tsdispatch

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Configuration keys read from the host.
const (
	KeyBufferSize     = "tsd.dispatch.buffer_size"
	KeyWaitStrategy   = "tsd.dispatch.wait_strategy"
	KeyWaitParams     = "tsd.dispatch.wait_params"
	KeyConsumers      = "tsd.dispatch.consumers"
	KeyFailOnConsumer = "tsd.dispatch.consumers.fail_on_error"
	KeyLogRate        = "tsd.dispatch.log_rate"
)

// Defaults
const (
	DefaultBufferSize     = 1024
	DefaultWaitStrategy   = "Block"
	DefaultFailureLogRate = 10.0
)

// Host is the process embedding the engine. Its configuration is a flat
// key/value map; consumer factories read their own keys from it.
type Host interface {
	Config() map[string]string
}

// MapHost is a Host backed by a map.
type MapHost map[string]string

// Config implements Host
func (h MapHost) Config() map[string]string {
	return h
}

// Get returns the value for key, or def when it is unset or blank.
func (h MapHost) Get(key, def string) string {
	return Lookup(h, key, def)
}

// Lookup returns host's value for key, or def when it is unset or blank.
func Lookup(host Host, key, def string) string {
	if host == nil {
		return def
	}
	if v := strings.TrimSpace(host.Config()[key]); v != "" {
		return v
	}
	return def
}

// Config is the engine configuration.
type Config struct {
	// BufferSize is the ring capacity, a power of two.
	BufferSize int `mapstructure:"tsd.dispatch.buffer_size"`
	// WaitStrategy names the wait strategy used by producers and the drain loop.
	WaitStrategy string   `mapstructure:"tsd.dispatch.wait_strategy"`
	WaitParams   []string `mapstructure:"tsd.dispatch.wait_params"`
	// Consumers are factory names instantiated at startup.
	Consumers []string `mapstructure:"tsd.dispatch.consumers"`
	// FailOnConsumerLoad aborts construction when a consumer cannot be
	// loaded; otherwise the failure is logged and the consumer skipped.
	FailOnConsumerLoad bool `mapstructure:"tsd.dispatch.consumers.fail_on_error"`
	// FailureLogRate caps consumer failure log lines per second. 0 disables the cap.
	FailureLogRate float64 `mapstructure:"tsd.dispatch.log_rate"`
}

// DefaultConfig returns the configuration used for unset keys.
func DefaultConfig() Config {
	return Config{
		BufferSize:         DefaultBufferSize,
		WaitStrategy:       DefaultWaitStrategy,
		FailOnConsumerLoad: true,
		FailureLogRate:     DefaultFailureLogRate,
	}
}

// DecodeConfig reads the engine keys from kv on top of the defaults.
// Blank values keep the default. Lists are comma separated.
func DecodeConfig(kv map[string]string) (Config, error) {
	cfg := DefaultConfig()
	input := make(map[string]any, len(kv))
	for k, v := range kv {
		if strings.TrimSpace(v) == "" {
			continue
		}
		input[k] = strings.TrimSpace(v)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook:       listHook,
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(input); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges that do not depend on other packages.
func (c Config) Validate() error {
	if c.BufferSize <= 0 || c.BufferSize&(c.BufferSize-1) != 0 {
		return fmt.Errorf("%w: %s must be a positive power of two, got %d", ErrConfig, KeyBufferSize, c.BufferSize)
	}
	if strings.TrimSpace(c.WaitStrategy) == "" {
		return fmt.Errorf("%w: %s is empty", ErrConfig, KeyWaitStrategy)
	}
	if c.FailureLogRate < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrConfig, KeyLogRate)
	}
	return nil
}

var stringSlice = reflect.TypeOf([]string(nil))

// listHook splits comma separated strings into trimmed, non-empty entries.
func listHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != stringSlice {
		return data, nil
	}
	return splitList(data.(string)), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var _ mapstructure.DecodeHookFuncType = listHook
