package tsdispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Factory builds a consumer, reading any settings it needs from host.
type Factory func(host Host) (Consumer, error)

var factories = struct {
	sync.RWMutex
	m map[string]Factory
}{m: make(map[string]Factory)}

// RegisterConsumer adds a factory under name (case-insensitive) so the
// consumer can be listed in the consumers configuration key.
func RegisterConsumer(name string, f Factory) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || f == nil {
		return fmt.Errorf("%w: consumer factory needs a name and a function", ErrInvalidArgument)
	}
	factories.Lock()
	defer factories.Unlock()
	if _, ok := factories.m[key]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateConsumer, name)
	}
	factories.m[key] = f
	return nil
}

// MustRegisterConsumer is RegisterConsumer for init functions; it panics on error.
func MustRegisterConsumer(name string, f Factory) {
	if err := RegisterConsumer(name, f); err != nil {
		panic(err)
	}
}

// RegisteredConsumers returns the registered factory names, sorted.
func RegisteredConsumers() []string {
	factories.RLock()
	defer factories.RUnlock()
	names := make([]string, 0, len(factories.m))
	for name := range factories.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupFactory(name string) (Factory, bool) {
	factories.RLock()
	defer factories.RUnlock()
	f, ok := factories.m[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// NewConsumerByName instantiates a registered consumer.
func NewConsumerByName(name string, host Host) (Consumer, error) {
	f, ok := lookupFactory(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConsumer, name)
	}
	c, err := f(host)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidConsumer, name, err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %q returned no consumer", ErrInvalidConsumer, name)
	}
	return c, nil
}

// loadConsumers instantiates names in order. With failFast the first error
// aborts and already built consumers are closed; otherwise failures are
// logged and skipped.
func loadConsumers(host Host, names []string, failFast bool, logger *slog.Logger) ([]Consumer, error) {
	var loaded []Consumer
	for _, name := range names {
		c, err := NewConsumerByName(name, host)
		if err != nil {
			if failFast {
				return nil, errors.Join(fmt.Errorf("%w: %w", ErrConfig, err), closeConsumers(loaded))
			}
			logger.Error("skipping consumer", "consumer", name, "error", err)
			continue
		}
		logger.Info("loaded consumer", "consumer", c.Name(), "mask", c.Mask().String())
		loaded = append(loaded, c)
	}
	return loaded, nil
}
