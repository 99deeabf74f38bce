package tsdispatch

import (
	"fmt"
	"sync"
)

var process struct {
	mu     sync.Mutex
	engine *Engine
}

// Init builds the process-wide engine. It may succeed once; later calls
// return ErrAlreadyInitialized. A failed Init can be retried.
func Init(host Host, opts ...Option) (*Engine, error) {
	process.mu.Lock()
	defer process.mu.Unlock()
	if process.engine != nil {
		return nil, fmt.Errorf("%w: engine %s", ErrAlreadyInitialized, process.engine.ID())
	}
	e, err := New(host, opts...)
	if err != nil {
		return nil, err
	}
	process.engine = e
	return e, nil
}

// Default returns the engine built by Init.
func Default() (*Engine, error) {
	process.mu.Lock()
	defer process.mu.Unlock()
	if process.engine == nil {
		return nil, ErrNotInitialized
	}
	return process.engine, nil
}
