package tsdispatch

import (
	"errors"
	"fmt"
)

// Engine errors. Use errors.Is, they are usually wrapped with context.
var (
	// ErrConfig is returned when the engine cannot be built from its configuration:
	// bad buffer size, unknown or malformed wait strategy, consumer load failure.
	ErrConfig = errors.New("invalid configuration")

	// ErrInvalidArgument is returned for a missing host or a nil query.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrClosed is returned by claims made after Shutdown.
	ErrClosed = errors.New("engine is closed")

	ErrAlreadyInitialized = errors.New("engine already initialized")
	ErrNotInitialized     = errors.New("engine not initialized")

	// ErrUnknownKind is returned by kind lookups with an unknown name or ordinal.
	ErrUnknownKind = errors.New("unknown event kind")

	ErrUnknownConsumer   = errors.New("unknown consumer")
	ErrInvalidConsumer   = errors.New("invalid consumer")
	ErrDuplicateConsumer = errors.New("consumer factory already registered")
)

// ConsumerError describes one failed consumer invocation. Panic is set
// when the consumer panicked instead of returning an error.
type ConsumerError struct {
	Consumer string
	Kind     Kind
	Seq      int64
	Err      error
	Panic    any
	Stack    []byte
}

func (e *ConsumerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("consumer %q panicked on %s (seq %d): %v", e.Consumer, e.Kind, e.Seq, e.Panic)
	}
	return fmt.Sprintf("consumer %q failed on %s (seq %d): %v", e.Consumer, e.Kind, e.Seq, e.Err)
}

func (e *ConsumerError) Unwrap() error {
	return e.Err
}

// IsConsumerPanic reports whether err is a ConsumerError caused by a panic.
func IsConsumerPanic(err error) bool {
	var ce *ConsumerError
	return errors.As(err, &ce) && ce.Panic != nil
}
