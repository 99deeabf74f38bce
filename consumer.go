package tsdispatch

import "context"

// Consumer receives events whose kind is in its mask.
//
// Handle runs on the drain goroutine, so a slow consumer delays every
// event behind it. Consumers doing blocking I/O should hand off to their
// own workers. The returned error acknowledges the event; it is logged and
// counted, never retried.
//
// Consumers are compared by identity, so implementations must be
// comparable (pointer receivers are the usual choice).
type Consumer interface {
	Name() string
	Mask() Mask
	Handle(ctx context.Context, ev *Event) error
}

// HandlerFunc handles one event.
type HandlerFunc func(ctx context.Context, ev *Event) error

type funcConsumer struct {
	name string
	mask Mask
	fn   HandlerFunc
}

// NewConsumer wraps fn as a Consumer. Each call returns a distinct consumer.
func NewConsumer(name string, mask Mask, fn HandlerFunc) Consumer {
	return &funcConsumer{name: name, mask: mask, fn: fn}
}

func (c *funcConsumer) Name() string { return c.name }
func (c *funcConsumer) Mask() Mask   { return c.mask }

func (c *funcConsumer) Handle(ctx context.Context, ev *Event) error {
	return c.fn(ctx, ev)
}
