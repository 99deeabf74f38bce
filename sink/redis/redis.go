// Package redis appends events to Redis streams, one stream per kind:
// "<prefix>:<kind>".
//
// Registered as "redis". Settings:
//
//	tsd.dispatch.redis.addr    server address ("localhost:6379")
//	tsd.dispatch.redis.stream  stream prefix ("tsd")
//	tsd.dispatch.redis.maxlen  approximate stream cap, 0 for none
//	tsd.dispatch.redis.codec   json, msgpack or proto
//	tsd.dispatch.redis.kinds   kinds to forward (publish kinds)
package redis

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/rbaliyan/tsdispatch"
	"github.com/rbaliyan/tsdispatch/payload"
	"github.com/rbaliyan/tsdispatch/sink"
	"github.com/redis/go-redis/v9"
)

// Name is the factory name.
const Name = "redis"

// DefaultStream prefixes stream keys when none is configured.
const DefaultStream = "tsd"

func init() {
	tsdispatch.MustRegisterConsumer(Name, Factory)
}

// Client is the subset of redis.Cmdable the sink uses.
type Client interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Sink appends events to streams.
type Sink struct {
	client Client
	closer io.Closer
	stream string
	maxLen int64
	codec  payload.Codec
	mask   tsdispatch.Mask
}

// Option configures a Sink.
type Option func(*Sink)

// WithStream sets the stream key prefix.
func WithStream(prefix string) Option {
	return func(s *Sink) { s.stream = prefix }
}

// WithMaxLen caps each stream at roughly n entries.
func WithMaxLen(n int64) Option {
	return func(s *Sink) { s.maxLen = n }
}

// WithCodec sets the payload codec.
func WithCodec(c payload.Codec) Option {
	return func(s *Sink) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithMask sets the kinds forwarded.
func WithMask(m tsdispatch.Mask) Option {
	return func(s *Sink) { s.mask = m }
}

// New creates a sink writing through client.
func New(client Client, opts ...Option) *Sink {
	s := &Sink{
		client: client,
		stream: DefaultStream,
		codec:  payload.Default(),
		mask:   tsdispatch.PublishMask(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Factory creates a client for the configured address.
func Factory(host tsdispatch.Host) (tsdispatch.Consumer, error) {
	mask, err := sink.Mask(host, Name, tsdispatch.PublishMask())
	if err != nil {
		return nil, err
	}
	codec, err := sink.Codec(host, Name)
	if err != nil {
		return nil, err
	}
	maxLen, err := strconv.ParseInt(tsdispatch.Lookup(host, sink.Key(Name, "maxlen"), "0"), 10, 64)
	if err != nil || maxLen < 0 {
		return nil, fmt.Errorf("%s: invalid maxlen: %w", Name, tsdispatch.ErrConfig)
	}
	client := redis.NewClient(&redis.Options{
		Addr: tsdispatch.Lookup(host, sink.Key(Name, "addr"), "localhost:6379"),
	})
	s := New(client,
		WithStream(tsdispatch.Lookup(host, sink.Key(Name, "stream"), DefaultStream)),
		WithMaxLen(maxLen),
		WithCodec(codec),
		WithMask(mask))
	s.closer = client
	return s, nil
}

func (s *Sink) Name() string          { return Name }
func (s *Sink) Mask() tsdispatch.Mask { return s.mask }

// Handle implements tsdispatch.Consumer
func (s *Sink) Handle(ctx context.Context, ev *tsdispatch.Event) error {
	rec := sink.FromEvent(ev)
	data, err := s.codec.Encode(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.Kind, err)
	}
	args := &redis.XAddArgs{
		Stream: sink.Topic(s.stream, ":", ev.Kind()),
		Values: map[string]any{
			"id":           rec.ID,
			"content_type": s.codec.ContentType(),
			"data":         data,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", args.Stream, err)
	}
	return nil
}

// Close closes the client if the sink created it.
func (s *Sink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
