// Package nats publishes events to NATS subjects, one subject per kind:
// "<prefix>.<kind>", e.g. "tsd.dpoint_long".
//
// Registered as "nats". Settings:
//
//	tsd.dispatch.nats.url      server URL (nats.DefaultURL)
//	tsd.dispatch.nats.subject  subject prefix ("tsd")
//	tsd.dispatch.nats.codec    json, msgpack or proto
//	tsd.dispatch.nats.kinds    kinds to forward (publish kinds)
package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rbaliyan/tsdispatch"
	"github.com/rbaliyan/tsdispatch/payload"
	"github.com/rbaliyan/tsdispatch/sink"
)

// Name is the factory name.
const Name = "nats"

// DefaultSubject prefixes subjects when none is configured.
const DefaultSubject = "tsd"

func init() {
	tsdispatch.MustRegisterConsumer(Name, Factory)
}

// Publisher is the part of *nats.Conn the sink needs.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// Option configures a Sink.
type Option func(*Sink)

// WithSubject sets the subject prefix.
func WithSubject(prefix string) Option {
	return func(s *Sink) { s.subject = prefix }
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

// Sink forwards events to NATS.
type Sink struct {
	pub     Publisher
	conn    *nats.Conn // owned, drained on Close
	subject string
	codec   payload.Codec
	mask    tsdispatch.Mask
}

// New creates a sink publishing through pub.
func New(pub Publisher, opts ...Option) *Sink {
	s := &Sink{
		pub:     pub,
		subject: DefaultSubject,
		codec:   payload.Default(),
		mask:    tsdispatch.PublishMask(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Factory connects to the configured server.
func Factory(host tsdispatch.Host) (tsdispatch.Consumer, error) {
	mask, err := sink.Mask(host, Name, tsdispatch.PublishMask())
	if err != nil {
		return nil, err
	}
	codec, err := sink.Codec(host, Name)
	if err != nil {
		return nil, err
	}
	url := tsdispatch.Lookup(host, sink.Key(Name, "url"), nats.DefaultURL)
	nc, err := nats.Connect(url, nats.Name("tsdispatch"))
	if err != nil {
		return nil, fmt.Errorf("%s: connect %s: %w", Name, url, err)
	}
	s := New(nc,
		WithSubject(tsdispatch.Lookup(host, sink.Key(Name, "subject"), DefaultSubject)),
		WithCodec(codec),
		WithMask(mask))
	s.conn = nc
	return s, nil
}

func (s *Sink) Name() string          { return Name }
func (s *Sink) Mask() tsdispatch.Mask { return s.mask }

// Handle implements tsdispatch.Consumer
func (s *Sink) Handle(_ context.Context, ev *tsdispatch.Event) error {
	rec := sink.FromEvent(ev)
	data, err := s.codec.Encode(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.Kind, err)
	}
	msg := nats.NewMsg(sink.Topic(s.subject, ".", ev.Kind()))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, rec.ID)
	msg.Header.Set("Content-Type", s.codec.ContentType())
	if err := s.pub.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	return nil
}

// Close drains the connection if the sink opened it.
func (s *Sink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
