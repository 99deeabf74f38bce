// Package kafka produces events to Kafka topics, one topic per kind:
// "<prefix>.<kind>". Records are keyed by TSUID, or by metric when the
// TSUID is empty, so a series stays on one partition.
//
// Registered as "kafka". Settings:
//
//	tsd.dispatch.kafka.brokers  comma separated broker list ("localhost:9092")
//	tsd.dispatch.kafka.topic    topic prefix ("tsd")
//	tsd.dispatch.kafka.codec    json, msgpack or proto
//	tsd.dispatch.kafka.kinds    kinds to forward (publish kinds)
package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	"github.com/rbaliyan/tsdispatch"
	"github.com/rbaliyan/tsdispatch/payload"
	"github.com/rbaliyan/tsdispatch/sink"
)

// Name is the factory name.
const Name = "kafka"

// DefaultTopic prefixes topics when none is configured.
const DefaultTopic = "tsd"

// ErrProducerRequired is returned by New for a nil producer.
var ErrProducerRequired = errors.New("kafka producer is required")

func init() {
	tsdispatch.MustRegisterConsumer(Name, Factory)
}

// Sink produces events synchronously; the consumer returns once the
// broker acknowledged the record.
type Sink struct {
	producer sarama.SyncProducer
	topic    string
	codec    payload.Codec
	mask     tsdispatch.Mask
}

// Option configures a Sink.
type Option func(*Sink)

// WithTopic sets the topic prefix.
func WithTopic(prefix string) Option {
	return func(s *Sink) { s.topic = prefix }
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

// New wraps producer. The sink owns it and closes it on Close.
func New(producer sarama.SyncProducer, opts ...Option) (*Sink, error) {
	if producer == nil {
		return nil, ErrProducerRequired
	}
	s := &Sink{
		producer: producer,
		topic:    DefaultTopic,
		codec:    payload.Default(),
		mask:     tsdispatch.PublishMask(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewConfig returns the producer configuration the factory uses.
func NewConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "tsdispatch"
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	return cfg
}

// Factory connects a producer to the configured brokers.
func Factory(host tsdispatch.Host) (tsdispatch.Consumer, error) {
	mask, err := sink.Mask(host, Name, tsdispatch.PublishMask())
	if err != nil {
		return nil, err
	}
	codec, err := sink.Codec(host, Name)
	if err != nil {
		return nil, err
	}
	var brokers []string
	for _, b := range strings.Split(tsdispatch.Lookup(host, sink.Key(Name, "brokers"), "localhost:9092"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf("%s: no brokers: %w", Name, tsdispatch.ErrConfig)
	}
	producer, err := sarama.NewSyncProducer(brokers, NewConfig())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", Name, err)
	}
	return New(producer,
		WithTopic(tsdispatch.Lookup(host, sink.Key(Name, "topic"), DefaultTopic)),
		WithCodec(codec),
		WithMask(mask))
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
	key := rec.TSUID
	if key == "" {
		key = rec.Metric
	}
	msg := &sarama.ProducerMessage{
		Topic: sink.Topic(s.topic, ".", ev.Kind()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("id"), Value: []byte(rec.ID)},
			{Key: []byte("content-type"), Value: []byte(s.codec.ContentType())},
		},
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("produce %s: %w", msg.Topic, err)
	}
	return nil
}

// Close closes the producer.
func (s *Sink) Close() error {
	return s.producer.Close()
}
