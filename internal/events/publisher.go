package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/learnlog/internal/domain"
)

// DefaultTopic receives every learning event unless configured otherwise.
const DefaultTopic = "learning_events"

const (
	defaultPublishTimeout = 5 * time.Second
	flushInterval         = 5 * time.Millisecond
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PublisherOption customises a KafkaPublisher.
type PublisherOption func(*KafkaPublisher)

// WithLogger overrides the publisher logger.
func WithLogger(logger *log.Logger) PublisherOption {
	return func(p *KafkaPublisher) {
		p.logger = logger
	}
}

// WithTopic overrides the destination topic.
func WithTopic(topic string) PublisherOption {
	return func(p *KafkaPublisher) {
		if topic != "" {
			p.topic = topic
		}
	}
}

// WithPublishTimeout bounds each write. Writes are detached from the caller's
// cancellation, so this is the only limit on how long Notify can take.
func WithPublishTimeout(d time.Duration) PublisherOption {
	return func(p *KafkaPublisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func withWriterFactory(factory func(topic string) messageWriter) PublisherOption {
	return func(p *KafkaPublisher) {
		p.newWriter = factory
	}
}

// KafkaPublisher implements domain.Notifier by writing events to Kafka. Writers are
// created lazily per topic.
type KafkaPublisher struct {
	topic     string
	timeout   time.Duration
	logger    *log.Logger
	newWriter func(topic string) messageWriter

	mu      sync.Mutex
	writers map[string]messageWriter
}

// NewKafkaPublisher creates a KafkaPublisher for brokers.
func NewKafkaPublisher(brokers []string, opts ...PublisherOption) *KafkaPublisher {
	p := &KafkaPublisher{
		topic:   DefaultTopic,
		logger:  log.New(log.Writer(), "[events] ", log.LstdFlags),
		writers: make(map[string]messageWriter),
		timeout: defaultPublishTimeout,
		newWriter: func(topic string) messageWriter {
			return newKafkaWriter(brokers, topic)
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// newKafkaWriter builds the writer for one topic. Notify waits for every message,
// so a batch is flushed as soon as it holds one.
func newKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
		BatchSize:              1,
		BatchTimeout:           flushInterval,
	}
}

// Notify implements domain.Notifier. Messages are keyed by student id so a
// student's events stay ordered within a partition.
func (p *KafkaPublisher) Notify(ctx context.Context, event domain.Event) error {
	payload, err := PayloadFor(event)
	if err != nil {
		return err
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.StudentID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(event.Type)},
			{Key: HeaderStudentID, Value: []byte(event.StudentID)},
		},
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.writerForTopic(p.topic).WriteMessages(writeCtx, msg); err != nil {
		publishFailedCounter.WithLabelValues(string(event.Type)).Inc()
		return fmt.Errorf("publish %s to %s: %w", event.Type, p.topic, err)
	}
	publishedCounter.WithLabelValues(string(event.Type)).Inc()
	return nil
}

func (p *KafkaPublisher) writerForTopic(topic string) messageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}
	writer := p.newWriter(topic)
	p.writers[topic] = writer
	p.logger.Printf("created writer for topic %s", topic)
	return writer
}

// Close releases all writers.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.writers, topic)
	}
	return firstErr
}
