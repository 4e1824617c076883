package sink

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Message headers set on every published batch.
const (
	HeaderSequence = "chrometrace-seq"
	HeaderRun      = "chrometrace-run"
)

// MessageWriter is the part of *kafka.Writer the Kafka sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each batch as one message keyed by the run id, so
// every batch of a run lands on one partition in order. Consumers
// concatenate message values by sequence to rebuild the document.
type KafkaSink struct {
	writer  MessageWriter
	runID   string
	timeout time.Duration
	seq     atomic.Int64
}

// NewKafka creates a synchronous writer for cfg.Topic.
func NewKafka(cfg KafkaConfig) (*KafkaSink, error) {
	if cfg.Topic == "" {
		return nil, ErrMissingTopic
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultKafkaWriteTimeout
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: timeout,
	}
	return NewKafkaWithWriter(w, timeout), nil
}

// NewKafkaWithWriter publishes through w.
func NewKafkaWithWriter(w MessageWriter, timeout time.Duration) *KafkaSink {
	if timeout <= 0 {
		timeout = DefaultKafkaWriteTimeout
	}
	return &KafkaSink{writer: w, runID: uuid.NewString(), timeout: timeout}
}

// RunID returns the key every message of this sink carries.
func (s *KafkaSink) RunID() string { return s.runID }

// Write publishes p as one message.
func (s *KafkaSink) Write(ctx context.Context, p []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	value := make([]byte, len(p))
	copy(value, p)
	seq := s.seq.Add(1)
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(s.runID),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderRun, Value: []byte(s.runID)},
			{Key: HeaderSequence, Value: []byte(strconv.FormatInt(seq, 10))},
		},
	})
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
