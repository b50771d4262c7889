// Package eventsink forwards ledger events to Kafka.
package eventsink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ayushsaklani-min/AutoXshift/core/events"
	"github.com/ayushsaklani-min/AutoXshift/observability"
)

const sinkName = "kafka"

// MessageWriter is the subset of kafka.Writer used by the sink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config describes the target topic.
type Config struct {
	Brokers []string
	Topic   string
}

// NewWriter builds a synchronous, hash-balanced writer so events of one type
// land on one partition in order.
func NewWriter(cfg Config) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("kafka topic required")
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}, nil
}

// Sink replays the event log into a MessageWriter.
type Sink struct {
	writer MessageWriter
	logger *slog.Logger
	buffer int
	retry  time.Duration
	last   atomic.Uint64
}

// New constructs a sink.
func New(writer MessageWriter, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{writer: writer, logger: logger, buffer: 256, retry: time.Second}
}

// LastSequence reports the newest event sequence delivered.
func (s *Sink) LastSequence() uint64 {
	return s.last.Load()
}

// Run forwards every entry in log until ctx is cancelled. A subscriber that
// falls behind is re-subscribed from the last delivered sequence; entries
// already evicted from the log are counted as dropped.
func (s *Sink) Run(ctx context.Context, log *events.Log) error {
	if s.writer == nil || log == nil {
		return fmt.Errorf("event sink not configured")
	}
	defer func() {
		if err := s.writer.Close(); err != nil {
			s.logger.Warn("close kafka writer", "error", err)
		}
	}()
	for {
		ch, cancel, backlog := log.Subscribe(s.last.Load(), s.buffer)
		err := s.drain(ctx, ch, backlog)
		cancel()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.logger.Warn("event sink delivery failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retry):
			}
		} else {
			s.logger.Warn("event sink fell behind, resubscribing", "sequence", s.last.Load())
		}
	}
}

func (s *Sink) drain(ctx context.Context, ch <-chan events.Entry, backlog []events.Entry) error {
	for _, entry := range backlog {
		if err := s.deliver(ctx, entry); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-ch:
			if !ok {
				return nil
			}
			if err := s.deliver(ctx, entry); err != nil {
				return err
			}
		}
	}
}

func (s *Sink) deliver(ctx context.Context, entry events.Entry) error {
	last := s.last.Load()
	if entry.Sequence <= last {
		return nil
	}
	metrics := observability.Events()
	if last != 0 && entry.Sequence > last+1 {
		for seq := last + 1; seq < entry.Sequence; seq++ {
			metrics.RecordDropped(sinkName, "unknown")
		}
	}
	msg, err := Message(entry)
	if err != nil {
		metrics.RecordDropped(sinkName, entry.Type)
		s.last.Store(entry.Sequence)
		return nil
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("write %s: %w", entry.Type, err)
	}
	metrics.RecordPublished(sinkName, entry.Type)
	s.last.Store(entry.Sequence)
	return nil
}

// Message encodes an entry as a Kafka message keyed by event type.
func Message(entry events.Entry) (kafka.Message, error) {
	value, err := json.Marshal(entry)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(entry.Type),
		Value: value,
		Time:  entry.Time,
		Headers: []kafka.Header{
			{Key: "sequence", Value: []byte(fmt.Sprintf("%d", entry.Sequence))},
		},
	}, nil
}
