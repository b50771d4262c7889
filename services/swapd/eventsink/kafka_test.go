package eventsink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/ayushsaklani-min/AutoXshift/core/events"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	failures int
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("broker unavailable")
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakeWriter) snapshot() []kafka.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kafka.Message(nil), f.messages...)
}

type testEvent struct {
	typ   string
	attrs map[string]string
}

func (e testEvent) EventType() string { return e.typ }
func (e testEvent) Attributes() map[string]string { return e.attrs }

func TestSinkReplaysBacklogAndStreams(t *testing.T) {
	log := events.NewLog(16)
	log.Emit(testEvent{typ: "swap.executed", attrs: map[string]string{"id": "1"}})
	log.Emit(testEvent{typ: "ledger.paused", attrs: map[string]string{"paused": "true"}})

	writer := &fakeWriter{failures: 1}
	sink := New(writer, nil)
	sink.retry = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sink.Run(ctx, log) }()

	require.Eventually(t, func() bool { return writer.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	// LastSequence is read while Run is still delivering.
	require.Eventually(t, func() bool { return sink.LastSequence() == 2 }, 2*time.Second, 5*time.Millisecond)
	log.Emit(testEvent{typ: "swap.executed", attrs: map[string]string{"id": "2"}})
	require.Eventually(t, func() bool { return writer.count() == 3 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	msgs := writer.snapshot()
	require.Equal(t, "swap.executed", string(msgs[0].Key))
	require.Equal(t, "ledger.paused", string(msgs[1].Key))
	var entry events.Entry
	require.NoError(t, json.Unmarshal(msgs[2].Value, &entry))
	require.Equal(t, uint64(3), entry.Sequence)
	require.Equal(t, "2", entry.Attributes["id"])
	require.Equal(t, uint64(3), sink.LastSequence())

	writer.mu.Lock()
	require.True(t, writer.closed)
	writer.mu.Unlock()
}

func TestNewWriterValidatesConfig(t *testing.T) {
	_, err := NewWriter(Config{Topic: "t"})
	require.Error(t, err)
	_, err = NewWriter(Config{Brokers: []string{"localhost:9092"}})
	require.Error(t, err)
	w, err := NewWriter(Config{Brokers: []string{"localhost:9092"}, Topic: "autoxshift.ledger"})
	require.NoError(t, err)
	require.Equal(t, "autoxshift.ledger", w.Topic)
}

func TestMessageHeaders(t *testing.T) {
	msg, err := Message(events.Entry{Sequence: 7, Type: "token.minted", Time: time.Unix(1700000000, 0)})
	require.NoError(t, err)
	require.Equal(t, "token.minted", string(msg.Key))
	require.Equal(t, "7", string(msg.Headers[0].Value))
}
