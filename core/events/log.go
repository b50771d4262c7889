package events

import (
	"sync"
	"time"
)

const (
	defaultLogCapacity    = 1024
	defaultSubscriberSize = 64
)

// Entry is the flattened, sequenced form of an emitted event.
type Entry struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Time       time.Time         `json:"time"`
}

// Log is an append-only, in-process event journal. It retains the most recent
// entries for backlog replay and fans new entries out to subscribers. Slow
// subscribers are dropped rather than blocking the emitter.
type Log struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	next     uint64
	subs     map[uint64]chan Entry
	subSeq   uint64
	clock    func() time.Time
}

// NewLog constructs a log retaining up to capacity entries.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = defaultLogCapacity
	}
	return &Log{
		capacity: capacity,
		next:     1,
		subs:     make(map[uint64]chan Entry),
		clock:    time.Now,
	}
}

// SetClock overrides the timestamp source used for new entries.
func (l *Log) SetClock(clock func() time.Time) {
	if l == nil || clock == nil {
		return
	}
	l.mu.Lock()
	l.clock = clock
	l.mu.Unlock()
}

// Emit implements Emitter.
func (l *Log) Emit(ev Event) {
	if l == nil || ev == nil {
		return
	}
	attrs := make(map[string]string)
	for k, v := range ev.Attributes() {
		attrs[k] = v
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := Entry{
		Sequence:   l.next,
		Type:       ev.EventType(),
		Attributes: attrs,
		Time:       l.clock().UTC(),
	}
	l.next++
	l.entries = append(l.entries, entry)
	if overflow := len(l.entries) - l.capacity; overflow > 0 {
		l.entries = append([]Entry(nil), l.entries[overflow:]...)
	}
	for id, ch := range l.subs {
		select {
		case ch <- entry:
		default:
			close(ch)
			delete(l.subs, id)
		}
	}
}

// Entries returns the retained entries with a sequence greater than after.
func (l *Log) Entries(after uint64) []Entry {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backlogLocked(after)
}

// Subscribe registers a new subscriber. The returned backlog holds retained
// entries newer than after; the channel then delivers every later entry until
// cancel is invoked or the subscriber falls behind.
func (l *Log) Subscribe(after uint64, buffer int) (<-chan Entry, func(), []Entry) {
	if buffer <= 0 {
		buffer = defaultSubscriberSize
	}
	ch := make(chan Entry, buffer)
	l.mu.Lock()
	id := l.subSeq
	l.subSeq++
	l.subs[id] = ch
	backlog := l.backlogLocked(after)
	l.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if existing, ok := l.subs[id]; ok {
				close(existing)
				delete(l.subs, id)
			}
		})
	}
	return ch, cancel, backlog
}

func (l *Log) backlogLocked(after uint64) []Entry {
	out := make([]Entry, 0, len(l.entries))
	for _, entry := range l.entries {
		if entry.Sequence > after {
			out = append(out, cloneEntry(entry))
		}
	}
	return out
}

func cloneEntry(e Entry) Entry {
	attrs := make(map[string]string, len(e.Attributes))
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	e.Attributes = attrs
	return e
}
