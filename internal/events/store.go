package events

import (
	"context"
	"sync"
)

// Store is the append-only event journal. It is an audit trail for
// operators, not a query index.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// InMemoryStore keeps the journal in process. Suitable for tests and for
// deployments that only need the Kafka sink.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListRecent returns up to limit events, newest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]Event, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

// JournalSink appends every event to a Store.
type JournalSink struct {
	store Store
}

func NewJournalSink(store Store) *JournalSink {
	return &JournalSink{store: store}
}

func (s *JournalSink) Publish(ctx context.Context, event Event) error {
	return s.store.Append(ctx, event)
}
