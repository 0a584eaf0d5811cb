// Package memory provides in-memory storage implementations used by tests
// and single-process deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/brigade/internal/domain/event"
	"github.com/louisbranch/brigade/internal/storage"
)

// EventStore is an in-memory append-only event journal safe for concurrent use.
type EventStore struct {
	mu       sync.Mutex
	registry *event.Registry
	streams  map[string][]event.Event
	now      func() time.Time
}

// NewEventStore creates an empty in-memory event store.
func NewEventStore(registry *event.Registry) *EventStore {
	return &EventStore{
		registry: registry,
		streams:  make(map[string][]event.Event),
		now:      time.Now,
	}
}

// SetClock overrides the recording clock. Tests only.
func (s *EventStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Append stores a batch atomically with contiguous versions, or fails without
// storing anything.
func (s *EventStore) Append(ctx context.Context, aggregateID string, expectedVersion uint64, events []event.Event) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("append requires at least one event")
	}
	if s.registry == nil {
		return nil, fmt.Errorf("event registry is required")
	}

	// Validate the whole batch before taking the lock.
	validated := make([]event.Event, len(events))
	for i, evt := range events {
		v, err := s.registry.ValidateForAppend(evt)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		if v.AggregateID != aggregateID {
			return nil, fmt.Errorf("event %d: aggregate id %q does not match stream %q", i, v.AggregateID, aggregateID)
		}
		validated[i] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	head := uint64(len(s.streams[aggregateID]))
	if head != expectedVersion {
		return nil, &storage.ConflictError{
			AggregateID:     aggregateID,
			ExpectedVersion: expectedVersion,
			ActualVersion:   head,
		}
	}

	recordedAt := s.now().UTC().Truncate(time.Millisecond)
	stored := make([]event.Event, len(validated))
	for i, evt := range validated {
		evt.Version = expectedVersion + uint64(i) + 1
		evt.RecordedAt = recordedAt
		stored[i] = evt
	}
	s.streams[aggregateID] = append(s.streams[aggregateID], stored...)

	return append([]event.Event(nil), stored...), nil
}

// Load returns every event of an aggregate ordered by version.
func (s *EventStore) Load(ctx context.Context, aggregateID string) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.streams[aggregateID]...), nil
}

// LoadAfter returns events with a version greater than afterVersion.
func (s *EventStore) LoadAfter(ctx context.Context, aggregateID string, afterVersion uint64) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stream := s.streams[aggregateID]
	if afterVersion >= uint64(len(stream)) {
		return nil, nil
	}
	return append([]event.Event(nil), stream[afterVersion:]...), nil
}

// LoadUpTo returns events recorded at or before the given instant.
func (s *EventStore) LoadUpTo(ctx context.Context, aggregateID string, until time.Time) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Event
	for _, evt := range s.streams[aggregateID] {
		if !evt.RecordedAt.After(until) {
			out = append(out, evt)
		}
	}
	return out, nil
}

// LoadBetween returns events recorded inside the inclusive window.
func (s *EventStore) LoadBetween(ctx context.Context, aggregateID string, from, to time.Time) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Event
	for _, evt := range s.streams[aggregateID] {
		if !evt.RecordedAt.Before(from) && !evt.RecordedAt.After(to) {
			out = append(out, evt)
		}
	}
	return out, nil
}

// LatestVersion returns the aggregate head, zero when no events exist.
func (s *EventStore) LatestVersion(ctx context.Context, aggregateID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(len(s.streams[aggregateID])), nil
}

// ReadModelStore is an in-memory projection record store.
type ReadModelStore struct {
	mu       sync.RWMutex
	orders   map[string]storage.OrderRecord
	sessions map[string]storage.SessionRecord
}

// NewReadModelStore creates an empty in-memory read-model store.
func NewReadModelStore() *ReadModelStore {
	return &ReadModelStore{
		orders:   make(map[string]storage.OrderRecord),
		sessions: make(map[string]storage.SessionRecord),
	}
}

func (s *ReadModelStore) UpsertOrder(ctx context.Context, record storage.OrderRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.OrderID == "" {
		return fmt.Errorf("order id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[record.OrderID] = record
	return nil
}

func (s *ReadModelStore) GetOrder(ctx context.Context, orderID string) (storage.OrderRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.OrderRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.orders[orderID]
	if !ok {
		return storage.OrderRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (s *ReadModelStore) ListOrdersByStatus(ctx context.Context, status string) ([]storage.OrderRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []storage.OrderRecord
	for _, record := range s.orders {
		if record.Status == status {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

func (s *ReadModelStore) UpsertSession(ctx context.Context, record storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[record.SessionID] = record
	return nil
}

func (s *ReadModelStore) GetSession(ctx context.Context, sessionID string) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.sessions[sessionID]
	if !ok {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	return record, nil
}
