// Package timeline provides read-only introspection over event streams:
// point-in-time state reconstruction, stream statistics, and annotated
// event windows for audit views.
package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/louisbranch/brigade/internal/domain/event"
	"github.com/louisbranch/brigade/internal/domain/order"
	"github.com/louisbranch/brigade/internal/domain/session"
	"github.com/louisbranch/brigade/internal/storage"
)

// Service answers introspection queries against the event journal. It never
// writes; time travel is replaying a prefix of the stream.
type Service struct {
	events storage.EventStore
}

// NewService creates a timeline service over the event store.
func NewService(events storage.EventStore) *Service {
	return &Service{events: events}
}

// OrderStateAt returns the order state as of the given instant. It reports
// false when the stream has no events recorded at or before that time; an
// instant at or after the last event yields current state.
func (s *Service) OrderStateAt(ctx context.Context, orderID string, at time.Time) (order.State, bool, error) {
	events, err := s.events.LoadUpTo(ctx, orderID, at)
	if err != nil {
		return order.State{}, false, fmt.Errorf("load events: %w", err)
	}
	if len(events) == 0 {
		return order.State{}, false, nil
	}
	return order.Replay(events), true, nil
}

// SessionStateAt returns the session state as of the given instant.
func (s *Service) SessionStateAt(ctx context.Context, sessionID string, at time.Time) (session.State, bool, error) {
	events, err := s.events.LoadUpTo(ctx, sessionID, at)
	if err != nil {
		return session.State{}, false, fmt.Errorf("load events: %w", err)
	}
	if len(events) == 0 {
		return session.State{}, false, nil
	}
	return session.Replay(events), true, nil
}

// Statistics summarizes one event stream.
type Statistics struct {
	TotalEvents     int
	CountsByType    map[event.Type]int
	CountsByActor   map[event.ActorType]int
	FirstRecordedAt time.Time
	LastRecordedAt  time.Time
	// Duration is the recorded span between first and last event.
	Duration time.Duration
}

// Statistics computes stream statistics, or ErrNotFound for an empty stream.
func (s *Service) Statistics(ctx context.Context, aggregateID string) (Statistics, error) {
	events, err := s.events.Load(ctx, aggregateID)
	if err != nil {
		return Statistics{}, fmt.Errorf("load events: %w", err)
	}
	if len(events) == 0 {
		return Statistics{}, storage.ErrNotFound
	}

	stats := Statistics{
		TotalEvents:     len(events),
		CountsByType:    make(map[event.Type]int),
		CountsByActor:   make(map[event.ActorType]int),
		FirstRecordedAt: events[0].RecordedAt,
		LastRecordedAt:  events[len(events)-1].RecordedAt,
	}
	for _, evt := range events {
		stats.CountsByType[evt.Type]++
		stats.CountsByActor[evt.ActorType]++
	}
	stats.Duration = stats.LastRecordedAt.Sub(stats.FirstRecordedAt)
	return stats, nil
}

// Entry is one annotated event in a timeline window.
type Entry struct {
	Version    uint64          `json:"version"`
	Type       event.Type      `json:"type"`
	Title      string          `json:"title"`
	Icon       string          `json:"icon"`
	Color      string          `json:"color"`
	ActorType  event.ActorType `json:"actor_type"`
	ActorID    string          `json:"actor_id,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	RecordedAt time.Time       `json:"recorded_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Window returns annotated entries recorded inside the inclusive window.
func (s *Service) Window(ctx context.Context, aggregateID string, from, to time.Time) ([]Entry, error) {
	events, err := s.events.LoadBetween(ctx, aggregateID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	entries := make([]Entry, 0, len(events))
	for _, evt := range events {
		descriptor := Describe(evt.Type)
		entries = append(entries, Entry{
			Version:    evt.Version,
			Type:       evt.Type,
			Title:      descriptor.Title,
			Icon:       descriptor.Icon,
			Color:      descriptor.Color,
			ActorType:  evt.ActorType,
			ActorID:    evt.ActorID,
			Timestamp:  evt.Timestamp,
			RecordedAt: evt.RecordedAt,
			Payload:    json.RawMessage(evt.PayloadJSON),
		})
	}
	return entries, nil
}
