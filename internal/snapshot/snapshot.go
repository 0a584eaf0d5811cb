// Package snapshot caches replayed aggregate state at a known version so
// long streams do not need a full replay on every load.
//
// Snapshots are a pure optimization. The journal remains the source of
// truth; a missing, stale, or deleted snapshot only costs replay time and
// never changes observable state.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/louisbranch/brigade/internal/domain/order"
	"github.com/louisbranch/brigade/internal/storage"
)

// Snapshot is a serialized aggregate state at a specific version.
type Snapshot struct {
	AggregateID string
	Version     uint64
	StateJSON   []byte
	TakenAt     time.Time
}

// Store persists snapshots keyed by aggregate id, newest version wins.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	// Latest returns the newest snapshot, reporting false when none exists.
	Latest(ctx context.Context, aggregateID string) (Snapshot, bool, error)
}

// MemoryStore is an in-memory snapshot store safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]Snapshot
}

// NewMemoryStore creates an empty in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]Snapshot)}
}

// Save stores a snapshot unless a newer one already exists.
func (s *MemoryStore) Save(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap.AggregateID == "" {
		return fmt.Errorf("aggregate id is required")
	}
	if snap.Version == 0 {
		return fmt.Errorf("snapshot version is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.snaps[snap.AggregateID]; ok && existing.Version >= snap.Version {
		return nil
	}
	s.snaps[snap.AggregateID] = snap
	return nil
}

// Latest returns the newest snapshot for an aggregate.
func (s *MemoryStore) Latest(ctx context.Context, aggregateID string) (Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[aggregateID]
	return snap, ok, nil
}

// OrderLoader replays order state, starting from the latest snapshot when one
// exists and snapshotting again once the stream outgrows the interval.
type OrderLoader struct {
	events    storage.EventStore
	snapshots Store
	interval  uint64
}

// NewOrderLoader creates a loader that snapshots every interval events.
// A zero interval disables snapshot writes; reads still use existing ones.
func NewOrderLoader(events storage.EventStore, snapshots Store, interval uint64) *OrderLoader {
	return &OrderLoader{events: events, snapshots: snapshots, interval: interval}
}

// Load returns the replayed order state and the stream head version.
func (l *OrderLoader) Load(ctx context.Context, orderID string) (order.State, uint64, error) {
	if l == nil || l.events == nil {
		return order.State{}, 0, fmt.Errorf("order loader is not configured")
	}

	var state order.State
	var fromVersion uint64

	if l.snapshots != nil {
		snap, ok, err := l.snapshots.Latest(ctx, orderID)
		if err != nil {
			return order.State{}, 0, fmt.Errorf("load snapshot: %w", err)
		}
		if ok {
			if err := json.Unmarshal(snap.StateJSON, &state); err != nil {
				// A corrupt snapshot must not break loading; fall back to
				// full replay.
				state = order.State{}
			} else {
				fromVersion = snap.Version
			}
		}
	}

	events, err := l.events.LoadAfter(ctx, orderID, fromVersion)
	if err != nil {
		return order.State{}, 0, fmt.Errorf("load events: %w", err)
	}

	head := fromVersion
	for _, evt := range events {
		state = order.Fold(state, evt)
		head = evt.Version
	}

	if l.snapshots != nil && l.interval > 0 && head >= fromVersion+l.interval {
		stateJSON, err := json.Marshal(state)
		if err == nil {
			_ = l.snapshots.Save(ctx, Snapshot{
				AggregateID: orderID,
				Version:     head,
				StateJSON:   stateJSON,
				TakenAt:     time.Now().UTC(),
			})
		}
	}

	return state, head, nil
}
