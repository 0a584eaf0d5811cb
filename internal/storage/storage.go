// Package storage defines the persistence contracts for the order engine:
// the append-only event store and the denormalized read-model store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/brigade/internal/domain/event"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("not found")

// ConflictError indicates an optimistic-concurrency failure: the aggregate
// head moved between the caller's read and its append.
type ConflictError struct {
	AggregateID     string
	ExpectedVersion uint64
	ActualVersion   uint64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s: expected head %d, found %d",
		e.AggregateID, e.ExpectedVersion, e.ActualVersion)
}

// IsConflict reports whether an error is an optimistic-concurrency conflict.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

// EventStore is the append-only event journal.
//
// Append is atomic: either every event in the batch is stored with contiguous
// versions starting at expectedVersion+1, or nothing is. When the stored head
// differs from expectedVersion the append fails with a ConflictError and the
// caller must reload and re-decide.
type EventStore interface {
	Append(ctx context.Context, aggregateID string, expectedVersion uint64, events []event.Event) ([]event.Event, error)
	// Load returns every event of an aggregate ordered by version.
	Load(ctx context.Context, aggregateID string) ([]event.Event, error)
	// LoadAfter returns events with a version greater than afterVersion.
	LoadAfter(ctx context.Context, aggregateID string, afterVersion uint64) ([]event.Event, error)
	// LoadUpTo returns events recorded at or before the given instant.
	LoadUpTo(ctx context.Context, aggregateID string, until time.Time) ([]event.Event, error)
	// LoadBetween returns events recorded inside the inclusive window.
	LoadBetween(ctx context.Context, aggregateID string, from, to time.Time) ([]event.Event, error)
	// LatestVersion returns the aggregate head, zero when no events exist.
	LatestVersion(ctx context.Context, aggregateID string) (uint64, error)
}

// ReadModelStore persists denormalized projection records keyed by aggregate
// id. Records carry LastAppliedVersion so projection application stays
// idempotent under duplicate delivery.
type ReadModelStore interface {
	UpsertOrder(ctx context.Context, record OrderRecord) error
	GetOrder(ctx context.Context, orderID string) (OrderRecord, error)
	ListOrdersByStatus(ctx context.Context, status string) ([]OrderRecord, error)
	UpsertSession(ctx context.Context, record SessionRecord) error
	GetSession(ctx context.Context, sessionID string) (SessionRecord, error)
}

// OrderRecord is the denormalized order read model.
type OrderRecord struct {
	OrderID            string
	LocationID         string
	StaffID            string
	Status             string
	ServingType        string
	TableNumber        string
	ItemCount          int
	Subtotal           int64
	Tax                int64
	Discount           int64
	Total              int64
	Currency           string
	PaymentMethod      string
	CustomerName       string
	SourceSessionID    string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	LastAppliedVersion uint64
}

// SessionRecord is the denormalized session read model.
type SessionRecord struct {
	SessionID          string
	CustomerID         string
	LocationID         string
	ServingType        string
	CartLines          int
	CartQuantity       int
	PaymentMethod      string
	Interactions       int
	Converted          bool
	ConvertedOrderID   string
	StartedAt          time.Time
	UpdatedAt          time.Time
	LastAppliedVersion uint64
}
