// Package projection maintains denormalized read models from the event
// journal. Application is idempotent: an event at or below the record's
// LastAppliedVersion is a no-op, so duplicate delivery and replays are safe.
package projection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/brigade/internal/domain/event"
	"github.com/louisbranch/brigade/internal/domain/order"
	"github.com/louisbranch/brigade/internal/domain/session"
	"github.com/louisbranch/brigade/internal/storage"
)

// Applier updates read-model records as events are appended.
//
// The journal stays the source of truth: the applier replays the aggregate
// stream and projects the resulting state, so a record can always be
// reconstructed from events alone.
type Applier struct {
	events     storage.EventStore
	readModels storage.ReadModelStore
}

// NewApplier creates an applier over the given stores.
func NewApplier(events storage.EventStore, readModels storage.ReadModelStore) *Applier {
	return &Applier{events: events, readModels: readModels}
}

// Apply folds one appended event into its read-model record. Events already
// reflected in the record are skipped.
func (a *Applier) Apply(ctx context.Context, evt event.Event) error {
	if a == nil || a.events == nil || a.readModels == nil {
		return fmt.Errorf("projection applier is not configured")
	}
	if evt.Version == 0 {
		return fmt.Errorf("event version is required")
	}

	switch evt.Type.Domain() {
	case "order":
		return a.applyOrder(ctx, evt)
	case "session":
		return a.applySession(ctx, evt)
	default:
		return fmt.Errorf("unknown event domain: %s", evt.Type)
	}
}

// Rebuild reconstructs a record from scratch by replaying the full stream.
// Used for repair and schema migration of read models.
func (a *Applier) Rebuild(ctx context.Context, aggregateID string) error {
	if a == nil || a.events == nil || a.readModels == nil {
		return fmt.Errorf("projection applier is not configured")
	}

	events, err := a.events.Load(ctx, aggregateID)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	if len(events) == 0 {
		return storage.ErrNotFound
	}

	last := events[len(events)-1]
	switch last.Type.Domain() {
	case "order":
		record := OrderRecordFrom(aggregateID, order.Replay(events), last)
		return a.readModels.UpsertOrder(ctx, record)
	case "session":
		record := SessionRecordFrom(aggregateID, session.Replay(events), last)
		return a.readModels.UpsertSession(ctx, record)
	default:
		return fmt.Errorf("unknown event domain: %s", last.Type)
	}
}

func (a *Applier) applyOrder(ctx context.Context, evt event.Event) error {
	record, err := a.readModels.GetOrder(ctx, evt.AggregateID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("get order record: %w", err)
	}
	if evt.Version <= record.LastAppliedVersion {
		return nil
	}

	events, err := a.events.Load(ctx, evt.AggregateID)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	upTo := eventsUpToVersion(events, evt.Version)
	if len(upTo) == 0 {
		return fmt.Errorf("event %s@%d not found in journal", evt.AggregateID, evt.Version)
	}

	next := OrderRecordFrom(evt.AggregateID, order.Replay(upTo), upTo[len(upTo)-1])
	return a.readModels.UpsertOrder(ctx, next)
}

func (a *Applier) applySession(ctx context.Context, evt event.Event) error {
	record, err := a.readModels.GetSession(ctx, evt.AggregateID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("get session record: %w", err)
	}
	if evt.Version <= record.LastAppliedVersion {
		return nil
	}

	events, err := a.events.Load(ctx, evt.AggregateID)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	upTo := eventsUpToVersion(events, evt.Version)
	if len(upTo) == 0 {
		return fmt.Errorf("event %s@%d not found in journal", evt.AggregateID, evt.Version)
	}

	next := SessionRecordFrom(evt.AggregateID, session.Replay(upTo), upTo[len(upTo)-1])
	return a.readModels.UpsertSession(ctx, next)
}

func eventsUpToVersion(events []event.Event, version uint64) []event.Event {
	for i, evt := range events {
		if evt.Version > version {
			return events[:i]
		}
	}
	return events
}

// OrderRecordFrom projects replayed order state into its read-model record.
func OrderRecordFrom(orderID string, state order.State, last event.Event) storage.OrderRecord {
	itemCount := 0
	for _, item := range state.Items {
		itemCount += item.Quantity
	}
	createdAt := time.Time{}
	if state.Timestamps.StartedAt != nil {
		createdAt = *state.Timestamps.StartedAt
	}
	return storage.OrderRecord{
		OrderID:            orderID,
		LocationID:         state.LocationID,
		StaffID:            state.StaffID,
		Status:             string(state.Status),
		ServingType:        string(state.ServingType),
		TableNumber:        state.TableNumber,
		ItemCount:          itemCount,
		Subtotal:           state.Money.Subtotal,
		Tax:                state.Money.Tax,
		Discount:           state.Money.Discount,
		Total:              state.Money.Total,
		Currency:           state.Money.Currency,
		PaymentMethod:      state.PaymentMethod,
		CustomerName:       state.Customer.Name,
		SourceSessionID:    state.SourceSessionID,
		CreatedAt:          createdAt,
		UpdatedAt:          last.RecordedAt,
		LastAppliedVersion: last.Version,
	}
}

// SessionRecordFrom projects replayed session state into its read-model record.
func SessionRecordFrom(sessionID string, state session.State, last event.Event) storage.SessionRecord {
	quantity := 0
	for _, line := range state.Cart {
		quantity += line.Quantity
	}
	return storage.SessionRecord{
		SessionID:          sessionID,
		CustomerID:         state.CustomerID,
		LocationID:         state.LocationID,
		ServingType:        string(state.ServingType),
		CartLines:          len(state.Cart),
		CartQuantity:       quantity,
		PaymentMethod:      state.PaymentMethod,
		Interactions:       len(state.Interactions),
		Converted:          state.Converted,
		ConvertedOrderID:   state.ConvertedOrderID,
		StartedAt:          state.StartedAt,
		UpdatedAt:          last.RecordedAt,
		LastAppliedVersion: last.Version,
	}
}
