package timeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/louisbranch/brigade/internal/domain/event"
	"github.com/louisbranch/brigade/internal/domain/order"
	"github.com/louisbranch/brigade/internal/storage"
	"github.com/louisbranch/brigade/internal/storage/memory"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// seedOrder appends one event per minute starting at base.
func seedOrder(t *testing.T) (*Service, *memory.EventStore) {
	t.Helper()
	ctx := context.Background()
	events := memory.NewEventStore(event.NewRegistry())
	tick := 0
	events.SetClock(func() time.Time {
		at := base.Add(time.Duration(tick) * time.Minute)
		tick++
		return at
	})

	mustJSON := func(payload any) []byte {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return raw
	}
	batch := []struct {
		eventType event.Type
		payload   any
	}{
		{event.TypeOrderStarted, order.StartPayload{StaffID: "staff-1", ServingType: order.ServingTypeDineIn}},
		{event.TypeOrderItemsModified, order.ModifyItemsPayload{Add: []order.Item{{ItemID: "burger", Quantity: 1, UnitPrice: 900}}}},
		{event.TypeOrderStatusChanged, order.StatusChangePayload{From: order.StatusDraft, To: order.StatusConfirmed}},
		{event.TypeOrderNoteAdded, order.NotePayload{Text: "rush"}},
	}
	for i, item := range batch {
		if _, err := events.Append(ctx, "order-1", uint64(i), []event.Event{{
			AggregateID: "order-1",
			Type:        item.eventType,
			ActorType:   event.ActorTypeStaff,
			ActorID:     "staff-1",
			PayloadJSON: mustJSON(item.payload),
		}}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	return NewService(events), events
}

func TestOrderStateAtBeforeFirstEvent(t *testing.T) {
	service, _ := seedOrder(t)
	_, found, err := service.OrderStateAt(context.Background(), "order-1", base.Add(-time.Second))
	if err != nil {
		t.Fatalf("state at: %v", err)
	}
	if found {
		t.Fatal("found state before the first event")
	}
}

func TestOrderStateAtMidStream(t *testing.T) {
	service, _ := seedOrder(t)

	// After start and item add, before the confirm.
	state, found, err := service.OrderStateAt(context.Background(), "order-1", base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("state at: %v", err)
	}
	if !found {
		t.Fatal("state not found mid-stream")
	}
	if state.Status != order.StatusDraft || len(state.Items) != 1 {
		t.Fatalf("mid-stream state = status %s, %d items", state.Status, len(state.Items))
	}
}

func TestOrderStateAtAfterLastEventIsCurrent(t *testing.T) {
	service, _ := seedOrder(t)
	state, found, err := service.OrderStateAt(context.Background(), "order-1", base.Add(time.Hour))
	if err != nil {
		t.Fatalf("state at: %v", err)
	}
	if !found {
		t.Fatal("state not found after last event")
	}
	if state.Status != order.StatusConfirmed || len(state.Notes) != 1 {
		t.Fatalf("current state = status %s, %d notes", state.Status, len(state.Notes))
	}
}

func TestStatistics(t *testing.T) {
	service, _ := seedOrder(t)
	stats, err := service.Statistics(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalEvents != 4 {
		t.Fatalf("total = %d, want 4", stats.TotalEvents)
	}
	if stats.CountsByType[event.TypeOrderStatusChanged] != 1 {
		t.Fatalf("counts by type = %+v", stats.CountsByType)
	}
	if stats.CountsByActor[event.ActorTypeStaff] != 4 {
		t.Fatalf("counts by actor = %+v", stats.CountsByActor)
	}
	if stats.Duration != 3*time.Minute {
		t.Fatalf("duration = %s, want 3m", stats.Duration)
	}
}

func TestStatisticsEmptyStream(t *testing.T) {
	service := NewService(memory.NewEventStore(event.NewRegistry()))
	if _, err := service.Statistics(context.Background(), "order-missing"); err != storage.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestWindowAnnotatesEntries(t *testing.T) {
	service, _ := seedOrder(t)
	entries, err := service.Window(context.Background(), "order-1", base.Add(time.Minute), base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Type != event.TypeOrderItemsModified || entries[0].Title != "Items changed" {
		t.Fatalf("entry = %+v", entries[0])
	}
	if entries[1].Color == "" || entries[1].Icon == "" {
		t.Fatalf("entry missing annotation: %+v", entries[1])
	}
}

func TestDescriptorTableIsExhaustive(t *testing.T) {
	for _, eventType := range event.Types() {
		descriptor := Describe(eventType)
		if descriptor == unknownDescriptor {
			t.Fatalf("event type %s has no descriptor", eventType)
		}
		if descriptor.Title == "" || descriptor.Icon == "" || descriptor.Color == "" {
			t.Fatalf("descriptor for %s is incomplete: %+v", eventType, descriptor)
		}
	}
}

func TestDescribeUnknownType(t *testing.T) {
	if got := Describe(event.Type("order.future")); got != unknownDescriptor {
		t.Fatalf("descriptor = %+v, want unknown", got)
	}
}
