package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/brigade/internal/domain/event"
	"github.com/louisbranch/brigade/internal/storage"
)

func testEvent(aggregateID string, eventType event.Type) event.Event {
	return event.Event{
		AggregateID: aggregateID,
		Type:        eventType,
		ActorType:   event.ActorTypeSystem,
		PayloadJSON: []byte(`{}`),
	}
}

func TestAppendAssignsContiguousVersions(t *testing.T) {
	ctx := context.Background()
	store := NewEventStore(event.NewRegistry())

	stored, err := store.Append(ctx, "order-1", 0, []event.Event{
		testEvent("order-1", event.TypeOrderStarted),
		testEvent("order-1", event.TypeOrderItemsModified),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if stored[0].Version != 1 || stored[1].Version != 2 {
		t.Fatalf("versions = %d, %d, want 1, 2", stored[0].Version, stored[1].Version)
	}
	if stored[0].RecordedAt.IsZero() {
		t.Fatal("RecordedAt not assigned")
	}

	head, err := store.LatestVersion(ctx, "order-1")
	if err != nil {
		t.Fatalf("latest version: %v", err)
	}
	if head != 2 {
		t.Fatalf("head = %d, want 2", head)
	}
}

func TestAppendStaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewEventStore(event.NewRegistry())

	if _, err := store.Append(ctx, "order-1", 0, []event.Event{testEvent("order-1", event.TypeOrderStarted)}); err != nil {
		t.Fatalf("first append: %v", err)
	}

	_, err := store.Append(ctx, "order-1", 0, []event.Event{testEvent("order-1", event.TypeOrderNoteAdded)})
	if !storage.IsConflict(err) {
		t.Fatalf("err = %v, want conflict", err)
	}

	// The losing append must not have stored anything.
	events, err := store.Load(ctx, "order-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
}

func TestAppendRejectsUnknownEventType(t *testing.T) {
	ctx := context.Background()
	store := NewEventStore(event.NewRegistry())

	_, err := store.Append(ctx, "order-1", 0, []event.Event{testEvent("order-1", event.Type("order.imagined"))})
	if err == nil {
		t.Fatal("append accepted unknown event type")
	}
}

func TestConcurrentWritersExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	store := NewEventStore(event.NewRegistry())

	if _, err := store.Append(ctx, "order-1", 0, []event.Event{testEvent("order-1", event.TypeOrderStarted)}); err != nil {
		t.Fatalf("seed append: %v", err)
	}

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Append(ctx, "order-1", 1, []event.Event{testEvent("order-1", event.TypeOrderNoteAdded)})
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case storage.IsConflict(err):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("winners = %d, want exactly 1", won)
	}

	head, _ := store.LatestVersion(ctx, "order-1")
	if head != 2 {
		t.Fatalf("head = %d, want 2", head)
	}
}

func TestLoadTimeWindows(t *testing.T) {
	ctx := context.Background()
	store := NewEventStore(event.NewRegistry())

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	store.SetClock(func() time.Time {
		at := base.Add(time.Duration(tick) * time.Minute)
		tick++
		return at
	})

	for i := 0; i < 3; i++ {
		expected := uint64(i)
		if _, err := store.Append(ctx, "order-1", expected, []event.Event{testEvent("order-1", event.TypeOrderNoteAdded)}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	upTo, err := store.LoadUpTo(ctx, "order-1", base.Add(time.Minute))
	if err != nil {
		t.Fatalf("load up to: %v", err)
	}
	if len(upTo) != 2 {
		t.Fatalf("events up to t+1m = %d, want 2", len(upTo))
	}

	between, err := store.LoadBetween(ctx, "order-1", base.Add(time.Minute), base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("load between: %v", err)
	}
	if len(between) != 2 {
		t.Fatalf("events in window = %d, want 2", len(between))
	}

	before, err := store.LoadUpTo(ctx, "order-1", base.Add(-time.Second))
	if err != nil {
		t.Fatalf("load before: %v", err)
	}
	if len(before) != 0 {
		t.Fatalf("events before start = %d, want 0", len(before))
	}
}

func TestReadModelStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewReadModelStore()

	if _, err := store.GetOrder(ctx, "order-1"); err != storage.ErrNotFound {
		t.Fatalf("missing order err = %v, want ErrNotFound", err)
	}

	record := storage.OrderRecord{OrderID: "order-1", Status: "draft", LastAppliedVersion: 1}
	if err := store.UpsertOrder(ctx, record); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := store.GetOrder(ctx, "order-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "draft" || got.LastAppliedVersion != 1 {
		t.Fatalf("record = %+v", got)
	}

	record.Status = "confirmed"
	record.LastAppliedVersion = 2
	if err := store.UpsertOrder(ctx, record); err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	byStatus, err := store.ListOrdersByStatus(ctx, "confirmed")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].OrderID != "order-1" {
		t.Fatalf("list by status = %+v", byStatus)
	}

	if err := store.UpsertSession(ctx, storage.SessionRecord{SessionID: "session-1", CartLines: 2}); err != nil {
		t.Fatalf("upsert session: %v", err)
	}
	sess, err := store.GetSession(ctx, "session-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.CartLines != 2 {
		t.Fatalf("session record = %+v", sess)
	}
}
