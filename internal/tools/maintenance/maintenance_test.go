package maintenance

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/brigade/internal/domain/event"
	"github.com/louisbranch/brigade/internal/domain/order"
	"github.com/louisbranch/brigade/internal/storage/memory"
)

type noCloseEvents struct{ *memory.EventStore }

func (noCloseEvents) Close() error { return nil }

type noCloseReadModels struct{ *memory.ReadModelStore }

func (noCloseReadModels) Close() error { return nil }

func seedOrderStream(t *testing.T, events *memory.EventStore, now func() time.Time) {
	t.Helper()
	events.SetClock(now)

	marshal := func(payload any) []byte {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		return raw
	}
	// Separate appends so each event gets its own recording instant.
	started := event.Event{
		AggregateID: "order-1",
		Type:        event.TypeOrderStarted,
		ActorType:   event.ActorTypeStaff,
		ActorID:     "staff-1",
		PayloadJSON: marshal(order.StartPayload{StaffID: "staff-1", LocationID: "loc-1", ServingType: order.ServingTypeDineIn}),
	}
	if _, err := events.Append(context.Background(), "order-1", 0, []event.Event{started}); err != nil {
		t.Fatalf("append: %v", err)
	}
	modified := event.Event{
		AggregateID: "order-1",
		Type:        event.TypeOrderItemsModified,
		ActorType:   event.ActorTypeStaff,
		ActorID:     "staff-1",
		PayloadJSON: marshal(order.ModifyItemsPayload{Add: []order.Item{{ItemID: "burger", Quantity: 2, UnitPrice: 900}}}),
	}
	if _, err := events.Append(context.Background(), "order-1", 1, []event.Event{modified}); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestRunRebuildsReadModel(t *testing.T) {
	events := memory.NewEventStore(event.NewRegistry())
	readModels := memory.NewReadModelStore()
	seedOrderStream(t, events, time.Now)

	var out, errOut bytes.Buffer
	cfg := Config{AggregateID: "order-1"}
	if err := runWithDeps(context.Background(), cfg, noCloseEvents{events}, noCloseReadModels{readModels}, &out, &errOut); err != nil {
		t.Fatalf("runWithDeps() error = %v (stderr: %s)", err, errOut.String())
	}

	record, err := readModels.GetOrder(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	if record.LastAppliedVersion != 2 || record.ItemCount != 2 {
		t.Fatalf("record = %+v", record)
	}
	if !strings.Contains(out.String(), "through version 2") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestRunStatsJSON(t *testing.T) {
	events := memory.NewEventStore(event.NewRegistry())
	readModels := memory.NewReadModelStore()
	seedOrderStream(t, events, time.Now)

	var out bytes.Buffer
	cfg := Config{AggregateID: "order-1", Stats: true, JSONOutput: true}
	if err := runWithDeps(context.Background(), cfg, noCloseEvents{events}, noCloseReadModels{readModels}, &out, nil); err != nil {
		t.Fatalf("runWithDeps() error = %v", err)
	}

	var result struct {
		AggregateID string          `json:"aggregate_id"`
		Mode        string          `json:"mode"`
		Report      json.RawMessage `json:"report"`
	}
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("decode output: %v (%q)", err, out.String())
	}
	if result.Mode != "stats" {
		t.Fatalf("mode = %q, want stats", result.Mode)
	}
	var report statsReport
	if err := json.Unmarshal(result.Report, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.TotalEvents != 2 {
		t.Fatalf("TotalEvents = %d, want 2", report.TotalEvents)
	}
	if report.CountsByType[string(event.TypeOrderStarted)] != 1 {
		t.Fatalf("CountsByType = %v", report.CountsByType)
	}
}

func TestRunStateAtMidStream(t *testing.T) {
	events := memory.NewEventStore(event.NewRegistry())
	readModels := memory.NewReadModelStore()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	seedOrderStream(t, events, func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})

	// Between the first and second event only the start is visible.
	at := base.Add(90 * time.Second).Format(time.RFC3339)
	var out bytes.Buffer
	cfg := Config{AggregateID: "order-1", At: at, JSONOutput: true}
	if err := runWithDeps(context.Background(), cfg, noCloseEvents{events}, noCloseReadModels{readModels}, &out, nil); err != nil {
		t.Fatalf("runWithDeps() error = %v", err)
	}

	var result struct {
		Report json.RawMessage `json:"report"`
	}
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	var report stateAtReport
	if err := json.Unmarshal(result.Report, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if !report.Found || report.Domain != "order" {
		t.Fatalf("report = %+v", report)
	}
	var state order.State
	if err := json.Unmarshal(report.State, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if len(state.Items) != 0 {
		t.Fatalf("state at mid-stream should have no items yet, got %+v", state.Items)
	}
	if state.Status != order.StatusDraft {
		t.Fatalf("Status = %q, want %q", state.Status, order.StatusDraft)
	}
}

func TestRunIntegrityDetectsCorruptRecord(t *testing.T) {
	events := memory.NewEventStore(event.NewRegistry())
	readModels := memory.NewReadModelStore()
	seedOrderStream(t, events, time.Now)

	// Healthy rebuild first, then corrupt the stored record.
	rebuild := Config{AggregateID: "order-1"}
	if err := runWithDeps(context.Background(), rebuild, noCloseEvents{events}, noCloseReadModels{readModels}, nil, nil); err != nil {
		t.Fatalf("rebuild error = %v", err)
	}

	var out bytes.Buffer
	check := Config{AggregateID: "order-1", Integrity: true}
	if err := runWithDeps(context.Background(), check, noCloseEvents{events}, noCloseReadModels{readModels}, &out, nil); err != nil {
		t.Fatalf("integrity on healthy record error = %v", err)
	}
	if !strings.Contains(out.String(), "match=true") {
		t.Fatalf("output = %q", out.String())
	}

	record, err := readModels.GetOrder(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	record.ItemCount = 99
	if err := readModels.UpsertOrder(context.Background(), record); err != nil {
		t.Fatalf("UpsertOrder() error = %v", err)
	}

	out.Reset()
	err = runWithDeps(context.Background(), check, noCloseEvents{events}, noCloseReadModels{readModels}, &out, nil)
	if err == nil {
		t.Fatal("integrity on corrupt record should fail")
	}
	if !strings.Contains(out.String(), "match=false") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestRunWindowListsEntries(t *testing.T) {
	events := memory.NewEventStore(event.NewRegistry())
	readModels := memory.NewReadModelStore()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	seedOrderStream(t, events, func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})

	var out bytes.Buffer
	cfg := Config{
		AggregateID: "order-1",
		From:        base.Format(time.RFC3339),
		To:          base.Add(90 * time.Second).Format(time.RFC3339),
		JSONOutput:  true,
	}
	if err := runWithDeps(context.Background(), cfg, noCloseEvents{events}, noCloseReadModels{readModels}, &out, nil); err != nil {
		t.Fatalf("runWithDeps() error = %v", err)
	}

	var result struct {
		Report json.RawMessage `json:"report"`
	}
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	var report windowReport
	if err := json.Unmarshal(result.Report, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report.Entries) != 1 {
		t.Fatalf("len(Entries) = %d, want 1", len(report.Entries))
	}
	if report.Entries[0].Type != event.TypeOrderStarted {
		t.Fatalf("entry type = %q", report.Entries[0].Type)
	}
}

func TestValidateModesRejectsCombinations(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"rebuild default", Config{}, true},
		{"stats only", Config{Stats: true}, true},
		{"stats and integrity", Config{Stats: true, Integrity: true}, false},
		{"at and window", Config{At: "2026-03-01T12:00:00Z", From: "a", To: "b"}, false},
		{"from without to", Config{From: "2026-03-01T12:00:00Z"}, false},
	}
	for _, tc := range cases {
		err := validateModes(tc.cfg)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestResolveAggregateIDs(t *testing.T) {
	if _, err := resolveAggregateIDs("", ""); err == nil {
		t.Fatal("expected error when no ids are given")
	}
	if _, err := resolveAggregateIDs("a", "b,c"); err == nil {
		t.Fatal("expected error when both forms are given")
	}
	ids, err := resolveAggregateIDs("", " a , ,b ")
	if err != nil {
		t.Fatalf("resolveAggregateIDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("ids = %v", ids)
	}
}
