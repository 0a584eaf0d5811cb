package order

import "testing"

func TestCanTransitionForward(t *testing.T) {
	cases := []struct {
		from, to Status
		serving  ServingType
		want     bool
	}{
		{StatusDraft, StatusPlaced, ServingTypeDineIn, true},
		{StatusDraft, StatusConfirmed, ServingTypeDineIn, true},
		{StatusDraft, StatusPreparing, ServingTypeDineIn, false},
		{StatusPlaced, StatusConfirmed, ServingTypeTakeaway, true},
		{StatusConfirmed, StatusPreparing, ServingTypeDineIn, true},
		{StatusPreparing, StatusReady, ServingTypeDineIn, true},
		{StatusReady, StatusCompleted, ServingTypeDineIn, true},
		{StatusReady, StatusDelivering, ServingTypeDelivery, true},
		{StatusReady, StatusDelivering, ServingTypeDineIn, false},
		{StatusDelivering, StatusDelivered, ServingTypeDelivery, true},
		{StatusDelivered, StatusCompleted, ServingTypeDelivery, true},
		{StatusCompleted, StatusDraft, ServingTypeDineIn, false},
		{StatusCancelled, StatusPlaced, ServingTypeDineIn, false},
		{StatusRefunded, StatusRefunded, ServingTypeDineIn, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to, tc.serving); got != tc.want {
			t.Fatalf("CanTransition(%s, %s, %s) = %v, want %v", tc.from, tc.to, tc.serving, got, tc.want)
		}
	}
}

func TestCanTransitionCancelFromAnyActiveStatus(t *testing.T) {
	for _, from := range Statuses() {
		got := CanTransition(from, StatusCancelled, ServingTypeDineIn)
		want := !from.IsTerminal()
		if got != want {
			t.Fatalf("CanTransition(%s, cancelled) = %v, want %v", from, got, want)
		}
	}
}

func TestRequiresReason(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusPlaced, false},
		{StatusPlaced, StatusDraft, true},
		{StatusPreparing, StatusConfirmed, true},
		{StatusReady, StatusPreparing, true},
		{StatusConfirmed, StatusPreparing, false},
		{StatusDraft, StatusCancelled, true},
		{StatusReady, StatusCancelled, true},
		{StatusPlaced, StatusRefunded, false},
	}
	for _, tc := range cases {
		if got := RequiresReason(tc.from, tc.to); got != tc.want {
			t.Fatalf("RequiresReason(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusCancelled, StatusRefunded} {
		for _, to := range Statuses() {
			if CanTransition(from, to, ServingTypeDelivery) {
				t.Fatalf("terminal status %s allows transition to %s", from, to)
			}
		}
	}
}

func TestStatusFromLabel(t *testing.T) {
	if status, ok := StatusFromLabel("  Preparing "); !ok || status != StatusPreparing {
		t.Fatalf("StatusFromLabel(Preparing) = %q, %v", status, ok)
	}
	if _, ok := StatusFromLabel("shipped"); ok {
		t.Fatal("StatusFromLabel accepted unknown label")
	}
}

func TestServingTypeFromLabelDefaultsToDineIn(t *testing.T) {
	serving, ok := ServingTypeFromLabel("")
	if !ok || serving != ServingTypeDineIn {
		t.Fatalf("ServingTypeFromLabel(\"\") = %q, %v", serving, ok)
	}
	if _, ok := ServingTypeFromLabel("drone"); ok {
		t.Fatal("ServingTypeFromLabel accepted unknown label")
	}
}

func TestEveryStatusHasTransitionEntry(t *testing.T) {
	for _, status := range Statuses() {
		if _, ok := transitions[status]; !ok {
			t.Fatalf("status %s missing from transition table", status)
		}
	}
}
