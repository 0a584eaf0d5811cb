package event

import (
	"errors"
	"testing"
	"time"
)

func TestRegistryValidateForAppend_RejectsUnknownType(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.ValidateForAppend(Event{
		AggregateID: "ord-1",
		Type:        Type("order.telepathy"),
		ActorType:   ActorTypeSystem,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrTypeUnknown) {
		t.Fatalf("expected ErrTypeUnknown, got %v", err)
	}
}

func TestRegistryValidateForAppend_RequiresAggregateID(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.ValidateForAppend(Event{
		AggregateID: "   ",
		Type:        TypeOrderStarted,
		ActorType:   ActorTypeSystem,
	})
	if !errors.Is(err, ErrAggregateIDRequired) {
		t.Fatalf("expected ErrAggregateIDRequired, got %v", err)
	}
}

func TestRegistryValidateForAppend_StaffActorRequiresID(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.ValidateForAppend(Event{
		AggregateID: "ord-1",
		Type:        TypeOrderStarted,
		ActorType:   ActorTypeStaff,
	})
	if !errors.Is(err, ErrActorIDRequired) {
		t.Fatalf("expected ErrActorIDRequired, got %v", err)
	}

	valid := Event{
		AggregateID: "ord-1",
		Type:        TypeOrderStarted,
		ActorType:   ActorTypeStaff,
		ActorID:     "staff-7",
	}
	if _, err := registry.ValidateForAppend(valid); err != nil {
		t.Fatalf("valid staff event rejected: %v", err)
	}
}

func TestRegistryValidateForAppend_RejectsMalformedPayload(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.ValidateForAppend(Event{
		AggregateID: "ord-1",
		Type:        TypeOrderStarted,
		ActorType:   ActorTypeSystem,
		PayloadJSON: []byte("{not json"),
	})
	if !errors.Is(err, ErrPayloadInvalid) {
		t.Fatalf("expected ErrPayloadInvalid, got %v", err)
	}
}

func TestRegistryValidateForAppend_NormalizesTimestampAndPayload(t *testing.T) {
	registry := NewRegistry()

	validated, err := registry.ValidateForAppend(Event{
		AggregateID: "ord-1",
		Type:        TypeOrderStarted,
		ActorType:   ActorTypeSystem,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if validated.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be assigned")
	}
	if validated.Timestamp.Location() != time.UTC {
		t.Fatal("expected UTC timestamp")
	}
	if string(validated.PayloadJSON) != "{}" {
		t.Fatalf("payload = %s, want {}", validated.PayloadJSON)
	}
}

func TestTypeDomain(t *testing.T) {
	if got := TypeOrderStarted.Domain(); got != "order" {
		t.Fatalf("domain = %q, want order", got)
	}
	if got := TypeSessionConverted.Domain(); got != "session" {
		t.Fatalf("domain = %q, want session", got)
	}
}

func TestTypes_AllRegistered(t *testing.T) {
	registry := NewRegistry()
	for _, typ := range Types() {
		if !registry.Known(typ) {
			t.Errorf("type %s missing from registry", typ)
		}
	}
}
