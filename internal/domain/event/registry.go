package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrAggregateIDRequired indicates a missing aggregate id.
	ErrAggregateIDRequired = errors.New("aggregate id is required")
	// ErrTypeRequired indicates a missing event type.
	ErrTypeRequired = errors.New("event type is required")
	// ErrTypeUnknown indicates an unregistered event type.
	ErrTypeUnknown = errors.New("event type is not registered")
	// ErrActorTypeInvalid indicates an unknown actor type.
	ErrActorTypeInvalid = errors.New("actor type is invalid")
	// ErrActorIDRequired indicates a missing actor id for staff/customer events.
	ErrActorIDRequired = errors.New("actor id is required for staff or customer")
	// ErrPayloadInvalid indicates malformed payload JSON.
	ErrPayloadInvalid = errors.New("payload json must be valid")
	// ErrDomainMismatch indicates an event registered for the wrong aggregate kind.
	ErrDomainMismatch = errors.New("event type domain does not match aggregate kind")
)

// Registry validates events against the closed event-type set before append.
type Registry struct {
	types map[Type]struct{}
}

// NewRegistry creates a registry seeded with every known event type.
func NewRegistry() *Registry {
	types := make(map[Type]struct{})
	for _, t := range Types() {
		types[t] = struct{}{}
	}
	return &Registry{types: types}
}

// Known reports whether the event type is part of the closed set.
func (r *Registry) Known(t Type) bool {
	if r == nil {
		return false
	}
	_, ok := r.types[t]
	return ok
}

// ValidateForAppend normalizes and validates an event before persistence.
// Version and RecordedAt are assigned by the store; everything else must be
// complete and well-formed here so replay never sees a malformed envelope.
func (r *Registry) ValidateForAppend(evt Event) (Event, error) {
	if r == nil {
		return Event{}, errors.New("event registry is required")
	}

	evt.AggregateID = strings.TrimSpace(evt.AggregateID)
	if evt.AggregateID == "" {
		return Event{}, ErrAggregateIDRequired
	}
	if !evt.Type.IsValid() {
		return Event{}, ErrTypeRequired
	}
	if _, ok := r.types[evt.Type]; !ok {
		return Event{}, fmt.Errorf("%w: %s", ErrTypeUnknown, evt.Type)
	}

	switch evt.ActorType {
	case ActorTypeSystem:
	case ActorTypeStaff, ActorTypeCustomer:
		if strings.TrimSpace(evt.ActorID) == "" {
			return Event{}, ErrActorIDRequired
		}
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrActorTypeInvalid, evt.ActorType)
	}

	if len(evt.PayloadJSON) == 0 {
		evt.PayloadJSON = []byte("{}")
	}
	if !json.Valid(evt.PayloadJSON) {
		return Event{}, ErrPayloadInvalid
	}

	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)

	return evt, nil
}
