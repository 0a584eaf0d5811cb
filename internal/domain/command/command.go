// Package command defines the command envelope and validation entry points.
package command

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/louisbranch/brigade/internal/domain/event"
)

var (
	// ErrAggregateIDRequired indicates a missing aggregate id.
	ErrAggregateIDRequired = errors.New("aggregate id is required")
	// ErrTypeRequired indicates a missing command type.
	ErrTypeRequired = errors.New("command type is required")
	// ErrActorTypeInvalid indicates an unknown actor type.
	ErrActorTypeInvalid = errors.New("actor type is invalid")
	// ErrActorIDRequired indicates a missing actor id for staff/customer.
	ErrActorIDRequired = errors.New("actor id is required for staff or customer")
	// ErrPayloadInvalid indicates malformed payload JSON.
	ErrPayloadInvalid = errors.New("payload json must be valid")
)

// Type identifies the command type string.
type Type string

// ActorType identifies the actor who initiated the command.
type ActorType string

const (
	// ActorTypeSystem indicates a system-originated command.
	ActorTypeSystem ActorType = "system"
	// ActorTypeStaff indicates a staff-originated command.
	ActorTypeStaff ActorType = "staff"
	// ActorTypeCustomer indicates a customer-originated command.
	ActorTypeCustomer ActorType = "customer"
)

// Command captures the canonical command envelope.
//
// Commands express business intent from the calling layer. They are the stable
// boundary before domain deciders so that business rules are evaluated only
// against normalized inputs.
type Command struct {
	AggregateID string
	Type        Type
	ActorType   ActorType
	ActorID     string
	Meta        map[string]string
	PayloadJSON []byte
}

// Validate normalizes the envelope and reports malformed commands before any
// decider runs. Validation never inspects payload semantics; that belongs to
// the deciders.
func Validate(cmd Command) (Command, error) {
	cmd.AggregateID = strings.TrimSpace(cmd.AggregateID)
	if cmd.AggregateID == "" {
		return Command{}, ErrAggregateIDRequired
	}
	if strings.TrimSpace(string(cmd.Type)) == "" {
		return Command{}, ErrTypeRequired
	}
	switch cmd.ActorType {
	case ActorTypeSystem:
	case ActorTypeStaff, ActorTypeCustomer:
		if strings.TrimSpace(cmd.ActorID) == "" {
			return Command{}, ErrActorIDRequired
		}
	default:
		return Command{}, ErrActorTypeInvalid
	}
	if len(cmd.PayloadJSON) == 0 {
		cmd.PayloadJSON = []byte("{}")
	}
	if !json.Valid(cmd.PayloadJSON) {
		return Command{}, ErrPayloadInvalid
	}
	return cmd, nil
}

// NewEvent builds an event.Event by copying the shared envelope fields from a
// command. Callers supply the event-specific type and payload. This eliminates
// per-decider boilerplate and ensures new envelope fields are forwarded.
func NewEvent(cmd Command, eventType event.Type, payloadJSON []byte) event.Event {
	var meta map[string]string
	if len(cmd.Meta) > 0 {
		meta = make(map[string]string, len(cmd.Meta))
		for key, value := range cmd.Meta {
			meta[key] = value
		}
	}
	return event.Event{
		AggregateID: cmd.AggregateID,
		Type:        eventType,
		ActorType:   event.ActorType(cmd.ActorType),
		ActorID:     cmd.ActorID,
		Meta:        meta,
		PayloadJSON: payloadJSON,
	}
}
