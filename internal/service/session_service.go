package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/brigade/internal/domain/command"
	"github.com/louisbranch/brigade/internal/domain/event"
	"github.com/louisbranch/brigade/internal/domain/order"
	"github.com/louisbranch/brigade/internal/domain/session"
	apperrors "github.com/louisbranch/brigade/internal/platform/errors"
	"github.com/louisbranch/brigade/internal/platform/id"
	"github.com/louisbranch/brigade/internal/projection"
	"github.com/louisbranch/brigade/internal/storage"
)

// SessionService orchestrates the pre-checkout session aggregate.
type SessionService struct {
	events     storage.EventStore
	readModels storage.ReadModelStore
	applier    *projection.Applier
	catalog    Catalog
	newID      func() (string, error)
	now        func() time.Time
	tracer     trace.Tracer
}

// SessionServiceConfig carries the collaborators of a SessionService.
type SessionServiceConfig struct {
	Events     storage.EventStore
	ReadModels storage.ReadModelStore
	Catalog    Catalog
}

// NewSessionService wires a session service over the given stores.
func NewSessionService(cfg SessionServiceConfig) (*SessionService, error) {
	if cfg.Events == nil {
		return nil, fmt.Errorf("event store is required")
	}
	if cfg.ReadModels == nil {
		return nil, fmt.Errorf("read model store is required")
	}
	return &SessionService{
		events:     cfg.Events,
		readModels: cfg.ReadModels,
		applier:    projection.NewApplier(cfg.Events, cfg.ReadModels),
		catalog:    cfg.Catalog,
		newID:      id.NewID,
		now:        time.Now,
		tracer:     otel.Tracer(tracerName),
	}, nil
}

// StartSessionInput carries the fields to start a browsing session.
type StartSessionInput struct {
	CustomerID  string
	LocationID  string
	TableNumber string
	ServingType order.ServingType
	Meta        map[string]string
}

// StartSession starts a new session and returns its id.
func (s *SessionService) StartSession(ctx context.Context, input StartSessionInput) (string, error) {
	ctx, span := s.tracer.Start(ctx, "session.start")
	defer span.End()

	sessionID, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	span.SetAttributes(attribute.String("session.id", sessionID))

	payload, err := json.Marshal(session.StartPayload{
		CustomerID:  input.CustomerID,
		LocationID:  input.LocationID,
		TableNumber: input.TableNumber,
		ServingType: input.ServingType,
	})
	if err != nil {
		return "", fmt.Errorf("marshal start payload: %w", err)
	}

	actorType := command.ActorTypeCustomer
	if input.CustomerID == "" {
		actorType = command.ActorTypeSystem
	}
	if _, err := s.decideAndAppend(ctx, session.State{}, 0, command.Command{
		AggregateID: sessionID,
		Type:        session.CommandTypeStart,
		ActorType:   actorType,
		ActorID:     input.CustomerID,
		Meta:        input.Meta,
		PayloadJSON: payload,
	}); err != nil {
		return "", err
	}
	return sessionID, nil
}

// AddToCart adds an unpriced line to the session cart. The item must exist
// in the catalog at add time; prices are still resolved at conversion.
func (s *SessionService) AddToCart(ctx context.Context, sessionID string, line session.CartItemAddedPayload, actor Actor) error {
	ctx, span := s.tracer.Start(ctx, "session.add_to_cart",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	state, head, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if s.catalog != nil && line.ItemID != "" {
		items, err := s.catalog.Items(ctx, []string{line.ItemID})
		if err != nil {
			return apperrors.Wrap(apperrors.CodeCatalogUnavailable, "catalog lookup failed", err)
		}
		entry, ok := items[line.ItemID]
		if !ok {
			return apperrors.WithMetadata(apperrors.CodeSessionCartItemInvalid,
				fmt.Sprintf("item %s is not in the catalog", line.ItemID),
				map[string]string{"item_id": line.ItemID})
		}
		if line.Name == "" {
			line.Name = entry.Name
		}
	}

	payload, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("marshal cart payload: %w", err)
	}
	_, err = s.decideAndAppend(ctx, state, head, command.Command{
		AggregateID: sessionID,
		Type:        session.CommandTypeAddCartItem,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
		PayloadJSON: payload,
	})
	return err
}

// RemoveFromCart removes quantity from a cart line, or the whole line when
// quantity is zero.
func (s *SessionService) RemoveFromCart(ctx context.Context, sessionID, itemID string, quantity int, actor Actor) error {
	state, head, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(session.CartItemRemovedPayload{ItemID: itemID, Quantity: quantity})
	if err != nil {
		return fmt.Errorf("marshal cart payload: %w", err)
	}
	_, err = s.decideAndAppend(ctx, state, head, command.Command{
		AggregateID: sessionID,
		Type:        session.CommandTypeRemoveCartItem,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
		PayloadJSON: payload,
	})
	return err
}

// ChoosePaymentMethod records the customer's payment preference.
func (s *SessionService) ChoosePaymentMethod(ctx context.Context, sessionID, method string, actor Actor) error {
	state, head, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(session.PaymentMethodChosenPayload{Method: method})
	if err != nil {
		return fmt.Errorf("marshal payment payload: %w", err)
	}
	_, err = s.decideAndAppend(ctx, state, head, command.Command{
		AggregateID: sessionID,
		Type:        session.CommandTypeChoosePayment,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
		PayloadJSON: payload,
	})
	return err
}

// RecordInteraction logs browsing activity for analytics.
func (s *SessionService) RecordInteraction(ctx context.Context, sessionID, kind, target string, actor Actor) error {
	state, head, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(session.InteractionPayload{Kind: kind, Target: target})
	if err != nil {
		return fmt.Errorf("marshal interaction payload: %w", err)
	}
	_, err = s.decideAndAppend(ctx, state, head, command.Command{
		AggregateID: sessionID,
		Type:        session.CommandTypeRecordInteraction,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
		PayloadJSON: payload,
	})
	return err
}

// GetSession returns the denormalized session record.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (storage.SessionRecord, error) {
	record, err := s.readModels.GetSession(ctx, sessionID)
	if err != nil {
		return storage.SessionRecord{}, storageError(err)
	}
	return record, nil
}

// loadSession replays session state and returns it with the stream head.
func (s *SessionService) loadSession(ctx context.Context, sessionID string) (session.State, uint64, error) {
	if sessionID == "" {
		return session.State{}, 0, apperrors.New(apperrors.CodeSessionIDRequired, "session id is required")
	}
	events, err := s.events.Load(ctx, sessionID)
	if err != nil {
		return session.State{}, 0, fmt.Errorf("load events: %w", err)
	}
	if len(events) == 0 {
		return session.State{}, 0, apperrors.New(apperrors.CodeNotFound, "session not found")
	}
	return session.Replay(events), events[len(events)-1].Version, nil
}

func (s *SessionService) decideAndAppend(ctx context.Context, state session.State, head uint64, cmd command.Command) ([]event.Event, error) {
	cmd, err := command.Validate(cmd)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err.Error(), err)
	}

	decision := session.Decide(state, cmd, s.now)
	if err := decision.Validate(); err != nil {
		return nil, err
	}
	if !decision.Accepted() {
		return nil, rejectionError(decision.Rejections)
	}

	stored, err := s.events.Append(ctx, cmd.AggregateID, head, decision.Events)
	if err != nil {
		return nil, storageError(err)
	}
	for _, evt := range stored {
		if err := s.applier.Apply(ctx, evt); err != nil {
			return nil, fmt.Errorf("apply projection: %w", err)
		}
	}
	return stored, nil
}
