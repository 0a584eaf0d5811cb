// Package service orchestrates commands against the event journal: it
// replays state, runs the domain deciders, appends accepted events, and
// applies projections synchronously so reads observe writes.
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
	apperrors "github.com/louisbranch/brigade/internal/platform/errors"
	"github.com/louisbranch/brigade/internal/platform/id"
	"github.com/louisbranch/brigade/internal/projection"
	"github.com/louisbranch/brigade/internal/snapshot"
	"github.com/louisbranch/brigade/internal/storage"
)

const tracerName = "brigade/service"

// Actor identifies who issues a command.
type Actor struct {
	Type command.ActorType
	ID   string
}

// StaffActor is a convenience constructor for staff-issued commands.
func StaffActor(staffID string) Actor {
	return Actor{Type: command.ActorTypeStaff, ID: staffID}
}

// OrderService orchestrates the order aggregate lifecycle.
type OrderService struct {
	events     storage.EventStore
	readModels storage.ReadModelStore
	applier    *projection.Applier
	loader     *snapshot.OrderLoader
	catalog    Catalog
	inventory  Inventory
	promotions Promotions
	taxRates   TaxRates
	newID      func() (string, error)
	now        func() time.Time
	tracer     trace.Tracer
}

// OrderServiceConfig carries the collaborators of an OrderService.
type OrderServiceConfig struct {
	Events     storage.EventStore
	ReadModels storage.ReadModelStore
	Snapshots  snapshot.Store
	Catalog    Catalog
	Inventory  Inventory
	Promotions Promotions
	TaxRates   TaxRates
	// SnapshotInterval controls how often replayed state is checkpointed.
	// Zero disables snapshot writes.
	SnapshotInterval uint64
}

// NewOrderService wires an order service over the given stores.
func NewOrderService(cfg OrderServiceConfig) (*OrderService, error) {
	if cfg.Events == nil {
		return nil, fmt.Errorf("event store is required")
	}
	if cfg.ReadModels == nil {
		return nil, fmt.Errorf("read model store is required")
	}
	return &OrderService{
		events:     cfg.Events,
		readModels: cfg.ReadModels,
		applier:    projection.NewApplier(cfg.Events, cfg.ReadModels),
		loader:     snapshot.NewOrderLoader(cfg.Events, cfg.Snapshots, cfg.SnapshotInterval),
		catalog:    cfg.Catalog,
		inventory:  cfg.Inventory,
		promotions: cfg.Promotions,
		taxRates:   cfg.TaxRates,
		newID:      id.NewID,
		now:        time.Now,
		tracer:     otel.Tracer(tracerName),
	}, nil
}

// CreateOrderInput carries the fields to start a new order.
type CreateOrderInput struct {
	StaffID     string
	LocationID  string
	TableNumber string
	ServingType order.ServingType
	Meta        map[string]string
}

// CreateOrder starts a new order and returns its id.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (string, error) {
	ctx, span := s.tracer.Start(ctx, "order.create")
	defer span.End()

	orderID, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("generate order id: %w", err)
	}
	span.SetAttributes(attribute.String("order.id", orderID))

	payload, err := json.Marshal(order.StartPayload{
		StaffID:     input.StaffID,
		LocationID:  input.LocationID,
		TableNumber: input.TableNumber,
		ServingType: input.ServingType,
	})
	if err != nil {
		return "", fmt.Errorf("marshal start payload: %w", err)
	}

	cmd := command.Command{
		AggregateID: orderID,
		Type:        order.CommandTypeStart,
		ActorType:   command.ActorTypeStaff,
		ActorID:     input.StaffID,
		Meta:        input.Meta,
		PayloadJSON: payload,
	}
	if _, err := s.decideAndAppend(ctx, order.State{}, 0, cmd); err != nil {
		return "", err
	}
	return orderID, nil
}

// ModifyOrderInput carries item changes for an existing order.
type ModifyOrderInput struct {
	OrderID string
	Actor   Actor
	Add     []order.Item
	Remove  []order.ItemChange
	Modify  []order.ItemChange
	Reason  string
}

// ModifyOrder adds, removes, or changes order lines. Additions are checked
// against inventory when an inventory collaborator is configured.
func (s *OrderService) ModifyOrder(ctx context.Context, input ModifyOrderInput) error {
	ctx, span := s.tracer.Start(ctx, "order.modify_items",
		trace.WithAttributes(attribute.String("order.id", input.OrderID)))
	defer span.End()

	state, head, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return err
	}

	if s.inventory != nil {
		for _, add := range input.Add {
			available, err := s.inventory.Available(ctx, state.LocationID, add.ItemID)
			if err != nil {
				return apperrors.Wrap(apperrors.CodeDependency, "inventory lookup failed", err)
			}
			if available < add.Quantity {
				return apperrors.WithMetadata(apperrors.CodeOrderInsufficientStock,
					fmt.Sprintf("item %s has %d in stock, %d requested", add.ItemID, available, add.Quantity),
					map[string]string{"item_id": add.ItemID})
			}
		}
	}

	payload, err := json.Marshal(order.ModifyItemsPayload{
		Add:    input.Add,
		Remove: input.Remove,
		Modify: input.Modify,
		Reason: input.Reason,
	})
	if err != nil {
		return fmt.Errorf("marshal modify payload: %w", err)
	}

	_, err = s.decideAndAppend(ctx, state, head, command.Command{
		AggregateID: input.OrderID,
		Type:        order.CommandTypeModifyItems,
		ActorType:   input.Actor.Type,
		ActorID:     input.Actor.ID,
		PayloadJSON: payload,
	})
	return err
}

// PriceOrder validates items against the catalog, applies promotions, and
// calculates the total in one atomic batch.
func (s *OrderService) PriceOrder(ctx context.Context, orderID string, actor Actor) (order.Money, error) {
	ctx, span := s.tracer.Start(ctx, "order.price",
		trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	state, head, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return order.Money{}, err
	}
	if s.catalog == nil || s.taxRates == nil {
		return order.Money{}, apperrors.New(apperrors.CodeDependency, "catalog and tax rate collaborators are required for pricing")
	}

	priced, err := s.priceItems(ctx, state.Items)
	if err != nil {
		return order.Money{}, err
	}

	batch, err := s.pricingCommands(ctx, orderID, actor, state.LocationID, priced)
	if err != nil {
		return order.Money{}, err
	}

	// Run the decider chain over in-memory state, then append once.
	working := state
	var events []event.Event
	for _, cmd := range batch {
		decision := order.Decide(working, cmd, s.now)
		if !decision.Accepted() {
			return order.Money{}, rejectionError(decision.Rejections)
		}
		for _, evt := range decision.Events {
			working = order.Fold(working, evt)
			events = append(events, evt)
		}
	}

	stored, err := s.events.Append(ctx, orderID, head, events)
	if err != nil {
		return order.Money{}, storageError(err)
	}
	if err := s.project(ctx, stored); err != nil {
		return order.Money{}, err
	}
	return working.Money, nil
}

// priceItems re-prices order lines from the catalog, failing when an item has
// disappeared from it.
func (s *OrderService) priceItems(ctx context.Context, items []order.Item) ([]order.Item, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ItemID)
	}
	catalogItems, err := s.catalog.Items(ctx, ids)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCatalogUnavailable, "catalog lookup failed", err)
	}

	priced := make([]order.Item, 0, len(items))
	for _, item := range items {
		entry, ok := catalogItems[item.ItemID]
		if !ok {
			return nil, apperrors.WithMetadata(apperrors.CodeValidation,
				fmt.Sprintf("item %s is no longer in the catalog", item.ItemID),
				map[string]string{"item_id": item.ItemID})
		}
		item.Name = entry.Name
		item.UnitPrice = entry.UnitPrice
		item.LineTotal = order.LineTotal(entry.UnitPrice, item.Quantity)
		priced = append(priced, item)
	}
	return priced, nil
}

// pricingCommands builds the validate/promotions/price command batch.
func (s *OrderService) pricingCommands(ctx context.Context, orderID string, actor Actor, locationID string, priced []order.Item) ([]command.Command, error) {
	validatePayload, err := json.Marshal(order.ValidateItemsPayload{
		Items:    priced,
		Subtotal: order.Subtotal(priced),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal validate payload: %w", err)
	}

	batch := []command.Command{{
		AggregateID: orderID,
		Type:        order.CommandTypeValidateItems,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
		PayloadJSON: validatePayload,
	}}

	if s.promotions != nil {
		promos, err := s.promotions.ForOrder(ctx, locationID, priced)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDependency, "promotions lookup failed", err)
		}
		promoPayload, err := json.Marshal(order.PromotionsPayload(promos))
		if err != nil {
			return nil, fmt.Errorf("marshal promotions payload: %w", err)
		}
		batch = append(batch, command.Command{
			AggregateID: orderID,
			Type:        order.CommandTypeSetPromotions,
			ActorType:   actor.Type,
			ActorID:     actor.ID,
			PayloadJSON: promoPayload,
		})
	}

	rateBp, currency, err := s.taxRates.RateBp(ctx, locationID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, "tax rate lookup failed", err)
	}
	pricePayload, err := json.Marshal(order.CalculatePricePayload{TaxRateBp: rateBp, Currency: currency})
	if err != nil {
		return nil, fmt.Errorf("marshal price payload: %w", err)
	}
	batch = append(batch, command.Command{
		AggregateID: orderID,
		Type:        order.CommandTypeCalculatePrice,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
		PayloadJSON: pricePayload,
	})
	return batch, nil
}

// ConfirmOrder moves an order with items into the confirmed status.
func (s *OrderService) ConfirmOrder(ctx context.Context, orderID string, actor Actor) error {
	ctx, span := s.tracer.Start(ctx, "order.confirm",
		trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	state, head, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	_, err = s.decideAndAppend(ctx, state, head, command.Command{
		AggregateID: orderID,
		Type:        order.CommandTypeConfirm,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
	})
	return err
}

// CancelOrder cancels an order. A reason is mandatory.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, reason string, actor Actor) error {
	ctx, span := s.tracer.Start(ctx, "order.cancel",
		trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	state, head, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(order.CancelPayload{Reason: reason})
	if err != nil {
		return fmt.Errorf("marshal cancel payload: %w", err)
	}
	_, err = s.decideAndAppend(ctx, state, head, command.Command{
		AggregateID: orderID,
		Type:        order.CommandTypeCancel,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
		PayloadJSON: payload,
	})
	return err
}

// ChangeStatus transitions an order to a new lifecycle status.
func (s *OrderService) ChangeStatus(ctx context.Context, orderID string, to order.Status, reason string, actor Actor) error {
	ctx, span := s.tracer.Start(ctx, "order.change_status",
		trace.WithAttributes(
			attribute.String("order.id", orderID),
			attribute.String("order.status", string(to)),
		))
	defer span.End()

	state, head, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(order.ChangeStatusPayload{To: to, Reason: reason})
	if err != nil {
		return fmt.Errorf("marshal status payload: %w", err)
	}
	_, err = s.decideAndAppend(ctx, state, head, command.Command{
		AggregateID: orderID,
		Type:        order.CommandTypeChangeStatus,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
		PayloadJSON: payload,
	})
	return err
}

// SetPaymentMethod records the payment method on an order.
func (s *OrderService) SetPaymentMethod(ctx context.Context, orderID, method string, actor Actor) error {
	state, head, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(order.PaymentMethodPayload{Method: method})
	if err != nil {
		return fmt.Errorf("marshal payment payload: %w", err)
	}
	_, err = s.decideAndAppend(ctx, state, head, command.Command{
		AggregateID: orderID,
		Type:        order.CommandTypeSetPaymentMethod,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
		PayloadJSON: payload,
	})
	return err
}

// SetCustomer records customer contact details on an order.
func (s *OrderService) SetCustomer(ctx context.Context, orderID string, customer order.Customer, actor Actor) error {
	state, head, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(order.CustomerPayload{Customer: customer})
	if err != nil {
		return fmt.Errorf("marshal customer payload: %w", err)
	}
	_, err = s.decideAndAppend(ctx, state, head, command.Command{
		AggregateID: orderID,
		Type:        order.CommandTypeSetCustomer,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
		PayloadJSON: payload,
	})
	return err
}

// AddNote appends a free-form staff note to an order.
func (s *OrderService) AddNote(ctx context.Context, orderID, text string, actor Actor) error {
	state, head, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(order.NotePayload{Text: text})
	if err != nil {
		return fmt.Errorf("marshal note payload: %w", err)
	}
	_, err = s.decideAndAppend(ctx, state, head, command.Command{
		AggregateID: orderID,
		Type:        order.CommandTypeAddNote,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
		PayloadJSON: payload,
	})
	return err
}

// GetOrder returns the denormalized order record.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (storage.OrderRecord, error) {
	record, err := s.readModels.GetOrder(ctx, orderID)
	if err != nil {
		return storage.OrderRecord{}, storageError(err)
	}
	return record, nil
}

// GetOrderState replays and returns the full aggregate state.
func (s *OrderService) GetOrderState(ctx context.Context, orderID string) (order.State, error) {
	state, head, err := s.loader.Load(ctx, orderID)
	if err != nil {
		return order.State{}, err
	}
	if head == 0 {
		return order.State{}, apperrors.New(apperrors.CodeNotFound, "order not found")
	}
	return state, nil
}

// loadOrder replays order state and returns it with the stream head. An empty
// stream is reported as not found.
func (s *OrderService) loadOrder(ctx context.Context, orderID string) (order.State, uint64, error) {
	if orderID == "" {
		return order.State{}, 0, apperrors.New(apperrors.CodeOrderIDRequired, "order id is required")
	}
	state, head, err := s.loader.Load(ctx, orderID)
	if err != nil {
		return order.State{}, 0, err
	}
	if head == 0 {
		return order.State{}, 0, apperrors.New(apperrors.CodeNotFound, "order not found")
	}
	return state, head, nil
}

// decideAndAppend validates the command, runs the decider, appends accepted
// events at the expected head, and projects them synchronously.
func (s *OrderService) decideAndAppend(ctx context.Context, state order.State, head uint64, cmd command.Command) ([]event.Event, error) {
	cmd, err := command.Validate(cmd)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err.Error(), err)
	}

	decision := order.Decide(state, cmd, s.now)
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
	if err := s.project(ctx, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// project applies stored events to the read models. Projection runs in the
// request path so a subsequent read observes the write.
func (s *OrderService) project(ctx context.Context, stored []event.Event) error {
	for _, evt := range stored {
		if err := s.applier.Apply(ctx, evt); err != nil {
			return fmt.Errorf("apply projection: %w", err)
		}
	}
	return nil
}
