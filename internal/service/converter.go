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

// Converter turns a browsing session into a priced, confirmed order.
//
// Prices always come from the catalog at conversion time. The session cart
// carries no prices, so there is nothing stale to fall back to; items that
// have left the catalog are skipped and reported, never guessed.
type Converter struct {
	events     storage.EventStore
	readModels storage.ReadModelStore
	applier    *projection.Applier
	catalog    Catalog
	promotions Promotions
	taxRates   TaxRates
	newID      func() (string, error)
	now        func() time.Time
	tracer     trace.Tracer
}

// ConverterConfig carries the collaborators of a Converter.
type ConverterConfig struct {
	Events     storage.EventStore
	ReadModels storage.ReadModelStore
	Catalog    Catalog
	Promotions Promotions
	TaxRates   TaxRates
}

// NewConverter wires a converter over the given stores.
func NewConverter(cfg ConverterConfig) (*Converter, error) {
	if cfg.Events == nil {
		return nil, fmt.Errorf("event store is required")
	}
	if cfg.ReadModels == nil {
		return nil, fmt.Errorf("read model store is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.TaxRates == nil {
		return nil, fmt.Errorf("tax rates are required")
	}
	return &Converter{
		events:     cfg.Events,
		readModels: cfg.ReadModels,
		applier:    projection.NewApplier(cfg.Events, cfg.ReadModels),
		catalog:    cfg.Catalog,
		promotions: cfg.Promotions,
		taxRates:   cfg.TaxRates,
		newID:      id.NewID,
		now:        time.Now,
		tracer:     otel.Tracer(tracerName),
	}, nil
}

// ConversionResult reports the outcome of a session conversion.
type ConversionResult struct {
	OrderID      string
	SessionID    string
	Total        int64
	SkippedItems []string
}

// ConvertToOrder creates a confirmed order from a session cart. The order
// stream is written in one atomic batch; the session is then marked
// converted with a back-reference to the new order.
func (c *Converter) ConvertToOrder(ctx context.Context, sessionID, staffID string) (ConversionResult, error) {
	ctx, span := c.tracer.Start(ctx, "session.convert",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	sessionEvents, err := c.events.Load(ctx, sessionID)
	if err != nil {
		return ConversionResult{}, fmt.Errorf("load session events: %w", err)
	}
	if len(sessionEvents) == 0 {
		return ConversionResult{}, apperrors.New(apperrors.CodeNotFound, "session not found")
	}
	sessionState := session.Replay(sessionEvents)
	sessionHead := sessionEvents[len(sessionEvents)-1].Version

	if sessionState.Converted {
		return ConversionResult{}, apperrors.New(apperrors.CodeSessionAlreadyConverted, "session has already been converted")
	}
	if len(sessionState.Cart) == 0 {
		return ConversionResult{}, apperrors.New(apperrors.CodeSessionCartEmpty, "session cart is empty")
	}

	items, skipped, err := c.priceCart(ctx, sessionState.Cart)
	if err != nil {
		return ConversionResult{}, err
	}
	if len(items) == 0 {
		return ConversionResult{}, apperrors.WithMetadata(apperrors.CodeSessionCartEmpty,
			"no cart items remain in the catalog", map[string]string{
				"skipped": fmt.Sprintf("%d", len(skipped)),
			})
	}

	orderID, err := c.newID()
	if err != nil {
		return ConversionResult{}, fmt.Errorf("generate order id: %w", err)
	}
	span.SetAttributes(attribute.String("order.id", orderID))

	batch, err := c.orderCommands(ctx, orderID, staffID, sessionID, sessionState, items)
	if err != nil {
		return ConversionResult{}, err
	}

	// Run the decider chain in memory, then append the order stream once.
	var working order.State
	var orderEvents []event.Event
	for _, cmd := range batch {
		validated, err := command.Validate(cmd)
		if err != nil {
			return ConversionResult{}, apperrors.Wrap(apperrors.CodeValidation, err.Error(), err)
		}
		decision := order.Decide(working, validated, c.now)
		if !decision.Accepted() {
			return ConversionResult{}, rejectionError(decision.Rejections)
		}
		for _, evt := range decision.Events {
			working = order.Fold(working, evt)
			orderEvents = append(orderEvents, evt)
		}
	}

	storedOrder, err := c.events.Append(ctx, orderID, 0, orderEvents)
	if err != nil {
		return ConversionResult{}, storageError(err)
	}

	// Back-reference on the session stream. The order exists either way; a
	// concurrent session write surfaces as a conflict for the caller.
	convertedPayload, err := json.Marshal(session.ConvertedPayload{OrderID: orderID})
	if err != nil {
		return ConversionResult{}, fmt.Errorf("marshal converted payload: %w", err)
	}
	markCmd, err := command.Validate(command.Command{
		AggregateID: sessionID,
		Type:        session.CommandTypeMarkConverted,
		ActorType:   command.ActorTypeStaff,
		ActorID:     staffID,
		PayloadJSON: convertedPayload,
	})
	if err != nil {
		return ConversionResult{}, apperrors.Wrap(apperrors.CodeValidation, err.Error(), err)
	}
	decision := session.Decide(sessionState, markCmd, c.now)
	if !decision.Accepted() {
		return ConversionResult{}, rejectionError(decision.Rejections)
	}
	storedSession, err := c.events.Append(ctx, sessionID, sessionHead, decision.Events)
	if err != nil {
		return ConversionResult{}, storageError(err)
	}

	for _, evt := range append(storedOrder, storedSession...) {
		if err := c.applier.Apply(ctx, evt); err != nil {
			return ConversionResult{}, fmt.Errorf("apply projection: %w", err)
		}
	}

	return ConversionResult{
		OrderID:      orderID,
		SessionID:    sessionID,
		Total:        working.Money.Total,
		SkippedItems: skipped,
	}, nil
}

// priceCart resolves cart lines against the catalog. Lines whose item is no
// longer listed are skipped and reported.
func (c *Converter) priceCart(ctx context.Context, cart []session.CartLine) ([]order.Item, []string, error) {
	ids := make([]string, 0, len(cart))
	for _, line := range cart {
		ids = append(ids, line.ItemID)
	}
	catalogItems, err := c.catalog.Items(ctx, ids)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CodeCatalogUnavailable, "catalog lookup failed", err)
	}

	var items []order.Item
	var skipped []string
	for _, line := range cart {
		entry, ok := catalogItems[line.ItemID]
		if !ok {
			skipped = append(skipped, line.ItemID)
			continue
		}
		items = append(items, order.Item{
			ItemID:    line.ItemID,
			Name:      entry.Name,
			Quantity:  line.Quantity,
			UnitPrice: entry.UnitPrice,
			Modifiers: line.Modifiers,
			LineTotal: order.LineTotal(entry.UnitPrice, line.Quantity),
		})
	}
	return items, skipped, nil
}

// orderCommands builds the full start-to-confirm command chain for the new
// order stream.
func (c *Converter) orderCommands(ctx context.Context, orderID, staffID, sessionID string, sessionState session.State, items []order.Item) ([]command.Command, error) {
	startPayload, err := json.Marshal(order.StartPayload{
		StaffID:         staffID,
		LocationID:      sessionState.LocationID,
		TableNumber:     sessionState.TableNumber,
		ServingType:     sessionState.ServingType,
		SourceSessionID: sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal start payload: %w", err)
	}
	modifyPayload, err := json.Marshal(order.ModifyItemsPayload{Add: items})
	if err != nil {
		return nil, fmt.Errorf("marshal items payload: %w", err)
	}
	validatePayload, err := json.Marshal(order.ValidateItemsPayload{
		Items:    items,
		Subtotal: order.Subtotal(items),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal validate payload: %w", err)
	}

	batch := []command.Command{
		{AggregateID: orderID, Type: order.CommandTypeStart, ActorType: command.ActorTypeStaff, ActorID: staffID, PayloadJSON: startPayload},
		{AggregateID: orderID, Type: order.CommandTypeModifyItems, ActorType: command.ActorTypeStaff, ActorID: staffID, PayloadJSON: modifyPayload},
		{AggregateID: orderID, Type: order.CommandTypeValidateItems, ActorType: command.ActorTypeStaff, ActorID: staffID, PayloadJSON: validatePayload},
	}

	if c.promotions != nil {
		promos, err := c.promotions.ForOrder(ctx, sessionState.LocationID, items)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDependency, "promotions lookup failed", err)
		}
		promoPayload, err := json.Marshal(order.PromotionsPayload(promos))
		if err != nil {
			return nil, fmt.Errorf("marshal promotions payload: %w", err)
		}
		batch = append(batch, command.Command{
			AggregateID: orderID, Type: order.CommandTypeSetPromotions,
			ActorType: command.ActorTypeStaff, ActorID: staffID, PayloadJSON: promoPayload,
		})
	}

	rateBp, currency, err := c.taxRates.RateBp(ctx, sessionState.LocationID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, "tax rate lookup failed", err)
	}
	pricePayload, err := json.Marshal(order.CalculatePricePayload{TaxRateBp: rateBp, Currency: currency})
	if err != nil {
		return nil, fmt.Errorf("marshal price payload: %w", err)
	}
	batch = append(batch, command.Command{
		AggregateID: orderID, Type: order.CommandTypeCalculatePrice,
		ActorType: command.ActorTypeStaff, ActorID: staffID, PayloadJSON: pricePayload,
	})

	if sessionState.PaymentMethod != "" {
		paymentPayload, err := json.Marshal(order.PaymentMethodPayload{Method: sessionState.PaymentMethod})
		if err != nil {
			return nil, fmt.Errorf("marshal payment payload: %w", err)
		}
		batch = append(batch, command.Command{
			AggregateID: orderID, Type: order.CommandTypeSetPaymentMethod,
			ActorType: command.ActorTypeStaff, ActorID: staffID, PayloadJSON: paymentPayload,
		})
	}

	batch = append(batch, command.Command{
		AggregateID: orderID, Type: order.CommandTypeConfirm,
		ActorType: command.ActorTypeStaff, ActorID: staffID,
	})
	return batch, nil
}
