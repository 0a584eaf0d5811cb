package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/louisbranch/brigade/internal/domain/event"
	"github.com/louisbranch/brigade/internal/domain/order"
	apperrors "github.com/louisbranch/brigade/internal/platform/errors"
	"github.com/louisbranch/brigade/internal/storage"
	"github.com/louisbranch/brigade/internal/storage/memory"
)

type fakeCatalog struct {
	items map[string]CatalogItem
	// onLookup runs before each lookup, letting tests interleave writes.
	onLookup func()
	err      error
}

func (c *fakeCatalog) Items(_ context.Context, itemIDs []string) (map[string]CatalogItem, error) {
	if c.onLookup != nil {
		c.onLookup()
	}
	if c.err != nil {
		return nil, c.err
	}
	found := make(map[string]CatalogItem)
	for _, id := range itemIDs {
		if item, ok := c.items[id]; ok {
			found[id] = item
		}
	}
	return found, nil
}

type fakeInventory struct {
	stock map[string]int
}

func (i *fakeInventory) Available(_ context.Context, _, itemID string) (int, error) {
	return i.stock[itemID], nil
}

type fakePromotions struct {
	promos order.Promotions
}

func (p *fakePromotions) ForOrder(_ context.Context, _ string, _ []order.Item) (order.Promotions, error) {
	return p.promos, nil
}

type fakeTaxRates struct {
	rateBp   int
	currency string
}

func (t *fakeTaxRates) RateBp(_ context.Context, _ string) (int, string, error) {
	return t.rateBp, t.currency, nil
}

type testEnv struct {
	events     *memory.EventStore
	readModels *memory.ReadModelStore
	catalog    *fakeCatalog
	inventory  *fakeInventory
	taxRates   *fakeTaxRates
	orders     *OrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		events:     memory.NewEventStore(event.NewRegistry()),
		readModels: memory.NewReadModelStore(),
		catalog: &fakeCatalog{items: map[string]CatalogItem{
			"burger": {ItemID: "burger", Name: "Burger", UnitPrice: 1000},
			"fries":  {ItemID: "fries", Name: "Fries", UnitPrice: 500},
		}},
		inventory: &fakeInventory{stock: map[string]int{"burger": 10, "fries": 10}},
		taxRates:  &fakeTaxRates{rateBp: 1900, currency: "USD"},
	}

	orders, err := NewOrderService(OrderServiceConfig{
		Events:     env.events,
		ReadModels: env.readModels,
		Catalog:    env.catalog,
		Inventory:  env.inventory,
		TaxRates:   env.taxRates,
	})
	if err != nil {
		t.Fatalf("NewOrderService() error = %v", err)
	}
	env.orders = orders
	return env
}

func (env *testEnv) startOrder(t *testing.T) string {
	t.Helper()
	orderID, err := env.orders.CreateOrder(context.Background(), CreateOrderInput{
		StaffID:     "staff-1",
		LocationID:  "loc-1",
		ServingType: order.ServingTypeDineIn,
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	return orderID
}

func (env *testEnv) addItems(t *testing.T, orderID string, items ...order.Item) {
	t.Helper()
	err := env.orders.ModifyOrder(context.Background(), ModifyOrderInput{
		OrderID: orderID,
		Actor:   StaffActor("staff-1"),
		Add:     items,
	})
	if err != nil {
		t.Fatalf("ModifyOrder() error = %v", err)
	}
}

func TestOrderLifecycleReadAfterWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	orderID := env.startOrder(t)
	env.addItems(t, orderID,
		order.Item{ItemID: "burger", Quantity: 2, UnitPrice: 1000},
		order.Item{ItemID: "fries", Quantity: 1, UnitPrice: 500},
	)

	money, err := env.orders.PriceOrder(ctx, orderID, StaffActor("staff-1"))
	if err != nil {
		t.Fatalf("PriceOrder() error = %v", err)
	}
	if money.Subtotal != 2500 {
		t.Fatalf("Subtotal = %d, want 2500", money.Subtotal)
	}
	if money.Tax != 475 {
		t.Fatalf("Tax = %d, want 475", money.Tax)
	}
	if money.Total != 2975 {
		t.Fatalf("Total = %d, want 2975", money.Total)
	}

	if err := env.orders.ConfirmOrder(ctx, orderID, StaffActor("staff-1")); err != nil {
		t.Fatalf("ConfirmOrder() error = %v", err)
	}

	record, err := env.orders.GetOrder(ctx, orderID)
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	if record.Status != string(order.StatusConfirmed) {
		t.Fatalf("record.Status = %q, want %q", record.Status, order.StatusConfirmed)
	}
	if record.Total != 2975 {
		t.Fatalf("record.Total = %d, want 2975", record.Total)
	}
	if record.ItemCount != 3 {
		t.Fatalf("record.ItemCount = %d, want 3", record.ItemCount)
	}
}

func TestPriceOrderAppliesPromotionDiscount(t *testing.T) {
	env := newTestEnv(t)
	orders, err := NewOrderService(OrderServiceConfig{
		Events:     env.events,
		ReadModels: env.readModels,
		Catalog:    env.catalog,
		TaxRates:   env.taxRates,
		Promotions: &fakePromotions{promos: order.Promotions{
			AutoApplied: []order.Promotion{{Code: "LUNCH", Discount: 200}},
		}},
	})
	if err != nil {
		t.Fatalf("NewOrderService() error = %v", err)
	}
	env.orders = orders

	orderID := env.startOrder(t)
	env.addItems(t, orderID, order.Item{ItemID: "burger", Quantity: 1, UnitPrice: 1000})

	money, err := env.orders.PriceOrder(context.Background(), orderID, StaffActor("staff-1"))
	if err != nil {
		t.Fatalf("PriceOrder() error = %v", err)
	}
	if money.Discount != 200 {
		t.Fatalf("Discount = %d, want 200", money.Discount)
	}
	if want := money.Subtotal + money.Tax - 200; money.Total != want {
		t.Fatalf("Total = %d, want %d", money.Total, want)
	}
}

func TestPriceOrderRejectsVanishedCatalogItem(t *testing.T) {
	env := newTestEnv(t)
	orderID := env.startOrder(t)
	env.addItems(t, orderID, order.Item{ItemID: "burger", Quantity: 1, UnitPrice: 1000})

	delete(env.catalog.items, "burger")

	_, err := env.orders.PriceOrder(context.Background(), orderID, StaffActor("staff-1"))
	if apperrors.CodeOf(err) != apperrors.CodeValidation {
		t.Fatalf("CodeOf(err) = %v, want %v (err = %v)", apperrors.CodeOf(err), apperrors.CodeValidation, err)
	}
}

func TestModifyOrderInsufficientStock(t *testing.T) {
	env := newTestEnv(t)
	orderID := env.startOrder(t)

	env.inventory.stock["burger"] = 1
	err := env.orders.ModifyOrder(context.Background(), ModifyOrderInput{
		OrderID: orderID,
		Actor:   StaffActor("staff-1"),
		Add:     []order.Item{{ItemID: "burger", Quantity: 3, UnitPrice: 1000}},
	})
	if apperrors.CodeOf(err) != apperrors.CodeOrderInsufficientStock {
		t.Fatalf("CodeOf(err) = %v, want %v (err = %v)", apperrors.CodeOf(err), apperrors.CodeOrderInsufficientStock, err)
	}
}

func TestPriceOrderSurfacesConcurrentConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	orderID := env.startOrder(t)
	env.addItems(t, orderID, order.Item{ItemID: "burger", Quantity: 1, UnitPrice: 1000})

	// Sneak a competing write in after PriceOrder has replayed state but
	// before it appends, by hooking the catalog lookup.
	interleaved := false
	env.catalog.onLookup = func() {
		if interleaved {
			return
		}
		interleaved = true
		if err := env.orders.AddNote(ctx, orderID, "rush it", StaffActor("staff-2")); err != nil {
			t.Errorf("AddNote() error = %v", err)
		}
	}

	_, err := env.orders.PriceOrder(ctx, orderID, StaffActor("staff-1"))
	if apperrors.CodeOf(err) != apperrors.CodeConcurrencyConflict {
		t.Fatalf("CodeOf(err) = %v, want %v (err = %v)", apperrors.CodeOf(err), apperrors.CodeConcurrencyConflict, err)
	}

	// The losing write left no partial events behind.
	head, err := env.events.LatestVersion(ctx, orderID)
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if head != 3 {
		t.Fatalf("head = %d, want 3 (start, items, note)", head)
	}
}

func TestCancelOrderRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	orderID := env.startOrder(t)

	err := env.orders.CancelOrder(context.Background(), orderID, "", StaffActor("staff-1"))
	if apperrors.CodeOf(err) != apperrors.CodeOrderReasonRequired {
		t.Fatalf("CodeOf(err) = %v, want %v (err = %v)", apperrors.CodeOf(err), apperrors.CodeOrderReasonRequired, err)
	}
}

func TestChangeStatusBackwardClearsReadyTimestamp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	staff := StaffActor("staff-1")

	orderID := env.startOrder(t)
	env.addItems(t, orderID, order.Item{ItemID: "burger", Quantity: 1, UnitPrice: 1000})
	if err := env.orders.ConfirmOrder(ctx, orderID, staff); err != nil {
		t.Fatalf("ConfirmOrder() error = %v", err)
	}
	for _, to := range []order.Status{order.StatusPreparing, order.StatusReady} {
		if err := env.orders.ChangeStatus(ctx, orderID, to, "", staff); err != nil {
			t.Fatalf("ChangeStatus(%s) error = %v", to, err)
		}
	}

	if err := env.orders.ChangeStatus(ctx, orderID, order.StatusConfirmed, "", staff); apperrors.CodeOf(err) != apperrors.CodeOrderReasonRequired {
		t.Fatalf("backward move without reason: CodeOf(err) = %v, want %v", apperrors.CodeOf(err), apperrors.CodeOrderReasonRequired)
	}
	if err := env.orders.ChangeStatus(ctx, orderID, order.StatusConfirmed, "remake", staff); err != nil {
		t.Fatalf("ChangeStatus(confirmed) error = %v", err)
	}

	state, err := env.orders.GetOrderState(ctx, orderID)
	if err != nil {
		t.Fatalf("GetOrderState() error = %v", err)
	}
	if state.Status != order.StatusConfirmed {
		t.Fatalf("Status = %q, want %q", state.Status, order.StatusConfirmed)
	}
	if state.Timestamps.ReadyAt != nil {
		t.Fatal("ReadyAt should be cleared by the backward move")
	}
	if state.Timestamps.PreparingAt != nil {
		t.Fatal("PreparingAt should be cleared by the backward move")
	}
}

func TestDeliveryStatusDeniedForDineIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	staff := StaffActor("staff-1")

	orderID := env.startOrder(t)
	env.addItems(t, orderID, order.Item{ItemID: "burger", Quantity: 1, UnitPrice: 1000})
	if err := env.orders.ConfirmOrder(ctx, orderID, staff); err != nil {
		t.Fatalf("ConfirmOrder() error = %v", err)
	}
	for _, to := range []order.Status{order.StatusPreparing, order.StatusReady} {
		if err := env.orders.ChangeStatus(ctx, orderID, to, "", staff); err != nil {
			t.Fatalf("ChangeStatus(%s) error = %v", to, err)
		}
	}

	err := env.orders.ChangeStatus(ctx, orderID, order.StatusDelivering, "", staff)
	if apperrors.CodeOf(err) != apperrors.CodeOrderDeliveryStatusDenied {
		t.Fatalf("CodeOf(err) = %v, want %v (err = %v)", apperrors.CodeOf(err), apperrors.CodeOrderDeliveryStatusDenied, err)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orders.GetOrder(context.Background(), "missing")
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("CodeOf(err) = %v, want %v (err = %v)", apperrors.CodeOf(err), apperrors.CodeNotFound, err)
	}
}

func TestListOrdersByStatusSeesConfirmedOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var confirmed []string
	for i := 0; i < 3; i++ {
		orderID := env.startOrder(t)
		env.addItems(t, orderID, order.Item{ItemID: "fries", Quantity: 1, UnitPrice: 500})
		if i < 2 {
			if err := env.orders.ConfirmOrder(ctx, orderID, StaffActor("staff-1")); err != nil {
				t.Fatalf("ConfirmOrder() error = %v", err)
			}
			confirmed = append(confirmed, orderID)
		}
	}

	records, err := env.readModels.ListOrdersByStatus(ctx, string(order.StatusConfirmed))
	if err != nil {
		t.Fatalf("ListOrdersByStatus() error = %v", err)
	}
	if len(records) != len(confirmed) {
		t.Fatalf("len(records) = %d, want %d", len(records), len(confirmed))
	}
}

func TestStorageErrorMapping(t *testing.T) {
	conflict := &storage.ConflictError{AggregateID: "o1", ExpectedVersion: 1, ActualVersion: 2}
	if got := apperrors.CodeOf(storageError(conflict)); got != apperrors.CodeConcurrencyConflict {
		t.Fatalf("conflict code = %v, want %v", got, apperrors.CodeConcurrencyConflict)
	}
	notFound := fmt.Errorf("get: %w", storage.ErrNotFound)
	if got := apperrors.CodeOf(storageError(notFound)); got != apperrors.CodeNotFound {
		t.Fatalf("not found code = %v, want %v", got, apperrors.CodeNotFound)
	}
	if storageError(nil) != nil {
		t.Fatal("storageError(nil) should be nil")
	}
}
