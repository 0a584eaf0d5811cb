package service

import (
	"context"

	"github.com/louisbranch/brigade/internal/domain/order"
)

// CatalogItem is the authoritative menu entry for an item at lookup time.
type CatalogItem struct {
	ItemID    string
	Name      string
	UnitPrice int64
}

// Catalog resolves authoritative item names and prices. Conversions and
// pricing always consult it fresh; session-time prices are never trusted.
type Catalog interface {
	// Items returns the catalog entries for the requested ids. Missing ids
	// are simply absent from the result, not an error.
	Items(ctx context.Context, itemIDs []string) (map[string]CatalogItem, error)
}

// Inventory reports stock on hand.
type Inventory interface {
	Available(ctx context.Context, locationID, itemID string) (int, error)
}

// Promotions computes applicable promotions for an order's current items.
type Promotions interface {
	ForOrder(ctx context.Context, locationID string, items []order.Item) (order.Promotions, error)
}

// TaxRates resolves the tax rate in basis points and the currency for a
// location.
type TaxRates interface {
	RateBp(ctx context.Context, locationID string) (rateBp int, currency string, err error)
}
