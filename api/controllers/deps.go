package controllers

import (
	"context"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/catalog"
)

// CatalogService lists and looks up catalog data.
type CatalogService interface {
	List(ctx context.Context, q catalog.Query, groupBy catalog.GroupBy) (catalog.PageResult, error)
	DesignVariants(ctx context.Context, designID string) ([]catalog.Variant, error)
}

// CartStore is the persisted cart.
type CartStore interface {
	Get(ctx context.Context) cart.Cart
	Add(ctx context.Context, designID, sizeName string, quantity int) (cart.Cart, error)
	SetQuantity(ctx context.Context, designID, sizeName string, quantity int) (cart.Cart, error)
	Remove(ctx context.Context, designID string) (cart.Cart, error)
	RemoveLine(ctx context.Context, designID, sizeName string) (cart.Cart, error)
	Clear(ctx context.Context) error
}

// CartReconciler prices a cart.
type CartReconciler interface {
	Reconcile(ctx context.Context, c cart.Cart) (*cart.View, error)
}

// CartWatcher exposes the background view and its visibility switch.
type CartWatcher interface {
	Latest() (*cart.View, bool)
	Visible() bool
	SetVisible(visible bool)
}

// Pinger is a readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}
