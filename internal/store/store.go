package store

import (
	"context"
	"errors"

	"invoiceflow/internal/model"
)

// Sentinel errors shared by all store drivers.
var (
	ErrNotFound       = errors.New("product not found")
	ErrNegativeStock  = errors.New("stock would go below zero")
	ErrUnacknowledged = model.ErrUnacknowledged
	ErrClosed         = errors.New("store is closed")
)

// SnapshotFunc receives the full, ordered product collection.
type SnapshotFunc func(products []model.Product)

// ErrorFunc receives a fatal subscription error. It is called at most once.
type ErrorFunc func(err error)

// Unsubscribe ends a subscription. It is safe to call more than once.
type Unsubscribe func()

// CatalogStore is the shared, concurrently mutated product collection.
type CatalogStore interface {
	// Subscribe pushes the current collection immediately and again after
	// every change until the returned Unsubscribe is called.
	Subscribe(ctx context.Context, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error)

	// Create stores a new product and returns its assigned ID.
	Create(ctx context.Context, draft model.ProductDraft) (string, error)

	// Patch writes only the fields set on the patch.
	Patch(ctx context.Context, id string, patch model.ProductPatch) error

	// Remove deletes a product.
	Remove(ctx context.Context, id string) error
}

// StockAdjuster is implemented by stores that can change stock atomically
// while refusing to go below zero.
type StockAdjuster interface {
	// AdjustStock adds delta to the product's stock and returns the new level.
	AdjustStock(ctx context.Context, id string, delta int64) (int64, error)
}
