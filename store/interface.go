package store

import (
	"context"

	"storefront/model"
)

// Store is the product collection. MarkSold must be an atomic compare-and-swap
// on a single product: concurrent callers for the same id never both report
// changed=true.
type Store interface {
	CreateProduct(ctx context.Context, p model.NewProduct) (model.Product, error)
	GetProduct(ctx context.Context, id string) (model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	MarkSold(ctx context.Context, id string) (changed bool, err error)

	Close() error
}
