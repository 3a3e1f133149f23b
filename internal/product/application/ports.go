package application

import (
	"context"

	"github.com/bathware-labs/stock-reservation-service/internal/product/domain"
)

// ProductStore is the catalog persistence port. Insert reports duplicate
// SKUs as a Conflict error; Update applies only the fields set on the
// patch and reports the number of changed rows.
type ProductStore interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, sku string) (domain.Product, error)
	InsertProduct(ctx context.Context, p domain.Product) (int64, error)
	UpdateProduct(ctx context.Context, sku string, patch domain.Patch) (int64, error)
	DeleteProduct(ctx context.Context, sku string) error
	UpsertProduct(ctx context.Context, p domain.Product) error
}
