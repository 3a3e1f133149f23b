package application

import (
	"context"

	productdomain "github.com/bathware-labs/stock-reservation-service/internal/product/domain"
	"github.com/bathware-labs/stock-reservation-service/internal/reservation/domain"
	"github.com/bathware-labs/stock-reservation-service/pkg/outbox"
)

// Tx is one storage transaction. Every method sees the effects of the
// previous ones and either all of them commit or none do.
type Tx interface {
	// GetProductForUpdate fetches a product and holds it exclusively for
	// the rest of the transaction, so concurrent operations on the same
	// SKU serialize.
	GetProductForUpdate(ctx context.Context, sku string) (productdomain.Product, error)
	AdjustProductQuantity(ctx context.Context, sku string, delta int) error

	GetReservation(ctx context.Context, id int64) (domain.Reservation, error)
	InsertReservation(ctx context.Context, r domain.Reservation) (int64, error)
	SetReservationStatus(ctx context.Context, id int64, status domain.Status) error
	SetReservationQuantity(ctx context.Context, id int64, qty int) error
	DeleteReservation(ctx context.Context, id int64) error

	AppendEvent(ctx context.Context, rec outbox.Record) error
}

// Store runs coordinator operations atomically and serves the read side.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	ListReservations(ctx context.Context) ([]domain.Detail, error)
	GetReservationDetail(ctx context.Context, id int64) (domain.Detail, error)
}
