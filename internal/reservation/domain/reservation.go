package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// ParseStatus validates a client-supplied status string.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return Status(s), true
	}
	return "", false
}

// Active reports whether the reservation still holds stock. Cancelled
// reservations have returned theirs; completed ones have consumed theirs.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Reservation holds units of a product for a customer. While the
// reservation is active its quantity is excluded from the product's
// sellable stock.
type Reservation struct {
	ID               int64           `json:"id"`
	ProductSKU       string          `json:"product_sku"`
	CustomerName     string          `json:"customer_name"`
	ReservedQuantity int             `json:"reserved_quantity"`
	SalesPerson      string          `json:"sales_person"`
	Discount         decimal.Decimal `json:"discount"`
	VAT              decimal.Decimal `json:"vat"`
	Status           Status          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func New(sku, customer string, qty int, salesPerson string, discount, vat decimal.Decimal) Reservation {
	now := time.Now().UTC()
	return Reservation{
		ProductSKU:       sku,
		CustomerName:     customer,
		ReservedQuantity: qty,
		SalesPerson:      salesPerson,
		Discount:         discount,
		VAT:              vat,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Detail is a reservation joined with the product it holds stock of,
// the shape list and get endpoints return.
type Detail struct {
	Reservation
	ProductName  string          `json:"product_name"`
	ProductPrice decimal.Decimal `json:"product_price"`
}
