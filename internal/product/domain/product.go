package domain

import "github.com/shopspring/decimal"

// Product is a sellable item identified by SKU. Quantity is the sellable
// stock: units held by pending or confirmed reservations are already
// subtracted from it.
type Product struct {
	ID       int64           `json:"id"`
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Patch is a partial update: nil fields are left unchanged.
type Patch struct {
	Name     *string
	Category *string
	Price    *decimal.Decimal
	Quantity *int
}

func (p Patch) Empty() bool {
	return p.Name == nil && p.Category == nil && p.Price == nil && p.Quantity == nil
}
