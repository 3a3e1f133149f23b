package sqlite

import (
	"time"

	"github.com/shopspring/decimal"

	productdomain "github.com/bathware-labs/stock-reservation-service/internal/product/domain"
	reservationdomain "github.com/bathware-labs/stock-reservation-service/internal/reservation/domain"
	"github.com/bathware-labs/stock-reservation-service/pkg/outbox"
)

type productRow struct {
	ID       int64           `gorm:"column:id;primaryKey;autoIncrement"`
	SKU      string          `gorm:"column:sku;uniqueIndex;size:64"`
	Name     string          `gorm:"column:name;size:200"`
	Category string          `gorm:"column:category;size:100"`
	Price    decimal.Decimal `gorm:"column:price;type:decimal(12,2)"`
	Quantity int             `gorm:"column:quantity;not null;default:0"`
}

func (productRow) TableName() string { return "products" }

func (r productRow) toDomain() productdomain.Product {
	return productdomain.Product{
		ID:       r.ID,
		SKU:      r.SKU,
		Name:     r.Name,
		Category: r.Category,
		Price:    r.Price,
		Quantity: r.Quantity,
	}
}

func fromDomainProduct(p productdomain.Product) productRow {
	return productRow{
		SKU:      p.SKU,
		Name:     p.Name,
		Category: p.Category,
		Price:    p.Price,
		Quantity: p.Quantity,
	}
}

type reservationRow struct {
	ID               int64           `gorm:"column:id;primaryKey;autoIncrement"`
	ProductSKU       string          `gorm:"column:product_sku;size:64;index"`
	CustomerName     string          `gorm:"column:customer_name;size:200"`
	ReservedQuantity int             `gorm:"column:reserved_quantity;not null"`
	SalesPerson      string          `gorm:"column:sales_person;size:200"`
	Discount         decimal.Decimal `gorm:"column:discount;type:decimal(12,2)"`
	VAT              decimal.Decimal `gorm:"column:vat;type:decimal(12,2)"`
	Status           string          `gorm:"column:status;size:20;default:pending"`
	CreatedAt        time.Time       `gorm:"column:created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at"`
}

func (reservationRow) TableName() string { return "reservations" }

func (r reservationRow) toDomain() reservationdomain.Reservation {
	return reservationdomain.Reservation{
		ID:               r.ID,
		ProductSKU:       r.ProductSKU,
		CustomerName:     r.CustomerName,
		ReservedQuantity: r.ReservedQuantity,
		SalesPerson:      r.SalesPerson,
		Discount:         r.Discount,
		VAT:              r.VAT,
		Status:           reservationdomain.Status(r.Status),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func fromDomainReservation(r reservationdomain.Reservation) reservationRow {
	return reservationRow{
		ProductSKU:       r.ProductSKU,
		CustomerName:     r.CustomerName,
		ReservedQuantity: r.ReservedQuantity,
		SalesPerson:      r.SalesPerson,
		Discount:         r.Discount,
		VAT:              r.VAT,
		Status:           string(r.Status),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// detailRow is the reservations-join-products projection. The reservation
// columns must be an exported embedded field: gorm's schema parser skips
// unexported plain-embedded structs and would scan them as all zero.
type detailRow struct {
	Reservation  reservationRow  `gorm:"embedded"`
	ProductName  string          `gorm:"column:product_name"`
	ProductPrice decimal.Decimal `gorm:"column:product_price"`
}

func (r detailRow) toDomain() reservationdomain.Detail {
	return reservationdomain.Detail{
		Reservation:  r.Reservation.toDomain(),
		ProductName:  r.ProductName,
		ProductPrice: r.ProductPrice,
	}
}

type outboxRow struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	AggregateType string     `gorm:"column:aggregate_type;size:50"`
	AggregateID   string     `gorm:"column:aggregate_id;size:64"`
	Type          string     `gorm:"column:type;size:100"`
	Payload       []byte     `gorm:"column:payload"`
	Traceparent   string     `gorm:"column:traceparent;size:100"`
	Status        string     `gorm:"column:status;size:20;index;default:pending"`
	RelayID       string     `gorm:"column:relay_id;size:100"`
	LeaseUntil    *time.Time `gorm:"column:lease_until"`
	RetryCount    int        `gorm:"column:retry_count;default:0"`
	LastError     string     `gorm:"column:last_error"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
}

func (outboxRow) TableName() string { return "outbox" }

func (r outboxRow) toEvent() outbox.Event {
	return outbox.Event{
		ID:            r.ID,
		AggregateType: r.AggregateType,
		AggregateID:   r.AggregateID,
		Type:          r.Type,
		Payload:       r.Payload,
		Traceparent:   r.Traceparent,
		Status:        outbox.Status(r.Status),
		RetryCount:    r.RetryCount,
		LastError:     r.LastError,
		CreatedAt:     r.CreatedAt,
	}
}
