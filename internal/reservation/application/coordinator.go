package application

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bathware-labs/stock-reservation-service/internal/reservation/domain"
	"github.com/bathware-labs/stock-reservation-service/pkg/apperror"
	"github.com/bathware-labs/stock-reservation-service/pkg/outbox"
	"github.com/bathware-labs/stock-reservation-service/pkg/tracing"
)

// Coordinator owns the stock/reservation invariant: for every SKU the
// product's quantity plus the quantities held by pending and confirmed
// reservations equals physical stock, and quantity never goes negative.
// Every mutating operation runs as one storage transaction with the
// product row held exclusively, so the invariant also holds under
// concurrent operations on the same SKU.
type Coordinator struct {
	log   *slog.Logger
	store Store
}

func NewCoordinator(log *slog.Logger, store Store) *Coordinator {
	return &Coordinator{log: log, store: store}
}

type CreateInput struct {
	ProductSKU       string
	CustomerName     string
	ReservedQuantity int
	SalesPerson      string
	Discount         decimal.Decimal
	VAT              decimal.Decimal
}

// Create inserts a pending reservation and takes its quantity out of the
// product's sellable stock.
func (c *Coordinator) Create(ctx context.Context, in CreateInput) (int64, error) {
	if in.ProductSKU == "" {
		return 0, apperror.InvalidArgument("product_sku required")
	}
	if in.CustomerName == "" {
		return 0, apperror.InvalidArgument("customer_name required")
	}
	if in.ReservedQuantity <= 0 {
		return 0, apperror.InvalidArgument("reserved_quantity must be a positive number")
	}
	if in.Discount.IsNegative() {
		return 0, apperror.InvalidArgument("discount must not be negative")
	}
	if in.VAT.IsNegative() {
		return 0, apperror.InvalidArgument("vat must not be negative")
	}

	var id int64
	err := c.store.Atomic(ctx, func(tx Tx) error {
		p, err := tx.GetProductForUpdate(ctx, in.ProductSKU)
		if err != nil {
			return err
		}
		if p.Quantity < in.ReservedQuantity {
			return apperror.InsufficientStock(p.Quantity)
		}
		subtotal := p.Price.Mul(decimal.NewFromInt(int64(in.ReservedQuantity)))
		if in.Discount.GreaterThan(subtotal) {
			return apperror.InvalidArgument("discount exceeds subtotal")
		}

		r := domain.New(in.ProductSKU, in.CustomerName, in.ReservedQuantity, in.SalesPerson, in.Discount, in.VAT)
		id, err = tx.InsertReservation(ctx, r)
		if err != nil {
			return err
		}
		if err := tx.AdjustProductQuantity(ctx, p.SKU, -in.ReservedQuantity); err != nil {
			return err
		}
		return c.appendMovement(ctx, tx, outbox.TypeReservationCreated, id, p.SKU, -in.ReservedQuantity, domain.StatusPending)
	})
	if err != nil {
		return 0, err
	}
	c.log.Info("reservation created", "id", id, "sku", in.ProductSKU, "quantity", in.ReservedQuantity)
	return id, nil
}

// UpdateStatus moves a reservation through its lifecycle. Cancelling
// returns the held stock; completing consumes the hold taken at create
// time without touching quantity again. Re-applying the current status is
// a no-op on stock.
func (c *Coordinator) UpdateStatus(ctx context.Context, id int64, status string) error {
	target, ok := domain.ParseStatus(status)
	if !ok {
		return apperror.InvalidArgument("status must be one of: pending, confirmed, cancelled, completed")
	}

	err := c.store.Atomic(ctx, func(tx Tx) error {
		r, err := tx.GetReservation(ctx, id)
		if err != nil {
			return err
		}

		switch {
		case target == domain.StatusCancelled && r.Status != domain.StatusCancelled:
			if err := tx.AdjustProductQuantity(ctx, r.ProductSKU, r.ReservedQuantity); err != nil {
				return err
			}
			if err := tx.SetReservationStatus(ctx, id, target); err != nil {
				return err
			}
			return c.appendMovement(ctx, tx, outbox.TypeReservationCancelled, id, r.ProductSKU, r.ReservedQuantity, target)

		case target == domain.StatusCompleted && r.Status != domain.StatusCompleted:
			// The hold was already subtracted from sellable stock at create
			// time, so completing must not subtract again. Completion is
			// still refused when remaining stock dropped below the reserved
			// amount, e.g. after an admin edit.
			p, err := tx.GetProductForUpdate(ctx, r.ProductSKU)
			if err != nil {
				return err
			}
			if p.Quantity < r.ReservedQuantity {
				return apperror.InsufficientStock(p.Quantity)
			}
			if err := tx.SetReservationStatus(ctx, id, target); err != nil {
				return err
			}
			return c.appendMovement(ctx, tx, outbox.TypeReservationCompleted, id, r.ProductSKU, 0, target)

		default:
			// Includes re-applying the current status: refreshes updated_at,
			// never moves stock.
			return tx.SetReservationStatus(ctx, id, target)
		}
	})
	if err != nil {
		return err
	}
	c.log.Info("reservation status updated", "id", id, "status", target)
	return nil
}

// UpdateQuantity resizes a pending reservation. The old hold is returned
// to the pool before the new one is checked, so shrinking always succeeds
// and growing is limited by quantity + old hold.
func (c *Coordinator) UpdateQuantity(ctx context.Context, id int64, quantity int) error {
	if quantity <= 0 {
		return apperror.InvalidArgument("reserved_quantity must be a positive number")
	}

	err := c.store.Atomic(ctx, func(tx Tx) error {
		r, err := tx.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		if r.Status != domain.StatusPending {
			return apperror.InvalidState("can only update quantity for pending reservations")
		}

		p, err := tx.GetProductForUpdate(ctx, r.ProductSKU)
		if err != nil {
			return err
		}
		available := p.Quantity + r.ReservedQuantity
		if quantity > available {
			return apperror.InsufficientStock(available)
		}

		if err := tx.SetReservationQuantity(ctx, id, quantity); err != nil {
			return err
		}
		delta := r.ReservedQuantity - quantity
		if err := tx.AdjustProductQuantity(ctx, p.SKU, delta); err != nil {
			return err
		}
		return c.appendMovement(ctx, tx, outbox.TypeQuantityChanged, id, p.SKU, delta, r.Status)
	})
	if err != nil {
		return err
	}
	c.log.Info("reservation quantity updated", "id", id, "quantity", quantity)
	return nil
}

// Delete removes a reservation. Any non-cancelled reservation still holds
// stock, so its quantity goes back to the pool first; a cancelled one has
// already returned its hold and deleting it must not credit stock twice.
func (c *Coordinator) Delete(ctx context.Context, id int64) error {
	err := c.store.Atomic(ctx, func(tx Tx) error {
		r, err := tx.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		delta := 0
		if r.Status != domain.StatusCancelled {
			delta = r.ReservedQuantity
			if err := tx.AdjustProductQuantity(ctx, r.ProductSKU, delta); err != nil {
				return err
			}
		}
		if err := tx.DeleteReservation(ctx, id); err != nil {
			return err
		}
		return c.appendMovement(ctx, tx, outbox.TypeReservationDeleted, id, r.ProductSKU, delta, r.Status)
	})
	if err != nil {
		return err
	}
	c.log.Info("reservation deleted", "id", id)
	return nil
}

func (c *Coordinator) List(ctx context.Context) ([]domain.Detail, error) {
	return c.store.ListReservations(ctx)
}

func (c *Coordinator) Get(ctx context.Context, id int64) (domain.Detail, error) {
	return c.store.GetReservationDetail(ctx, id)
}

// ExportCSV renders all reservations with their product columns.
func (c *Coordinator) ExportCSV(ctx context.Context) ([]byte, error) {
	details, err := c.store.ListReservations(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"ID", "Product SKU", "Product Name", "Customer Name", "Sales Person", "Quantity", "Status", "Discount", "VAT", "Created At", "Updated At"})
	for _, d := range details {
		_ = w.Write([]string{
			strconv.FormatInt(d.ID, 10),
			d.ProductSKU,
			d.ProductName,
			d.CustomerName,
			d.SalesPerson,
			strconv.Itoa(d.ReservedQuantity),
			string(d.Status),
			d.Discount.String(),
			d.VAT.String(),
			d.CreatedAt.Format(time.RFC3339),
			d.UpdatedAt.Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, apperror.Internal(err)
	}
	return buf.Bytes(), nil
}

func (c *Coordinator) appendMovement(ctx context.Context, tx Tx, eventType string, id int64, sku string, delta int, status domain.Status) error {
	payload, err := json.Marshal(outbox.StockMovement{
		ReservationID: id,
		ProductSKU:    sku,
		QuantityDelta: delta,
		Status:        string(status),
	})
	if err != nil {
		return apperror.Internal(err)
	}
	return tx.AppendEvent(ctx, outbox.Record{
		AggregateType: "reservation",
		AggregateID:   strconv.FormatInt(id, 10),
		Type:          eventType,
		Payload:       payload,
		Traceparent:   tracing.Traceparent(ctx),
	})
}
