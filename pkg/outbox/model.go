// Package outbox implements the transactional-outbox side of stock
// mutations: every coordinator write appends a stock-movement event in the
// same transaction, and a relay drains pending events to Kafka.
package outbox

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Event types appended by the reservation coordinator.
const (
	TypeReservationCreated   = "reservation.created"
	TypeReservationCancelled = "reservation.cancelled"
	TypeReservationCompleted = "reservation.completed"
	TypeQuantityChanged      = "reservation.quantity_changed"
	TypeReservationDeleted   = "reservation.deleted"
)

// Record is what a transaction appends; the store assigns ID and timestamps.
type Record struct {
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Traceparent   string
}

// Event is a stored outbox row as seen by the relay.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Traceparent   string
	Status        Status
	RetryCount    int
	LastError     string
	CreatedAt     time.Time
}

// StockMovement is the payload of every reservation event: the delta is the
// change applied to the product's sellable quantity (negative when stock was
// taken, positive when returned, zero for pure status changes).
type StockMovement struct {
	ReservationID int64  `json:"reservation_id"`
	ProductSKU    string `json:"product_sku"`
	QuantityDelta int    `json:"quantity_delta"`
	Status        string `json:"status"`
}
