package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusCanceled   PaymentStatus = "canceled"
	PaymentStatusChargeback PaymentStatus = "chargeback"
)

// Payment records a confirmed monetary event.
//
// ID is the provider's own idempotency key (transaction / charge / invoice id).
// Using it as the primary key collapses duplicate webhook deliveries into a
// single row via upsert; there is never a second Payment for the same charge.
type Payment struct {
	ID                  string // provider idempotency key
	UserID              string
	PlanID              string
	IntentID            string
	Provider            Provider
	Amount              int64
	Currency            string
	PlanPriceAtPurchase int64 // variant price at the moment of purchase
	Status              PaymentStatus
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
