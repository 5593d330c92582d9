package model

type EventKind string

const (
	EventConfirmed  EventKind = "confirmed"
	EventCanceled   EventKind = "canceled"
	EventChargeback EventKind = "chargeback"
)

// ProviderEvent is a provider callback normalized by the adapter layer.
//
// IntentID is set when the provider echoed our signed payload back and its
// signature verified; ExternalIDs carries the provider-side correlation ids in
// preference order as a fallback chain.
type ProviderEvent struct {
	Provider    Provider
	Kind        EventKind
	IntentID    string
	ExternalIDs []string
	PayKey      string // provider idempotency key for the Payment row
	Amount      int64
	Currency    string
	PayerTgID   int64 // stars only; 0 elsewhere
}

// PreCheckout is the synchronous pre-authorization gate fired by the in-chat
// provider before money moves. The payload signature has already been
// verified by the adapter that produced this value.
type PreCheckout struct {
	QueryID   string
	PayerTgID int64
	IntentID  string
	Amount    int64
	Currency  string
}
