package model

import "time"

// Provider identifies a payment provider integration.
type Provider string

const (
	ProviderCryptoPay Provider = "cryptopay" // crypto invoices denominated in fiat
	ProviderCardlink  Provider = "cardlink"  // card / instant bank transfer
	ProviderStars     Provider = "stars"     // Telegram Stars, in-chat
)

type IntentStatus string

const (
	IntentStatusPending    IntentStatus = "pending"
	IntentStatusPaid       IntentStatus = "paid"
	IntentStatusCanceled   IntentStatus = "canceled"
	IntentStatusChargeback IntentStatus = "chargeback"
	IntentStatusExpired    IntentStatus = "expired"
)

// PaymentIntent is one checkout attempt with one provider, before money moved.
type PaymentIntent struct {
	ID            string // ULID
	UserID        string // UUID
	PlanID        string // UUID
	VariantID     string // UUID
	Provider      Provider
	Amount        int64 // minor units (kopecks/cents; whole units for XTR)
	Currency      string
	Status        IntentStatus
	ExternalID    *string // provider invoice/transaction id, nil until checkout created
	CheckoutURL   *string
	SignedPayload string
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// Terminal reports whether no further webhook may move the intent again,
// except the stickiness exceptions encoded in CanTransition.
func (s IntentStatus) Terminal() bool {
	return s != IntentStatusPending
}

// CanTransition encodes the monotone intent lifecycle:
//   - pending may move to any terminal status;
//   - paid is sticky against canceled/expired but yields to chargeback;
//   - a late confirmation may still land on a canceled or expired intent
//     (money moved after our sweep; the grant must follow the money);
//   - chargeback is final.
func (s IntentStatus) CanTransition(to IntentStatus) bool {
	if s == to {
		return false
	}
	switch to {
	case IntentStatusPaid:
		return s != IntentStatusChargeback
	case IntentStatusChargeback:
		return true
	case IntentStatusCanceled, IntentStatusExpired:
		return s == IntentStatusPending
	default:
		return false
	}
}
