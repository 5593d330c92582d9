package adapter

import (
	"context"
	"time"

	"telegram-vpn-subscription/internal/domain/model"
)

// CheckoutRequest carries everything an adapter needs to create a checkout
// artifact at its provider.
type CheckoutRequest struct {
	IntentID    string
	Amount      int64 // minor units
	Currency    string
	Description string
	ReturnURL   string
	FailURL     string
	// AuthToken optionally overrides the adapter's configured credential for
	// this single call.
	AuthToken string
}

// Checkout is the provider-side artifact the user pays against.
type Checkout struct {
	ExternalID    string
	CheckoutURL   string
	SignedPayload string        // opaque payload round-tripped through the provider
	TTL           time.Duration // 0 means the adapter default applies
}

// ProviderAdapter is a thin protocol client for one payment provider. Leaf
// module: adapters never depend on use cases.
type ProviderAdapter interface {
	Name() model.Provider
	// Currencies is the provider's fixed supported-currency set; eligibility
	// is checked against it before any network call.
	Currencies() []string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
}
