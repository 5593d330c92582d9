package repository

import (
	"context"
	"time"

	"telegram-vpn-subscription/internal/domain/model"
)

type PaymentIntentRepository interface {
	Save(ctx context.Context, tx Tx, in *model.PaymentIntent) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentIntent, error)
	FindByExternalID(ctx context.Context, tx Tx, provider model.Provider, externalID string) (*model.PaymentIntent, error)
	// SetCheckout persists the provider checkout artifact on a pending intent.
	SetCheckout(ctx context.Context, tx Tx, id, externalID, checkoutURL, signedPayload string, expiresAt time.Time) error
	// TransitionStatus updates status only when the current status is one of
	// allowedFrom. Returns false when the guard did not match (someone else
	// already moved the intent).
	TransitionStatus(ctx context.Context, tx Tx, id string, to model.IntentStatus, allowedFrom ...model.IntentStatus) (bool, error)
	// MarkExpired flips every pending intent whose expiry passed. Safe to run
	// concurrently and repeatedly.
	MarkExpired(ctx context.Context, tx Tx, now time.Time) (int64, error)
}
