package repository

import (
	"context"

	"telegram-vpn-subscription/internal/domain/model"
)

type PaymentRepository interface {
	// Upsert creates the payment or refreshes its status, keyed by the
	// provider idempotency key. Redelivered callbacks collapse into one row.
	Upsert(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByIntentID(ctx context.Context, tx Tx, intentID string) (*model.Payment, error)
}
