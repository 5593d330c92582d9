package repository

import (
	"context"

	"telegram-vpn-subscription/internal/domain/model"
)

type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindByPaymentID(ctx context.Context, tx Tx, paymentID string) (*model.Subscription, error)
	// FindActiveByUser returns the single active window, ErrNotFound if none.
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	// FindLatestByUser returns the subscription with the most recent EndsAt,
	// active or not, skipping excludeID when non-empty. Used by the revocation
	// fallback, which must not count the window it just revoked.
	FindLatestByUser(ctx context.Context, tx Tx, userID, excludeID string) (*model.Subscription, error)
	// DeactivateAllForUser clears the active flag on every window of the user.
	DeactivateAllForUser(ctx context.Context, tx Tx, userID string) (int64, error)
	Delete(ctx context.Context, tx Tx, id string) error
}
