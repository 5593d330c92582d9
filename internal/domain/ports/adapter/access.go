package adapter

import (
	"context"
	"time"

	"telegram-vpn-subscription/internal/domain/model"
)

// AccessNotifier is the narrow contract through which the reconciliation core
// pushes a recomputed access snapshot onto a user record. The receiving side
// owns any downstream provisioning effects. Passing this callback instead of
// a full bot/panel reference keeps the dependency graph acyclic.
type AccessNotifier interface {
	UpdateAccess(ctx context.Context, userID string, expiresAt *time.Time, status model.UserStatus) error
}
