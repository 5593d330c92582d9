// File: internal/usecase/access_sync.go
package usecase

import (
	"context"
	"time"

	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/adapter"
	"telegram-vpn-subscription/internal/domain/ports/repository"
)

// Compile-time check
var _ adapter.AccessNotifier = (*userAccessSync)(nil)

// AccessChangedFunc lets outer layers (bot notifications, VPN panel
// provisioning) react to a snapshot change without the core depending on them.
type AccessChangedFunc func(ctx context.Context, userID string, expiresAt *time.Time, status model.UserStatus)

// userAccessSync is the default AccessNotifier: it writes the users table and
// fans out to an optional callback.
type userAccessSync struct {
	users  repository.UserRepository
	notify AccessChangedFunc
}

func NewUserAccessSync(users repository.UserRepository, notify AccessChangedFunc) *userAccessSync {
	return &userAccessSync{users: users, notify: notify}
}

func (s *userAccessSync) UpdateAccess(ctx context.Context, userID string, expiresAt *time.Time, status model.UserStatus) error {
	if err := s.users.UpdateAccess(ctx, nil, userID, expiresAt, status); err != nil {
		return err
	}
	if s.notify != nil {
		s.notify(ctx, userID, expiresAt, status)
	}
	return nil
}
