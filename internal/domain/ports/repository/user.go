package repository

import (
	"context"
	"time"

	"telegram-vpn-subscription/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByTelegramID(ctx context.Context, tx Tx, tgID int64) (*model.User, error)
	// UpdateAccess writes the derived access snapshot.
	UpdateAccess(ctx context.Context, tx Tx, userID string, expiresAt *time.Time, status model.UserStatus) error
	// StampFirstPaid records the first confirmed payment moment exactly once.
	StampFirstPaid(ctx context.Context, tx Tx, userID string, at time.Time) error
}
