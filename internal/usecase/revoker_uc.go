// File: internal/usecase/revoker_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/adapter"
	"telegram-vpn-subscription/internal/domain/ports/repository"
)

// Compile-time check
var _ RevokerUseCase = (*revokerUC)(nil)

type SubscriptionAction string

const (
	// ActionDeactivate clears the active flag, preserving history.
	ActionDeactivate SubscriptionAction = "deactivate"
	// ActionDelete removes the row outright; used when an admin deletes the
	// payment record itself.
	ActionDelete SubscriptionAction = "delete"
)

type NoActiveMode string

const (
	// ModeEndNow expires access immediately when no active window remains.
	ModeEndNow NoActiveMode = "end_now"
	// ModeUseLastAny falls back to the most recent window's end, active or
	// not, so reversing one payment does not clip time still owed from an
	// older grant.
	ModeUseLastAny NoActiveMode = "use_last_any"
)

type RevokerUseCase interface {
	RevokeForPayment(ctx context.Context, userID, paymentID string, action SubscriptionAction, mode NoActiveMode) error
	RecalculateAndSync(ctx context.Context, userID string, mode NoActiveMode) error
}

type revokerUC struct {
	subs   repository.SubscriptionRepository
	users  repository.UserRepository
	access adapter.AccessNotifier
	log    *zerolog.Logger
}

func NewRevokerUseCase(
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	access adapter.AccessNotifier,
	logger *zerolog.Logger,
) *revokerUC {
	l := logger.With().Str("component", "RevokerUC").Logger()
	return &revokerUC{subs: subs, users: users, access: access, log: &l}
}

func (u *revokerUC) RevokeForPayment(ctx context.Context, userID, paymentID string, action SubscriptionAction, mode NoActiveMode) error {
	revokedID := ""
	sub, err := u.subs.FindByPaymentID(ctx, nil, paymentID)
	switch {
	case err == nil:
		revokedID = sub.ID
		switch action {
		case ActionDelete:
			if err := u.subs.Delete(ctx, nil, sub.ID); err != nil {
				return err
			}
		default:
			sub.Active = false
			if err := u.subs.Save(ctx, nil, sub); err != nil {
				return err
			}
		}
		u.log.Info().Str("subscription_id", sub.ID).Str("payment_id", paymentID).
			Str("action", string(action)).Msg("subscription revoked")
	case errors.Is(err, domain.ErrNotFound):
		// Payment never produced a window; still recompute the snapshot.
	default:
		return err
	}
	return u.recalc(ctx, userID, mode, revokedID)
}

func (u *revokerUC) RecalculateAndSync(ctx context.Context, userID string, mode NoActiveMode) error {
	return u.recalc(ctx, userID, mode, "")
}

func (u *revokerUC) recalc(ctx context.Context, userID string, mode NoActiveMode, revokedID string) error {
	user, err := u.users.FindByID(ctx, nil, userID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	expiresAt := now
	if active, err := u.subs.FindActiveByUser(ctx, nil, userID); err == nil {
		expiresAt = active.EndsAt
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	} else if mode == ModeUseLastAny {
		// The just-revoked window has the largest EndsAt and must not count as
		// "last", or the revocation would pick its own expiry back up.
		if last, lerr := u.subs.FindLatestByUser(ctx, nil, userID, revokedID); lerr == nil {
			expiresAt = last.EndsAt
		} else if !errors.Is(lerr, domain.ErrNotFound) {
			return lerr
		}
	}

	status := model.DeriveStatus(user.Status, &expiresAt, now)
	return u.access.UpdateAccess(ctx, userID, &expiresAt, status)
}
