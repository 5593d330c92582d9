// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/adapter"
	"telegram-vpn-subscription/internal/domain/ports/repository"
	"telegram-vpn-subscription/internal/infra/metrics"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

type LedgerUseCase interface {
	// Create deactivates every active window of the user and inserts the new
	// one in a single transaction, then pushes the recomputed access snapshot.
	// A unique violation on the payment link surfaces as ErrAlreadyExists.
	Create(ctx context.Context, p CreateSubscriptionParams) (*model.Subscription, error)
	// Update recomputes the window and re-syncs the snapshot only when the
	// edited subscription is the currently active one.
	Update(ctx context.Context, id string, p UpdateSubscriptionParams) (*model.Subscription, error)
}

type CreateSubscriptionParams struct {
	UserID     string
	PaymentID  *string
	PlanID     string
	PeriodDays int
	StartsAt   *time.Time // nil means "now"
}

type UpdateSubscriptionParams struct {
	PeriodDays *int
	StartsAt   *time.Time
	EndsAt     *time.Time
}

type ledgerUC struct {
	subs   repository.SubscriptionRepository
	users  repository.UserRepository
	access adapter.AccessNotifier
	tm     repository.TransactionManager
	log    *zerolog.Logger
}

func NewLedgerUseCase(
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	access adapter.AccessNotifier,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *ledgerUC {
	l := logger.With().Str("component", "LedgerUC").Logger()
	return &ledgerUC{subs: subs, users: users, access: access, tm: tm, log: &l}
}

func (u *ledgerUC) Create(ctx context.Context, p CreateSubscriptionParams) (*model.Subscription, error) {
	if p.UserID == "" || p.PlanID == "" || p.PeriodDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}

	now := time.Now().UTC()
	starts := now
	if p.StartsAt != nil {
		starts = p.StartsAt.UTC()
	}
	sub := &model.Subscription{
		ID:         uuid.NewString(),
		UserID:     p.UserID,
		PaymentID:  p.PaymentID,
		PlanID:     p.PlanID,
		PeriodDays: p.PeriodDays,
		StartsAt:   starts,
		EndsAt:     model.AddPeriod(starts, p.PeriodDays),
		Active:     true,
		CreatedAt:  now,
	}

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := u.subs.DeactivateAllForUser(ctx, tx, p.UserID); err != nil {
			return err
		}
		return u.subs.Save(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncSubscriptionActivated()
	u.log.Info().Str("subscription_id", sub.ID).Str("user_id", sub.UserID).
		Time("ends_at", sub.EndsAt).Msg("subscription window opened")

	if err := u.syncSnapshot(ctx, sub.UserID, sub.EndsAt); err != nil {
		return nil, err
	}
	return sub, nil
}

func (u *ledgerUC) Update(ctx context.Context, id string, p UpdateSubscriptionParams) (*model.Subscription, error) {
	sub, err := u.subs.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	recompute := false
	if p.StartsAt != nil {
		sub.StartsAt = p.StartsAt.UTC()
		recompute = true
	}
	if p.PeriodDays != nil {
		if *p.PeriodDays <= 0 {
			return nil, domain.ErrInvalidArgument
		}
		sub.PeriodDays = *p.PeriodDays
		recompute = true
	}
	if recompute {
		sub.EndsAt = model.AddPeriod(sub.StartsAt, sub.PeriodDays)
	}
	if p.EndsAt != nil {
		sub.EndsAt = p.EndsAt.UTC()
	}

	if err := u.subs.Save(ctx, nil, sub); err != nil {
		return nil, err
	}
	if sub.Active {
		if err := u.syncSnapshot(ctx, sub.UserID, sub.EndsAt); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

func (u *ledgerUC) syncSnapshot(ctx context.Context, userID string, endsAt time.Time) error {
	user, err := u.users.FindByID(ctx, nil, userID)
	if err != nil {
		return err
	}
	status := model.DeriveStatus(user.Status, &endsAt, time.Now().UTC())
	return u.access.UpdateAccess(ctx, userID, &endsAt, status)
}
