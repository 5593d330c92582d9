// File: internal/usecase/reconciler_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/repository"
	"telegram-vpn-subscription/internal/infra/metrics"
)

// Compile-time check
var _ ReconcilerUseCase = (*reconcilerUC)(nil)

// ReconcilerUseCase turns provider callbacks into at most one payment, one
// subscription window and one access recompute, no matter how often or in
// what order the provider delivers them.
type ReconcilerUseCase interface {
	// Process applies one normalized provider event. A nil return means the
	// event was handled or deliberately ignored; the caller must acknowledge
	// success either way. An error return means a validation failure on a
	// matched intent and must become a client-error response.
	Process(ctx context.Context, ev *model.ProviderEvent) error
	// PreAuthorize is the in-chat provider's synchronous gate, the only point
	// where a bad payment can be declined before money moves.
	PreAuthorize(ctx context.Context, g *model.PreCheckout) error
}

type reconcilerUC struct {
	intents  repository.PaymentIntentRepository
	payments repository.PaymentRepository
	subs     repository.SubscriptionRepository
	plans    repository.PlanRepository
	users    repository.UserRepository
	ledger   LedgerUseCase
	revoker  RevokerUseCase
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewReconcilerUseCase(
	intents repository.PaymentIntentRepository,
	payments repository.PaymentRepository,
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	users repository.UserRepository,
	ledger LedgerUseCase,
	revoker RevokerUseCase,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *reconcilerUC {
	l := logger.With().Str("component", "ReconcilerUC").Logger()
	return &reconcilerUC{
		intents:  intents,
		payments: payments,
		subs:     subs,
		plans:    plans,
		users:    users,
		ledger:   ledger,
		revoker:  revoker,
		tm:       tm,
		log:      &l,
	}
}

// match resolves the event to its intent: our own intent id from the signed
// payload wins, then the provider-side ids in the order the adapter ranked
// them. A miss is not an error; unknown transactions are acknowledged and
// ignored so the provider stops retrying.
func (u *reconcilerUC) match(ctx context.Context, ev *model.ProviderEvent) *model.PaymentIntent {
	if ev.IntentID != "" {
		if in, err := u.intents.FindByID(ctx, nil, ev.IntentID); err == nil && in.Provider == ev.Provider {
			return in
		}
	}
	for _, ext := range ev.ExternalIDs {
		if ext == "" {
			continue
		}
		if in, err := u.intents.FindByExternalID(ctx, nil, ev.Provider, ext); err == nil {
			return in
		}
	}
	return nil
}

func (u *reconcilerUC) Process(ctx context.Context, ev *model.ProviderEvent) error {
	in := u.match(ctx, ev)
	if in == nil {
		metrics.IncWebhookEvent(string(ev.Provider), "unmatched")
		u.log.Info().Str("provider", string(ev.Provider)).Strs("external_ids", ev.ExternalIDs).
			Msg("callback did not match any intent, acknowledged")
		return nil
	}

	switch ev.Kind {
	case model.EventConfirmed:
		return u.confirm(ctx, in, ev)
	case model.EventCanceled:
		return u.cancel(ctx, in, ev)
	case model.EventChargeback:
		return u.chargeback(ctx, in, ev)
	default:
		metrics.IncWebhookEvent(string(ev.Provider), "ignored")
		return nil
	}
}

func (u *reconcilerUC) confirm(ctx context.Context, in *model.PaymentIntent, ev *model.ProviderEvent) error {
	if in.Status == model.IntentStatusPaid || in.Status == model.IntentStatusChargeback {
		metrics.IncWebhookEvent(string(ev.Provider), "duplicate")
		return nil
	}
	if ev.Amount != in.Amount || !strings.EqualFold(ev.Currency, in.Currency) {
		metrics.IncWebhookEvent(string(ev.Provider), "rejected")
		u.log.Warn().Str("intent_id", in.ID).
			Int64("got_amount", ev.Amount).Str("got_currency", ev.Currency).
			Int64("want_amount", in.Amount).Str("want_currency", in.Currency).
			Msg("confirmation rejected: amount/currency mismatch")
		return domain.ErrAmountMismatch
	}
	payKey := ev.PayKey
	if payKey == "" {
		return domain.ErrInvalidArgument
	}

	now := time.Now().UTC()
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.payments.Upsert(ctx, tx, &model.Payment{
			ID:                  payKey,
			UserID:              in.UserID,
			PlanID:              in.PlanID,
			IntentID:            in.ID,
			Provider:            in.Provider,
			Amount:              ev.Amount,
			Currency:            in.Currency,
			PlanPriceAtPurchase: in.Amount,
			Status:              model.PaymentStatusPaid,
			CreatedAt:           now,
			UpdatedAt:           now,
		}); err != nil {
			return err
		}
		_, err := u.intents.TransitionStatus(ctx, tx, in.ID, model.IntentStatusPaid,
			model.IntentStatusPending, model.IntentStatusCanceled, model.IntentStatusExpired)
		return err
	})
	if err != nil {
		return err
	}

	if err := u.grantSubscription(ctx, in, payKey); err != nil {
		return err
	}

	if err := u.users.StampFirstPaid(ctx, nil, in.UserID, now); err != nil {
		u.log.Error().Err(err).Str("user_id", in.UserID).Msg("first-paid stamp failed")
	}

	metrics.IncWebhookEvent(string(ev.Provider), "confirmed")
	metrics.AddPaymentRevenue(in.Currency, ev.Amount)
	u.log.Info().Str("intent_id", in.ID).Str("payment_id", payKey).Msg("payment confirmed")
	return nil
}

// grantSubscription opens the access window for a confirmed payment unless
// one already exists. A concurrent delivery losing the unique-constraint race
// counts as success: someone else already granted it.
func (u *reconcilerUC) grantSubscription(ctx context.Context, in *model.PaymentIntent, payKey string) error {
	if _, err := u.subs.FindByPaymentID(ctx, nil, payKey); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	variant, err := u.plans.FindVariantByID(ctx, nil, in.VariantID)
	if err != nil {
		return err
	}

	starts := time.Now().UTC()
	if prev, err := u.subs.FindActiveByUser(ctx, nil, in.UserID); err == nil && prev.EndsAt.After(starts) {
		// Seamless renewal: the new window begins where the old one ends.
		starts = prev.EndsAt
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	_, err = u.ledger.Create(ctx, CreateSubscriptionParams{
		UserID:     in.UserID,
		PaymentID:  &payKey,
		PlanID:     in.PlanID,
		PeriodDays: variant.PeriodDays,
		StartsAt:   &starts,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		return nil
	}
	return err
}

func (u *reconcilerUC) cancel(ctx context.Context, in *model.PaymentIntent, ev *model.ProviderEvent) error {
	if in.Status == model.IntentStatusPaid || in.Status == model.IntentStatusChargeback {
		// Sticky terminal state: a stale cancel after confirmation is a no-op.
		metrics.IncWebhookEvent(string(ev.Provider), "stale")
		return nil
	}
	if _, err := u.intents.TransitionStatus(ctx, nil, in.ID, model.IntentStatusCanceled, model.IntentStatusPending); err != nil {
		return err
	}

	p, err := u.payments.FindByIntentID(ctx, nil, in.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// Nothing was ever charged.
	case err != nil:
		return err
	case p.Status != model.PaymentStatusPaid && p.Status != model.PaymentStatusChargeback:
		// The payment is already canceled; a redelivered cancel only needs the
		// revocation re-applied.
		if err := u.revoker.RevokeForPayment(ctx, in.UserID, p.ID, ActionDeactivate, ModeUseLastAny); err != nil {
			return err
		}
	}

	metrics.IncWebhookEvent(string(ev.Provider), "canceled")
	u.log.Info().Str("intent_id", in.ID).Msg("intent canceled")
	return nil
}

func (u *reconcilerUC) chargeback(ctx context.Context, in *model.PaymentIntent, ev *model.ProviderEvent) error {
	payKey := ev.PayKey
	if payKey == "" {
		if p, err := u.payments.FindByIntentID(ctx, nil, in.ID); err == nil {
			payKey = p.ID
		} else if errors.Is(err, domain.ErrNotFound) {
			// Chargeback for a charge we never recorded; nothing to reverse.
			metrics.IncWebhookEvent(string(ev.Provider), "unmatched")
			return nil
		} else {
			return err
		}
	}

	now := time.Now().UTC()
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.payments.Upsert(ctx, tx, &model.Payment{
			ID:                  payKey,
			UserID:              in.UserID,
			PlanID:              in.PlanID,
			IntentID:            in.ID,
			Provider:            in.Provider,
			Amount:              in.Amount,
			Currency:            in.Currency,
			PlanPriceAtPurchase: in.Amount,
			Status:              model.PaymentStatusChargeback,
			CreatedAt:           now,
			UpdatedAt:           now,
		}); err != nil {
			return err
		}
		_, err := u.intents.TransitionStatus(ctx, tx, in.ID, model.IntentStatusChargeback,
			model.IntentStatusPending, model.IntentStatusPaid, model.IntentStatusCanceled, model.IntentStatusExpired)
		return err
	})
	if err != nil {
		return err
	}

	// No grace period: deactivate and expire immediately.
	if err := u.revoker.RevokeForPayment(ctx, in.UserID, payKey, ActionDeactivate, ModeEndNow); err != nil {
		return err
	}

	metrics.IncWebhookEvent(string(ev.Provider), "chargeback")
	u.log.Warn().Str("intent_id", in.ID).Str("payment_id", payKey).Msg("chargeback processed")
	return nil
}

func (u *reconcilerUC) PreAuthorize(ctx context.Context, g *model.PreCheckout) error {
	in, err := u.intents.FindByID(ctx, nil, g.IntentID)
	if err != nil {
		return domain.ErrNotFound
	}
	if in.Provider != model.ProviderStars {
		return domain.ErrProviderMismatch
	}

	// Invoices can be forwarded to other chats; only the intent's owner may
	// pay it.
	user, err := u.users.FindByID(ctx, nil, in.UserID)
	if err != nil {
		return err
	}
	if user.TelegramID != g.PayerTgID {
		return domain.ErrPayerMismatch
	}

	variant, err := u.plans.FindVariantByID(ctx, nil, in.VariantID)
	if err != nil {
		return err
	}
	if !variant.Active {
		return domain.ErrVariantInactive
	}
	plan, err := u.plans.FindPlanByID(ctx, nil, in.PlanID)
	if err != nil {
		return err
	}
	if !plan.Active {
		return domain.ErrPlanInactive
	}

	if g.Amount != in.Amount || !strings.EqualFold(g.Currency, in.Currency) {
		return domain.ErrAmountMismatch
	}
	return nil
}
