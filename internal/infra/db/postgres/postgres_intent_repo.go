package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/repository"
)

var _ repository.PaymentIntentRepository = (*paymentIntentRepo)(nil)

type paymentIntentRepo struct{ pool *pgxpool.Pool }

func NewPaymentIntentRepo(pool *pgxpool.Pool) *paymentIntentRepo {
	return &paymentIntentRepo{pool: pool}
}

const intentColumns = `id, user_id, plan_id, variant_id, provider, amount, currency, status, external_id, checkout_url, signed_payload, expires_at, created_at`

func scanIntent(row pgx.Row) (*model.PaymentIntent, error) {
	in := &model.PaymentIntent{}
	err := row.Scan(&in.ID, &in.UserID, &in.PlanID, &in.VariantID, &in.Provider, &in.Amount, &in.Currency,
		&in.Status, &in.ExternalID, &in.CheckoutURL, &in.SignedPayload, &in.ExpiresAt, &in.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return in, nil
}

func (r *paymentIntentRepo) Save(ctx context.Context, tx repository.Tx, in *model.PaymentIntent) error {
	const q = `
INSERT INTO payment_intents (
  id, user_id, plan_id, variant_id, provider, amount, currency, status, external_id, checkout_url, signed_payload, expires_at, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
) ON CONFLICT (id) DO UPDATE SET
  status=$8, external_id=$9, checkout_url=$10, signed_payload=$11, expires_at=$12;`

	_, err := execSQL(ctx, r.pool, tx, q, in.ID, in.UserID, in.PlanID, in.VariantID, in.Provider, in.Amount,
		in.Currency, in.Status, in.ExternalID, in.CheckoutURL, in.SignedPayload, in.ExpiresAt, in.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentIntentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentIntent, error) {
	q := `SELECT ` + intentColumns + ` FROM payment_intents WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

func (r *paymentIntentRepo) FindByExternalID(ctx context.Context, tx repository.Tx, provider model.Provider, externalID string) (*model.PaymentIntent, error) {
	q := `SELECT ` + intentColumns + ` FROM payment_intents WHERE provider=$1 AND external_id=$2 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, provider, externalID)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

func (r *paymentIntentRepo) SetCheckout(ctx context.Context, tx repository.Tx, id, externalID, checkoutURL, signedPayload string, expiresAt time.Time) error {
	const q = `UPDATE payment_intents SET external_id=$2, checkout_url=$3, signed_payload=$4, expires_at=$5 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, externalID, checkoutURL, signedPayload, expiresAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *paymentIntentRepo) TransitionStatus(ctx context.Context, tx repository.Tx, id string, to model.IntentStatus, allowedFrom ...model.IntentStatus) (bool, error) {
	const q = `UPDATE payment_intents SET status=$2 WHERE id=$1 AND status = ANY($3);`
	from := make([]string, 0, len(allowedFrom))
	for _, s := range allowedFrom {
		from = append(from, string(s))
	}
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(to), from)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentIntentRepo) MarkExpired(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	const q = `UPDATE payment_intents SET status='expired' WHERE status='pending' AND expires_at <= $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return 0, err
		}
		return 0, domain.ErrOperationFailed
	}
	return cmd.RowsAffected(), nil
}
