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

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

const userColumns = `id, telegram_id, locale, status, expires_at, first_paid_at, registered_at`

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.TelegramID, &u.Locale, &u.Status, &u.ExpiresAt, &u.FirstPaidAt, &u.RegisteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}

func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, telegram_id, locale, status, expires_at, first_paid_at, registered_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET locale=$3, status=$4, expires_at=$5, first_paid_at=$6;`
	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.TelegramID, u.Locale, u.Status, u.ExpiresAt, u.FirstPaidAt, u.RegisteredAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *userRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE telegram_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, tgID)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *userRepo) UpdateAccess(ctx context.Context, tx repository.Tx, userID string, expiresAt *time.Time, status model.UserStatus) error {
	const q = `UPDATE users SET expires_at=$2, status=$3 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID, expiresAt, status)
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

func (r *userRepo) StampFirstPaid(ctx context.Context, tx repository.Tx, userID string, at time.Time) error {
	// Write-once: later confirmations never move the stamp.
	const q = `UPDATE users SET first_paid_at=$2 WHERE id=$1 AND first_paid_at IS NULL;`
	_, err := execSQL(ctx, r.pool, tx, q, userID, at)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
