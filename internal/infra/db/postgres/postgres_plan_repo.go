package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/repository"
)

var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct{ pool *pgxpool.Pool }

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

const variantColumns = `id, plan_id, period_days, amount, currency, default_provider, active`

func scanVariant(row pgx.Row) (*model.PlanVariant, error) {
	v := &model.PlanVariant{}
	err := row.Scan(&v.ID, &v.PlanID, &v.PeriodDays, &v.Amount, &v.Currency, &v.DefaultProvider, &v.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return v, nil
}

func (r *planRepo) FindPlanByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	const q = `SELECT id, name, active, trial, created_at FROM plans WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	p := &model.Plan{}
	if err := row.Scan(&p.ID, &p.Name, &p.Active, &p.Trial, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *planRepo) FindVariantByID(ctx context.Context, tx repository.Tx, id string) (*model.PlanVariant, error) {
	const q = `SELECT ` + variantColumns + ` FROM plan_variants WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanVariant(row)
}

func (r *planRepo) ListActiveVariants(ctx context.Context, tx repository.Tx, planID string) ([]*model.PlanVariant, error) {
	const q = `SELECT ` + variantColumns + ` FROM plan_variants WHERE plan_id=$1 AND active ORDER BY period_days ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, planID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PlanVariant
	for rows.Next() {
		v := &model.PlanVariant{}
		if err := rows.Scan(&v.ID, &v.PlanID, &v.PeriodDays, &v.Amount, &v.Currency, &v.DefaultProvider, &v.Active); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *planRepo) SavePlan(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	const q = `
INSERT INTO plans (id, name, active, trial, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET name=$2, active=$3, trial=$4;`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Name, p.Active, p.Trial, p.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *planRepo) SaveVariant(ctx context.Context, tx repository.Tx, v *model.PlanVariant) error {
	const q = `
INSERT INTO plan_variants (id, plan_id, period_days, amount, currency, default_provider, active)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET period_days=$3, amount=$4, currency=$5, default_provider=$6, active=$7;`
	_, err := execSQL(ctx, r.pool, tx, q, v.ID, v.PlanID, v.PeriodDays, v.Amount, v.Currency, v.DefaultProvider, v.Active)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *planRepo) DeletePlan(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM plans WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
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
