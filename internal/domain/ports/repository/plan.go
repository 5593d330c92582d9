package repository

import (
	"context"

	"telegram-vpn-subscription/internal/domain/model"
)

type PlanRepository interface {
	FindPlanByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	FindVariantByID(ctx context.Context, tx Tx, id string) (*model.PlanVariant, error)
	ListActiveVariants(ctx context.Context, tx Tx, planID string) ([]*model.PlanVariant, error)
	SavePlan(ctx context.Context, tx Tx, p *model.Plan) error
	SaveVariant(ctx context.Context, tx Tx, v *model.PlanVariant) error
	DeletePlan(ctx context.Context, tx Tx, id string) error
}
