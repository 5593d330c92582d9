package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/repository"
	"telegram-vpn-subscription/internal/infra/metrics"
	red "telegram-vpn-subscription/internal/infra/redis"
)

var _ repository.PlanRepository = (*planRepoCacheDecorator)(nil)

// planRepoCacheDecorator serves plan and variant reads from Redis. Plans
// change rarely and every intent creation reads them, so the cache sits in
// front of the hottest read path. Writes invalidate.
type planRepoCacheDecorator struct {
	inner repository.PlanRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewPlanRepoCacheDecorator(inner repository.PlanRepository, cache red.RedisClient) repository.PlanRepository {
	return &planRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   1 * time.Hour,
	}
}

func (d *planRepoCacheDecorator) FindPlanByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	key := fmt.Sprintf("plan:%s", id)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var plan model.Plan
		if json.Unmarshal([]byte(val), &plan) == nil {
			metrics.IncCacheRequest("plan", "hit")
			return &plan, nil
		}
	}

	metrics.IncCacheRequest("plan", "miss")
	plan, err := d.inner.FindPlanByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(plan); err == nil {
		d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return plan, nil
}

func (d *planRepoCacheDecorator) FindVariantByID(ctx context.Context, tx repository.Tx, id string) (*model.PlanVariant, error) {
	key := fmt.Sprintf("variant:%s", id)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var v model.PlanVariant
		if json.Unmarshal([]byte(val), &v) == nil {
			metrics.IncCacheRequest("variant", "hit")
			return &v, nil
		}
	}

	metrics.IncCacheRequest("variant", "miss")
	v, err := d.inner.FindVariantByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(v); err == nil {
		d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return v, nil
}

func (d *planRepoCacheDecorator) ListActiveVariants(ctx context.Context, tx repository.Tx, planID string) ([]*model.PlanVariant, error) {
	key := fmt.Sprintf("plan:%s:variants", planID)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var vs []*model.PlanVariant
		if json.Unmarshal([]byte(val), &vs) == nil {
			metrics.IncCacheRequest("variant_list", "hit")
			return vs, nil
		}
	}

	metrics.IncCacheRequest("variant_list", "miss")
	vs, err := d.inner.ListActiveVariants(ctx, tx, planID)
	if err != nil {
		return nil, err
	}
	if len(vs) > 0 {
		if bytes, err := json.Marshal(vs); err == nil {
			d.cache.Set(ctx, key, bytes, d.ttl)
		}
	}
	return vs, nil
}

func (d *planRepoCacheDecorator) SavePlan(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	d.cache.Del(ctx, fmt.Sprintf("plan:%s", p.ID), fmt.Sprintf("plan:%s:variants", p.ID))
	return d.inner.SavePlan(ctx, tx, p)
}

func (d *planRepoCacheDecorator) SaveVariant(ctx context.Context, tx repository.Tx, v *model.PlanVariant) error {
	d.cache.Del(ctx, fmt.Sprintf("variant:%s", v.ID), fmt.Sprintf("plan:%s:variants", v.PlanID))
	return d.inner.SaveVariant(ctx, tx, v)
}

func (d *planRepoCacheDecorator) DeletePlan(ctx context.Context, tx repository.Tx, id string) error {
	d.cache.Del(ctx, fmt.Sprintf("plan:%s", id), fmt.Sprintf("plan:%s:variants", id))
	return d.inner.DeletePlan(ctx, tx, id)
}
