package cache

import (
	"context"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	plandomain "github.com/smallbiznis/lokma/internal/plan/domain"
)

const (
	defaultPlanTTL         = 5 * time.Minute
	defaultBusinessPlanTTL = 45 * time.Second
)

// PlanCache stores plans by id and the active plan id per business.
type PlanCache interface {
	GetPlan(ctx context.Context, planID string) (plandomain.Plan, bool)
	SetPlan(ctx context.Context, plan plandomain.Plan)
	InvalidatePlan(ctx context.Context, planID string)
	GetBusinessPlanID(ctx context.Context, businessID string) (string, bool)
	SetBusinessPlanID(ctx context.Context, businessID, planID string)
	InvalidateBusiness(ctx context.Context, businessID string)
}

type planCache struct {
	plans       Cache[plandomain.Plan]
	assignments Cache[string]
	planTTL     time.Duration
	assignTTL   time.Duration
}

func NewPlanCache(client *redis.Client) PlanCache {
	return &planCache{
		plans:       New[plandomain.Plan](client, "plan"),
		assignments: New[string](client, "business_plan"),
		planTTL:     defaultPlanTTL,
		assignTTL:   defaultBusinessPlanTTL,
	}
}

func (c *planCache) GetPlan(ctx context.Context, planID string) (plandomain.Plan, bool) {
	return c.plans.Get(ctx, cacheKey(planID))
}

func (c *planCache) SetPlan(ctx context.Context, plan plandomain.Plan) {
	if plan.ID == 0 {
		return
	}
	c.plans.Set(ctx, cacheKey(plan.ID.String()), plan, c.planTTL)
}

func (c *planCache) InvalidatePlan(ctx context.Context, planID string) {
	c.plans.Delete(ctx, cacheKey(planID))
}

func (c *planCache) GetBusinessPlanID(ctx context.Context, businessID string) (string, bool) {
	return c.assignments.Get(ctx, cacheKey(businessID))
}

func (c *planCache) SetBusinessPlanID(ctx context.Context, businessID, planID string) {
	if strings.TrimSpace(planID) == "" {
		return
	}
	c.assignments.Set(ctx, cacheKey(businessID), planID, c.assignTTL)
}

func (c *planCache) InvalidateBusiness(ctx context.Context, businessID string) {
	c.assignments.Delete(ctx, cacheKey(businessID))
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
