package domain

import (
	"context"

	"github.com/smallbiznis/lokma/internal/apperror"
	plandomain "github.com/smallbiznis/lokma/internal/plan/domain"
)

type UpsertRequest struct {
	ID      string `json:"id" binding:"required"`
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
	VATID   string `json:"vat_id"`
}

type AssignPlanRequest struct {
	BusinessID string `json:"-"`
	PlanID     string `json:"plan_id" binding:"required"`
}

type Service interface {
	Upsert(ctx context.Context, req UpsertRequest) (*Business, error)
	Get(ctx context.Context, id string) (*Business, error)
	AssignPlan(ctx context.Context, req AssignPlanRequest) (*Business, error)
	// ActivePlan resolves the plan a business is billed under right now.
	ActivePlan(ctx context.Context, businessID string) (*plandomain.Plan, error)
}

var (
	ErrInvalidID   = apperror.Validation("business_id", "business id is required")
	ErrInvalidName = apperror.Validation("name", "business name is required")
	ErrNotFound    = apperror.NotFound("business")
	ErrNoPlan      = apperror.Validation("plan_id", "business has no active plan")
)
