package service

import (
	"context"
	"strings"

	auditdomain "github.com/smallbiznis/lokma/internal/audit/domain"
	"github.com/smallbiznis/lokma/internal/business/domain"
	"github.com/smallbiznis/lokma/internal/cache"
	"github.com/smallbiznis/lokma/internal/clock"
	plandomain "github.com/smallbiznis/lokma/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    domain.Repository
	PlanSvc plandomain.Service
	Cache   cache.PlanCache
	Audit   auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     domain.Repository
	planSvc  plandomain.Service
	cache    cache.PlanCache
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("business.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		planSvc:  p.PlanSvc,
		cache:    p.Cache,
		auditSvc: p.Audit,
	}
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertRequest) (*domain.Business, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return nil, domain.ErrInvalidID
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := s.clock.Now()
	business := domain.Business{
		ID:        id,
		Name:      name,
		Address:   strings.TrimSpace(req.Address),
		VATID:     strings.TrimSpace(req.VATID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Upsert(ctx, s.db, &business); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Business, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrInvalidID
	}
	business, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if business == nil {
		return nil, domain.ErrNotFound
	}
	return business, nil
}

// AssignPlan switches the business to another plan. Free-order allowances
// are counted per business and plan, so switching starts a fresh count
// unless the business returns to a plan it used before.
func (s *Service) AssignPlan(ctx context.Context, req domain.AssignPlanRequest) (*domain.Business, error) {
	business, err := s.Get(ctx, req.BusinessID)
	if err != nil {
		return nil, err
	}
	plan, err := s.planSvc.GetByID(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}

	var previous string
	if business.PlanID != nil {
		previous = business.PlanID.String()
	}

	now := s.clock.Now()
	business.PlanID = &plan.ID
	business.PlanAssignedAt = &now
	business.UpdatedAt = now
	if err := s.repo.UpdatePlan(ctx, s.db, business); err != nil {
		return nil, err
	}

	s.cache.SetBusinessPlanID(ctx, business.ID, plan.ID.String())
	if s.auditSvc != nil {
		_ = s.auditSvc.Record(ctx, auditdomain.Entry{
			EntityType: auditdomain.EntityPlan,
			EntityID:   plan.ID.String(),
			Action:     "plan.assigned",
			OldData:    map[string]any{"business_id": business.ID, "plan_id": previous},
			NewData:    map[string]any{"business_id": business.ID, "plan_id": plan.ID.String()},
		})
	}
	s.log.Info("plan assigned",
		zap.String("business_id", business.ID),
		zap.String("plan_id", plan.ID.String()),
	)
	return business, nil
}

func (s *Service) ActivePlan(ctx context.Context, businessID string) (*plandomain.Plan, error) {
	businessID = strings.TrimSpace(businessID)
	if planID, ok := s.cache.GetBusinessPlanID(ctx, businessID); ok {
		return s.planSvc.GetByID(ctx, planID)
	}

	business, err := s.Get(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if business.PlanID == nil {
		return nil, domain.ErrNoPlan
	}
	s.cache.SetBusinessPlanID(ctx, business.ID, business.PlanID.String())
	return s.planSvc.GetByID(ctx, business.PlanID.String())
}
