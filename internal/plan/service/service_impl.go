package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/lokma/internal/audit/domain"
	"github.com/smallbiznis/lokma/internal/cache"
	"github.com/smallbiznis/lokma/internal/clock"
	"github.com/smallbiznis/lokma/internal/config"
	plandomain "github.com/smallbiznis/lokma/internal/plan/domain"
	"github.com/smallbiznis/lokma/pkg/db"
	"github.com/smallbiznis/lokma/pkg/db/option"
	"github.com/smallbiznis/lokma/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Billing *config.BillingConfigHolder
	Cache   cache.PlanCache
	Audit   auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	billing  *config.BillingConfigHolder
	cache    cache.PlanCache
	auditSvc auditdomain.Service
	planrepo repository.Repository[plandomain.Plan]
}

func New(p Params) plandomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("plan.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		billing:  p.Billing,
		cache:    p.Cache,
		auditSvc: p.Audit,
		planrepo: repository.ProvideStore[plandomain.Plan](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req plandomain.CreateRequest) (*plandomain.Plan, error) {
	vatRate := decimal.NewFromFloat(s.billing.Get().DefaultCommissionVATRate)
	if req.VATRate != nil {
		vatRate = *req.VATRate
	}
	feeType := req.PerOrderFeeType
	if feeType == "" {
		feeType = plandomain.FeeNone
	}

	now := s.clock.Now()
	plan := plandomain.Plan{
		ID:                     s.genID.Generate(),
		Code:                   planCode(req.Code, req.Name),
		Name:                   strings.TrimSpace(req.Name),
		CommissionClickCollect: req.CommissionClickCollect,
		CommissionOwnCourier:   req.CommissionOwnCourier,
		CommissionLokmaCourier: req.CommissionLokmaCourier,
		PerOrderFeeType:        feeType,
		PerOrderFeeAmount:      req.PerOrderFeeAmount,
		FreeOrderCount:         req.FreeOrderCount,
		VATRate:                vatRate,
		MonthlyFee:             req.MonthlyFee.Round(2),
		Active:                 true,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	if err := s.planrepo.Create(ctx, &plan); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, plandomain.ErrCodeTaken
		}
		return nil, err
	}

	s.cache.SetPlan(ctx, plan)
	s.recordAudit(ctx, plan.ID.String(), "plan.created", nil, map[string]any{
		"code":     plan.Code,
		"vat_rate": plan.VATRate.String(),
	})
	return &plan, nil
}

func (s *Service) Update(ctx context.Context, req plandomain.UpdateRequest) (*plandomain.Plan, error) {
	current, err := s.load(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	updated := *current
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.CommissionClickCollect != nil {
		updated.CommissionClickCollect = *req.CommissionClickCollect
	}
	if req.CommissionOwnCourier != nil {
		updated.CommissionOwnCourier = *req.CommissionOwnCourier
	}
	if req.CommissionLokmaCourier != nil {
		updated.CommissionLokmaCourier = *req.CommissionLokmaCourier
	}
	if req.PerOrderFeeType != nil {
		updated.PerOrderFeeType = *req.PerOrderFeeType
	}
	if req.PerOrderFeeAmount != nil {
		updated.PerOrderFeeAmount = *req.PerOrderFeeAmount
	}
	if req.FreeOrderCount != nil {
		updated.FreeOrderCount = *req.FreeOrderCount
	}
	if req.VATRate != nil {
		updated.VATRate = *req.VATRate
	}
	if req.MonthlyFee != nil {
		updated.MonthlyFee = req.MonthlyFee.Round(2)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.clock.Now()

	_, err = s.planrepo.Update(ctx, updated.ID, map[string]any{
		"name":                     updated.Name,
		"commission_click_collect": updated.CommissionClickCollect,
		"commission_own_courier":   updated.CommissionOwnCourier,
		"commission_lokma_courier": updated.CommissionLokmaCourier,
		"per_order_fee_type":       updated.PerOrderFeeType,
		"per_order_fee_amount":     updated.PerOrderFeeAmount,
		"free_order_count":         updated.FreeOrderCount,
		"vat_rate":                 updated.VATRate,
		"monthly_fee":              updated.MonthlyFee,
		"active":                   updated.Active,
		"updated_at":               updated.UpdatedAt,
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidatePlan(ctx, updated.ID.String())
	s.recordAudit(ctx, updated.ID.String(), "plan.updated", planSnapshot(*current), planSnapshot(updated))
	return &updated, nil
}

// GetByID reads through the plan cache.
func (s *Service) GetByID(ctx context.Context, id string) (*plandomain.Plan, error) {
	if cached, ok := s.cache.GetPlan(ctx, id); ok {
		return &cached, nil
	}
	plan, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetPlan(ctx, *plan)
	return plan, nil
}

func (s *Service) List(ctx context.Context) ([]plandomain.Plan, error) {
	items, err := s.planrepo.Find(ctx, &plandomain.Plan{},
		option.WithSortBy(option.WithQuerySortBy("code", "asc", map[string]bool{"code": true})),
	)
	if err != nil {
		return nil, err
	}
	plans := make([]plandomain.Plan, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		plans = append(plans, *item)
	}
	return plans, nil
}

func (s *Service) load(ctx context.Context, id string) (*plandomain.Plan, error) {
	planID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || planID == 0 {
		return nil, plandomain.ErrInvalidID
	}
	plan, err := s.planrepo.FindOne(ctx, &plandomain.Plan{ID: planID})
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrNotFound
	}
	return plan, nil
}

func (s *Service) recordAudit(ctx context.Context, planID, action string, oldData, newData map[string]any) {
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		EntityType: auditdomain.EntityPlan,
		EntityID:   planID,
		Action:     action,
		OldData:    oldData,
		NewData:    newData,
	})
}

func planSnapshot(p plandomain.Plan) map[string]any {
	return map[string]any{
		"name":                     p.Name,
		"commission_click_collect": p.CommissionClickCollect.String(),
		"commission_own_courier":   p.CommissionOwnCourier.String(),
		"commission_lokma_courier": p.CommissionLokmaCourier.String(),
		"per_order_fee_type":       string(p.PerOrderFeeType),
		"per_order_fee_amount":     p.PerOrderFeeAmount.String(),
		"free_order_count":         p.FreeOrderCount,
		"vat_rate":                 p.VATRate.String(),
		"monthly_fee":              p.MonthlyFee.String(),
		"active":                   p.Active,
	}
}

// planCode slugs the requested code, falling back to the plan name.
func planCode(code, name string) string {
	if c := slug.Make(code); c != "" {
		return c
	}
	return slug.Make(name)
}
