package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lokma/internal/apperror"
	auditdomain "github.com/smallbiznis/lokma/internal/audit/domain"
	businessdomain "github.com/smallbiznis/lokma/internal/business/domain"
	"github.com/smallbiznis/lokma/internal/clock"
	"github.com/smallbiznis/lokma/internal/commission/domain"
	"github.com/smallbiznis/lokma/internal/observability/metrics"
	plandomain "github.com/smallbiznis/lokma/internal/plan/domain"
	"github.com/smallbiznis/lokma/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	BusinessSvc businessdomain.Service
	Metrics     *metrics.Metrics    `optional:"true"`
	Audit       auditdomain.Service `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	businessSvc businessdomain.Service
	metrics     *metrics.Metrics
	auditSvc    auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("commission.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		businessSvc: p.BusinessSvc,
		metrics:     p.Metrics,
		auditSvc:    p.Audit,
	}
}

func (s *Service) RecordOrder(ctx context.Context, event domain.OrderEvent) (*domain.Record, bool, error) {
	event.OrderID = strings.TrimSpace(event.OrderID)
	event.BusinessID = strings.TrimSpace(event.BusinessID)
	if event.OrderID == "" {
		return nil, false, domain.ErrInvalidOrderID
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.clock.Now()
	}

	existing, err := s.repo.FindByOrderID(ctx, s.db, event.OrderID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	plan, err := s.businessSvc.ActivePlan(ctx, event.BusinessID)
	if err != nil {
		return nil, false, err
	}

	var record domain.Record
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The free-order count is read under the business row lock so two
		// orders cannot both take the last free slot.
		if err := s.repo.LockBusiness(ctx, tx, event.BusinessID); err != nil {
			return err
		}
		used, err := s.repo.CountForPlan(ctx, tx, event.BusinessID, plan.ID)
		if err != nil {
			return err
		}
		record, err = domain.Compute(event, *plan, int(used))
		if err != nil {
			return err
		}
		now := s.clock.Now()
		record.ID = s.genID.Generate()
		record.CreatedAt = now
		record.UpdatedAt = now
		return s.repo.Insert(ctx, tx, &record)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost the race against a concurrent delivery of the same order.
			existing, findErr := s.repo.FindByOrderID(ctx, s.db, event.OrderID)
			if findErr != nil {
				return nil, false, findErr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	s.metrics.RecordCommission(ctx, string(record.CourierType), string(record.CollectionStatus))
	s.recordAudit(ctx, record.ID.String(), "commission.recorded", nil, map[string]any{
		"order_id":          record.OrderID,
		"business_id":       record.BusinessID,
		"plan_id":           record.PlanID.String(),
		"total_commission":  record.TotalCommission.String(),
		"collection_status": string(record.CollectionStatus),
		"free_order":        record.FreeOrder,
	})
	s.log.Info("commission recorded",
		zap.String("order_id", record.OrderID),
		zap.String("business_id", record.BusinessID),
		zap.String("total_commission", record.TotalCommission.String()),
		zap.Bool("free_order", record.FreeOrder),
	)
	return &record, true, nil
}

func (s *Service) UpdateCollectionStatus(ctx context.Context, orderID string, status domain.CollectionStatus) (*domain.Record, error) {
	next, ok := domain.ParseCollectionStatus(string(status))
	if !ok {
		return nil, domain.ErrInvalidStatus
	}

	record, err := s.repo.FindByOrderID(ctx, s.db, strings.TrimSpace(orderID))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrNotFound
	}

	from := record.CollectionStatus
	if from == next {
		return record, nil
	}
	if !domain.CanTransitionCollection(from, next) {
		return nil, apperror.InvalidTransition(string(from), string(next))
	}
	if from == domain.CollectionInvoiced && record.InvoiceID != nil {
		cancelled, err := s.repo.InvoiceCancelled(ctx, s.db, *record.InvoiceID)
		if err != nil {
			return nil, err
		}
		if cancelled {
			return nil, domain.ErrInvoiceCancelled
		}
	}

	record.CollectionStatus = next
	record.UpdatedAt = s.clock.Now()
	affected, err := s.repo.UpdateStatus(ctx, s.db, record, from)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, domain.ErrStatusChanged
	}

	s.recordAudit(ctx, record.ID.String(), "commission.status_changed",
		map[string]any{"collection_status": string(from)},
		map[string]any{"collection_status": string(next)},
	)
	return record, nil
}

func (s *Service) MonthlySummary(ctx context.Context, businessID, period string) (domain.Summary, error) {
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return domain.Summary{}, domain.ErrInvalidBusinessID
	}
	if _, err := time.Parse(domain.PeriodLayout, period); err != nil {
		return domain.Summary{}, domain.ErrInvalidPeriod
	}

	records, err := s.repo.List(ctx, s.db, domain.ListFilter{BusinessID: businessID, Period: period})
	if err != nil {
		return domain.Summary{}, err
	}
	return Summarize(businessID, period, records), nil
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]domain.Record, error) {
	if filter.Period != "" {
		if _, err := time.Parse(domain.PeriodLayout, filter.Period); err != nil {
			return nil, domain.ErrInvalidPeriod
		}
	}
	if filter.Status != "" {
		if _, ok := domain.ParseCollectionStatus(string(filter.Status)); !ok {
			return nil, domain.ErrInvalidStatus
		}
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	records := make([]domain.Record, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		records = append(records, *item)
	}
	return records, nil
}

// Summarize adds up stored, already rounded record fields.
func Summarize(businessID, period string, records []*domain.Record) domain.Summary {
	summary := domain.Summary{
		BusinessID:       businessID,
		Period:           period,
		GrossOrderTotal:  decimal.Zero,
		CommissionAmount: decimal.Zero,
		PerOrderFees:     decimal.Zero,
		NetCommission:    decimal.Zero,
		VATAmount:        decimal.Zero,
		TotalCommission:  decimal.Zero,
		ByStatus:         map[domain.CollectionStatus]decimal.Decimal{},
		ByCourier:        map[plandomain.CourierType]int{},
	}
	for _, record := range records {
		if record == nil {
			continue
		}
		summary.OrderCount++
		if record.FreeOrder {
			summary.FreeOrderCount++
		}
		summary.GrossOrderTotal = summary.GrossOrderTotal.Add(record.OrderTotal)
		summary.CommissionAmount = summary.CommissionAmount.Add(record.CommissionAmount)
		summary.PerOrderFees = summary.PerOrderFees.Add(record.PerOrderFee)
		summary.NetCommission = summary.NetCommission.Add(record.NetCommission)
		summary.VATAmount = summary.VATAmount.Add(record.VATAmount)
		summary.TotalCommission = summary.TotalCommission.Add(record.TotalCommission)
		summary.ByStatus[record.CollectionStatus] = summary.ByStatus[record.CollectionStatus].Add(record.TotalCommission)
		summary.ByCourier[record.CourierType]++
	}
	return summary
}

func (s *Service) recordAudit(ctx context.Context, recordID, action string, oldData, newData map[string]any) {
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		EntityType: auditdomain.EntityCommission,
		EntityID:   recordID,
		Action:     action,
		OldData:    oldData,
		NewData:    newData,
	})
}
