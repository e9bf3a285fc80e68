package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/smallbiznis/lokma/internal/apperror"
	"github.com/smallbiznis/lokma/internal/clock"
	commissiondomain "github.com/smallbiznis/lokma/internal/commission/domain"
	invoicedomain "github.com/smallbiznis/lokma/internal/invoice/domain"
	"github.com/smallbiznis/lokma/internal/lock"
	obscontext "github.com/smallbiznis/lokma/internal/observability/context"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobOverdueInvoices = "overdue_invoices"
	JobMonthlyInvoices = "monthly_invoices"

	schedulerActor = "scheduler"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log           *zap.Logger
	Clock         clock.Clock
	InvoiceSvc    invoicedomain.Service
	CommissionSvc commissiondomain.Service
	Locker        *lock.Locker `optional:"true"`
	Config        Config       `optional:"true"`
}

// Scheduler runs the periodic billing jobs. Each job holds a redis lock
// while it runs so only one instance sweeps at a time.
type Scheduler struct {
	log           *zap.Logger
	cfg           Config
	clock         clock.Clock
	invoiceSvc    invoicedomain.Service
	commissionSvc commissiondomain.Service
	locker        *lock.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.InvoiceSvc == nil || p.CommissionSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           p.Config.withDefaults(),
		clock:         p.Clock,
		invoiceSvc:    p.InvoiceSvc,
		commissionSvc: p.CommissionSvc,
		locker:        p.Locker,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	ctx = obscontext.WithActor(ctx, schedulerActor)
	log := s.log.With(zap.String("job", name))

	err := s.locker.WithLock(ctx, "lokma:scheduler:"+name, s.cfg.LockTTL, 0, fn)
	if errors.Is(err, lock.ErrNotAcquired) {
		log.Debug("job skipped, another instance holds the lock")
		return nil
	}
	if err == nil {
		log.Debug("job finished", zap.Duration("duration", s.clock.Now().Sub(start)))
		return nil
	}

	// deadline is a soft timeout; the next tick picks up the rest
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("job timed out", zap.Duration("timeout", s.cfg.JobTimeout), zap.Error(err))
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobOverdueInvoices, s.OverdueInvoicesJob},
		{JobMonthlyInvoices, s.MonthlyInvoicesJob},
	}

	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}

// OverdueInvoicesJob flags pending invoices past their due date.
func (s *Scheduler) OverdueInvoicesJob(ctx context.Context) error {
	_, err := s.invoiceSvc.MarkOverdue(ctx, s.clock.Now())
	return err
}

// MonthlyInvoicesJob bills last month's pending commission for every
// business that still has some. It only runs during the first
// MonthlyInvoiceDays of a month.
func (s *Scheduler) MonthlyInvoicesJob(ctx context.Context) error {
	now := s.clock.Now().UTC()
	if now.Day() > s.cfg.MonthlyInvoiceDays {
		return nil
	}
	period := previousPeriod(now)

	records, err := s.commissionSvc.List(ctx, commissiondomain.ListFilter{
		Period: period,
		Status: commissiondomain.CollectionPending,
	})
	if err != nil {
		return err
	}

	var errs error
	for _, businessID := range distinctBusinesses(records) {
		if err := ctx.Err(); err != nil {
			return err
		}
		invoice, err := s.invoiceSvc.CreateMonthlyInvoice(ctx, invoicedomain.MonthlyInvoiceRequest{
			BusinessID:             businessID,
			Period:                 period,
			IncludeSubscriptionFee: s.cfg.IncludeSubscriptionFee,
			Actor:                  schedulerActor,
		})
		switch {
		case err == nil:
			s.log.Info("monthly invoice issued",
				zap.String("business_id", businessID),
				zap.String("period", period),
				zap.String("number", invoice.DisplayNumber),
			)
		case errors.Is(err, apperror.ErrConflict):
			// already billed by hand
		default:
			s.log.Warn("monthly invoice failed",
				zap.String("business_id", businessID),
				zap.String("period", period),
				zap.Error(err),
			)
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

func previousPeriod(now time.Time) string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, -1, 0).Format(commissiondomain.PeriodLayout)
}

func distinctBusinesses(records []commissiondomain.Record) []string {
	seen := make(map[string]struct{}, len(records))
	ids := make([]string, 0)
	for _, record := range records {
		if _, ok := seen[record.BusinessID]; ok {
			continue
		}
		seen[record.BusinessID] = struct{}{}
		ids = append(ids, record.BusinessID)
	}
	sort.Strings(ids)
	return ids
}
