package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lokma/internal/apperror"
	auditdomain "github.com/smallbiznis/lokma/internal/audit/domain"
	businessdomain "github.com/smallbiznis/lokma/internal/business/domain"
	"github.com/smallbiznis/lokma/internal/clock"
	commissiondomain "github.com/smallbiznis/lokma/internal/commission/domain"
	"github.com/smallbiznis/lokma/internal/config"
	invoicedomain "github.com/smallbiznis/lokma/internal/invoice/domain"
	"github.com/smallbiznis/lokma/internal/invoice/format"
	"github.com/smallbiznis/lokma/internal/invoice/sequence"
	obscontext "github.com/smallbiznis/lokma/internal/observability/context"
	"github.com/smallbiznis/lokma/internal/observability/metrics"
	taxdomain "github.com/smallbiznis/lokma/internal/tax/domain"
	taxservice "github.com/smallbiznis/lokma/internal/tax/service"
	"github.com/smallbiznis/lokma/pkg/db"
	"github.com/smallbiznis/lokma/pkg/db/pagination"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const periodLayout = "2006-01"

type ServiceParam struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Billing        *config.BillingConfigHolder
	Tax            taxdomain.Resolver
	Repo           invoicedomain.Repository
	Allocator      *sequence.Allocator
	CommissionRepo commissiondomain.Repository
	BusinessSvc    businessdomain.Service
	Metrics        *metrics.Metrics    `optional:"true"`
	AuditSvc       auditdomain.Service `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID          *snowflake.Node
	clock          clock.Clock
	billing        *config.BillingConfigHolder
	tax            taxdomain.Resolver
	repo           invoicedomain.Repository
	allocator      *sequence.Allocator
	commissionRepo commissiondomain.Repository
	businessSvc    businessdomain.Service
	metrics        *metrics.Metrics
	auditSvc       auditdomain.Service
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,

		clock:          p.Clock,
		billing:        p.Billing,
		tax:            p.Tax,
		repo:           p.Repo,
		allocator:      p.Allocator,
		commissionRepo: p.CommissionRepo,
		businessSvc:    p.BusinessSvc,
		metrics:        p.Metrics,
		auditSvc:       p.AuditSvc,
	}
}

func (s *Service) CreateInvoice(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (*invoicedomain.Invoice, error) {
	name := strings.TrimSpace(req.Counterparty.Name)
	if name == "" {
		return nil, invoicedomain.ErrInvalidCounterparty
	}
	if !req.NetAmount.IsPositive() {
		return nil, invoicedomain.ErrInvalidAmount
	}
	rate, err := s.resolveRate(req.VATRateKey)
	if err != nil {
		return nil, err
	}
	period := strings.TrimSpace(req.Period)
	if period != "" {
		if _, err := time.Parse(periodLayout, period); err != nil {
			return nil, invoicedomain.ErrInvalidPeriod
		}
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "Leistungen"
	}

	var created *invoicedomain.Invoice
	err = s.withInvoiceNumber(ctx, func(tx *gorm.DB, number int64, now time.Time) error {
		invoice, err := s.newInvoice(number, now, invoicedomain.InvoiceKindManual, rate)
		if err != nil {
			return err
		}
		invoice.BusinessID = strings.TrimSpace(req.Counterparty.BusinessID)
		invoice.CounterpartyName = name
		invoice.CounterpartyAddress = strings.TrimSpace(req.Counterparty.Address)
		invoice.Period = period
		if invoice.Period == "" {
			invoice.Period = now.Format(periodLayout)
		}
		invoice.Description = strings.TrimSpace(req.Description)
		invoice.CreatedBy = actorOrSystem(ctx, req.Actor)
		invoice.Items = []invoicedomain.InvoiceItem{
			s.newItem(invoice.ID, 1, description, 1, req.NetAmount.Round(2), nil, now),
		}
		applyTotals(invoice)

		if err := s.repo.Insert(ctx, tx, invoice); err != nil {
			return err
		}
		created = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInvoiceIssued(ctx, string(created.Kind))
	s.emitAudit(ctx, "invoice.create", created, created.CreatedBy, nil, nil)
	return created, nil
}

func (s *Service) CreateMonthlyInvoice(ctx context.Context, req invoicedomain.MonthlyInvoiceRequest) (*invoicedomain.Invoice, error) {
	period := strings.TrimSpace(req.Period)
	if _, err := time.Parse(periodLayout, period); err != nil {
		return nil, invoicedomain.ErrInvalidPeriod
	}
	business, err := s.businessSvc.Get(ctx, req.BusinessID)
	if err != nil {
		return nil, err
	}

	subscriptionFee := decimal.Zero
	planName := ""
	if req.IncludeSubscriptionFee {
		plan, err := s.businessSvc.ActivePlan(ctx, business.ID)
		if err != nil {
			return nil, err
		}
		subscriptionFee = plan.MonthlyFee.Round(2)
		planName = plan.Name
	}

	var created *invoicedomain.Invoice
	err = s.withInvoiceNumber(ctx, func(tx *gorm.DB, number int64, now time.Time) error {
		exists, err := s.repo.ExistsForPeriod(ctx, tx, invoicedomain.InvoiceKindMonthly, business.ID, period)
		if err != nil {
			return err
		}
		if exists {
			return invoicedomain.ErrMonthlyExists
		}

		records, err := s.commissionRepo.List(ctx, tx, commissiondomain.ListFilter{
			BusinessID: business.ID,
			Period:     period,
			Status:     commissiondomain.CollectionPending,
		})
		if err != nil {
			return err
		}
		rate, err := s.monthlyRate(records)
		if err != nil {
			return err
		}

		invoice, err := s.newInvoice(number, now, invoicedomain.InvoiceKindMonthly, rate)
		if err != nil {
			return err
		}
		invoice.BusinessID = business.ID
		invoice.CounterpartyName = business.Name
		invoice.CounterpartyAddress = business.Address
		invoice.Period = period
		invoice.Description = fmt.Sprintf("Abrechnung %s", period)
		invoice.CreatedBy = actorOrSystem(ctx, req.Actor)

		position := 1
		if subscriptionFee.IsPositive() {
			invoice.Items = append(invoice.Items, s.newItem(invoice.ID, position,
				fmt.Sprintf("Grundgebühr %s %s", planName, period), 1, subscriptionFee, nil, now))
			position++
		}
		recordIDs := make([]snowflake.ID, 0, len(records))
		recordVAT := decimal.Zero
		for _, record := range records {
			if !billable(record) {
				continue
			}
			recordVAT = recordVAT.Add(record.VATAmount)
			recordID := record.ID
			invoice.Items = append(invoice.Items, s.newItem(invoice.ID, position,
				fmt.Sprintf("Provision Bestellung %s (%s, %s%%)", record.OrderID, record.CourierType, record.CommissionRate.String()),
				1, record.NetCommission, &recordID, now))
			recordIDs = append(recordIDs, recordID)
			position++
		}
		applyMonthlyTotals(invoice, recordVAT)
		if !invoice.Subtotal.IsPositive() {
			return invoicedomain.ErrNothingToInvoice
		}

		if err := s.repo.Insert(ctx, tx, invoice); err != nil {
			return err
		}
		marked, err := s.commissionRepo.MarkInvoiced(ctx, tx, recordIDs, invoice.ID, now)
		if err != nil {
			return err
		}
		if marked != int64(len(recordIDs)) {
			return apperror.Conflict("commission records changed while invoicing")
		}
		created = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInvoiceIssued(ctx, string(created.Kind))
	s.emitAudit(ctx, "invoice.create", created, created.CreatedBy, nil, map[string]any{
		"line_items": len(created.Items),
	})
	s.log.Info("monthly invoice issued",
		zap.String("business_id", created.BusinessID),
		zap.String("period", created.Period),
		zap.String("invoice_number", created.DisplayNumber),
	)
	return created, nil
}

func (s *Service) Storno(ctx context.Context, req invoicedomain.StornoRequest) (invoicedomain.StornoResult, error) {
	ctx, span := otel.Tracer("lokma/invoice").Start(ctx, "invoice.storno")
	defer span.End()

	result := invoicedomain.StornoResult{}
	fail := func(err error) (invoicedomain.StornoResult, error) {
		code := apperror.CodeOf(err)
		result.Error = &invoicedomain.ErrInfo{Code: string(code), Message: err.Error()}
		outcome := string(code)
		if outcome == "" {
			outcome = "error"
		}
		s.metrics.RecordStorno(ctx, outcome)
		span.SetAttributes(attribute.String("storno.outcome", outcome))
		return result, err
	}

	cfg := s.billing.Get()
	reason := strings.TrimSpace(req.Reason)
	if utf8.RuneCountInString(reason) < cfg.StornoMinReasonLength {
		return fail(apperror.Validation("reason", fmt.Sprintf("reason must be at least %d characters", cfg.StornoMinReasonLength)))
	}
	id, err := snowflake.ParseString(strings.TrimSpace(req.InvoiceID))
	if err != nil || id == 0 {
		return fail(invoicedomain.ErrInvalidInvoiceID)
	}
	actor := actorOrSystem(ctx, req.Actor)

	var (
		original, storno *invoicedomain.Invoice
		released         int64
	)
	err = s.withInvoiceNumber(ctx, func(tx *gorm.DB, number int64, now time.Time) error {
		current, err := s.repo.FindByID(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if current == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if current.IsStorno {
			return invoicedomain.ErrStornoOfStorno
		}
		if current.Status == invoicedomain.InvoiceStatusCancelled || current.StornoInvoiceID != nil {
			return invoicedomain.ErrInvoiceCancelled
		}

		mirror, err := s.mirror(current, number, now, reason, actor)
		if err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, mirror); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return invoicedomain.ErrInvoiceCancelled
			}
			return err
		}

		// Re-check the observed status while flipping it so a concurrent
		// storno that committed first makes this one abort.
		affected, err := s.repo.UpdateStatus(ctx, tx, current.ID, []invoicedomain.InvoiceStatus{current.Status}, map[string]any{
			"status":                invoicedomain.InvoiceStatusCancelled,
			"storno_invoice_id":     mirror.ID,
			"storno_invoice_number": mirror.InvoiceNumber,
			"storno_reason":         reason,
			"cancelled_at":          now,
			"updated_at":            now,
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return invoicedomain.ErrInvoiceCancelled
		}
		if current.Kind == invoicedomain.InvoiceKindMonthly {
			released, err = s.commissionRepo.ReleaseInvoice(ctx, tx, current.ID, now)
			if err != nil {
				return err
			}
		}

		original = current
		storno = mirror
		return nil
	})
	if err != nil {
		return fail(err)
	}

	result.Success = true
	result.StornoInvoiceID = storno.ID.String()
	result.StornoInvoiceNumber = storno.InvoiceNumber
	result.StornoDisplayNumber = storno.DisplayNumber
	s.metrics.RecordStorno(ctx, "success")
	span.SetAttributes(
		attribute.String("storno.outcome", "success"),
		attribute.Int64("invoice.number", original.InvoiceNumber),
		attribute.Int64("storno.number", storno.InvoiceNumber),
	)

	s.metrics.RecordInvoiceIssued(ctx, string(storno.Kind))
	s.emitAudit(ctx, "invoice.storno", original, actor,
		map[string]any{"status": string(original.Status)},
		map[string]any{
			"status":                string(invoicedomain.InvoiceStatusCancelled),
			"reason":                reason,
			"storno_invoice_id":     storno.ID.String(),
			"storno_invoice_number": storno.InvoiceNumber,
			"released_commissions":  released,
		},
	)
	s.log.Info("invoice cancelled by storno",
		zap.Int64("invoice_number", original.InvoiceNumber),
		zap.Int64("storno_invoice_number", storno.InvoiceNumber),
		zap.Int64("released_commissions", released),
		zap.String("actor", actor),
	)
	return result, nil
}

func (s *Service) MarkPaid(ctx context.Context, invoiceID string) (*invoicedomain.Invoice, error) {
	return s.settle(ctx, invoiceID, invoicedomain.InvoiceStatusPaid, []invoicedomain.InvoiceStatus{
		invoicedomain.InvoiceStatusPending,
		invoicedomain.InvoiceStatusOverdue,
		invoicedomain.InvoiceStatusFailed,
	})
}

func (s *Service) MarkPaymentFailed(ctx context.Context, invoiceID string) (*invoicedomain.Invoice, error) {
	return s.settle(ctx, invoiceID, invoicedomain.InvoiceStatusFailed, []invoicedomain.InvoiceStatus{
		invoicedomain.InvoiceStatusPending,
		invoicedomain.InvoiceStatusOverdue,
	})
}

func (s *Service) settle(ctx context.Context, invoiceID string, to invoicedomain.InvoiceStatus, from []invoicedomain.InvoiceStatus) (*invoicedomain.Invoice, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(invoiceID))
	if err != nil || id == 0 {
		return nil, invoicedomain.ErrInvalidInvoiceID
	}

	var updated *invoicedomain.Invoice
	var previous invoicedomain.InvoiceStatus
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByID(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		switch {
		case invoice.IsStorno:
			return apperror.InvalidTransition(string(invoice.Status), string(to))
		case invoice.Status == invoicedomain.InvoiceStatusCancelled:
			return invoicedomain.ErrInvoiceCancelled
		case invoice.Status == invoicedomain.InvoiceStatusPaid:
			return invoicedomain.ErrInvoicePaid
		case !containsStatus(from, invoice.Status):
			return apperror.InvalidTransition(string(invoice.Status), string(to))
		}

		now := s.clock.Now()
		fields := map[string]any{"status": to, "updated_at": now}
		if to == invoicedomain.InvoiceStatusPaid {
			fields["paid_at"] = now
		}
		affected, err := s.repo.UpdateStatus(ctx, tx, invoice.ID, []invoicedomain.InvoiceStatus{invoice.Status}, fields)
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperror.Conflict("invoice status changed concurrently")
		}
		if to == invoicedomain.InvoiceStatusPaid && invoice.Kind == invoicedomain.InvoiceKindMonthly {
			if _, err := s.commissionRepo.MarkInvoicePaid(ctx, tx, invoice.ID, now); err != nil {
				return err
			}
		}

		previous = invoice.Status
		invoice.Status = to
		invoice.UpdatedAt = now
		if to == invoicedomain.InvoiceStatusPaid {
			invoice.PaidAt = &now
		}
		updated = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, "invoice."+string(to), updated, "",
		map[string]any{"status": string(previous)},
		map[string]any{"status": string(to)},
	)
	return updated, nil
}

func (s *Service) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	affected, err := s.repo.MarkOverdue(ctx, s.db, now)
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		s.log.Info("invoices marked overdue", zap.Int64("count", affected))
	}
	return affected, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || invoiceID == 0 {
		return nil, invoicedomain.ErrInvalidInvoiceID
	}
	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID, false)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	if req.Period != "" {
		if _, err := time.Parse(periodLayout, req.Period); err != nil {
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidPeriod
		}
	}

	filter := invoicedomain.ListFilter{
		BusinessID: strings.TrimSpace(req.BusinessID),
		Period:     req.Period,
		Status:     req.Status,
		IsStorno:   req.IsStorno,
		DueBefore:  req.DueBefore,
	}
	if req.PageToken != "" {
		before, err := pagination.DecodeInt64Cursor(req.PageToken)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, apperror.Validation("page_token", "invalid page token")
		}
		filter.BeforeNumber = before
	}
	limit := req.Size()
	filter.Limit = limit + 1

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}
	page, pageInfo := pagination.BuildCursorPageInfo(items, limit, func(invoice *invoicedomain.Invoice) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: fmt.Sprint(invoice.InvoiceNumber)})
		if err != nil {
			return ""
		}
		return token
	})

	invoices := make([]invoicedomain.Invoice, 0, len(page))
	for _, item := range page {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}
	return invoicedomain.ListInvoiceResponse{PageInfo: pageInfo, Invoices: invoices}, nil
}

// withInvoiceNumber runs fn in a transaction holding a freshly allocated
// number. Contention and counter failures restart the whole transaction;
// when attempts run out the caller sees CounterAllocationFailure and
// nothing was committed.
func (s *Service) withInvoiceNumber(ctx context.Context, fn func(tx *gorm.DB, number int64, now time.Time) error) error {
	cfg := s.billing.Get()
	attempts := cfg.CounterRetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			now := s.clock.Now()
			number, err := s.allocator.Next(ctx, tx, cfg.InvoiceCounterKey, now)
			if err != nil {
				return err
			}
			return fn(tx, number, now)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, sequence.ErrAllocation) && !db.IsRetryableTxErr(err) {
			return err
		}

		lastErr = err
		s.metrics.RecordCounterRetry(ctx)
		s.log.Warn("invoice number allocation failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}
	return apperror.CounterAllocation(lastErr)
}

func (s *Service) resolveRate(rawKey string) (taxdomain.Rate, error) {
	key, ok := taxdomain.ParseRateKey(rawKey)
	if !ok {
		return taxdomain.Rate{}, taxdomain.ErrUnknownRateKey
	}
	return s.tax.Resolve(key)
}

// monthlyRate returns the configured rate matching the VAT the records were
// computed with, so the invoice reconciles with them. Without billable
// records the commission invoice key applies.
func (s *Service) monthlyRate(records []*commissiondomain.Record) (taxdomain.Rate, error) {
	var fraction *decimal.Decimal
	for _, record := range records {
		if !billable(record) {
			continue
		}
		if fraction == nil {
			vat := record.VATRate
			fraction = &vat
			continue
		}
		if !fraction.Equal(record.VATRate) {
			return taxdomain.Rate{}, invoicedomain.ErrMixedVATRates
		}
	}
	if fraction == nil {
		return s.resolveRate(s.billing.Get().CommissionInvoiceVATKey)
	}

	percent := fraction.Mul(decimal.NewFromInt(100))
	for _, rate := range s.tax.Rates() {
		if rate.Percent.Equal(percent) {
			return rate, nil
		}
	}
	return taxdomain.Rate{}, apperror.Validation("vat_rate",
		fmt.Sprintf("commission vat rate %s%% matches no configured rate", percent.String()))
}

func billable(record *commissiondomain.Record) bool {
	return record != nil && record.NetCommission.IsPositive()
}

func (s *Service) newInvoice(number int64, now time.Time, kind invoicedomain.InvoiceKind, rate taxdomain.Rate) (*invoicedomain.Invoice, error) {
	cfg := s.billing.Get()
	display, err := format.DisplayNumber(cfg.InvoiceNumberPrefix, now, number)
	if err != nil {
		return nil, err
	}
	return &invoicedomain.Invoice{
		ID:            s.genID.Generate(),
		InvoiceNumber: number,
		DisplayNumber: display,
		Kind:          kind,
		TaxRateKey:    string(rate.Key),
		TaxRate:       rate.Percent,
		Status:        invoicedomain.InvoiceStatusPending,
		IssueDate:     now,
		DueDate:       now.AddDate(0, 0, cfg.InvoiceDueDays),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (s *Service) newItem(invoiceID snowflake.ID, position int, description string, quantity int64, unitPrice decimal.Decimal, recordID *snowflake.ID, now time.Time) invoicedomain.InvoiceItem {
	return invoicedomain.InvoiceItem{
		ID:                 s.genID.Generate(),
		InvoiceID:          invoiceID,
		Position:           position,
		Description:        description,
		Quantity:           quantity,
		UnitPrice:          unitPrice,
		Amount:             unitPrice.Mul(decimal.NewFromInt(quantity)).Round(2),
		CommissionRecordID: recordID,
		CreatedAt:          now,
	}
}

// mirror builds the storno document: same counterparty, period and rate,
// every amount negated, fresh number.
func (s *Service) mirror(original *invoicedomain.Invoice, number int64, now time.Time, reason, actor string) (*invoicedomain.Invoice, error) {
	storno, err := s.newInvoice(number, now, invoicedomain.InvoiceKindStorno, taxdomain.Rate{
		Key:     taxdomain.RateKey(original.TaxRateKey),
		Percent: original.TaxRate,
	})
	if err != nil {
		return nil, err
	}
	originalID := original.ID
	originalNumber := original.InvoiceNumber

	storno.BusinessID = original.BusinessID
	storno.CounterpartyName = original.CounterpartyName
	storno.CounterpartyAddress = original.CounterpartyAddress
	storno.Period = original.Period
	storno.Description = fmt.Sprintf("Storno zu %s: %s", original.DisplayNumber, reason)
	storno.Status = invoicedomain.InvoiceStatusStorno
	storno.DueDate = now
	storno.IsStorno = true
	storno.StornoOf = &originalID
	storno.StornoOfNumber = &originalNumber
	storno.StornoReason = reason
	storno.CreatedBy = actor
	storno.Subtotal = original.Subtotal.Neg()
	storno.TaxAmount = original.TaxAmount.Neg()
	storno.GrandTotal = original.GrandTotal.Neg()

	for _, item := range original.Items {
		storno.Items = append(storno.Items, invoicedomain.InvoiceItem{
			ID:                 s.genID.Generate(),
			InvoiceID:          storno.ID,
			Position:           item.Position,
			Description:        item.Description,
			Quantity:           item.Quantity,
			UnitPrice:          item.UnitPrice.Neg(),
			Amount:             item.Amount.Neg(),
			CommissionRecordID: item.CommissionRecordID,
			CreatedAt:          now,
		})
	}
	return storno, nil
}

// applyTotals derives the document totals from its rounded lines so the
// printed figures always add up.
func applyTotals(invoice *invoicedomain.Invoice) {
	subtotal := decimal.Zero
	for _, item := range invoice.Items {
		subtotal = subtotal.Add(item.Amount)
	}
	invoice.Subtotal = subtotal.Round(2)
	invoice.TaxAmount = taxservice.ComputeTaxExclusive(invoice.Subtotal, invoice.TaxRate).Round(2)
	invoice.GrandTotal = invoice.Subtotal.Add(invoice.TaxAmount)
}

// applyMonthlyTotals takes the VAT already stored on the commission records
// and taxes only the remaining lines, so the invoice equals the records it
// bills plus the subscription fee.
func applyMonthlyTotals(invoice *invoicedomain.Invoice, recordVAT decimal.Decimal) {
	subtotal := decimal.Zero
	other := decimal.Zero
	for _, item := range invoice.Items {
		subtotal = subtotal.Add(item.Amount)
		if item.CommissionRecordID == nil {
			other = other.Add(item.Amount)
		}
	}
	invoice.Subtotal = subtotal.Round(2)
	invoice.TaxAmount = recordVAT.Add(taxservice.ComputeTaxExclusive(other, invoice.TaxRate).Round(2))
	invoice.GrandTotal = invoice.Subtotal.Add(invoice.TaxAmount)
}

func (s *Service) emitAudit(ctx context.Context, action string, invoice *invoicedomain.Invoice, actor string, oldData, extra map[string]any) {
	if s.auditSvc == nil || invoice == nil {
		return
	}
	snapshot := map[string]any{
		"invoice_number": invoice.InvoiceNumber,
		"display_number": invoice.DisplayNumber,
		"kind":           string(invoice.Kind),
		"counterparty":   invoice.CounterpartyName,
		"period":         invoice.Period,
		"subtotal":       invoice.Subtotal.String(),
		"tax_rate":       invoice.TaxRate.String(),
		"tax_amount":     invoice.TaxAmount.String(),
		"grand_total":    invoice.GrandTotal.String(),
		"status":         string(invoice.Status),
	}
	for key, value := range extra {
		if key == "" {
			continue
		}
		snapshot[key] = value
	}
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		EntityType:  auditdomain.EntityInvoice,
		EntityID:    invoice.ID.String(),
		Action:      action,
		OldData:     oldData,
		NewData:     snapshot,
		PerformedBy: actor,
	})
}

func actorOrSystem(ctx context.Context, actor string) string {
	if actor = strings.TrimSpace(actor); actor != "" {
		return actor
	}
	if actor = obscontext.ActorFromContext(ctx); actor != "" {
		return actor
	}
	return "system"
}

func containsStatus(list []invoicedomain.InvoiceStatus, status invoicedomain.InvoiceStatus) bool {
	for _, candidate := range list {
		if candidate == status {
			return true
		}
	}
	return false
}
