package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lokma/internal/apperror"
	auditdomain "github.com/smallbiznis/lokma/internal/audit/domain"
	auditrepo "github.com/smallbiznis/lokma/internal/audit/repository"
	auditservice "github.com/smallbiznis/lokma/internal/audit/service"
	businessdomain "github.com/smallbiznis/lokma/internal/business/domain"
	businessrepo "github.com/smallbiznis/lokma/internal/business/repository"
	businessservice "github.com/smallbiznis/lokma/internal/business/service"
	"github.com/smallbiznis/lokma/internal/cache"
	"github.com/smallbiznis/lokma/internal/clock"
	commissiondomain "github.com/smallbiznis/lokma/internal/commission/domain"
	commissionrepo "github.com/smallbiznis/lokma/internal/commission/repository"
	commissionservice "github.com/smallbiznis/lokma/internal/commission/service"
	"github.com/smallbiznis/lokma/internal/config"
	invoicedomain "github.com/smallbiznis/lokma/internal/invoice/domain"
	"github.com/smallbiznis/lokma/internal/invoice/repository"
	"github.com/smallbiznis/lokma/internal/invoice/sequence"
	"github.com/smallbiznis/lokma/internal/observability/metrics"
	plandomain "github.com/smallbiznis/lokma/internal/plan/domain"
	planservice "github.com/smallbiznis/lokma/internal/plan/service"
	taxservice "github.com/smallbiznis/lokma/internal/tax/service"
	"github.com/smallbiznis/lokma/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db            *gorm.DB
	clock         *clock.FakeClock
	svc           invoicedomain.Service
	audit         auditdomain.Service
	plans         plandomain.Service
	businesses    businessdomain.Service
	commissions   commissiondomain.Service
	allocator     *sequence.Allocator
	billingConfig config.BillingConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t,
		&plandomain.Plan{},
		&businessdomain.Business{},
		&commissiondomain.Record{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&invoicedomain.InvoiceCounter{},
		&auditdomain.AuditLog{},
	)
	node := testutil.NewNode(t)
	clk := testutil.FixedClock()
	log := zap.NewNop()
	billingCfg := config.DefaultBillingConfig()
	billing := config.NewStaticBillingConfig(billingCfg)
	planCache := cache.NewPlanCache(nil)

	audit := auditservice.NewService(auditservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: auditrepo.Provide(),
	})
	plans := planservice.New(planservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Billing: billing, Cache: planCache,
	})
	businesses := businessservice.New(businessservice.Params{
		DB: db, Log: log, Clock: clk, Repo: businessrepo.Provide(), PlanSvc: plans, Cache: planCache,
	})
	commissionRepo := commissionrepo.Provide()
	commissions := commissionservice.New(commissionservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: commissionRepo, BusinessSvc: businesses,
	})
	allocator := sequence.NewAllocator()

	svc := NewService(ServiceParam{
		DB:             db,
		Log:            log,
		GenID:          node,
		Clock:          clk,
		Billing:        billing,
		Tax:            taxservice.NewResolver(taxservice.ResolverParam{Billing: billing}),
		Repo:           repository.Provide(),
		Allocator:      allocator,
		CommissionRepo: commissionRepo,
		BusinessSvc:    businesses,
		Metrics:        metrics.NewNoop(),
		AuditSvc:       audit,
	})

	return &fixture{
		db:            db,
		clock:         clk,
		svc:           svc,
		audit:         audit,
		plans:         plans,
		businesses:    businesses,
		commissions:   commissions,
		allocator:     allocator,
		billingConfig: billingCfg,
	}
}

func manualRequest(net string) invoicedomain.CreateInvoiceRequest {
	return invoicedomain.CreateInvoiceRequest{
		Counterparty: invoicedomain.Counterparty{BusinessID: "biz-1", Name: "Metzgerei Yilmaz", Address: "Hauptstr. 1, Köln"},
		NetAmount:    decimal.RequireFromString(net),
		VATRateKey:   "standard",
		Description:  "Einrichtung Kassensystem",
		Actor:        "admin@lokma.test",
	}
}

func TestCreateInvoiceComputesTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	invoice, err := f.svc.CreateInvoice(ctx, manualRequest("100"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), invoice.InvoiceNumber)
	assert.Equal(t, "RE-2025-000001", invoice.DisplayNumber)
	assert.Equal(t, invoicedomain.InvoiceStatusPending, invoice.Status)
	assert.Equal(t, "100", invoice.Subtotal.String())
	assert.Equal(t, "19", invoice.TaxAmount.String())
	assert.Equal(t, "119", invoice.GrandTotal.String())
	assert.Equal(t, "2025-03", invoice.Period)
	assert.Equal(t, f.clock.Now().AddDate(0, 0, 14), invoice.DueDate)
	require.Len(t, invoice.Items, 1)

	logs, err := f.audit.List(ctx, auditdomain.ListRequest{EntityType: auditdomain.EntityInvoice, EntityID: invoice.ID.String()})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "invoice.create", logs[0].Action)
	assert.Equal(t, "admin@lokma.test", logs[0].PerformedBy)
}

func TestCreateInvoiceReducedRate(t *testing.T) {
	f := newFixture(t)
	req := manualRequest("10.55")
	req.VATRateKey = "reduced"

	invoice, err := f.svc.CreateInvoice(context.Background(), req)
	require.NoError(t, err)
	// 10.55 * 7% = 0.7385
	assert.Equal(t, "0.74", invoice.TaxAmount.String())
	assert.Equal(t, "11.29", invoice.GrandTotal.String())
}

func TestCreateInvoiceValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateInvoice(ctx, manualRequest("0"))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	req := manualRequest("10")
	req.Counterparty.Name = "  "
	_, err = f.svc.CreateInvoice(ctx, req)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	req = manualRequest("10")
	req.VATRateKey = "luxury"
	_, err = f.svc.CreateInvoice(ctx, req)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	current, err := f.allocator.Current(ctx, f.db, f.billingConfig.InvoiceCounterKey)
	require.NoError(t, err)
	assert.Equal(t, int64(0), current)
}

func TestConcurrentInvoiceNumbersAreUniqueAndGapless(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seed, err := f.svc.CreateInvoice(ctx, manualRequest("50"))
	require.NoError(t, err)

	const workers = 24
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int64
		errs    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				// Only one storno attempt can win; the rest must report
				// AlreadyCancelled without consuming a number.
				res, err := f.svc.Storno(ctx, invoicedomain.StornoRequest{InvoiceID: seed.ID.String(), Reason: "Doppelte Rechnung erstellt"})
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				numbers = append(numbers, res.StornoInvoiceNumber)
				return
			}
			invoice, err := f.svc.CreateInvoice(ctx, manualRequest(fmt.Sprintf("%d", 10+i)))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers = append(numbers, invoice.InvoiceNumber)
		}(i)
	}
	wg.Wait()

	stornoAttempts := workers / 4
	require.Len(t, errs, stornoAttempts-1)
	for _, err := range errs {
		assert.ErrorIs(t, err, apperror.ErrAlreadyCancelled)
	}

	numbers = append(numbers, seed.InvoiceNumber)
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	for i, n := range numbers {
		assert.Equal(t, int64(i+1), n, "invoice numbers must be gap-free")
	}

	current, err := f.allocator.Current(ctx, f.db, f.billingConfig.InvoiceCounterKey)
	require.NoError(t, err)
	assert.Equal(t, int64(len(numbers)), current)
}

func TestSequentialNumbersFollowAssignmentOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		f.clock.Advance(time.Minute)
		invoice, err := f.svc.CreateInvoice(ctx, manualRequest("10"))
		require.NoError(t, err)
		assert.Greater(t, invoice.InvoiceNumber, last)
		last = invoice.InvoiceNumber
	}
}

func TestStornoIsNonDestructive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	original, err := f.svc.CreateInvoice(ctx, manualRequest("100"))
	require.NoError(t, err)
	before, err := f.svc.GetByID(ctx, original.ID.String())
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)
	result, err := f.svc.Storno(ctx, invoicedomain.StornoRequest{
		InvoiceID: original.ID.String(),
		Reason:    "Falscher Leistungszeitraum",
		Actor:     "finance@lokma.test",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Nil(t, result.Error)
	assert.Equal(t, int64(2), result.StornoInvoiceNumber)
	assert.Equal(t, "RE-2025-000002", result.StornoDisplayNumber)

	after, err := f.svc.GetByID(ctx, original.ID.String())
	require.NoError(t, err)
	assert.Equal(t, before.InvoiceNumber, after.InvoiceNumber)
	assert.Equal(t, before.Subtotal.String(), after.Subtotal.String())
	assert.Equal(t, before.TaxAmount.String(), after.TaxAmount.String())
	assert.Equal(t, before.GrandTotal.String(), after.GrandTotal.String())
	assert.True(t, before.IssueDate.Equal(after.IssueDate))
	assert.Equal(t, invoicedomain.InvoiceStatusCancelled, after.Status)
	require.NotNil(t, after.StornoInvoiceNumber)
	assert.Equal(t, int64(2), *after.StornoInvoiceNumber)

	storno, err := f.svc.GetByID(ctx, result.StornoInvoiceID)
	require.NoError(t, err)
	assert.True(t, storno.IsStorno)
	assert.Equal(t, invoicedomain.InvoiceStatusStorno, storno.Status)
	require.NotNil(t, storno.StornoOf)
	assert.Equal(t, original.ID, *storno.StornoOf)
	assert.Equal(t, "-119", storno.GrandTotal.String())
	assert.Equal(t, "-100", storno.Subtotal.String())
	assert.Equal(t, "-19", storno.TaxAmount.String())
	assert.Greater(t, storno.InvoiceNumber, original.InvoiceNumber)
	require.Len(t, storno.Items, 1)
	assert.Equal(t, "-100", storno.Items[0].Amount.String())

	logs, err := f.audit.List(ctx, auditdomain.ListRequest{EntityType: auditdomain.EntityInvoice, EntityID: original.ID.String(), Action: "invoice.storno"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "finance@lokma.test", logs[0].PerformedBy)
	assert.Equal(t, "Falscher Leistungszeitraum", logs[0].NewData["reason"])
}

func TestStornoPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	original, err := f.svc.CreateInvoice(ctx, manualRequest("20"))
	require.NoError(t, err)

	result, err := f.svc.Storno(ctx, invoicedomain.StornoRequest{InvoiceID: original.ID.String(), Reason: "zu kurz"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, string(apperror.CodeValidation), result.Error.Code)

	_, err = f.svc.Storno(ctx, invoicedomain.StornoRequest{InvoiceID: "987654321", Reason: "Rechnung existiert nicht"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	first, err := f.svc.Storno(ctx, invoicedomain.StornoRequest{InvoiceID: original.ID.String(), Reason: "Kunde hat storniert"})
	require.NoError(t, err)

	_, err = f.svc.Storno(ctx, invoicedomain.StornoRequest{InvoiceID: original.ID.String(), Reason: "Kunde hat storniert"})
	assert.ErrorIs(t, err, apperror.ErrAlreadyCancelled)

	_, err = f.svc.Storno(ctx, invoicedomain.StornoRequest{InvoiceID: first.StornoInvoiceID, Reason: "Storno der Stornorechnung"})
	assert.ErrorIs(t, err, apperror.ErrAlreadyCancelled)

	current, err := f.allocator.Current(ctx, f.db, f.billingConfig.InvoiceCounterKey)
	require.NoError(t, err)
	assert.Equal(t, int64(2), current)
}

func TestCounterFailureSurfacesAsAllocationError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.Migrator().DropTable(&invoicedomain.InvoiceCounter{}))

	_, err := f.svc.CreateInvoice(ctx, manualRequest("10"))
	assert.ErrorIs(t, err, apperror.ErrCounterAllocation)

	var count int64
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPaymentLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	invoice, err := f.svc.CreateInvoice(ctx, manualRequest("40"))
	require.NoError(t, err)

	affected, err := f.svc.MarkOverdue(ctx, f.clock.Now().AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Zero(t, affected)

	affected, err = f.svc.MarkOverdue(ctx, f.clock.Now().AddDate(0, 0, 15))
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	failed, err := f.svc.MarkPaymentFailed(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusFailed, failed.Status)

	paid, err := f.svc.MarkPaid(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	_, err = f.svc.MarkPaid(ctx, invoice.ID.String())
	assert.ErrorIs(t, err, apperror.ErrAlreadyPaid)

	cancelled, err := f.svc.CreateInvoice(ctx, manualRequest("40"))
	require.NoError(t, err)
	_, err = f.svc.Storno(ctx, invoicedomain.StornoRequest{InvoiceID: cancelled.ID.String(), Reason: "Fehlerhafte Adresse"})
	require.NoError(t, err)
	_, err = f.svc.MarkPaid(ctx, cancelled.ID.String())
	assert.ErrorIs(t, err, apperror.ErrAlreadyCancelled)
}

func TestMonthlyInvoiceFoldsPendingCommissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	vat := decimal.RequireFromString("0.07")
	plan, err := f.plans.Create(ctx, plandomain.CreateRequest{
		Code:                   "basic",
		Name:                   "Basic",
		CommissionClickCollect: decimal.NewFromInt(5),
		CommissionOwnCourier:   decimal.NewFromInt(4),
		CommissionLokmaCourier: decimal.NewFromInt(7),
		PerOrderFeeType:        plandomain.FeeFlat,
		PerOrderFeeAmount:      decimal.RequireFromString("0.40"),
		VATRate:                &vat,
		MonthlyFee:             decimal.NewFromInt(29),
	})
	require.NoError(t, err)
	_, err = f.businesses.Upsert(ctx, businessdomain.UpsertRequest{ID: "biz-1", Name: "Metzgerei Yilmaz", Address: "Hauptstr. 1"})
	require.NoError(t, err)
	_, err = f.businesses.AssignPlan(ctx, businessdomain.AssignPlanRequest{BusinessID: "biz-1", PlanID: plan.ID.String()})
	require.NoError(t, err)

	for i, method := range []commissiondomain.PaymentMethod{commissiondomain.PaymentCash, commissiondomain.PaymentCash, commissiondomain.PaymentCard} {
		_, _, err := f.commissions.RecordOrder(ctx, commissiondomain.OrderEvent{
			OrderID:       fmt.Sprintf("order-%d", i),
			BusinessID:    "biz-1",
			OrderTotal:    decimal.NewFromInt(100),
			CourierType:   plandomain.CourierClickCollect,
			PaymentMethod: method,
			CreatedAt:     time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}

	invoice, err := f.svc.CreateMonthlyInvoice(ctx, invoicedomain.MonthlyInvoiceRequest{
		BusinessID:             "biz-1",
		Period:                 "2025-03",
		IncludeSubscriptionFee: true,
	})
	require.NoError(t, err)
	require.Len(t, invoice.Items, 3)
	assert.Equal(t, "Metzgerei Yilmaz", invoice.CounterpartyName)
	// 29 + 2 * 5.40, taxed at the plan's 7%: 2 * 0.38 from the records plus 2.03 on the fee
	assert.Equal(t, "39.8", invoice.Subtotal.String())
	assert.Equal(t, "reduced", invoice.TaxRateKey)
	assert.Equal(t, "2.79", invoice.TaxAmount.String())
	assert.Equal(t, "42.59", invoice.GrandTotal.String())

	invoiced, err := f.commissions.List(ctx, commissiondomain.ListFilter{BusinessID: "biz-1", Status: commissiondomain.CollectionInvoiced})
	require.NoError(t, err)
	assert.Len(t, invoiced, 2)

	_, err = f.svc.CreateMonthlyInvoice(ctx, invoicedomain.MonthlyInvoiceRequest{BusinessID: "biz-1", Period: "2025-03"})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = f.svc.MarkPaid(ctx, invoice.ID.String())
	require.NoError(t, err)
	paid, err := f.commissions.List(ctx, commissiondomain.ListFilter{BusinessID: "biz-1", Status: commissiondomain.CollectionPaid})
	require.NoError(t, err)
	assert.Len(t, paid, 2)
}

// seedCashOrders puts biz-1 on a plan with the given VAT fraction and
// records n cash orders of 100 in March 2025.
func seedCashOrders(t *testing.T, f *fixture, vat string, n int) {
	t.Helper()
	ctx := context.Background()

	rate := decimal.RequireFromString(vat)
	plan, err := f.plans.Create(ctx, plandomain.CreateRequest{
		Name:                   "Basic " + vat,
		CommissionClickCollect: decimal.NewFromInt(5),
		CommissionOwnCourier:   decimal.NewFromInt(4),
		CommissionLokmaCourier: decimal.NewFromInt(7),
		PerOrderFeeType:        plandomain.FeeFlat,
		PerOrderFeeAmount:      decimal.RequireFromString("0.40"),
		VATRate:                &rate,
		MonthlyFee:             decimal.NewFromInt(29),
	})
	require.NoError(t, err)
	_, err = f.businesses.Upsert(ctx, businessdomain.UpsertRequest{ID: "biz-1", Name: "Metzgerei Yilmaz"})
	require.NoError(t, err)
	_, err = f.businesses.AssignPlan(ctx, businessdomain.AssignPlanRequest{BusinessID: "biz-1", PlanID: plan.ID.String()})
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		_, _, err := f.commissions.RecordOrder(ctx, commissiondomain.OrderEvent{
			OrderID:       fmt.Sprintf("cash-%d", i),
			BusinessID:    "biz-1",
			OrderTotal:    decimal.NewFromInt(100),
			CourierType:   plandomain.CourierClickCollect,
			PaymentMethod: commissiondomain.PaymentCash,
			CreatedAt:     time.Date(2025, time.March, 5, 12, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}
}

func sumTotals(records []commissiondomain.Record) decimal.Decimal {
	total := decimal.Zero
	for _, record := range records {
		total = total.Add(record.TotalCommission)
	}
	return total
}

func TestMonthlyInvoiceReconcilesWithRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedCashOrders(t, f, "0.07", 2)

	pending, err := f.commissions.List(ctx, commissiondomain.ListFilter{BusinessID: "biz-1", Status: commissiondomain.CollectionPending})
	require.NoError(t, err)
	require.Len(t, pending, 2)

	invoice, err := f.svc.CreateMonthlyInvoice(ctx, invoicedomain.MonthlyInvoiceRequest{BusinessID: "biz-1", Period: "2025-03"})
	require.NoError(t, err)
	assert.Equal(t, "reduced", invoice.TaxRateKey)
	assert.Equal(t, "7", invoice.TaxRate.String())
	assert.Equal(t, "11.56", sumTotals(pending).String())
	assert.True(t, invoice.GrandTotal.Equal(sumTotals(pending)), "invoice %s, records %s", invoice.GrandTotal, sumTotals(pending))
}

func TestMonthlyInvoiceRejectsMixedVATRates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedCashOrders(t, f, "0.07", 1)

	record := commissiondomain.Record{
		ID:               snowflake.ID(424242),
		OrderID:          "cash-standard",
		BusinessID:       "biz-1",
		Period:           "2025-03",
		PlanName:         "Legacy",
		OrderTotal:       decimal.NewFromInt(100),
		CourierType:      plandomain.CourierClickCollect,
		PaymentMethod:    commissiondomain.PaymentCash,
		CommissionRate:   decimal.NewFromInt(5),
		CommissionAmount: decimal.NewFromInt(5),
		PerOrderFee:      decimal.Zero,
		NetCommission:    decimal.NewFromInt(5),
		VATRate:          decimal.RequireFromString("0.19"),
		VATAmount:        decimal.RequireFromString("0.95"),
		TotalCommission:  decimal.RequireFromString("5.95"),
		CollectionStatus: commissiondomain.CollectionPending,
		OrderCreatedAt:   time.Date(2025, time.March, 6, 12, 0, 0, 0, time.UTC),
		CreatedAt:        f.clock.Now(),
		UpdatedAt:        f.clock.Now(),
	}
	require.NoError(t, commissionrepo.Provide().Insert(ctx, f.db, &record))

	_, err := f.svc.CreateMonthlyInvoice(ctx, invoicedomain.MonthlyInvoiceRequest{BusinessID: "biz-1", Period: "2025-03"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	current, err := f.allocator.Current(ctx, f.db, f.billingConfig.InvoiceCounterKey)
	require.NoError(t, err)
	assert.Zero(t, current)
}

func TestStornoReleasesMonthlyCommissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedCashOrders(t, f, "0.07", 2)

	first, err := f.svc.CreateMonthlyInvoice(ctx, invoicedomain.MonthlyInvoiceRequest{BusinessID: "biz-1", Period: "2025-03"})
	require.NoError(t, err)

	_, err = f.svc.Storno(ctx, invoicedomain.StornoRequest{InvoiceID: first.ID.String(), Reason: "Falsche Bestellungen abgerechnet"})
	require.NoError(t, err)

	pending, err := f.commissions.List(ctx, commissiondomain.ListFilter{BusinessID: "biz-1", Status: commissiondomain.CollectionPending})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, record := range pending {
		assert.Nil(t, record.InvoiceID)
	}

	second, err := f.svc.CreateMonthlyInvoice(ctx, invoicedomain.MonthlyInvoiceRequest{BusinessID: "biz-1", Period: "2025-03"})
	require.NoError(t, err)
	assert.Greater(t, second.InvoiceNumber, first.InvoiceNumber)
	assert.Equal(t, first.GrandTotal.String(), second.GrandTotal.String())

	invoiced, err := f.commissions.List(ctx, commissiondomain.ListFilter{BusinessID: "biz-1", Status: commissiondomain.CollectionInvoiced})
	require.NoError(t, err)
	require.Len(t, invoiced, 2)
	for _, record := range invoiced {
		require.NotNil(t, record.InvoiceID)
		assert.Equal(t, second.ID, *record.InvoiceID)
	}

	logs, err := f.audit.List(ctx, auditdomain.ListRequest{EntityType: auditdomain.EntityInvoice, EntityID: first.ID.String(), Action: "invoice.storno"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.EqualValues(t, 2, logs[0].NewData["released_commissions"])
}

func TestInvoicedCommissionOnCancelledInvoiceCannotBePaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedCashOrders(t, f, "0.07", 1)

	invoice, err := f.svc.CreateMonthlyInvoice(ctx, invoicedomain.MonthlyInvoiceRequest{BusinessID: "biz-1", Period: "2025-03"})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).
		Where("id = ?", invoice.ID).
		Update("status", invoicedomain.InvoiceStatusCancelled).Error)

	_, err = f.commissions.UpdateCollectionStatus(ctx, "cash-0", commissiondomain.CollectionPaid)
	assert.ErrorIs(t, err, apperror.ErrAlreadyCancelled)

	record, err := f.commissions.List(ctx, commissiondomain.ListFilter{BusinessID: "biz-1", Status: commissiondomain.CollectionInvoiced})
	require.NoError(t, err)
	assert.Len(t, record, 1)
}

func TestMonthlyInvoiceWithNothingPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.businesses.Upsert(ctx, businessdomain.UpsertRequest{ID: "biz-2", Name: "Cafe Nord"})
	require.NoError(t, err)

	_, err = f.svc.CreateMonthlyInvoice(ctx, invoicedomain.MonthlyInvoiceRequest{BusinessID: "biz-2", Period: "2025-03"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	current, err := f.allocator.Current(ctx, f.db, f.billingConfig.InvoiceCounterKey)
	require.NoError(t, err)
	assert.Zero(t, current)
}

func TestListPagesByInvoiceNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.CreateInvoice(ctx, manualRequest("10"))
		require.NoError(t, err)
	}

	req := invoicedomain.ListInvoiceRequest{}
	req.PageSize = 2
	page, err := f.svc.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, page.Invoices, 2)
	assert.Equal(t, int64(3), page.Invoices[0].InvoiceNumber)
	assert.True(t, page.HasMore)

	req.PageToken = page.NextPageToken
	next, err := f.svc.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, next.Invoices, 1)
	assert.Equal(t, int64(1), next.Invoices[0].InvoiceNumber)
	assert.False(t, next.HasMore)
}
