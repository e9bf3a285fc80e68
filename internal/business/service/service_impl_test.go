package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lokma/internal/apperror"
	"github.com/smallbiznis/lokma/internal/business/domain"
	"github.com/smallbiznis/lokma/internal/business/repository"
	"github.com/smallbiznis/lokma/internal/cache"
	"github.com/smallbiznis/lokma/internal/config"
	plandomain "github.com/smallbiznis/lokma/internal/plan/domain"
	planservice "github.com/smallbiznis/lokma/internal/plan/service"
	"github.com/smallbiznis/lokma/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	svc     domain.Service
	planSvc plandomain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t, &plandomain.Plan{}, &domain.Business{})
	planCache := cache.NewPlanCache(nil)
	clk := testutil.FixedClock()
	planSvc := planservice.New(planservice.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   testutil.NewNode(t),
		Clock:   clk,
		Billing: config.NewStaticBillingConfig(config.DefaultBillingConfig()),
		Cache:   planCache,
	})
	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		Clock:   clk,
		Repo:    repository.Provide(),
		PlanSvc: planSvc,
		Cache:   planCache,
	})
	return fixture{svc: svc, planSvc: planSvc}
}

func TestUpsertKeepsSingleRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upsert(ctx, domain.UpsertRequest{ID: "biz-1", Name: "Döner Palast", Address: "Hauptstr. 1"})
	require.NoError(t, err)
	updated, err := f.svc.Upsert(ctx, domain.UpsertRequest{ID: "biz-1", Name: "Döner Palast GmbH", Address: "Hauptstr. 2"})
	require.NoError(t, err)

	assert.Equal(t, "Döner Palast GmbH", updated.Name)
	assert.Equal(t, "Hauptstr. 2", updated.Address)

	_, err = f.svc.Upsert(ctx, domain.UpsertRequest{ID: "biz-2"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestActivePlanFollowsAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upsert(ctx, domain.UpsertRequest{ID: "biz-1", Name: "Cafe"})
	require.NoError(t, err)

	_, err = f.svc.ActivePlan(ctx, "biz-1")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	basic, err := f.planSvc.Create(ctx, plandomain.CreateRequest{Code: "basic", Name: "Basic", CommissionOwnCourier: decimal.NewFromInt(4)})
	require.NoError(t, err)
	pro, err := f.planSvc.Create(ctx, plandomain.CreateRequest{Code: "pro", Name: "Pro", CommissionOwnCourier: decimal.NewFromInt(3)})
	require.NoError(t, err)

	_, err = f.svc.AssignPlan(ctx, domain.AssignPlanRequest{BusinessID: "biz-1", PlanID: basic.ID.String()})
	require.NoError(t, err)
	active, err := f.svc.ActivePlan(ctx, "biz-1")
	require.NoError(t, err)
	assert.Equal(t, basic.ID, active.ID)

	business, err := f.svc.AssignPlan(ctx, domain.AssignPlanRequest{BusinessID: "biz-1", PlanID: pro.ID.String()})
	require.NoError(t, err)
	require.NotNil(t, business.PlanAssignedAt)
	active, err = f.svc.ActivePlan(ctx, "biz-1")
	require.NoError(t, err)
	assert.Equal(t, pro.ID, active.ID)
}

func TestAssignPlanUnknownBusiness(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AssignPlan(context.Background(), domain.AssignPlanRequest{BusinessID: "nope", PlanID: "1"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
