package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lokma/internal/apperror"
	"github.com/smallbiznis/lokma/internal/cache"
	"github.com/smallbiznis/lokma/internal/config"
	plandomain "github.com/smallbiznis/lokma/internal/plan/domain"
	"github.com/smallbiznis/lokma/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, cache.PlanCache) {
	t.Helper()
	db := testutil.NewDB(t, &plandomain.Plan{})
	planCache := cache.NewPlanCache(nil)
	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   testutil.NewNode(t),
		Clock:   testutil.FixedClock(),
		Billing: config.NewStaticBillingConfig(config.DefaultBillingConfig()),
		Cache:   planCache,
	}).(*Service)
	return svc, planCache
}

func TestCreateDefaultsVATRateFromBillingConfig(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	plan, err := svc.Create(ctx, plandomain.CreateRequest{
		Code:                   " Basic ",
		Name:                   "Basic",
		CommissionClickCollect: decimal.NewFromInt(5),
		CommissionOwnCourier:   decimal.NewFromInt(4),
		CommissionLokmaCourier: decimal.NewFromInt(7),
		FreeOrderCount:         30,
	})
	require.NoError(t, err)
	assert.Equal(t, "basic", plan.Code)
	assert.Equal(t, plandomain.FeeNone, plan.PerOrderFeeType)
	assert.True(t, plan.VATRate.Equal(decimal.RequireFromString("0.19")))

	_, err = svc.Create(ctx, plandomain.CreateRequest{Code: "basic", Name: "Again"})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestGetByIDReadsThroughCache(t *testing.T) {
	svc, planCache := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, plandomain.CreateRequest{
		Code:                 "pro",
		Name:                 "Pro",
		CommissionOwnCourier: decimal.NewFromInt(3),
	})
	require.NoError(t, err)

	planCache.InvalidatePlan(ctx, created.ID.String())
	got, err := svc.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	cached, ok := planCache.GetPlan(ctx, created.ID.String())
	require.True(t, ok)
	assert.Equal(t, "pro", cached.Code)
}

func TestUpdateInvalidatesCache(t *testing.T) {
	svc, planCache := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, plandomain.CreateRequest{Code: "pro", Name: "Pro"})
	require.NoError(t, err)

	rate := decimal.NewFromInt(6)
	updated, err := svc.Update(ctx, plandomain.UpdateRequest{ID: created.ID.String(), CommissionLokmaCourier: &rate})
	require.NoError(t, err)
	assert.True(t, updated.CommissionLokmaCourier.Equal(rate))

	_, ok := planCache.GetPlan(ctx, created.ID.String())
	assert.False(t, ok)

	reloaded, err := svc.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.True(t, reloaded.CommissionLokmaCourier.Equal(rate))
}

func TestGetByIDErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetByID(ctx, "not-a-number")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.GetByID(ctx, "123456")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestListOrdersByCode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, code := range []string{"pro", "basic", "enterprise"} {
		_, err := svc.Create(ctx, plandomain.CreateRequest{Code: code, Name: code})
		require.NoError(t, err)
	}

	plans, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, "basic", plans[0].Code)
	assert.Equal(t, "pro", plans[2].Code)
}

func TestCreateDerivesCodeFromName(t *testing.T) {
	svc, _ := newTestService(t)

	plan, err := svc.Create(context.Background(), plandomain.CreateRequest{Name: "Pro Plus Delivery"})
	require.NoError(t, err)
	assert.Equal(t, "pro-plus-delivery", plan.Code)
}
