package domain

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lokma/internal/apperror"
	plandomain "github.com/smallbiznis/lokma/internal/plan/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testPlan() plandomain.Plan {
	return plandomain.Plan{
		ID:                     snowflake.ID(7),
		Code:                   "basic",
		Name:                   "Basic",
		CommissionClickCollect: dec("5"),
		CommissionOwnCourier:   dec("4"),
		CommissionLokmaCourier: dec("7"),
		PerOrderFeeType:        plandomain.FeeFlat,
		PerOrderFeeAmount:      dec("0.40"),
		VATRate:                dec("0.07"),
	}
}

func testOrder() OrderEvent {
	return OrderEvent{
		OrderID:       "order-1",
		BusinessID:    "biz-1",
		OrderTotal:    dec("100"),
		CourierType:   plandomain.CourierClickCollect,
		PaymentMethod: PaymentCash,
		CreatedAt:     time.Date(2025, time.March, 14, 18, 30, 0, 0, time.UTC),
	}
}

func TestComputeArithmetic(t *testing.T) {
	record, err := Compute(testOrder(), testPlan(), 0)
	require.NoError(t, err)

	assert.Equal(t, "5", record.CommissionAmount.String())
	assert.Equal(t, "0.4", record.PerOrderFee.String())
	assert.Equal(t, "5.4", record.NetCommission.String())
	assert.Equal(t, "0.38", record.VATAmount.String())
	assert.Equal(t, "5.78", record.TotalCommission.String())
	assert.Equal(t, "2025-03", record.Period)
	assert.Equal(t, CollectionPending, record.CollectionStatus)
	assert.False(t, record.FreeOrder)

	sum := record.CommissionAmount.Add(record.PerOrderFee).Add(record.VATAmount)
	assert.True(t, sum.Equal(record.TotalCommission))
}

func TestComputeTotalEqualsStoredParts(t *testing.T) {
	flat := testPlan()
	percent := testPlan()
	percent.PerOrderFeeType = plandomain.FeePercentage
	percent.PerOrderFeeAmount = dec("1.5")
	standard := testPlan()
	standard.VATRate = dec("0.19")

	plans := map[string]plandomain.Plan{"flat fee": flat, "percentage fee": percent, "standard vat": standard}
	for name, plan := range plans {
		t.Run(name, func(t *testing.T) {
			for cents := int64(1); cents <= 2000; cents++ {
				order := testOrder()
				order.OrderTotal = decimal.New(cents, -2)
				for _, courier := range []plandomain.CourierType{plandomain.CourierClickCollect, plandomain.CourierOwn, plandomain.CourierLokma} {
					order.CourierType = courier
					record, err := Compute(order, plan, 0)
					require.NoError(t, err)

					net := record.CommissionAmount.Add(record.PerOrderFee)
					require.True(t, net.Equal(record.NetCommission), "net for %s", order.OrderTotal)
					require.True(t, net.Add(record.VATAmount).Equal(record.TotalCommission),
						"total for %s: %s + %s + %s != %s", order.OrderTotal,
						record.CommissionAmount, record.PerOrderFee, record.VATAmount, record.TotalCommission)
				}
			}
		})
	}

	order := testOrder()
	order.OrderTotal = dec("2.50")
	record, err := Compute(order, flat, 0)
	require.NoError(t, err)
	assert.Equal(t, "0.13", record.CommissionAmount.String())
	assert.Equal(t, "0.53", record.NetCommission.String())
	assert.Equal(t, "0.04", record.VATAmount.String())
	assert.Equal(t, "0.57", record.TotalCommission.String())
}

func TestComputeRoundsOnlyStoredFields(t *testing.T) {
	plan := testPlan()
	plan.PerOrderFeeType = plandomain.FeeNone
	plan.VATRate = dec("0.19")
	order := testOrder()
	order.OrderTotal = dec("10.10")
	order.CourierType = plandomain.CourierLokma

	record, err := Compute(order, plan, 0)
	require.NoError(t, err)

	// 0.707 commission rounds to 0.71, vat on 0.71 is 0.1349
	assert.Equal(t, "0.71", record.CommissionAmount.String())
	assert.Equal(t, "0.13", record.VATAmount.String())
	assert.Equal(t, "0.84", record.TotalCommission.String())
}

func TestComputeIsIdempotent(t *testing.T) {
	first, err := Compute(testOrder(), testPlan(), 5)
	require.NoError(t, err)
	second, err := Compute(testOrder(), testPlan(), 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputePercentageFee(t *testing.T) {
	plan := testPlan()
	plan.PerOrderFeeType = plandomain.FeePercentage
	plan.PerOrderFeeAmount = dec("1.5")

	record, err := Compute(testOrder(), plan, 0)
	require.NoError(t, err)
	assert.Equal(t, "1.5", record.PerOrderFee.String())
	assert.Equal(t, "6.5", record.NetCommission.String())
}

func TestComputeFreeOrderOverride(t *testing.T) {
	plan := testPlan()
	plan.FreeOrderCount = 3

	for used := 0; used < 3; used++ {
		record, err := Compute(testOrder(), plan, used)
		require.NoError(t, err)
		assert.True(t, record.FreeOrder)
		assert.True(t, record.TotalCommission.IsZero())
		assert.Equal(t, CollectionAutoCollected, record.CollectionStatus)
	}

	record, err := Compute(testOrder(), plan, 3)
	require.NoError(t, err)
	assert.False(t, record.FreeOrder)
	assert.Equal(t, "5.78", record.TotalCommission.String())
	assert.Equal(t, CollectionPending, record.CollectionStatus)
}

func TestComputeCollectionStatusByPaymentMethod(t *testing.T) {
	cases := map[PaymentMethod]CollectionStatus{
		PaymentCard:   CollectionAutoCollected,
		PaymentStripe: CollectionAutoCollected,
		PaymentCash:   CollectionPending,
		PaymentOther:  CollectionPending,
	}
	for method, want := range cases {
		order := testOrder()
		order.PaymentMethod = method
		record, err := Compute(order, testPlan(), 0)
		require.NoError(t, err)
		assert.Equal(t, want, record.CollectionStatus, string(method))
	}
}

func TestComputeRejectsBadOrders(t *testing.T) {
	cases := map[string]func(*OrderEvent){
		"missing order id": func(o *OrderEvent) { o.OrderID = " " },
		"negative total":   func(o *OrderEvent) { o.OrderTotal = dec("-1") },
		"unknown courier":  func(o *OrderEvent) { o.CourierType = "drone" },
		"unknown payment":  func(o *OrderEvent) { o.PaymentMethod = "barter" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			order := testOrder()
			mutate(&order)
			_, err := Compute(order, testPlan(), 0)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
}

func TestCanTransitionCollection(t *testing.T) {
	assert.True(t, CanTransitionCollection(CollectionPending, CollectionInvoiced))
	assert.True(t, CanTransitionCollection(CollectionInvoiced, CollectionPaid))
	assert.True(t, CanTransitionCollection(CollectionPending, CollectionPaid))
	assert.False(t, CanTransitionCollection(CollectionPaid, CollectionPending))
	assert.False(t, CanTransitionCollection(CollectionInvoiced, CollectionPending))
	assert.False(t, CanTransitionCollection(CollectionAutoCollected, CollectionPaid))
}
