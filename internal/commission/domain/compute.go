package domain

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lokma/internal/apperror"
	plandomain "github.com/smallbiznis/lokma/internal/plan/domain"
	taxservice "github.com/smallbiznis/lokma/internal/tax/service"
)

const PeriodLayout = "2006-01"

// Compute derives the commission record for an order under plan. It has no
// side effects and leaves ID and timestamps for the caller to stamp.
// freeOrdersUsed counts orders already recorded for the business under
// this plan.
//
// Commission and fee are rounded to cents once; net, VAT and total are built
// from the stored cents so TotalCommission always equals
// CommissionAmount + PerOrderFee + VATAmount.
func Compute(order OrderEvent, plan plandomain.Plan, freeOrdersUsed int) (Record, error) {
	if err := validateOrder(order); err != nil {
		return Record{}, err
	}
	rate, err := plan.RateFor(order.CourierType)
	if err != nil {
		return Record{}, err
	}

	record := Record{
		OrderID:        strings.TrimSpace(order.OrderID),
		BusinessID:     strings.TrimSpace(order.BusinessID),
		Period:         order.CreatedAt.UTC().Format(PeriodLayout),
		PlanID:         plan.ID,
		PlanName:       plan.Name,
		OrderTotal:     order.OrderTotal.Round(2),
		CourierType:    order.CourierType,
		PaymentMethod:  order.PaymentMethod,
		CommissionRate: rate,
		VATRate:        plan.VATRate,
		OrderCreatedAt: order.CreatedAt.UTC(),
	}

	if freeOrdersUsed < plan.FreeOrderCount {
		record.FreeOrder = true
		record.CommissionAmount = decimal.Zero
		record.PerOrderFee = decimal.Zero
		record.NetCommission = decimal.Zero
		record.VATAmount = decimal.Zero
		record.TotalCommission = decimal.Zero
		record.CollectionStatus = CollectionAutoCollected
		return record, nil
	}

	record.CommissionAmount = taxservice.PercentOf(order.OrderTotal, rate).Round(2)
	record.PerOrderFee = PerOrderFee(plan, order.OrderTotal).Round(2)
	record.NetCommission = record.CommissionAmount.Add(record.PerOrderFee)
	record.VATAmount = taxservice.ComputeTaxFraction(record.NetCommission, plan.VATRate).Round(2)
	record.TotalCommission = record.NetCommission.Add(record.VATAmount)

	if order.PaymentMethod.SettledByProcessor() {
		record.CollectionStatus = CollectionAutoCollected
	} else {
		record.CollectionStatus = CollectionPending
	}
	return record, nil
}

// PerOrderFee returns the unrounded per-order fee for an order total.
func PerOrderFee(plan plandomain.Plan, orderTotal decimal.Decimal) decimal.Decimal {
	switch plan.PerOrderFeeType {
	case plandomain.FeeFlat:
		return plan.PerOrderFeeAmount
	case plandomain.FeePercentage:
		return taxservice.PercentOf(orderTotal, plan.PerOrderFeeAmount)
	default:
		return decimal.Zero
	}
}

func validateOrder(order OrderEvent) error {
	if strings.TrimSpace(order.OrderID) == "" {
		return ErrInvalidOrderID
	}
	if strings.TrimSpace(order.BusinessID) == "" {
		return ErrInvalidBusinessID
	}
	if order.OrderTotal.IsNegative() {
		return ErrInvalidOrderTotal
	}
	if _, ok := ParsePaymentMethod(string(order.PaymentMethod)); !ok {
		return ErrInvalidPaymentMethod
	}
	if order.CreatedAt.IsZero() {
		return apperror.Validation("created_at", "order creation time is required")
	}
	return nil
}
