// Package domain holds subscription plans: the commission rate table a
// business is billed under.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lokma/internal/apperror"
)

// CourierType is the delivery fulfillment channel of an order.
type CourierType string

const (
	CourierClickCollect CourierType = "click_collect"
	CourierOwn          CourierType = "own_courier"
	CourierLokma        CourierType = "lokma_courier"
)

func ParseCourierType(raw string) (CourierType, bool) {
	switch CourierType(strings.ToLower(strings.TrimSpace(raw))) {
	case CourierClickCollect:
		return CourierClickCollect, true
	case CourierOwn:
		return CourierOwn, true
	case CourierLokma:
		return CourierLokma, true
	default:
		return "", false
	}
}

// FeeType controls how the per-order fee is derived.
type FeeType string

const (
	FeeNone       FeeType = "none"
	FeeFlat       FeeType = "flat"
	FeePercentage FeeType = "percentage"
)

// Plan is a subscription plan. Commission rates are percentages (5 means
// 5%), VATRate is a fraction (0.19 means 19%).
type Plan struct {
	ID                     snowflake.ID    `gorm:"primaryKey" json:"id"`
	Code                   string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"code"`
	Name                   string          `gorm:"type:text;not null" json:"name"`
	CommissionClickCollect decimal.Decimal `gorm:"type:decimal(8,4);not null" json:"commission_click_collect"`
	CommissionOwnCourier   decimal.Decimal `gorm:"type:decimal(8,4);not null" json:"commission_own_courier"`
	CommissionLokmaCourier decimal.Decimal `gorm:"type:decimal(8,4);not null" json:"commission_lokma_courier"`
	PerOrderFeeType        FeeType         `gorm:"type:text;not null;default:'none'" json:"per_order_fee_type"`
	PerOrderFeeAmount      decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"per_order_fee_amount"`
	FreeOrderCount         int             `gorm:"not null;default:0" json:"free_order_count"`
	VATRate                decimal.Decimal `gorm:"type:decimal(6,4);not null" json:"vat_rate"`
	MonthlyFee             decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"monthly_fee"`
	Active                 bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt              time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"not null" json:"updated_at"`
}

func (Plan) TableName() string { return "plans" }

// RateFor selects the commission percentage for a courier type.
func (p Plan) RateFor(courier CourierType) (decimal.Decimal, error) {
	switch courier {
	case CourierClickCollect:
		return p.CommissionClickCollect, nil
	case CourierOwn:
		return p.CommissionOwnCourier, nil
	case CourierLokma:
		return p.CommissionLokmaCourier, nil
	default:
		return decimal.Zero, ErrInvalidCourierType
	}
}

func (p Plan) Validate() error {
	if strings.TrimSpace(p.Code) == "" {
		return apperror.Validation("code", "plan code is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return apperror.Validation("name", "plan name is required")
	}
	for field, rate := range map[string]decimal.Decimal{
		"commission_click_collect": p.CommissionClickCollect,
		"commission_own_courier":   p.CommissionOwnCourier,
		"commission_lokma_courier": p.CommissionLokmaCourier,
	} {
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
			return apperror.Validation(field, "commission rate must be between 0 and 100")
		}
	}
	switch p.PerOrderFeeType {
	case FeeNone, FeeFlat, FeePercentage:
	default:
		return apperror.Validation("per_order_fee_type", "fee type must be none, flat or percentage")
	}
	if p.PerOrderFeeAmount.IsNegative() {
		return apperror.Validation("per_order_fee_amount", "fee amount cannot be negative")
	}
	if p.FreeOrderCount < 0 {
		return apperror.Validation("free_order_count", "free order count cannot be negative")
	}
	if p.VATRate.IsNegative() || p.VATRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return apperror.Validation("vat_rate", "vat rate is a fraction in [0,1)")
	}
	if p.MonthlyFee.IsNegative() {
		return apperror.Validation("monthly_fee", "monthly fee cannot be negative")
	}
	return nil
}
