package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lokma/internal/apperror"
)

type CreateRequest struct {
	// Code defaults to a slug of Name.
	Code                   string          `json:"code"`
	Name                   string          `json:"name" binding:"required"`
	CommissionClickCollect decimal.Decimal `json:"commission_click_collect"`
	CommissionOwnCourier   decimal.Decimal `json:"commission_own_courier"`
	CommissionLokmaCourier decimal.Decimal `json:"commission_lokma_courier"`
	PerOrderFeeType        FeeType         `json:"per_order_fee_type"`
	PerOrderFeeAmount      decimal.Decimal `json:"per_order_fee_amount"`
	FreeOrderCount         int             `json:"free_order_count" binding:"gte=0"`
	VATRate                *decimal.Decimal `json:"vat_rate"`
	MonthlyFee             decimal.Decimal `json:"monthly_fee"`
}

type UpdateRequest struct {
	ID                     string           `json:"-"`
	Name                   *string          `json:"name,omitempty"`
	CommissionClickCollect *decimal.Decimal `json:"commission_click_collect,omitempty"`
	CommissionOwnCourier   *decimal.Decimal `json:"commission_own_courier,omitempty"`
	CommissionLokmaCourier *decimal.Decimal `json:"commission_lokma_courier,omitempty"`
	PerOrderFeeType        *FeeType         `json:"per_order_fee_type,omitempty"`
	PerOrderFeeAmount      *decimal.Decimal `json:"per_order_fee_amount,omitempty"`
	FreeOrderCount         *int             `json:"free_order_count,omitempty"`
	VATRate                *decimal.Decimal `json:"vat_rate,omitempty"`
	MonthlyFee             *decimal.Decimal `json:"monthly_fee,omitempty"`
	Active                 *bool            `json:"active,omitempty"`
}

// Service is the read-mostly plan catalog. Commission records snapshot the
// plan at computation time, so updates never touch recorded commissions.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Plan, error)
	Update(ctx context.Context, req UpdateRequest) (*Plan, error)
	GetByID(ctx context.Context, id string) (*Plan, error)
	List(ctx context.Context) ([]Plan, error)
}

var (
	ErrInvalidCourierType = apperror.Validation("courier_type", "courier type must be click_collect, own_courier or lokma_courier")
	ErrInvalidID          = apperror.Validation("id", "invalid plan id")
	ErrNotFound           = apperror.NotFound("plan")
	ErrCodeTaken          = apperror.Conflict("plan code already exists")
)
