package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lokma/internal/apperror"
	"github.com/smallbiznis/lokma/pkg/db/pagination"
)

type Counterparty struct {
	BusinessID string `json:"business_id"`
	Name       string `json:"name"`
	Address    string `json:"address"`
}

type CreateInvoiceRequest struct {
	Counterparty Counterparty    `json:"counterparty"`
	NetAmount    decimal.Decimal `json:"net_amount"`
	VATRateKey   string          `json:"vat_rate_key" binding:"required"`
	Period       string          `json:"period"`
	Description  string          `json:"description"`
	Actor        string          `json:"-"`
}

type StornoRequest struct {
	InvoiceID string `json:"-"`
	Reason    string `json:"reason" binding:"required"`
	Actor     string `json:"-"`
}

type MonthlyInvoiceRequest struct {
	BusinessID string `json:"business_id" binding:"required"`
	Period     string `json:"period" binding:"required"`

	// IncludeSubscriptionFee adds the plan's monthly fee as a line.
	IncludeSubscriptionFee bool   `json:"include_subscription_fee"`
	Actor                  string `json:"-"`
}

type ListInvoiceRequest struct {
	BusinessID string
	Period     string
	Status     *InvoiceStatus
	IsStorno   *bool
	DueBefore  *time.Time
	pagination.Pagination
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error)
	// CreateMonthlyInvoice folds the business's pending commission records
	// for period into one invoice and marks them invoiced atomically.
	CreateMonthlyInvoice(ctx context.Context, req MonthlyInvoiceRequest) (*Invoice, error)
	// Storno issues a negated mirror invoice under a fresh number and
	// cancels the original in one transaction.
	Storno(ctx context.Context, req StornoRequest) (StornoResult, error)
	MarkPaid(ctx context.Context, invoiceID string) (*Invoice, error)
	MarkPaymentFailed(ctx context.Context, invoiceID string) (*Invoice, error)
	// MarkOverdue flags pending invoices whose due date lies before now.
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	GetByID(ctx context.Context, id string) (*Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
}

var (
	ErrInvalidInvoiceID    = apperror.Validation("invoice_id", "invalid invoice id")
	ErrInvalidAmount       = apperror.Validation("net_amount", "net amount must be positive")
	ErrInvalidCounterparty = apperror.Validation("counterparty.name", "counterparty name is required")
	ErrInvalidPeriod       = apperror.Validation("period", "period must be formatted YYYY-MM")
	ErrNothingToInvoice    = apperror.Validation("period", "no pending commission or subscription fee to invoice")
	ErrInvoiceNotFound     = apperror.NotFound("invoice")
	ErrStornoOfStorno      = apperror.AlreadyCancelled("a storno invoice cannot be cancelled")
	ErrInvoiceCancelled    = apperror.AlreadyCancelled("invoice is already cancelled")
	ErrInvoicePaid         = apperror.AlreadyPaid("invoice is already paid")
	ErrMonthlyExists       = apperror.Conflict("a monthly invoice for this business and period already exists")
	ErrMixedVATRates       = apperror.Validation("vat_rate", "pending commissions carry different vat rates and cannot share one invoice")
)
