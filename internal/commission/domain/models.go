package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	plandomain "github.com/smallbiznis/lokma/internal/plan/domain"
)

type PaymentMethod string

const (
	PaymentCard   PaymentMethod = "card"
	PaymentStripe PaymentMethod = "stripe"
	PaymentCash   PaymentMethod = "cash"
	PaymentOther  PaymentMethod = "other"
)

func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(raw))) {
	case PaymentCard:
		return PaymentCard, true
	case PaymentStripe:
		return PaymentStripe, true
	case PaymentCash:
		return PaymentCash, true
	case PaymentOther:
		return PaymentOther, true
	default:
		return "", false
	}
}

// SettledByProcessor reports whether the platform already deducted its cut
// from the payment processor payout.
func (m PaymentMethod) SettledByProcessor() bool {
	return m == PaymentCard || m == PaymentStripe
}

type CollectionStatus string

const (
	CollectionAutoCollected CollectionStatus = "auto_collected"
	CollectionPending       CollectionStatus = "pending"
	CollectionInvoiced      CollectionStatus = "invoiced"
	CollectionPaid          CollectionStatus = "paid"
)

func ParseCollectionStatus(raw string) (CollectionStatus, bool) {
	switch CollectionStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case CollectionAutoCollected:
		return CollectionAutoCollected, true
	case CollectionPending:
		return CollectionPending, true
	case CollectionInvoiced:
		return CollectionInvoiced, true
	case CollectionPaid:
		return CollectionPaid, true
	default:
		return "", false
	}
}

// CanTransitionCollection allows pending -> invoiced -> paid and the
// pending -> paid shortcut for cash settled by hand.
func CanTransitionCollection(from, to CollectionStatus) bool {
	switch from {
	case CollectionPending:
		return to == CollectionInvoiced || to == CollectionPaid
	case CollectionInvoiced:
		return to == CollectionPaid
	default:
		return false
	}
}

// OrderEvent is the inbound billable-order notification.
type OrderEvent struct {
	OrderID       string                 `json:"order_id" binding:"required"`
	BusinessID    string                 `json:"business_id" binding:"required"`
	OrderTotal    decimal.Decimal        `json:"order_total"`
	CourierType   plandomain.CourierType `json:"courier_type" binding:"required"`
	PaymentMethod PaymentMethod          `json:"payment_method" binding:"required"`
	CreatedAt     time.Time              `json:"created_at"`
}

// Record is the commission owed on one completed order. Everything except
// CollectionStatus and InvoiceID is fixed at creation.
type Record struct {
	ID               snowflake.ID           `gorm:"primaryKey" json:"id"`
	OrderID          string                 `gorm:"type:varchar(128);not null;uniqueIndex" json:"order_id"`
	BusinessID       string                 `gorm:"type:varchar(64);not null;index:ix_commission_business_period;index:ix_commission_business_plan" json:"business_id"`
	Period           string                 `gorm:"type:char(7);not null;index:ix_commission_business_period" json:"period"`
	PlanID           snowflake.ID           `gorm:"not null;index:ix_commission_business_plan" json:"plan_id"`
	PlanName         string                 `gorm:"type:text;not null" json:"plan_name"`
	OrderTotal       decimal.Decimal        `gorm:"type:decimal(12,2);not null" json:"order_total"`
	CourierType      plandomain.CourierType `gorm:"type:text;not null" json:"courier_type"`
	PaymentMethod    PaymentMethod          `gorm:"type:text;not null" json:"payment_method"`
	CommissionRate   decimal.Decimal        `gorm:"type:decimal(8,4);not null" json:"commission_rate"`
	CommissionAmount decimal.Decimal        `gorm:"type:decimal(12,2);not null" json:"commission_amount"`
	PerOrderFee      decimal.Decimal        `gorm:"type:decimal(12,2);not null" json:"per_order_fee"`
	NetCommission    decimal.Decimal        `gorm:"type:decimal(12,2);not null" json:"net_commission"`
	VATRate          decimal.Decimal        `gorm:"type:decimal(6,4);not null" json:"vat_rate"`
	VATAmount        decimal.Decimal        `gorm:"type:decimal(12,2);not null" json:"vat_amount"`
	TotalCommission  decimal.Decimal        `gorm:"type:decimal(12,2);not null" json:"total_commission"`
	FreeOrder        bool                   `gorm:"not null" json:"free_order"`
	CollectionStatus CollectionStatus       `gorm:"type:varchar(32);not null;index" json:"collection_status"`
	InvoiceID        *snowflake.ID          `gorm:"index" json:"invoice_id,omitempty"`
	OrderCreatedAt   time.Time              `gorm:"not null" json:"order_created_at"`
	CreatedAt        time.Time              `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time              `gorm:"not null" json:"updated_at"`
}

func (Record) TableName() string { return "commission_records" }

// Summary rolls up one business's records for a period.
type Summary struct {
	BusinessID       string                               `json:"business_id"`
	Period           string                               `json:"period"`
	OrderCount       int                                  `json:"order_count"`
	FreeOrderCount   int                                  `json:"free_order_count"`
	GrossOrderTotal  decimal.Decimal                      `json:"gross_order_total"`
	CommissionAmount decimal.Decimal                      `json:"commission_amount"`
	PerOrderFees     decimal.Decimal                      `json:"per_order_fees"`
	NetCommission    decimal.Decimal                      `json:"net_commission"`
	VATAmount        decimal.Decimal                      `json:"vat_amount"`
	TotalCommission  decimal.Decimal                      `json:"total_commission"`
	ByStatus         map[CollectionStatus]decimal.Decimal `json:"by_status"`
	ByCourier        map[plandomain.CourierType]int       `json:"by_courier"`
}

// Outstanding is what the business still owes: pending plus invoiced.
func (s Summary) Outstanding() decimal.Decimal {
	return s.ByStatus[CollectionPending].Add(s.ByStatus[CollectionInvoiced])
}
