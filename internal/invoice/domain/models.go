// Package domain contains persistence models for invoicing.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusFailed    InvoiceStatus = "failed"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusStorno    InvoiceStatus = "storno"
)

func ParseInvoiceStatus(raw string) (InvoiceStatus, bool) {
	status := InvoiceStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusFailed,
		InvoiceStatusCancelled, InvoiceStatusOverdue, InvoiceStatusStorno:
		return status, true
	default:
		return "", false
	}
}

// InvoiceKind records which billing event produced the invoice.
type InvoiceKind string

const (
	InvoiceKindManual  InvoiceKind = "manual"
	InvoiceKindMonthly InvoiceKind = "monthly"
	InvoiceKindStorno  InvoiceKind = "storno"
)

// Invoice is a numbered billing document. Once issued its monetary fields
// and number never change; corrections are separate storno invoices.
type Invoice struct {
	ID                  snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceNumber       int64           `gorm:"not null;uniqueIndex:ux_invoice_number" json:"invoice_number"`
	DisplayNumber       string          `gorm:"type:text;not null" json:"display_number"`
	Kind                InvoiceKind     `gorm:"type:text;not null" json:"kind"`
	BusinessID          string          `gorm:"type:varchar(64);index:ix_invoice_business_period" json:"business_id,omitempty"`
	CounterpartyName    string          `gorm:"type:text;not null" json:"counterparty_name"`
	CounterpartyAddress string          `gorm:"type:text" json:"counterparty_address"`
	Period              string          `gorm:"type:varchar(7);index:ix_invoice_business_period" json:"period"`
	Description         string          `gorm:"type:text" json:"description,omitempty"`
	Subtotal            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	TaxRateKey          string          `gorm:"type:text;not null" json:"tax_rate_key"`
	TaxRate             decimal.Decimal `gorm:"type:decimal(6,2);not null" json:"tax_rate"`
	TaxAmount           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax_amount"`
	GrandTotal          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"grand_total"`
	Status              InvoiceStatus   `gorm:"type:varchar(32);not null;index" json:"status"`
	IssueDate           time.Time       `gorm:"not null" json:"issue_date"`
	DueDate             time.Time       `gorm:"not null;index" json:"due_date"`
	PaidAt              *time.Time      `json:"paid_at,omitempty"`
	IsStorno            bool            `gorm:"not null" json:"is_storno"`
	StornoOf            *snowflake.ID   `gorm:"uniqueIndex:ux_invoice_storno_of" json:"storno_of,omitempty"`
	StornoOfNumber      *int64          `json:"storno_of_number,omitempty"`
	StornoInvoiceID     *snowflake.ID   `json:"storno_invoice_id,omitempty"`
	StornoInvoiceNumber *int64          `json:"storno_invoice_number,omitempty"`
	StornoReason        string          `gorm:"type:text" json:"storno_reason,omitempty"`
	CancelledAt         *time.Time      `json:"cancelled_at,omitempty"`
	CreatedBy           string          `gorm:"type:text;not null" json:"created_by"`
	Items               []InvoiceItem   `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
	CreatedAt           time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Open reports whether the invoice still expects payment.
func (i Invoice) Open() bool {
	switch i.Status {
	case InvoiceStatusPending, InvoiceStatusOverdue, InvoiceStatusFailed:
		return !i.IsStorno
	default:
		return false
	}
}

// InvoiceItem represents a line on an invoice.
type InvoiceItem struct {
	ID                 snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID          snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	Position           int             `gorm:"not null" json:"position"`
	Description        string          `gorm:"type:text;not null" json:"description"`
	Quantity           int64           `gorm:"not null" json:"quantity"`
	UnitPrice          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Amount             decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	CommissionRecordID *snowflake.ID   `gorm:"index" json:"commission_record_id,omitempty"`
	CreatedAt          time.Time       `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// InvoiceCounter is the single shared row the invoice sequence increments.
type InvoiceCounter struct {
	CounterKey string    `gorm:"primaryKey;type:varchar(64)"`
	Value      int64     `gorm:"not null;default:0"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (InvoiceCounter) TableName() string { return "invoice_counters" }

// StornoResult is the structured outcome of a storno attempt.
type StornoResult struct {
	Success             bool     `json:"success"`
	StornoInvoiceID     string   `json:"storno_invoice_id,omitempty"`
	StornoInvoiceNumber int64    `json:"storno_invoice_number,omitempty"`
	StornoDisplayNumber string   `json:"storno_display_number,omitempty"`
	Error               *ErrInfo `json:"error,omitempty"`
}

type ErrInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
