package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	commissiondomain "github.com/smallbiznis/lokma/internal/commission/domain"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusOrdering  Status = "ordering"
	StatusPaying    Status = "paying"
	StatusClosed    Status = "closed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusActive:
		return StatusActive, true
	case StatusOrdering:
		return StatusOrdering, true
	case StatusPaying:
		return StatusPaying, true
	case StatusClosed:
		return StatusClosed, true
	case StatusCancelled:
		return StatusCancelled, true
	default:
		return "", false
	}
}

func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// CanTransition reports whether from -> to is an edge of the session
// lifecycle. Nothing leaves closed or cancelled.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusActive:
		return to == StatusOrdering || to == StatusCancelled
	case StatusOrdering:
		return to == StatusPaying || to == StatusCancelled
	case StatusPaying:
		return to == StatusClosed || to == StatusCancelled
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// WholeTable is the participant selector that settles the entire check.
const WholeTable = "whole-table"

const (
	PaymentModeSplit      = "split"
	PaymentModeWholeTable = "whole_table"
)

type Item struct {
	ProductID   string          `json:"product_id,omitempty"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	AddedAt     time.Time       `json:"added_at"`
}

type Participant struct {
	ID            string                         `json:"id"`
	UserID        string                         `json:"user_id,omitempty"`
	Name          string                         `json:"name"`
	IsHost        bool                           `json:"is_host,omitempty"`
	Items         []Item                         `json:"items"`
	Subtotal      decimal.Decimal                `json:"subtotal"`
	PaymentStatus PaymentStatus                  `json:"payment_status"`
	PaymentMethod commissiondomain.PaymentMethod `json:"payment_method,omitempty"`
	PaidAt        *time.Time                     `json:"paid_at,omitempty"`
	JoinedAt      time.Time                      `json:"joined_at"`
}

func (p Participant) Paid() bool {
	return p.PaymentStatus == PaymentPaid
}

// Session is a shared dine-in check. Participants live in one JSON column and
// every write bumps Version, so concurrent writers retry against a fresh copy.
type Session struct {
	ID           snowflake.ID                     `gorm:"primaryKey" json:"id"`
	BusinessID   string                           `gorm:"type:varchar(64);not null;index:ix_table_session_business_status" json:"business_id"`
	TableNumber  string                           `gorm:"type:text;not null" json:"table_number"`
	HostUserID   string                           `gorm:"type:varchar(128)" json:"host_user_id,omitempty"`
	OpenTable    *string                          `gorm:"type:varchar(200);uniqueIndex:ux_table_session_open_table" json:"-"`
	Status       Status                           `gorm:"type:varchar(32);not null;index:ix_table_session_business_status" json:"status"`
	Participants datatypes.JSONSlice[Participant] `json:"participants"`
	GrandTotal   decimal.Decimal                  `gorm:"type:decimal(12,2);not null" json:"grand_total"`
	PaidTotal    decimal.Decimal                  `gorm:"type:decimal(12,2);not null" json:"paid_total"`
	PaymentMode  string                           `gorm:"type:text" json:"payment_mode,omitempty"`
	OpenedBy     string                           `gorm:"type:text;not null" json:"opened_by"`
	CancelledBy  string                           `gorm:"type:text" json:"cancelled_by,omitempty"`
	CancelReason string                           `gorm:"type:text" json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time                       `json:"cancelled_at,omitempty"`
	ClosedAt     *time.Time                       `json:"closed_at,omitempty"`
	Version      int64                            `gorm:"not null;default:1" json:"version"`
	CreatedAt    time.Time                        `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time                        `gorm:"not null" json:"updated_at"`
}

func (Session) TableName() string { return "table_sessions" }

func (s *Session) Participant(id string) (*Participant, bool) {
	for i := range s.Participants {
		if s.Participants[i].ID == id {
			return &s.Participants[i], true
		}
	}
	return nil, false
}

// OpenTableKey identifies the table while the session is open and is nil
// once it is closed or cancelled. A unique index on it keeps one open
// session per table.
func (s *Session) OpenTableKey() *string {
	if s.Status.Terminal() {
		return nil
	}
	key := s.BusinessID + "/" + s.TableNumber
	return &key
}

// Outstanding is what remains to be collected on an open session.
func (s *Session) Outstanding() decimal.Decimal {
	rest := s.GrandTotal.Sub(s.PaidTotal)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// AggregatedItem is one line of the combined table order.
type AggregatedItem struct {
	ProductID   string          `json:"product_id,omitempty"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}
