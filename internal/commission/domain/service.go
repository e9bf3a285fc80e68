package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lokma/internal/apperror"
	"gorm.io/gorm"
)

type ListFilter struct {
	BusinessID string
	Period     string
	Status     CollectionStatus
	Limit      int
}

type Service interface {
	// RecordOrder is write-once per order id; a redelivered event returns
	// the stored record with created=false.
	RecordOrder(ctx context.Context, event OrderEvent) (record *Record, created bool, err error)
	UpdateCollectionStatus(ctx context.Context, orderID string, status CollectionStatus) (*Record, error)
	MonthlySummary(ctx context.Context, businessID, period string) (Summary, error)
	List(ctx context.Context, filter ListFilter) ([]Record, error)
}

// Repository methods take the handle to run on so invoice creation can
// fold records into its own transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *Record) error
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*Record, error)
	CountForPlan(ctx context.Context, db *gorm.DB, businessID string, planID snowflake.ID) (int64, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Record, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, record *Record, from CollectionStatus) (int64, error)
	MarkInvoiced(ctx context.Context, db *gorm.DB, ids []snowflake.ID, invoiceID snowflake.ID, now time.Time) (int64, error)
	MarkInvoicePaid(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, now time.Time) (int64, error)
	ReleaseInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, now time.Time) (int64, error)
	InvoiceCancelled(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (bool, error)
	// LockBusiness serializes recording for one business until the
	// transaction ends.
	LockBusiness(ctx context.Context, db *gorm.DB, businessID string) error
}

var (
	ErrInvalidOrderID       = apperror.Validation("order_id", "order id is required")
	ErrInvalidBusinessID    = apperror.Validation("business_id", "business id is required")
	ErrInvalidOrderTotal    = apperror.Validation("order_total", "order total cannot be negative")
	ErrInvalidPaymentMethod = apperror.Validation("payment_method", "payment method must be card, stripe, cash or other")
	ErrInvalidStatus        = apperror.Validation("collection_status", "unknown collection status")
	ErrInvalidPeriod        = apperror.Validation("period", "period must be formatted YYYY-MM")
	ErrNotFound             = apperror.NotFound("commission")
	ErrBusinessNotFound     = apperror.NotFound("business")
	ErrStatusChanged        = apperror.Conflict("commission status changed concurrently")
	ErrInvoiceCancelled     = apperror.AlreadyCancelled("linked invoice was cancelled; the record returns to pending for rebilling")
)
