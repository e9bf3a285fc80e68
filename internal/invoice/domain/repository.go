package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	BusinessID string
	Period     string
	Status     *InvoiceStatus
	IsStorno   *bool
	DueBefore  *time.Time
	// BeforeNumber pages backwards through invoice numbers.
	BeforeNumber int64
	Limit        int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*Invoice, error)
	// UpdateStatus applies fields only while status is still one of from.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []InvoiceStatus, fields map[string]any) (int64, error)
	MarkOverdue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
	ExistsForPeriod(ctx context.Context, db *gorm.DB, kind InvoiceKind, businessID, period string) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Invoice, error)
}
