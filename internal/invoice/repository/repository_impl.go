package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lokma/internal/invoice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	stmt := db.WithContext(ctx)
	if err := stmt.Omit("Items").Create(invoice).Error; err != nil {
		return err
	}
	if len(invoice.Items) == 0 {
		return nil
	}
	return stmt.Create(&invoice.Items).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.Invoice, error) {
	var invoice domain.Invoice
	stmt := db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position asc")
	})
	if forUpdate {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := stmt.Where("id = ?", id).First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []domain.InvoiceStatus, fields map[string]any) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	return result.RowsAffected, result.Error
}

func (r *repo) MarkOverdue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("status = ? AND is_storno = ? AND due_date < ?", domain.InvoiceStatusPending, false, now).
		Updates(map[string]any{
			"status":     domain.InvoiceStatusOverdue,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

func (r *repo) ExistsForPeriod(ctx context.Context, db *gorm.DB, kind domain.InvoiceKind, businessID, period string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("kind = ? AND business_id = ? AND period = ? AND status <> ?", kind, businessID, period, domain.InvoiceStatusCancelled).
		Count(&count).Error
	return count > 0, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	stmt := db.WithContext(ctx).Model(&domain.Invoice{})
	if filter.BusinessID != "" {
		stmt = stmt.Where("business_id = ?", filter.BusinessID)
	}
	if filter.Period != "" {
		stmt = stmt.Where("period = ?", filter.Period)
	}
	if filter.Status != nil {
		stmt = stmt.Where("status = ?", *filter.Status)
	}
	if filter.IsStorno != nil {
		stmt = stmt.Where("is_storno = ?", *filter.IsStorno)
	}
	if filter.DueBefore != nil {
		stmt = stmt.Where("due_date < ?", *filter.DueBefore)
	}
	if filter.BeforeNumber > 0 {
		stmt = stmt.Where("invoice_number < ?", filter.BeforeNumber)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Order("invoice_number desc").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}
