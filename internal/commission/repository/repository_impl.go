package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	businessdomain "github.com/smallbiznis/lokma/internal/business/domain"
	"github.com/smallbiznis/lokma/internal/commission/domain"
	invoicedomain "github.com/smallbiznis/lokma/internal/invoice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxListLimit = 500

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.Record) error {
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.Record, error) {
	var record domain.Record
	err := db.WithContext(ctx).Where("order_id = ?", orderID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repo) CountForPlan(ctx context.Context, db *gorm.DB, businessID string, planID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Record{}).
		Where("business_id = ? AND plan_id = ?", businessID, planID).
		Count(&count).Error
	return count, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Record, error) {
	var records []*domain.Record
	stmt := db.WithContext(ctx).Model(&domain.Record{})
	if filter.BusinessID != "" {
		stmt = stmt.Where("business_id = ?", filter.BusinessID)
	}
	if filter.Period != "" {
		stmt = stmt.Where("period = ?", filter.Period)
	}
	if filter.Status != "" {
		stmt = stmt.Where("collection_status = ?", filter.Status)
	}
	if filter.Limit > 0 && filter.Limit <= maxListLimit {
		stmt = stmt.Limit(filter.Limit)
	}
	err := stmt.Order("order_created_at asc, id asc").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// UpdateStatus flips collection_status only if it still equals from.
func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, record *domain.Record, from domain.CollectionStatus) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.Record{}).
		Where("id = ? AND collection_status = ?", record.ID, from).
		Updates(map[string]any{
			"collection_status": record.CollectionStatus,
			"updated_at":        record.UpdatedAt,
		})
	return result.RowsAffected, result.Error
}

func (r *repo) MarkInvoiced(ctx context.Context, db *gorm.DB, ids []snowflake.ID, invoiceID snowflake.ID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).
		Model(&domain.Record{}).
		Where("id IN ? AND collection_status = ?", ids, domain.CollectionPending).
		Updates(map[string]any{
			"collection_status": domain.CollectionInvoiced,
			"invoice_id":        invoiceID,
			"updated_at":        now,
		})
	return result.RowsAffected, result.Error
}

func (r *repo) MarkInvoicePaid(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.Record{}).
		Where("invoice_id = ? AND collection_status = ?", invoiceID, domain.CollectionInvoiced).
		Updates(map[string]any{
			"collection_status": domain.CollectionPaid,
			"updated_at":        now,
		})
	return result.RowsAffected, result.Error
}

// ReleaseInvoice hands records billed on a cancelled invoice back to
// pending. Paid records stay paid.
func (r *repo) ReleaseInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.Record{}).
		Where("invoice_id = ? AND collection_status = ?", invoiceID, domain.CollectionInvoiced).
		Updates(map[string]any{
			"collection_status": domain.CollectionPending,
			"invoice_id":        nil,
			"updated_at":        now,
		})
	return result.RowsAffected, result.Error
}

func (r *repo) InvoiceCancelled(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ? AND status = ?", invoiceID, invoicedomain.InvoiceStatusCancelled).
		Count(&count).Error
	return count > 0, err
}

func (r *repo) LockBusiness(ctx context.Context, db *gorm.DB, businessID string) error {
	var business businessdomain.Business
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", businessID).
		Take(&business).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrBusinessNotFound
	}
	return err
}
