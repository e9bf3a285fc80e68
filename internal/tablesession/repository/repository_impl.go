package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lokma/internal/tablesession/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var openStatuses = []domain.Status{
	domain.StatusActive,
	domain.StatusOrdering,
	domain.StatusPaying,
}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, session *domain.Session) error {
	session.OpenTable = session.OpenTableKey()
	return db.WithContext(ctx).Create(session).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.Session, error) {
	var session domain.Session
	stmt := db.WithContext(ctx).Where("id = ?", id)
	if forUpdate {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := stmt.First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, session *domain.Session, expected int64) (int64, error) {
	session.OpenTable = session.OpenTableKey()
	result := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ? AND version = ?", session.ID, expected).
		Updates(map[string]any{
			"status":        session.Status,
			"open_table":    session.OpenTable,
			"participants":  session.Participants,
			"grand_total":   session.GrandTotal,
			"paid_total":    session.PaidTotal,
			"payment_mode":  session.PaymentMode,
			"cancelled_by":  session.CancelledBy,
			"cancel_reason": session.CancelReason,
			"cancelled_at":  session.CancelledAt,
			"closed_at":     session.ClosedAt,
			"version":       session.Version,
			"updated_at":    session.UpdatedAt,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) ExistsOpenForTable(ctx context.Context, db *gorm.DB, businessID, tableNumber string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("business_id = ? AND table_number = ? AND status IN ?", businessID, tableNumber, openStatuses).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) ListOpen(ctx context.Context, db *gorm.DB, businessID string) ([]*domain.Session, error) {
	var sessions []*domain.Session
	err := db.WithContext(ctx).
		Where("business_id = ? AND status IN ?", businessID, openStatuses).
		Order("created_at asc").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
