package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lokma/internal/reservation/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, reservation *domain.Reservation) error {
	return db.WithContext(ctx).Create(reservation).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.Reservation, error) {
	var reservation domain.Reservation
	stmt := db.WithContext(ctx).Where("id = ?", id)
	if forUpdate {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := stmt.First(&reservation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reservation, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from domain.Status, fields map[string]any) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Reservation, error) {
	stmt := db.WithContext(ctx).Model(&domain.Reservation{})
	if businessID := strings.TrimSpace(filter.BusinessID); businessID != "" {
		stmt = stmt.Where("business_id = ?", businessID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		stmt = stmt.Where("reserved_at >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("reserved_at < ?", *filter.To)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var reservations []*domain.Reservation
	if err := stmt.Order("reserved_at asc").Order("id asc").Limit(limit).Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repo) ClaimedCards(ctx context.Context, db *gorm.DB, businessID string, cards []int) ([]int, error) {
	if len(cards) == 0 {
		return nil, nil
	}
	var claimed []int
	err := db.WithContext(ctx).
		Model(&domain.TableCardClaim{}).
		Where("business_id = ? AND card IN ?", businessID, cards).
		Order("card asc").
		Pluck("card", &claimed).Error
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *repo) InsertClaims(ctx context.Context, db *gorm.DB, claims []domain.TableCardClaim) error {
	if len(claims) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&claims).Error
}

func (r *repo) ReleaseClaims(ctx context.Context, db *gorm.DB, reservationID snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Delete(&domain.TableCardClaim{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) ListClaims(ctx context.Context, db *gorm.DB, businessID string) ([]domain.TableCardClaim, error) {
	var claims []domain.TableCardClaim
	err := db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("card asc").
		Find(&claims).Error
	if err != nil {
		return nil, err
	}
	return claims, nil
}
