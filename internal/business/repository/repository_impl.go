package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/lokma/internal/business/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, business *domain.Business) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "address", "vat_id", "updated_at"}),
	}).Create(business).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Business, error) {
	var business domain.Business
	err := db.WithContext(ctx).Where("id = ?", id).First(&business).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &business, nil
}

func (r *repo) UpdatePlan(ctx context.Context, db *gorm.DB, business *domain.Business) error {
	return db.WithContext(ctx).Model(&domain.Business{}).
		Where("id = ?", business.ID).
		Updates(map[string]any{
			"plan_id":          business.PlanID,
			"plan_assigned_at": business.PlanAssignedAt,
			"updated_at":       business.UpdatedAt,
		}).Error
}
