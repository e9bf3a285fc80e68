package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, business *Business) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Business, error)
	UpdatePlan(ctx context.Context, db *gorm.DB, business *Business) error
}
