package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/lokma/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

// List returns the newest entries first.
func (r *repo) List(ctx context.Context, db *gorm.DB, req domain.ListRequest) ([]*domain.AuditLog, error) {
	match := map[string]any{}
	for column, value := range map[string]string{
		"entity_type":  req.EntityType,
		"entity_id":    req.EntityID,
		"action":       req.Action,
		"performed_by": req.PerformedBy,
	} {
		if value = strings.TrimSpace(value); value != "" {
			match[column] = value
		}
	}

	stmt := db.WithContext(ctx).Model(&domain.AuditLog{})
	if len(match) > 0 {
		stmt = stmt.Where(match)
	}
	if req.Since != nil {
		stmt = stmt.Where("created_at >= ?", req.Since.UTC())
	}
	if req.Limit > 0 {
		stmt = stmt.Limit(req.Limit)
	}

	var logs []*domain.AuditLog
	if err := stmt.Order("created_at desc").Order("id desc").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
