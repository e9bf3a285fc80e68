package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Entry is what a caller hands to the sink.
type Entry struct {
	EntityType  string
	EntityID    string
	Action      string
	OldData     map[string]any
	NewData     map[string]any
	PerformedBy string
}

// ListRequest filters the trail. Empty fields match everything; Since is
// inclusive.
type ListRequest struct {
	EntityType  string
	EntityID    string
	Action      string
	PerformedBy string
	Since       *time.Time
	Limit       int
}

// Service is the outbound audit sink. Record failures are reported but
// callers must not fail the primary operation on them.
type Service interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, req ListRequest) ([]AuditLog, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, req ListRequest) ([]*AuditLog, error)
}

var (
	ErrInvalidAction = errors.New("invalid_action")
	ErrInvalidEntity = errors.New("invalid_entity")
)
