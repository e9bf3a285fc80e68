package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Entity types written by the bookkeeping services.
const (
	EntityInvoice      = "invoice"
	EntityCommission   = "commission"
	EntityTableSession = "table_session"
	EntityReservation  = "reservation"
	EntityPlan         = "plan"
)

// AuditLog is an append-only record of a state change.
type AuditLog struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	EntityType  string            `gorm:"type:varchar(64);not null;index:ix_audit_entity" json:"entity_type"`
	EntityID    string            `gorm:"type:varchar(128);not null;index:ix_audit_entity" json:"entity_id"`
	Action      string            `gorm:"type:text;not null" json:"action"`
	OldData     datatypes.JSONMap `json:"old_data,omitempty"`
	NewData     datatypes.JSONMap `json:"new_data,omitempty"`
	PerformedBy string            `gorm:"type:text;not null" json:"performed_by"`
	RequestID   *string           `gorm:"type:text" json:"request_id,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
