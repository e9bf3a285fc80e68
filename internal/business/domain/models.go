package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Business is the billing counterparty. Name and address are copied onto
// every invoice at creation time so later edits never rewrite issued
// documents.
type Business struct {
	ID             string        `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name           string        `gorm:"type:text;not null" json:"name"`
	Address        string        `gorm:"type:text" json:"address"`
	VATID          string        `gorm:"column:vat_id;type:text" json:"vat_id,omitempty"`
	PlanID         *snowflake.ID `gorm:"index" json:"plan_id,omitempty"`
	PlanAssignedAt *time.Time    `json:"plan_assigned_at,omitempty"`
	CreatedAt      time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null" json:"updated_at"`
}

func (Business) TableName() string { return "businesses" }
