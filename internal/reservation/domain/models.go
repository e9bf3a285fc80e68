package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, true
	case StatusConfirmed:
		return StatusConfirmed, true
	case StatusRejected:
		return StatusRejected, true
	case StatusCancelled:
		return StatusCancelled, true
	case StatusCompleted:
		return StatusCompleted, true
	default:
		return "", false
	}
}

// CanTransition reports whether a reservation may move from -> to.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusRejected || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCancelled || to == StatusCompleted
	default:
		return false
	}
}

type Reservation struct {
	ID            snowflake.ID             `gorm:"primaryKey" json:"id"`
	BusinessID    string                   `gorm:"type:varchar(64);not null;index:ix_reservation_business_time" json:"business_id"`
	CustomerName  string                   `gorm:"type:text;not null" json:"customer_name"`
	CustomerPhone string                   `gorm:"type:text" json:"customer_phone,omitempty"`
	PartySize     int                      `gorm:"not null" json:"party_size"`
	ReservedAt    time.Time                `gorm:"not null;index:ix_reservation_business_time" json:"reserved_at"`
	Note          string                   `gorm:"type:text" json:"note,omitempty"`
	Status        Status                   `gorm:"type:varchar(32);not null;index" json:"status"`
	TableCards    datatypes.JSONSlice[int] `json:"table_cards"`
	Reason        string                   `gorm:"type:text" json:"reason,omitempty"`
	DecidedBy     string                   `gorm:"type:text" json:"decided_by,omitempty"`
	DecidedAt     *time.Time               `json:"decided_at,omitempty"`
	CreatedBy     string                   `gorm:"type:text;not null" json:"created_by"`
	CreatedAt     time.Time                `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time                `gorm:"not null" json:"updated_at"`
}

func (Reservation) TableName() string { return "reservations" }

// TableCardClaim marks a physical table card as occupied by a confirmed
// reservation. The composite key makes a double assignment fail at insert.
type TableCardClaim struct {
	BusinessID    string       `gorm:"primaryKey;type:varchar(64)" json:"business_id"`
	Card          int          `gorm:"primaryKey;autoIncrement:false" json:"card"`
	ReservationID snowflake.ID `gorm:"not null;index" json:"reservation_id"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
}

func (TableCardClaim) TableName() string { return "table_card_claims" }
