package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lokma/internal/apperror"
	"gorm.io/gorm"
)

type CreateRequest struct {
	BusinessID    string    `json:"business_id" binding:"required"`
	CustomerName  string    `json:"customer_name" binding:"required"`
	CustomerPhone string    `json:"customer_phone"`
	PartySize     int       `json:"party_size" binding:"gte=1"`
	ReservedAt    time.Time `json:"reserved_at" binding:"required"`
	Note          string    `json:"note"`
	Actor         string    `json:"-"`
}

type ConfirmRequest struct {
	ID    string `json:"-"`
	Cards []int  `json:"table_cards" binding:"required,min=1,dive,gte=1"`
	Actor string `json:"-"`
}

// DecisionRequest carries a reject, cancel or complete call.
type DecisionRequest struct {
	ID     string `json:"-"`
	Reason string `json:"reason"`
	Actor  string `json:"-"`
}

type ListFilter struct {
	BusinessID string
	Status     Status
	From       *time.Time
	To         *time.Time
	Limit      int
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Reservation, error)
	// Confirm assigns table cards atomically; a card held by another
	// confirmed reservation of the same business fails with Conflict.
	Confirm(ctx context.Context, req ConfirmRequest) (*Reservation, error)
	Reject(ctx context.Context, req DecisionRequest) (*Reservation, error)
	Cancel(ctx context.Context, req DecisionRequest) (*Reservation, error)
	Complete(ctx context.Context, req DecisionRequest) (*Reservation, error)
	Get(ctx context.Context, id string) (*Reservation, error)
	List(ctx context.Context, filter ListFilter) ([]Reservation, error)
	OccupiedCards(ctx context.Context, businessID string) ([]int, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, reservation *Reservation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*Reservation, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from Status, fields map[string]any) (int64, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Reservation, error)
	ClaimedCards(ctx context.Context, db *gorm.DB, businessID string, cards []int) ([]int, error)
	InsertClaims(ctx context.Context, db *gorm.DB, claims []TableCardClaim) error
	ReleaseClaims(ctx context.Context, db *gorm.DB, reservationID snowflake.ID) (int64, error)
	ListClaims(ctx context.Context, db *gorm.DB, businessID string) ([]TableCardClaim, error)
}

var (
	ErrInvalidID         = apperror.Validation("reservation_id", "invalid reservation id")
	ErrInvalidBusinessID = apperror.Validation("business_id", "business id is required")
	ErrInvalidCustomer   = apperror.Validation("customer_name", "customer name is required")
	ErrInvalidPartySize  = apperror.Validation("party_size", "party size must be at least 1")
	ErrInvalidTime       = apperror.Validation("reserved_at", "reservation time is required")
	ErrInvalidCards      = apperror.Validation("table_cards", "table cards must be distinct positive numbers")
	ErrNotFound          = apperror.NotFound("reservation")
	ErrStatusChanged     = apperror.Conflict("reservation status changed concurrently")
)
