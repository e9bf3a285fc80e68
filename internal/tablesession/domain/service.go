package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lokma/internal/apperror"
	"gorm.io/gorm"
)

type OpenRequest struct {
	BusinessID  string `json:"business_id" binding:"required"`
	TableNumber string `json:"table_number" binding:"required"`
	HostName    string `json:"host_name" binding:"required"`
	HostUserID  string `json:"host_user_id"`
	Actor       string `json:"-"`
}

type JoinRequest struct {
	SessionID string `json:"-"`
	Name      string `json:"name" binding:"required"`
	UserID    string `json:"user_id"`
}

type ItemInput struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name" binding:"required"`
	Quantity    int64           `json:"quantity" binding:"gte=1"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type AddItemsRequest struct {
	SessionID     string      `json:"-"`
	ParticipantID string      `json:"participant_id" binding:"required"`
	Items         []ItemInput `json:"items" binding:"required,min=1,dive"`
}

type TransitionRequest struct {
	SessionID string `json:"-"`
	To        Status `json:"to" binding:"required"`
	Actor     string `json:"-"`
}

// PaymentRequest settles one participant, or the whole check when
// ParticipantID is WholeTable.
type PaymentRequest struct {
	SessionID     string `json:"-"`
	ParticipantID string `json:"participant_id" binding:"required"`
	Method        string `json:"method" binding:"required"`
	Actor         string `json:"-"`
}

type CancelRequest struct {
	SessionID string `json:"-"`
	Reason    string `json:"reason"`
	Actor     string `json:"-"`
}

type Service interface {
	Open(ctx context.Context, req OpenRequest) (*Session, error)
	Join(ctx context.Context, req JoinRequest) (*Session, *Participant, error)
	AddItems(ctx context.Context, req AddItemsRequest) (*Session, error)
	Transition(ctx context.Context, req TransitionRequest) (*Session, error)
	ConfirmPayment(ctx context.Context, req PaymentRequest) (*Session, error)
	Cancel(ctx context.Context, req CancelRequest) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Aggregate(ctx context.Context, id string) ([]AggregatedItem, error)
	ListOpen(ctx context.Context, businessID string) ([]Session, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, session *Session) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*Session, error)
	// Save writes session only if the stored version still equals expected.
	Save(ctx context.Context, db *gorm.DB, session *Session, expected int64) (int64, error)
	ExistsOpenForTable(ctx context.Context, db *gorm.DB, businessID, tableNumber string) (bool, error)
	ListOpen(ctx context.Context, db *gorm.DB, businessID string) ([]*Session, error)
}

var (
	ErrInvalidSessionID    = apperror.Validation("session_id", "invalid session id")
	ErrInvalidBusinessID   = apperror.Validation("business_id", "business id is required")
	ErrInvalidTable        = apperror.Validation("table_number", "table number is required")
	ErrInvalidName         = apperror.Validation("name", "participant name is required")
	ErrInvalidItem         = apperror.Validation("items", "items need a product name, a positive quantity and a non-negative unit price")
	ErrInvalidMethod       = apperror.Validation("method", "payment method must be card, stripe, cash or other")
	ErrInvalidStatus       = apperror.Validation("to", "unknown session status")
	ErrNothingOrdered      = apperror.Validation("items", "no items have been ordered yet")
	ErrNothingToPay        = apperror.Validation("participant_id", "participant has no items to pay")
	ErrSessionNotFound     = apperror.NotFound("table_session")
	ErrParticipantNotFound = apperror.NotFound("participant")
	ErrParticipantPaid     = apperror.AlreadyPaid("participant has already paid")
	ErrSessionPaid         = apperror.AlreadyPaid("table has already been paid")
	ErrTableOccupied       = apperror.Conflict("table already has an open session")
	ErrConcurrentUpdate    = apperror.Conflict("table session was modified concurrently, retry")
)
