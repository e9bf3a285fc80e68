package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lokma/internal/apperror"
	auditdomain "github.com/smallbiznis/lokma/internal/audit/domain"
	"github.com/smallbiznis/lokma/internal/clock"
	commissiondomain "github.com/smallbiznis/lokma/internal/commission/domain"
	"github.com/smallbiznis/lokma/internal/config"
	"github.com/smallbiznis/lokma/internal/lock"
	obscontext "github.com/smallbiznis/lokma/internal/observability/context"
	"github.com/smallbiznis/lokma/internal/observability/metrics"
	"github.com/smallbiznis/lokma/internal/tablesession/domain"
	"github.com/smallbiznis/lokma/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxWriteAttempts = 5
	tableLockTTL     = 5 * time.Second
	tableLockWait    = 2 * time.Second
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Billing *config.BillingConfigHolder
	Repo    domain.Repository
	Locker  *lock.Locker        `optional:"true"`
	Metrics *metrics.Metrics    `optional:"true"`
	Audit   auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	billing  *config.BillingConfigHolder
	repo     domain.Repository
	locker   *lock.Locker
	metrics  *metrics.Metrics
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("tablesession.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		billing:  p.Billing,
		repo:     p.Repo,
		locker:   p.Locker,
		metrics:  p.Metrics,
		auditSvc: p.Audit,
	}
}

func (s *Service) Open(ctx context.Context, req domain.OpenRequest) (*domain.Session, error) {
	businessID := strings.TrimSpace(req.BusinessID)
	if businessID == "" {
		return nil, domain.ErrInvalidBusinessID
	}
	table := strings.TrimSpace(req.TableNumber)
	if table == "" {
		return nil, domain.ErrInvalidTable
	}
	host := strings.TrimSpace(req.HostName)
	if host == "" {
		return nil, domain.ErrInvalidName
	}
	actor := actorOrSystem(ctx, req.Actor)
	hostUserID := strings.TrimSpace(req.HostUserID)

	var session *domain.Session
	key := fmt.Sprintf("lokma:table-session:%s:%s", businessID, table)
	err := s.locker.WithLock(ctx, key, tableLockTTL, tableLockWait, func(ctx context.Context) error {
		occupied, err := s.repo.ExistsOpenForTable(ctx, s.db, businessID, table)
		if err != nil {
			return err
		}
		if occupied {
			return domain.ErrTableOccupied
		}

		now := s.clock.Now()
		session = &domain.Session{
			ID:          s.genID.Generate(),
			BusinessID:  businessID,
			TableNumber: table,
			HostUserID:  hostUserID,
			Status:      domain.StatusActive,
			Participants: []domain.Participant{{
				ID:            s.genID.Generate().String(),
				UserID:        hostUserID,
				Name:          host,
				IsHost:        true,
				Items:         []domain.Item{},
				PaymentStatus: domain.PaymentPending,
				JoinedAt:      now,
			}},
			OpenedBy:  actor,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		domain.Recalculate(session)
		return s.repo.Insert(ctx, s.db, session)
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) || db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrTableOccupied
		}
		return nil, err
	}

	s.recordAudit(ctx, session, "table_session.opened", actor, nil, map[string]any{
		"table_number": session.TableNumber,
		"host":         host,
	})
	return session, nil
}

func (s *Service) Join(ctx context.Context, req domain.JoinRequest) (*domain.Session, *domain.Participant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, nil, domain.ErrInvalidName
	}

	userID := strings.TrimSpace(req.UserID)

	participantID := s.genID.Generate().String()
	session, err := s.mutate(ctx, req.SessionID, func(session *domain.Session, now time.Time) error {
		if session.Status != domain.StatusActive && session.Status != domain.StatusOrdering {
			return apperror.InvalidTransition(string(session.Status), "join")
		}
		// A known user rejoining keeps their seat and items.
		if userID != "" {
			for _, existing := range session.Participants {
				if existing.UserID == userID {
					participantID = existing.ID
					return nil
				}
			}
		}
		session.Participants = append(session.Participants, domain.Participant{
			ID:            participantID,
			UserID:        userID,
			Name:          name,
			Items:         []domain.Item{},
			PaymentStatus: domain.PaymentPending,
			JoinedAt:      now,
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	participant, _ := session.Participant(participantID)
	return session, participant, nil
}

func (s *Service) AddItems(ctx context.Context, req domain.AddItemsRequest) (*domain.Session, error) {
	if len(req.Items) == 0 {
		return nil, domain.ErrInvalidItem
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.ProductName) == "" || item.Quantity <= 0 || item.UnitPrice.IsNegative() {
			return nil, domain.ErrInvalidItem
		}
	}
	participantID := strings.TrimSpace(req.ParticipantID)

	return s.mutate(ctx, req.SessionID, func(session *domain.Session, now time.Time) error {
		if session.Status != domain.StatusActive && session.Status != domain.StatusOrdering {
			return apperror.InvalidTransition(string(session.Status), "add_items")
		}
		participant, ok := session.Participant(participantID)
		if !ok {
			return domain.ErrParticipantNotFound
		}
		if participant.Paid() {
			return domain.ErrParticipantPaid
		}
		for _, input := range req.Items {
			unit := input.UnitPrice.Round(2)
			participant.Items = append(participant.Items, domain.Item{
				ProductID:   strings.TrimSpace(input.ProductID),
				ProductName: strings.TrimSpace(input.ProductName),
				Quantity:    input.Quantity,
				UnitPrice:   unit,
				TotalPrice:  unit.Mul(decimal.NewFromInt(input.Quantity)).Round(2),
				AddedAt:     now,
			})
		}
		return nil
	})
}

func (s *Service) Transition(ctx context.Context, req domain.TransitionRequest) (*domain.Session, error) {
	to, ok := domain.ParseStatus(string(req.To))
	if !ok {
		return nil, domain.ErrInvalidStatus
	}
	if to == domain.StatusCancelled {
		return s.Cancel(ctx, domain.CancelRequest{SessionID: req.SessionID, Actor: req.Actor})
	}

	var from domain.Status
	session, err := s.mutate(ctx, req.SessionID, func(session *domain.Session, now time.Time) error {
		if !domain.CanTransition(session.Status, to) {
			return apperror.InvalidTransition(string(session.Status), string(to))
		}
		if to == domain.StatusOrdering && !session.GrandTotal.IsPositive() {
			return domain.ErrNothingOrdered
		}
		from = session.Status
		session.Status = to
		if to == domain.StatusClosed {
			session.ClosedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if to == domain.StatusClosed {
		s.metrics.RecordTableSessionEnded(ctx, string(to))
	}
	s.recordAudit(ctx, session, "table_session.transition", actorOrSystem(ctx, req.Actor),
		map[string]any{"status": string(from)},
		map[string]any{"status": string(to)},
	)
	return session, nil
}

func (s *Service) ConfirmPayment(ctx context.Context, req domain.PaymentRequest) (*domain.Session, error) {
	method, ok := commissiondomain.ParsePaymentMethod(req.Method)
	if !ok {
		return nil, domain.ErrInvalidMethod
	}
	participantID := strings.TrimSpace(req.ParticipantID)
	if participantID == "" {
		return nil, domain.ErrParticipantNotFound
	}
	wholeTable := participantID == domain.WholeTable

	var before decimal.Decimal
	session, err := s.mutate(ctx, req.SessionID, func(session *domain.Session, now time.Time) error {
		if session.Status == domain.StatusCancelled {
			return apperror.InvalidTransition(string(session.Status), "payment")
		}
		before = session.PaidTotal

		if wholeTable {
			if domain.FullyPaid(*session) {
				return domain.ErrSessionPaid
			}
			if err := acceptsPayment(session); err != nil {
				return err
			}
			if !session.GrandTotal.IsPositive() {
				return domain.ErrNothingToPay
			}
			for i := range session.Participants {
				participant := &session.Participants[i]
				if participant.Paid() {
					continue
				}
				markPaid(participant, method, now)
			}
			session.PaymentMode = domain.PaymentModeWholeTable
			session.Status = domain.StatusClosed
			session.ClosedAt = &now
			return nil
		}

		participant, ok := session.Participant(participantID)
		if !ok {
			return domain.ErrParticipantNotFound
		}
		if participant.Paid() {
			return domain.ErrParticipantPaid
		}
		if err := acceptsPayment(session); err != nil {
			return err
		}
		if !participant.Subtotal.IsPositive() {
			return domain.ErrNothingToPay
		}
		markPaid(participant, method, now)
		if session.PaymentMode == "" {
			session.PaymentMode = domain.PaymentModeSplit
		}
		if session.Status == domain.StatusOrdering {
			session.Status = domain.StatusPaying
		}

		// Recalculate runs again in mutate; the close decision needs the
		// post-payment totals now.
		domain.Recalculate(session)
		if domain.FullyPaid(*session) {
			session.Status = domain.StatusClosed
			session.ClosedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	mode := domain.PaymentModeSplit
	if wholeTable {
		mode = domain.PaymentModeWholeTable
	}
	s.metrics.RecordTablePayment(ctx, mode, string(method))
	if session.Status == domain.StatusClosed {
		s.metrics.RecordTableSessionEnded(ctx, string(session.Status))
	}
	s.recordAudit(ctx, session, "table_session.payment", actorOrSystem(ctx, req.Actor),
		map[string]any{"paid_total": before.String()},
		map[string]any{
			"participant_id": participantID,
			"method":         string(method),
			"paid_total":     session.PaidTotal.String(),
			"grand_total":    session.GrandTotal.String(),
			"status":         string(session.Status),
		},
	)
	return session, nil
}

func (s *Service) Cancel(ctx context.Context, req domain.CancelRequest) (*domain.Session, error) {
	actor := actorOrSystem(ctx, req.Actor)
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = s.billing.Get().DefaultCancelReason
	}

	var from domain.Status
	session, err := s.mutate(ctx, req.SessionID, func(session *domain.Session, now time.Time) error {
		if !domain.CanTransition(session.Status, domain.StatusCancelled) {
			return apperror.InvalidTransition(string(session.Status), string(domain.StatusCancelled))
		}
		from = session.Status
		session.Status = domain.StatusCancelled
		session.CancelledBy = actor
		session.CancelReason = reason
		session.CancelledAt = &now
		session.ClosedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	writeOff := domain.WriteOff(*session)
	s.metrics.RecordTableSessionEnded(ctx, string(session.Status))
	s.recordAudit(ctx, session, "table_session.cancelled", actor,
		map[string]any{"status": string(from)},
		map[string]any{
			"status":    string(session.Status),
			"reason":    reason,
			"write_off": writeOff.String(),
		},
	)
	if writeOff.IsPositive() {
		s.log.Info("table session cancelled with open balance",
			zap.String("session_id", session.ID.String()),
			zap.String("write_off", writeOff.String()),
		)
	}
	return session, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Session, error) {
	sessionID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	session, err := s.repo.FindByID(ctx, s.db, sessionID, false)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *Service) Aggregate(ctx context.Context, id string) ([]domain.AggregatedItem, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return domain.AggregateItems(*session), nil
}

func (s *Service) ListOpen(ctx context.Context, businessID string) ([]domain.Session, error) {
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return nil, domain.ErrInvalidBusinessID
	}
	items, err := s.repo.ListOpen(ctx, s.db, businessID)
	if err != nil {
		return nil, err
	}
	sessions := make([]domain.Session, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		sessions = append(sessions, *item)
	}
	return sessions, nil
}

var errVersionConflict = errors.New("table_session_version_conflict")

// mutate loads the session under a row lock, applies fn and writes it back
// guarded by the version column. A lost version race reloads and reapplies
// fn; rule violations returned by fn are final.
func (s *Service) mutate(ctx context.Context, id string, fn func(session *domain.Session, now time.Time) error) (*domain.Session, error) {
	sessionID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		var updated *domain.Session
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			session, err := s.repo.FindByID(ctx, tx, sessionID, true)
			if err != nil {
				return err
			}
			if session == nil {
				return domain.ErrSessionNotFound
			}

			now := s.clock.Now()
			if err := fn(session, now); err != nil {
				return err
			}
			domain.Recalculate(session)

			expected := session.Version
			session.Version = expected + 1
			session.UpdatedAt = now
			affected, err := s.repo.Save(ctx, tx, session, expected)
			if err != nil {
				return err
			}
			if affected != 1 {
				return errVersionConflict
			}
			updated = session
			return nil
		})
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, errVersionConflict) {
			return nil, err
		}
		s.log.Debug("table session version conflict",
			zap.String("session_id", sessionID.String()),
			zap.Int("attempt", attempt),
		)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, domain.ErrConcurrentUpdate
}

// acceptsPayment enforces that money is taken only while ordering or paying.
func acceptsPayment(session *domain.Session) error {
	if session.Status == domain.StatusOrdering || session.Status == domain.StatusPaying {
		return nil
	}
	return apperror.InvalidTransition(string(session.Status), "payment")
}

func markPaid(participant *domain.Participant, method commissiondomain.PaymentMethod, now time.Time) {
	paidAt := now
	participant.PaymentStatus = domain.PaymentPaid
	participant.PaymentMethod = method
	participant.PaidAt = &paidAt
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidSessionID
	}
	return id, nil
}

func (s *Service) recordAudit(ctx context.Context, session *domain.Session, action, actor string, oldData, newData map[string]any) {
	if s.auditSvc == nil || session == nil {
		return
	}
	if err := s.auditSvc.Record(ctx, auditdomain.Entry{
		EntityType:  auditdomain.EntityTableSession,
		EntityID:    session.ID.String(),
		Action:      action,
		OldData:     oldData,
		NewData:     newData,
		PerformedBy: actor,
	}); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func actorOrSystem(ctx context.Context, actor string) string {
	if actor = strings.TrimSpace(actor); actor != "" {
		return actor
	}
	if actor = obscontext.ActorFromContext(ctx); actor != "" {
		return actor
	}
	return "system"
}
