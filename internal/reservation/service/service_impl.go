package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lokma/internal/apperror"
	auditdomain "github.com/smallbiznis/lokma/internal/audit/domain"
	"github.com/smallbiznis/lokma/internal/clock"
	"github.com/smallbiznis/lokma/internal/lock"
	obscontext "github.com/smallbiznis/lokma/internal/observability/context"
	"github.com/smallbiznis/lokma/internal/reservation/domain"
	"github.com/smallbiznis/lokma/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	cardLockTTL  = 10 * time.Second
	cardLockWait = 3 * time.Second
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   domain.Repository
	Locker *lock.Locker        `optional:"true"`
	Audit  auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	locker   *lock.Locker
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("reservation.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		locker:   p.Locker,
		auditSvc: p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Reservation, error) {
	businessID := strings.TrimSpace(req.BusinessID)
	if businessID == "" {
		return nil, domain.ErrInvalidBusinessID
	}
	customer := strings.TrimSpace(req.CustomerName)
	if customer == "" {
		return nil, domain.ErrInvalidCustomer
	}
	if req.PartySize < 1 {
		return nil, domain.ErrInvalidPartySize
	}
	if req.ReservedAt.IsZero() {
		return nil, domain.ErrInvalidTime
	}

	now := s.clock.Now()
	reservation := &domain.Reservation{
		ID:            s.genID.Generate(),
		BusinessID:    businessID,
		CustomerName:  customer,
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		PartySize:     req.PartySize,
		ReservedAt:    req.ReservedAt.UTC(),
		Note:          strings.TrimSpace(req.Note),
		Status:        domain.StatusPending,
		TableCards:    []int{},
		CreatedBy:     actorOrSystem(ctx, req.Actor),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, s.db, reservation); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, reservation, "reservation.created", reservation.CreatedBy, nil, map[string]any{
		"party_size":  reservation.PartySize,
		"reserved_at": reservation.ReservedAt.Format(time.RFC3339),
	})
	return reservation, nil
}

func (s *Service) Confirm(ctx context.Context, req domain.ConfirmRequest) (*domain.Reservation, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	cards, err := normalizeCards(req.Cards)
	if err != nil {
		return nil, err
	}
	actor := actorOrSystem(ctx, req.Actor)

	current, err := s.repo.FindByID(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrNotFound
	}

	var confirmed *domain.Reservation
	key := "lokma:table-cards:" + current.BusinessID
	err = s.locker.WithLock(ctx, key, cardLockTTL, cardLockWait, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			reservation, err := s.repo.FindByID(ctx, tx, id, true)
			if err != nil {
				return err
			}
			if reservation == nil {
				return domain.ErrNotFound
			}
			if !domain.CanTransition(reservation.Status, domain.StatusConfirmed) {
				return apperror.InvalidTransition(string(reservation.Status), string(domain.StatusConfirmed))
			}

			claimed, err := s.repo.ClaimedCards(ctx, tx, reservation.BusinessID, cards)
			if err != nil {
				return err
			}
			if len(claimed) > 0 {
				return cardsTaken(claimed)
			}

			now := s.clock.Now()
			claims := make([]domain.TableCardClaim, 0, len(cards))
			for _, card := range cards {
				claims = append(claims, domain.TableCardClaim{
					BusinessID:    reservation.BusinessID,
					Card:          card,
					ReservationID: reservation.ID,
					CreatedAt:     now,
				})
			}
			if err := s.repo.InsertClaims(ctx, tx, claims); err != nil {
				if db.IsDuplicateKeyErr(err) {
					return apperror.Conflict("table cards were assigned concurrently")
				}
				return err
			}

			affected, err := s.repo.UpdateStatus(ctx, tx, reservation.ID, domain.StatusPending, map[string]any{
				"status":      domain.StatusConfirmed,
				"table_cards": datatypes.JSONSlice[int](cards),
				"decided_by":  actor,
				"decided_at":  now,
				"updated_at":  now,
			})
			if err != nil {
				return err
			}
			if affected == 0 {
				return domain.ErrStatusChanged
			}

			reservation.Status = domain.StatusConfirmed
			reservation.TableCards = cards
			reservation.DecidedBy = actor
			reservation.DecidedAt = &now
			reservation.UpdatedAt = now
			confirmed = reservation
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, apperror.Conflict("table cards are being assigned, retry")
		}
		return nil, err
	}

	s.recordAudit(ctx, confirmed, "reservation.confirmed", actor,
		map[string]any{"status": string(domain.StatusPending)},
		map[string]any{"status": string(confirmed.Status), "table_cards": cards},
	)
	return confirmed, nil
}

func (s *Service) Reject(ctx context.Context, req domain.DecisionRequest) (*domain.Reservation, error) {
	return s.decide(ctx, req, domain.StatusRejected)
}

func (s *Service) Cancel(ctx context.Context, req domain.DecisionRequest) (*domain.Reservation, error) {
	return s.decide(ctx, req, domain.StatusCancelled)
}

func (s *Service) Complete(ctx context.Context, req domain.DecisionRequest) (*domain.Reservation, error) {
	return s.decide(ctx, req, domain.StatusCompleted)
}

// decide moves a reservation into a final status and frees its table cards
// in the same transaction.
func (s *Service) decide(ctx context.Context, req domain.DecisionRequest, to domain.Status) (*domain.Reservation, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	actor := actorOrSystem(ctx, req.Actor)
	reason := strings.TrimSpace(req.Reason)

	var (
		updated  *domain.Reservation
		from     domain.Status
		released int64
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reservation, err := s.repo.FindByID(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if reservation == nil {
			return domain.ErrNotFound
		}
		if !domain.CanTransition(reservation.Status, to) {
			return apperror.InvalidTransition(string(reservation.Status), string(to))
		}

		now := s.clock.Now()
		fields := map[string]any{
			"status":     to,
			"decided_by": actor,
			"decided_at": now,
			"updated_at": now,
		}
		if reason != "" {
			fields["reason"] = reason
		}
		affected, err := s.repo.UpdateStatus(ctx, tx, reservation.ID, reservation.Status, fields)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrStatusChanged
		}
		released, err = s.repo.ReleaseClaims(ctx, tx, reservation.ID)
		if err != nil {
			return err
		}

		from = reservation.Status
		reservation.Status = to
		if reason != "" {
			reservation.Reason = reason
		}
		reservation.DecidedBy = actor
		reservation.DecidedAt = &now
		reservation.UpdatedAt = now
		updated = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, updated, "reservation."+string(to), actor,
		map[string]any{"status": string(from)},
		map[string]any{"status": string(to), "reason": reason, "released_cards": released},
	)
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Reservation, error) {
	reservationID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	reservation, err := s.repo.FindByID(ctx, s.db, reservationID, false)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, domain.ErrNotFound
	}
	return reservation, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]domain.Reservation, error) {
	if strings.TrimSpace(filter.BusinessID) == "" {
		return nil, domain.ErrInvalidBusinessID
	}
	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	reservations := make([]domain.Reservation, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		reservations = append(reservations, *item)
	}
	return reservations, nil
}

func (s *Service) OccupiedCards(ctx context.Context, businessID string) ([]int, error) {
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return nil, domain.ErrInvalidBusinessID
	}
	claims, err := s.repo.ListClaims(ctx, s.db, businessID)
	if err != nil {
		return nil, err
	}
	cards := make([]int, 0, len(claims))
	for _, claim := range claims {
		cards = append(cards, claim.Card)
	}
	return cards, nil
}

func normalizeCards(raw []int) ([]int, error) {
	if len(raw) == 0 {
		return nil, domain.ErrInvalidCards
	}
	seen := make(map[int]struct{}, len(raw))
	cards := make([]int, 0, len(raw))
	for _, card := range raw {
		if card <= 0 {
			return nil, domain.ErrInvalidCards
		}
		if _, dup := seen[card]; dup {
			return nil, domain.ErrInvalidCards
		}
		seen[card] = struct{}{}
		cards = append(cards, card)
	}
	sort.Ints(cards)
	return cards, nil
}

func cardsTaken(cards []int) error {
	parts := make([]string, 0, len(cards))
	for _, card := range cards {
		parts = append(parts, strconv.Itoa(card))
	}
	return apperror.Conflict(fmt.Sprintf("table cards already assigned: %s", strings.Join(parts, ", ")))
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func (s *Service) recordAudit(ctx context.Context, reservation *domain.Reservation, action, actor string, oldData, newData map[string]any) {
	if s.auditSvc == nil || reservation == nil {
		return
	}
	if err := s.auditSvc.Record(ctx, auditdomain.Entry{
		EntityType:  auditdomain.EntityReservation,
		EntityID:    reservation.ID.String(),
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
