package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/lokma/internal/apperror"
	auditdomain "github.com/smallbiznis/lokma/internal/audit/domain"
	auditrepo "github.com/smallbiznis/lokma/internal/audit/repository"
	auditservice "github.com/smallbiznis/lokma/internal/audit/service"
	"github.com/smallbiznis/lokma/internal/reservation/domain"
	"github.com/smallbiznis/lokma/internal/reservation/repository"
	"github.com/smallbiznis/lokma/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) domain.Service {
	t.Helper()
	db := testutil.NewDB(t, &domain.Reservation{}, &domain.TableCardClaim{}, &auditdomain.AuditLog{})
	node := testutil.NewNode(t)
	clk := testutil.FixedClock()
	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
		Audit: auditservice.NewService(auditservice.Params{
			DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: auditrepo.Provide(),
		}),
	})
}

func book(t *testing.T, svc domain.Service, customer string) *domain.Reservation {
	t.Helper()
	reservation, err := svc.Create(context.Background(), domain.CreateRequest{
		BusinessID:   "biz-1",
		CustomerName: customer,
		PartySize:    4,
		ReservedAt:   time.Date(2025, time.March, 15, 19, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return reservation
}

func TestCreateValidatesInput(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	at := time.Date(2025, time.March, 15, 19, 30, 0, 0, time.UTC)

	_, err := svc.Create(ctx, domain.CreateRequest{BusinessID: "biz-1", CustomerName: "", PartySize: 2, ReservedAt: at})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	_, err = svc.Create(ctx, domain.CreateRequest{BusinessID: "biz-1", CustomerName: "Aylin", PartySize: 0, ReservedAt: at})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	_, err = svc.Create(ctx, domain.CreateRequest{BusinessID: "biz-1", CustomerName: "Aylin", PartySize: 2})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	reservation, err := svc.Create(ctx, domain.CreateRequest{BusinessID: "biz-1", CustomerName: " Aylin ", PartySize: 2, ReservedAt: at})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, reservation.Status)
	assert.Equal(t, "Aylin", reservation.CustomerName)
}

func TestConfirmRejectsOccupiedCards(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	first := book(t, svc, "Aylin")
	second := book(t, svc, "Murat")

	confirmed, err := svc.Confirm(ctx, domain.ConfirmRequest{ID: first.ID.String(), Cards: []int{5, 3}, Actor: "host@lokma.test"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, confirmed.Status)
	assert.Equal(t, []int{3, 5}, []int(confirmed.TableCards))

	_, err = svc.Confirm(ctx, domain.ConfirmRequest{ID: second.ID.String(), Cards: []int{4, 5}})
	require.ErrorIs(t, err, apperror.ErrConflict)
	assert.Contains(t, err.Error(), "5")

	occupied, err := svc.OccupiedCards(ctx, "biz-1")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5}, occupied)

	reloaded, err := svc.Get(ctx, second.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, reloaded.Status)
	assert.Empty(t, reloaded.TableCards)
}

func TestConfirmValidatesCards(t *testing.T) {
	svc := newService(t)
	reservation := book(t, svc, "Aylin")

	for _, cards := range [][]int{nil, {0}, {2, 2}, {-1}} {
		_, err := svc.Confirm(context.Background(), domain.ConfirmRequest{ID: reservation.ID.String(), Cards: cards})
		assert.ErrorIs(t, err, apperror.ErrValidation, "%v", cards)
	}
}

func TestReleasingCardsMakesThemAvailable(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	first := book(t, svc, "Aylin")
	second := book(t, svc, "Murat")

	_, err := svc.Confirm(ctx, domain.ConfirmRequest{ID: first.ID.String(), Cards: []int{7}})
	require.NoError(t, err)

	completed, err := svc.Complete(ctx, domain.DecisionRequest{ID: first.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, completed.Status)

	_, err = svc.Confirm(ctx, domain.ConfirmRequest{ID: second.ID.String(), Cards: []int{7}})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, domain.DecisionRequest{ID: second.ID.String(), Reason: "Gast hat abgesagt"})
	require.NoError(t, err)
	assert.Equal(t, "Gast hat abgesagt", cancelled.Reason)

	occupied, err := svc.OccupiedCards(ctx, "biz-1")
	require.NoError(t, err)
	assert.Empty(t, occupied)
}

func TestDecisionStateMachine(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	reservation := book(t, svc, "Aylin")

	_, err := svc.Complete(ctx, domain.DecisionRequest{ID: reservation.ID.String()})
	assert.ErrorIs(t, err, apperror.ErrInvalidStateTransition)

	rejected, err := svc.Reject(ctx, domain.DecisionRequest{ID: reservation.ID.String(), Reason: "Ausgebucht"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)

	_, err = svc.Confirm(ctx, domain.ConfirmRequest{ID: reservation.ID.String(), Cards: []int{1}})
	assert.ErrorIs(t, err, apperror.ErrInvalidStateTransition)
	_, err = svc.Cancel(ctx, domain.DecisionRequest{ID: reservation.ID.String()})
	assert.ErrorIs(t, err, apperror.ErrInvalidStateTransition)

	_, err = svc.Get(ctx, "123456789")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestConcurrentConfirmsAssignCardOnce(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	const contenders = 5
	reservations := make([]*domain.Reservation, 0, contenders)
	for i := 0; i < contenders; i++ {
		reservations = append(reservations, book(t, svc, "Guest"))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		confirmed int
		conflicts int
	)
	for _, reservation := range reservations {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.Confirm(ctx, domain.ConfirmRequest{ID: id, Cards: []int{1, 2}})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				confirmed++
			} else if apperror.CodeOf(err) == apperror.CodeConflict {
				conflicts++
			}
		}(reservation.ID.String())
	}
	wg.Wait()

	assert.Equal(t, 1, confirmed)
	assert.Equal(t, contenders-1, conflicts)

	list, err := svc.List(ctx, domain.ListFilter{BusinessID: "biz-1", Status: domain.StatusConfirmed})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
