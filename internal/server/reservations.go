package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	reservationdomain "github.com/smallbiznis/lokma/internal/reservation/domain"
)

type listReservationsQuery struct {
	BusinessID string `form:"business_id" binding:"required"`
	Status     string `form:"status"`
	From       string `form:"from"`
	To         string `form:"to"`
	Limit      int    `form:"limit" binding:"omitempty,gte=1,lte=500"`
}

type occupiedCardsQuery struct {
	BusinessID string `form:"business_id" binding:"required"`
}

func (s *Server) ListReservations(c *gin.Context) {
	var query listReservationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	filter := reservationdomain.ListFilter{
		BusinessID: query.BusinessID,
		Limit:      query.Limit,
	}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status, ok := reservationdomain.ParseStatus(raw)
		if !ok {
			AbortWithError(c, newValidationError("status", "invalid_status", "invalid status"))
			return
		}
		filter.Status = status
	}
	var err error
	if filter.From, err = queryTime("from", query.From, false); err != nil {
		AbortWithError(c, err)
		return
	}
	if filter.To, err = queryTime("to", query.To, true); err != nil {
		AbortWithError(c, err)
		return
	}

	reservations, err := s.reservationSvc.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": reservations})
}

func (s *Server) CreateReservation(c *gin.Context) {
	var req reservationdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	req.Actor = requestActor(c)

	reservation, err := s.reservationSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": reservation})
}

func (s *Server) GetReservation(c *gin.Context) {
	reservation, err := s.reservationSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": reservation})
}

func (s *Server) ListOccupiedTableCards(c *gin.Context) {
	var query occupiedCardsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	cards, err := s.reservationSvc.OccupiedCards(c.Request.Context(), query.BusinessID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": cards})
}

func (s *Server) ConfirmReservation(c *gin.Context) {
	var req reservationdomain.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	req.ID = c.Param("id")
	req.Actor = requestActor(c)

	reservation, err := s.reservationSvc.Confirm(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": reservation})
}

func (s *Server) RejectReservation(c *gin.Context) {
	s.decideReservation(c, s.reservationSvc.Reject)
}

func (s *Server) CancelReservation(c *gin.Context) {
	s.decideReservation(c, s.reservationSvc.Cancel)
}

func (s *Server) CompleteReservation(c *gin.Context) {
	s.decideReservation(c, s.reservationSvc.Complete)
}

type reservationDecision func(ctx context.Context, req reservationdomain.DecisionRequest) (*reservationdomain.Reservation, error)

func (s *Server) decideReservation(c *gin.Context, decide reservationDecision) {
	var req reservationdomain.DecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, bindError(err))
			return
		}
	}
	req.ID = c.Param("id")
	req.Actor = requestActor(c)

	reservation, err := decide(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": reservation})
}
