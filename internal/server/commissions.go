package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	commissiondomain "github.com/smallbiznis/lokma/internal/commission/domain"
)

type listCommissionsQuery struct {
	BusinessID string `form:"business_id"`
	Period     string `form:"period" binding:"omitempty,period"`
	Status     string `form:"status"`
	Limit      int    `form:"limit" binding:"omitempty,gte=1,lte=500"`
}

type commissionSummaryQuery struct {
	BusinessID string `form:"business_id" binding:"required"`
	Period     string `form:"period" binding:"required,period"`
}

type updateCommissionStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) RecordOrderEvent(c *gin.Context) {
	var event commissiondomain.OrderEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	if result := s.orderLimiter.AllowBusiness(c.Request.Context(), event.BusinessID); !result.Allowed {
		if result.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds()))))
		}
		AbortWithError(c, ErrRateLimited)
		return
	}

	record, created, err := s.commissionSvc.RecordOrder(c.Request.Context(), event)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"data": record, "created": created})
}

func (s *Server) ListCommissions(c *gin.Context) {
	var query listCommissionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	filter := commissiondomain.ListFilter{
		BusinessID: strings.TrimSpace(query.BusinessID),
		Period:     query.Period,
		Limit:      query.Limit,
	}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status, ok := commissiondomain.ParseCollectionStatus(raw)
		if !ok {
			AbortWithError(c, commissiondomain.ErrInvalidStatus)
			return
		}
		filter.Status = status
	}

	records, err := s.commissionSvc.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (s *Server) GetCommissionSummary(c *gin.Context) {
	var query commissionSummaryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	summary, err := s.commissionSvc.MonthlySummary(c.Request.Context(), strings.TrimSpace(query.BusinessID), query.Period)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) UpdateCommissionStatus(c *gin.Context) {
	var req updateCommissionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	status, ok := commissiondomain.ParseCollectionStatus(req.Status)
	if !ok {
		AbortWithError(c, commissiondomain.ErrInvalidStatus)
		return
	}

	record, err := s.commissionSvc.UpdateCollectionStatus(c.Request.Context(), c.Param("orderId"), status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}
