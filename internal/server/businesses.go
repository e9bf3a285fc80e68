package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	businessdomain "github.com/smallbiznis/lokma/internal/business/domain"
)

func (s *Server) UpsertBusiness(c *gin.Context) {
	var req businessdomain.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	business, err := s.businessSvc.Upsert(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": business})
}

func (s *Server) GetBusinessByID(c *gin.Context) {
	business, err := s.businessSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": business})
}

func (s *Server) AssignBusinessPlan(c *gin.Context) {
	var req businessdomain.AssignPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	req.BusinessID = c.Param("id")

	business, err := s.businessSvc.AssignPlan(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": business})
}

func (s *Server) GetBusinessPlan(c *gin.Context) {
	plan, err := s.businessSvc.ActivePlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}
