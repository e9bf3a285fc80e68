package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/lokma/internal/audit/domain"
)

type listAuditLogsQuery struct {
	EntityType  string `form:"entity_type" binding:"omitempty,oneof=invoice commission table_session reservation plan"`
	EntityID    string `form:"entity_id"`
	Action      string `form:"action"`
	PerformedBy string `form:"performed_by"`
	Since       string `form:"since"`
	Limit       int    `form:"limit" binding:"omitempty,gte=1,lte=500"`
}

// ListAuditLogs serves the GoBD change trail, newest first.
func (s *Server) ListAuditLogs(c *gin.Context) {
	var query listAuditLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	since, err := queryTime("since", query.Since, false)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	logs, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListRequest{
		EntityType:  query.EntityType,
		EntityID:    query.EntityID,
		Action:      query.Action,
		PerformedBy: query.PerformedBy,
		Since:       since,
		Limit:       query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs})
}
