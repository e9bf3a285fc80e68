package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	tablesessiondomain "github.com/smallbiznis/lokma/internal/tablesession/domain"
)

type listOpenSessionsQuery struct {
	BusinessID string `form:"business_id" binding:"required"`
}

func (s *Server) ListOpenTableSessions(c *gin.Context) {
	var query listOpenSessionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	sessions, err := s.tableSessionSvc.ListOpen(c.Request.Context(), query.BusinessID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sessions})
}

func (s *Server) OpenTableSession(c *gin.Context) {
	var req tablesessiondomain.OpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	req.Actor = requestActor(c)

	session, err := s.tableSessionSvc.Open(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": session})
}

func (s *Server) GetTableSession(c *gin.Context) {
	session, err := s.tableSessionSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": session})
}

func (s *Server) AggregateTableSession(c *gin.Context) {
	items, err := s.tableSessionSvc.Aggregate(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) JoinTableSession(c *gin.Context) {
	var req tablesessiondomain.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	req.SessionID = c.Param("id")

	session, participant, err := s.tableSessionSvc.Join(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": session, "participant": participant})
}

func (s *Server) AddTableSessionItems(c *gin.Context) {
	var req tablesessiondomain.AddItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	req.SessionID = c.Param("id")

	session, err := s.tableSessionSvc.AddItems(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": session})
}

func (s *Server) TransitionTableSession(c *gin.Context) {
	var req tablesessiondomain.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	req.SessionID = c.Param("id")
	req.Actor = requestActor(c)

	session, err := s.tableSessionSvc.Transition(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": session})
}

func (s *Server) ConfirmTableSessionPayment(c *gin.Context) {
	var req tablesessiondomain.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	req.SessionID = c.Param("id")
	req.Actor = requestActor(c)

	session, err := s.tableSessionSvc.ConfirmPayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": session})
}

func (s *Server) CancelTableSession(c *gin.Context) {
	var req tablesessiondomain.CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, bindError(err))
			return
		}
	}
	req.SessionID = c.Param("id")
	req.Actor = requestActor(c)

	session, err := s.tableSessionSvc.Cancel(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": session, "write_off": tablesessiondomain.WriteOff(*session)})
}
