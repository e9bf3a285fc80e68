package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/lokma/internal/invoice/domain"
	"github.com/smallbiznis/lokma/pkg/db/pagination"
)

type listInvoicesQuery struct {
	pagination.Pagination
	BusinessID string `form:"business_id"`
	Period     string `form:"period" binding:"omitempty,period"`
	Status     string `form:"status"`
	IsStorno   string `form:"is_storno"`
	DueBefore  string `form:"due_before"`
}

func (s *Server) ListVATRates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.taxResolver.Rates()})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query listInvoicesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	req := invoicedomain.ListInvoiceRequest{
		BusinessID: strings.TrimSpace(query.BusinessID),
		Period:     query.Period,
		Pagination: query.Pagination,
	}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status, ok := invoicedomain.ParseInvoiceStatus(raw)
		if !ok {
			AbortWithError(c, newValidationError("status", "invalid_status", "invalid status"))
			return
		}
		req.Status = &status
	}
	var err error
	if req.IsStorno, err = queryBool("is_storno", query.IsStorno); err != nil {
		AbortWithError(c, err)
		return
	}
	if req.DueBefore, err = queryTime("due_before", query.DueBefore, false); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":            resp.Invoices,
		"next_page_token": resp.NextPageToken,
		"has_more":        resp.HasMore,
	})
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoicedomain.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	req.Actor = requestActor(c)

	invoice, err := s.invoiceSvc.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invoice})
}

func (s *Server) CreateMonthlyInvoice(c *gin.Context) {
	var req invoicedomain.MonthlyInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	req.Actor = requestActor(c)

	invoice, err := s.invoiceSvc.CreateMonthlyInvoice(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invoice})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	item, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) StornoInvoice(c *gin.Context) {
	var req invoicedomain.StornoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	req.InvoiceID = c.Param("id")
	req.Actor = requestActor(c)

	result, err := s.invoiceSvc.Storno(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": result})
}

func (s *Server) MarkInvoicePaid(c *gin.Context) {
	invoice, err := s.invoiceSvc.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) MarkInvoicePaymentFailed(c *gin.Context) {
	invoice, err := s.invoiceSvc.MarkPaymentFailed(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}
