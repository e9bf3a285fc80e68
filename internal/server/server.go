package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/lokma/internal/audit"
	auditdomain "github.com/smallbiznis/lokma/internal/audit/domain"
	"github.com/smallbiznis/lokma/internal/business"
	businessdomain "github.com/smallbiznis/lokma/internal/business/domain"
	"github.com/smallbiznis/lokma/internal/cache"
	"github.com/smallbiznis/lokma/internal/commission"
	commissiondomain "github.com/smallbiznis/lokma/internal/commission/domain"
	"github.com/smallbiznis/lokma/internal/config"
	"github.com/smallbiznis/lokma/internal/invoice"
	invoicedomain "github.com/smallbiznis/lokma/internal/invoice/domain"
	"github.com/smallbiznis/lokma/internal/observability"
	obslogger "github.com/smallbiznis/lokma/internal/observability/logger"
	obstracing "github.com/smallbiznis/lokma/internal/observability/tracing"
	"github.com/smallbiznis/lokma/internal/plan"
	plandomain "github.com/smallbiznis/lokma/internal/plan/domain"
	"github.com/smallbiznis/lokma/internal/ratelimit"
	"github.com/smallbiznis/lokma/internal/reservation"
	reservationdomain "github.com/smallbiznis/lokma/internal/reservation/domain"
	"github.com/smallbiznis/lokma/internal/tablesession"
	tablesessiondomain "github.com/smallbiznis/lokma/internal/tablesession/domain"
	taxdomain "github.com/smallbiznis/lokma/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	cache.Module,
	ratelimit.Module,
	audit.Module,
	plan.Module,
	business.Module,
	commission.Module,
	invoice.Module,
	tablesession.Module,
	reservation.Module,
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	registerValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	planSvc         plandomain.Service
	businessSvc     businessdomain.Service
	commissionSvc   commissiondomain.Service
	invoiceSvc      invoicedomain.Service
	taxResolver     taxdomain.Resolver
	auditSvc        auditdomain.Service
	tableSessionSvc tablesessiondomain.Service
	reservationSvc  reservationdomain.Service
	orderLimiter    *ratelimit.OrderIngestLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	PlanSvc         plandomain.Service
	BusinessSvc     businessdomain.Service
	CommissionSvc   commissiondomain.Service
	InvoiceSvc      invoicedomain.Service
	TaxResolver     taxdomain.Resolver
	AuditSvc        auditdomain.Service
	TableSessionSvc tablesessiondomain.Service
	ReservationSvc  reservationdomain.Service
	OrderLimiter    *ratelimit.OrderIngestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		planSvc:         p.PlanSvc,
		businessSvc:     p.BusinessSvc,
		commissionSvc:   p.CommissionSvc,
		invoiceSvc:      p.InvoiceSvc,
		taxResolver:     p.TaxResolver,
		auditSvc:        p.AuditSvc,
		tableSessionSvc: p.TableSessionSvc,
		reservationSvc:  p.ReservationSvc,
		orderLimiter:    p.OrderLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Plans --------
	api.GET("/plans", s.ListPlans)
	api.POST("/plans", s.CreatePlan)
	api.GET("/plans/:id", s.GetPlanByID)
	api.PATCH("/plans/:id", s.UpdatePlan)

	// -------- Businesses --------
	api.PUT("/businesses", s.UpsertBusiness)
	api.GET("/businesses/:id", s.GetBusinessByID)
	api.PUT("/businesses/:id/plan", s.AssignBusinessPlan)
	api.GET("/businesses/:id/plan", s.GetBusinessPlan)

	// -------- Commission --------
	api.POST("/orders/events", s.RecordOrderEvent)
	api.GET("/commissions", s.ListCommissions)
	api.GET("/commissions/summary", s.GetCommissionSummary)
	api.PATCH("/commissions/:orderId/status", s.UpdateCommissionStatus)

	// -------- Invoices --------
	api.GET("/vat-rates", s.ListVATRates)
	api.GET("/invoices", s.ListInvoices)
	api.POST("/invoices", s.CreateInvoice)
	api.POST("/invoices/monthly", s.CreateMonthlyInvoice)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.POST("/invoices/:id/storno", s.StornoInvoice)
	api.POST("/invoices/:id/pay", s.MarkInvoicePaid)
	api.POST("/invoices/:id/payment-failed", s.MarkInvoicePaymentFailed)

	// -------- Table sessions --------
	api.GET("/table-sessions", s.ListOpenTableSessions)
	api.POST("/table-sessions", s.OpenTableSession)
	api.GET("/table-sessions/:id", s.GetTableSession)
	api.GET("/table-sessions/:id/aggregate", s.AggregateTableSession)
	api.POST("/table-sessions/:id/participants", s.JoinTableSession)
	api.POST("/table-sessions/:id/items", s.AddTableSessionItems)
	api.POST("/table-sessions/:id/transition", s.TransitionTableSession)
	api.POST("/table-sessions/:id/payments", s.ConfirmTableSessionPayment)
	api.POST("/table-sessions/:id/cancel", s.CancelTableSession)

	// -------- Reservations --------
	api.GET("/reservations", s.ListReservations)
	api.POST("/reservations", s.CreateReservation)
	api.GET("/reservations/occupied-cards", s.ListOccupiedTableCards)
	api.GET("/reservations/:id", s.GetReservation)
	api.POST("/reservations/:id/confirm", s.ConfirmReservation)
	api.POST("/reservations/:id/reject", s.RejectReservation)
	api.POST("/reservations/:id/cancel", s.CancelReservation)
	api.POST("/reservations/:id/complete", s.CompleteReservation)

	// -------- Audit --------
	api.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
