package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/encore/internal/anomaly"
	anomalydomain "github.com/smallbiznis/encore/internal/anomaly/domain"
	"github.com/smallbiznis/encore/internal/attachment"
	"github.com/smallbiznis/encore/internal/audit"
	auditdomain "github.com/smallbiznis/encore/internal/audit/domain"
	"github.com/smallbiznis/encore/internal/authorization"
	"github.com/smallbiznis/encore/internal/config"
	"github.com/smallbiznis/encore/internal/event"
	"github.com/smallbiznis/encore/internal/finance"
	financedomain "github.com/smallbiznis/encore/internal/finance/domain"
	"github.com/smallbiznis/encore/internal/ledger"
	ledgerdomain "github.com/smallbiznis/encore/internal/ledger/domain"
	"github.com/smallbiznis/encore/internal/notification"
	notificationdomain "github.com/smallbiznis/encore/internal/notification/domain"
	"github.com/smallbiznis/encore/internal/observability"
	obsmiddleware "github.com/smallbiznis/encore/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/encore/internal/observability/metrics"
	obstracing "github.com/smallbiznis/encore/internal/observability/tracing"
	"github.com/smallbiznis/encore/internal/providers"
	"github.com/smallbiznis/encore/internal/providers/pdf"
	"github.com/smallbiznis/encore/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	authorization.Module,
	attachment.Module,
	event.Module,
	ledger.Module,
	notification.Module,
	finance.Module,
	anomaly.Module,
	providers.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					panic(err)
				}
			}()
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
	financeSvc      financedomain.Service
	ledgerSvc       ledgerdomain.Service
	anomalySvc      anomalydomain.Service
	notificationSvc notificationdomain.Service
	authzSvc        authorization.Service
	auditSvc        auditdomain.Service
	pdfProvider     pdf.Provider
	uploadLimiter   *ratelimit.UploadLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	FinanceSvc      financedomain.Service
	LedgerSvc       ledgerdomain.Service
	AnomalySvc      anomalydomain.Service
	NotificationSvc notificationdomain.Service
	AuthzSvc        authorization.Service
	AuditSvc        auditdomain.Service
	PDFProvider     pdf.Provider
	UploadLimiter   *ratelimit.UploadLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		financeSvc:      p.FinanceSvc,
		ledgerSvc:       p.LedgerSvc,
		anomalySvc:      p.AnomalySvc,
		notificationSvc: p.NotificationSvc,
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		pdfProvider:     p.PDFProvider,
		uploadLimiter:   p.UploadLimiter,
	}

	svc.registerFinanceRoutes()
	svc.registerNotificationRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerFinanceRoutes() {
	fin := s.engine.Group("/finance", ActingUser())

	fin.POST("/payment", s.withUpload(s.authorize(authorization.ObjectPayment, authorization.ActionCreate), s.MakePayment)...)
	fin.POST("/ticket-payment", s.withUpload(s.authorize(authorization.ObjectPayment, authorization.ActionCreate), s.TicketPayment)...)
	fin.POST("/budget", s.withUpload(s.authorize(authorization.ObjectBudget, authorization.ActionCreate), s.CreateBudget)...)
	fin.POST("/refund", s.withUpload(s.authorize(authorization.ObjectRefund, authorization.ActionCreate), s.RequestRefund)...)

	fin.GET("/anomalies", s.authorize(authorization.ObjectAnomaly, authorization.ActionView), s.DetectAnomalies)
	fin.GET("/transactions", s.authorize(authorization.ObjectTransaction, authorization.ActionView), s.ListTransactions)

	fin.GET("/:recordType/:id", s.authorizeRecord(authorization.ActionView), s.GetRecord)
	fin.PATCH("/:recordType/:id", s.authorizeRecord(authorization.ActionUpdate), s.UpdateRecord)
	fin.DELETE("/:recordType/:id", s.authorizeRecord(authorization.ActionDelete), s.DeleteRecord)
	fin.GET("/:recordType/:id/receipt", s.authorize(authorization.ObjectPayment, authorization.ActionReceipt), s.PaymentReceipt)
	fin.GET("/:recordType/:id/audit", s.authorize(authorization.ObjectAuditLog, authorization.ActionView), s.ListRecordAuditLogs)
}

// withUpload places the upload guards between authorization and the handler.
func (s *Server) withUpload(authz, handler gin.HandlerFunc) []gin.HandlerFunc {
	return []gin.HandlerFunc{authz, s.UploadRateLimit(), s.limitBody(), handler}
}

func (s *Server) registerNotificationRoutes() {
	n := s.engine.Group("/notifications", ActingUser())

	n.GET("", s.authorize(authorization.ObjectNotification, authorization.ActionView), s.ListNotifications)
	n.PATCH("/:id/read", s.authorize(authorization.ObjectNotification, authorization.ActionUpdate), s.MarkNotificationRead)
}
