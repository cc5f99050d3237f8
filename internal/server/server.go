package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/covercheck/internal/audit/domain"
	certificatedomain "github.com/smallbiznis/covercheck/internal/certificate/domain"
	"github.com/smallbiznis/covercheck/internal/config"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
	entitydomain "github.com/smallbiznis/covercheck/internal/entity/domain"
	"github.com/smallbiznis/covercheck/internal/migration"
	"github.com/smallbiznis/covercheck/internal/observability"
	obsmiddleware "github.com/smallbiznis/covercheck/internal/observability/logger"
	obstracing "github.com/smallbiznis/covercheck/internal/observability/tracing"
	templatedomain "github.com/smallbiznis/covercheck/internal/template/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	return r
}

// run serves once the schema is ready.
func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, _ migration.Schema, s *Server) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
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
	engine *gin.Engine
	cfg    config.Config

	auditSvc       auditdomain.Service
	templateSvc    templatedomain.Service
	entitySvc      entitydomain.Service
	certificateSvc certificatedomain.Service
	recalculator   coveragedomain.Recalculator
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	AuditSvc       auditdomain.Service
	TemplateSvc    templatedomain.Service
	EntitySvc      entitydomain.Service
	CertificateSvc certificatedomain.Service
	Recalculator   coveragedomain.Recalculator
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		auditSvc:       p.AuditSvc,
		templateSvc:    p.TemplateSvc,
		entitySvc:      p.EntitySvc,
		certificateSvc: p.CertificateSvc,
		recalculator:   p.Recalculator,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", OrgContext())

	// -------- Templates --------
	api.GET("/templates", s.ListTemplates)
	api.POST("/templates", s.CreateTemplate)
	api.GET("/templates/:id", s.GetTemplate)
	api.PUT("/templates/:id", s.UpdateTemplate)
	api.POST("/templates/:id/duplicate", s.DuplicateTemplate)
	api.DELETE("/templates/:id", s.DeleteTemplate)

	// -------- Entities --------
	api.GET("/entities", s.ListEntities)
	api.POST("/entities", s.CreateEntity)
	api.GET("/entities/:id", s.GetEntity)
	api.DELETE("/entities/:id", s.DeleteEntity)
	api.PUT("/entities/:id/template", s.AssignEntityTemplate)
	api.POST("/entities/:id/recalculate", s.RecalculateEntity)

	// -------- Certificates --------
	api.GET("/entities/:id/certificates", s.ListEntityCertificates)
	api.POST("/entities/:id/certificates", s.UploadCertificate)
	api.GET("/certificates/:id", s.GetCertificate)
	api.POST("/certificates/:id/confirm", s.ConfirmCertificate)

	// -------- Activity --------
	api.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, errNotFound)
	})
}
