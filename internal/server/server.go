// Package server exposes the reconciliation engine over HTTP. The
// engine stays I/O-free; this is a thin adapter that parses request
// records, runs one batch and returns the report.
package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/auditflow/reconcile/internal/config"
	"github.com/auditflow/reconcile/internal/engine"
)

// Server hosts the reconciliation API.
type Server struct {
	router  *gin.Engine
	logger  *zap.Logger
	baseCfg config.Engine
}

// New builds the server around a validated base engine configuration.
// Per-request option overrides are validated per request.
func New(logger *zap.Logger, baseCfg config.Engine) (*Server, error) {
	if err := baseCfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{logger: logger, baseCfg: baseCfg}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
	}))

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.POST("/reconcile", s.handleReconcile)

	s.router = router
	return s, nil
}

// Router returns the underlying gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run blocks serving HTTP on addr.
func (s *Server) Run(addr string) error {
	s.logger.Info("reconciliation API listening", zap.String("addr", addr))
	return s.router.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReconcile(c *gin.Context) {
	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid request body", err))
		return
	}

	bank, err := req.bankTransactions()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid bank record", err))
		return
	}
	gl, err := req.glTransactions()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid gl record", err))
		return
	}

	cfg, err := req.Options.apply(s.baseCfg)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, errorBody("invalid options", err))
		return
	}

	eng, err := engine.New(cfg, engine.WithLogger(s.logger))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, errorBody("invalid options", err))
		return
	}

	report, err := eng.Reconcile(c.Request.Context(), bank, gl)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("reconciliation failed", err))
		return
	}
	c.JSON(http.StatusOK, report)
}

func errorBody(message string, err error) gin.H {
	return gin.H{"error": message, "detail": err.Error()}
}
