package api

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quotadb/quotadb/internal/config"
	"github.com/quotadb/quotadb/internal/errors"
	"github.com/quotadb/quotadb/internal/logging"
	"github.com/quotadb/quotadb/internal/metrics"
	"github.com/quotadb/quotadb/internal/models"
	"github.com/quotadb/quotadb/internal/report"
	"github.com/quotadb/quotadb/internal/store"
)

// Server serves the read-only report surface over the synced store.
type Server struct {
	router     *gin.Engine
	config     config.ServerConfig
	apiConfig  config.APIConfig
	store      store.Store
	reporter   *report.Reporter
	metrics    *metrics.Metrics
	logger     *logging.Logger
	httpServer *http.Server
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, apiCfg config.APIConfig, st store.Store, reporter *report.Reporter) *Server {
	gin.SetMode(gin.ReleaseMode)

	m := metrics.NewMetrics("quotadb")
	logger := logging.NewLogger()

	server := &Server{
		router:    gin.New(),
		config:    cfg,
		apiConfig: apiCfg,
		store:     st,
		reporter:  reporter,
		metrics:   m,
		logger:    logger,
	}
	server.router.HandleMethodNotAllowed = true

	server.router.Use(gin.Recovery())
	server.router.Use(metrics.Middleware(m, logger))
	server.router.Use(loggingMiddleware(logger))

	server.setupRoutes()
	return server
}

// Metrics exposes the server's metrics instance so the sync engine can
// share the registry.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// loggingMiddleware provides structured logging for all requests
func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = logging.GenerateCorrelationID()
		}

		ctx := logging.WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		duration := time.Since(start).Seconds()
		logger.InfoWithContext(ctx, "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", duration,
		)
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint - NO authentication required
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	// Health check - NO authentication required
	s.router.GET("/health", s.handleHealth)

	s.router.GET("/", s.handleIndex)

	authMiddleware := BasicAuth(s.apiConfig.Auth, s.logger)

	quotaGroup := s.router.Group("")
	quotaGroup.Use(authMiddleware)
	{
		quotaGroup.GET("/api/quotas", s.handleListQuotas)
		quotaGroup.GET("/api/quotas/:guid", s.handleGetQuota)
		quotaGroup.GET("/api/quotas/:guid/detail", s.handleGetQuotaDetail)
		quotaGroup.GET("/quotas.csv", s.handleCSV)
	}
}

// handleIndex describes the service and its endpoints.
func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "quotadb",
		"endpoints": []string{
			"/api/quotas/",
			"/api/quotas/:guid/",
			"/api/quotas/:guid/detail/",
			"/quotas.csv",
			"/health",
			"/metrics",
		},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"store":  s.store.Stats(),
	})
}

// handleListQuotas lists every quota with aggregates, optionally date
// filtered.
func (s *Server) handleListQuotas(c *gin.Context) {
	window, ok := s.parseWindow(c)
	if !ok {
		return
	}

	reports, err := s.reporter.ListAll(window)
	if err != nil {
		s.serverError(c, err)
		return
	}
	if reports == nil {
		reports = []models.QuotaReport{}
	}
	c.JSON(http.StatusOK, gin.H{"Quotas": reports})
}

// handleGetQuota returns one quota's aggregate view, or a 404 body when
// the guid was never synced.
func (s *Server) handleGetQuota(c *gin.Context) {
	window, ok := s.parseWindow(c)
	if !ok {
		return
	}

	rep, err := s.reporter.QuotaAggregate(c.Param("guid"), window)
	if err != nil {
		s.reportError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// handleGetQuotaDetail returns the full per-day rows for one quota.
func (s *Server) handleGetQuotaDetail(c *gin.Context) {
	window, ok := s.parseWindow(c)
	if !ok {
		return
	}

	detail, err := s.reporter.QuotaDetail(c.Param("guid"), window)
	if err != nil {
		s.reportError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// handleCSV serves the full export as a CSV download.
func (s *Server) handleCSV(c *gin.Context) {
	window, ok := s.parseWindow(c)
	if !ok {
		return
	}

	output, err := s.reporter.CSV(window)
	if err != nil {
		s.serverError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="quotas.csv"`)
	c.Data(http.StatusOK, "text/csv", []byte(output))
}

// parseWindow reads the since/until query params. Each present value
// must be a calendar date; filtering itself only applies when both are
// given.
func (s *Server) parseWindow(c *gin.Context) (store.Window, bool) {
	window := store.Window{
		Since: c.Query("since"),
		Until: c.Query("until"),
	}
	for _, value := range []string{window.Since, window.Until} {
		if value == "" {
			continue
		}
		if _, err := time.Parse(models.DateLayout, value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", value)})
			return store.Window{}, false
		}
	}
	return window, true
}

// reportError maps a not-found to the API's 404 body and everything
// else to a 500.
func (s *Server) reportError(c *gin.Context, err error) {
	var notFound *errors.ErrNotFound
	if stderrors.As(err, &notFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No Data"})
		return
	}
	s.serverError(c, err)
}

func (s *Server) serverError(c *gin.Context, err error) {
	_ = c.Error(err)
	s.metrics.RecordError("internal", c.FullPath(), c.Request.Method)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.HTTPPort)

	if s.httpServer == nil {
		s.httpServer = NewHTTPServer(addr, s.router)
	}

	s.logger.Info("starting HTTP server", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return &errors.ErrServerStart{Addr: addr, Err: err}
	}
	return nil
}

// HTTPServer exposes the underlying server for shutdown handling.
func (s *Server) HTTPServer() *http.Server {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.HTTPPort)
	if s.httpServer == nil {
		s.httpServer = NewHTTPServer(addr, s.router)
	}
	return s.httpServer
}
