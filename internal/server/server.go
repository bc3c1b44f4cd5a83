// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/rchauhan/fraudlens/internal/alerts"
	"github.com/rchauhan/fraudlens/internal/config"
	"github.com/rchauhan/fraudlens/internal/fraud"
	"github.com/rchauhan/fraudlens/internal/health"
	"github.com/rchauhan/fraudlens/internal/logging"
	"github.com/rchauhan/fraudlens/internal/metrics"
	"github.com/rchauhan/fraudlens/internal/pipeline"
	"github.com/rchauhan/fraudlens/internal/profile"
	"github.com/rchauhan/fraudlens/internal/ratelimit"
	"github.com/rchauhan/fraudlens/internal/realtime"
	"github.com/rchauhan/fraudlens/internal/security"
	"github.com/rchauhan/fraudlens/internal/traces"
	"github.com/rchauhan/fraudlens/internal/transactions"
	"github.com/rchauhan/fraudlens/internal/validation"
	"github.com/rchauhan/fraudlens/internal/webhooks"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	txns         transactions.Store
	profiles     profile.Store
	alertMgr     *alerts.Manager
	processor    *pipeline.Processor
	ingestQueue  *pipeline.Queue
	webhookStore webhooks.Store
	dispatcher   *webhooks.Dispatcher
	emitter      *webhooks.Emitter
	realtimeHub  *realtime.Hub
	rateLimiter  *ratelimit.Limiter
	checks       *health.Registry
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger

	shutdownTraces func(context.Context) error
	cancelRunCtx   context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
		checks: health.NewRegistry(),
	}

	// Apply options first (may set logger)
	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := context.Background()

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		txnStore := transactions.NewPostgresStore(db)
		if err := txnStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate transactions store", "error", err)
		}
		s.txns = txnStore

		alertStore := alerts.NewPostgresStore(db)
		if err := alertStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate alerts store", "error", err)
		}
		s.alertMgr = alerts.NewManager(alertStore, cfg.AlertThreshold)

		profileStore := profile.NewPostgresStore(db)
		if err := profileStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate profile store", "error", err)
		}
		s.profiles = profileStore

		webhookStore := webhooks.NewPostgresStore(db)
		if err := webhookStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate webhook store", "error", err)
		}
		s.webhookStore = webhookStore

		s.checks.Register("database", func(ctx context.Context) health.Status {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	} else {
		s.logger.Info("using in-memory storage (data will not persist)")
		s.txns = transactions.NewMemoryStore()
		s.alertMgr = alerts.NewManager(alerts.NewMemoryStore(), cfg.AlertThreshold)
		s.profiles = profile.NewMemoryStore()
		s.webhookStore = webhooks.NewMemoryStore()
	}

	// Webhook delivery (alert.created / alert.reviewed to external services)
	s.dispatcher = webhooks.NewDispatcher(s.webhookStore)
	s.emitter = webhooks.NewEmitter(s.dispatcher, s.logger)
	s.logger.Info("webhooks enabled")

	// Realtime hub for WebSocket streaming to review dashboards
	s.realtimeHub = realtime.NewHub(s.logger)
	s.logger.Info("realtime streaming enabled")

	// Scoring pipeline
	s.processor = pipeline.NewProcessor(cfg.Patterns(), s.txns, s.profiles, s.alertMgr, s.logger)
	s.processor.SetBroadcaster(s.realtimeHub)
	s.processor.SetNotifier(s.emitter)
	s.ingestQueue = pipeline.NewQueue(s.processor, cfg.Workers, cfg.IngestBuffer, s.logger)
	s.logger.Info("scoring pipeline ready",
		"model_version", fraud.ModelVersion,
		"alert_threshold", cfg.AlertThreshold,
		"velocity_window_minutes", cfg.VelocityWindowMinutes,
		"workers", cfg.Workers,
		"ingest_buffer", cfg.IngestBuffer,
	)

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPS > 0 {
		rlCfg.RequestsPerMinute = s.cfg.RateLimitRPS * 60
		rlCfg.BurstSize = s.cfg.RateLimitRPS
	}
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// requireAdmin guards destructive endpoints with the X-Admin-Secret header.
// With no ADMIN_SECRET configured, admin endpoints stay open in development
// and are disabled everywhere else.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminSecret == "" {
			if s.cfg.IsDevelopment() {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "admin_disabled",
				"message": "Admin endpoints require ADMIN_SECRET to be configured",
			})
			return
		}

		provided := c.GetHeader("X-Admin-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.cfg.AdminSecret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Invalid admin secret",
			})
			return
		}
		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// Live review dashboard
	s.router.GET("/", dashboardHandler)

	// WebSocket for real-time streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// API info endpoint
	s.router.GET("/api", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")
	// Validate :id URL params on all v1 routes (no-op when param absent)
	v1.Use(validation.IDParamMiddleware())

	// Transaction ingestion and lookup
	pipelineHandler := pipeline.NewHandler(s.processor, s.txns)
	pipelineHandler.SetQueue(s.ingestQueue)
	pipelineHandler.RegisterRoutes(v1)

	// Alert queue: list, detail, review, stats
	alertHandler := alerts.NewHandler(s.alertMgr)
	alertHandler.SetTransactionCounter(func(ctx context.Context) (int, error) {
		st, err := s.txns.Stats(ctx)
		if err != nil {
			return 0, err
		}
		return st.Total, nil
	})
	alertHandler.OnReviewed(func(a *alerts.Alert) {
		metrics.AlertsReviewedTotal.WithLabelValues(string(a.Status)).Inc()
		s.realtimeHub.BroadcastAlertReviewed(map[string]interface{}{
			"alertId":       a.ID,
			"transactionId": a.TransactionID,
			"accountId":     a.AccountID,
			"status":        string(a.Status),
			"action":        string(a.Action),
			"assignedTo":    a.AssignedTo,
			"score":         a.Score,
			"riskLevel":     string(a.RiskLevel),
		})
		s.emitter.AlertReviewed(a)
	})
	alertHandler.RegisterRoutes(v1)

	// Webhook subscription management (admin-guarded; secrets are sensitive)
	webhookHandler := webhooks.NewHandler(s.webhookStore, s.dispatcher)
	adminWebhooks := v1.Group("")
	adminWebhooks.Use(s.requireAdmin())
	webhookHandler.RegisterRoutes(adminWebhooks)

	// Admin wipe of scored data (demo/reset tooling, not part of the scoring API)
	admin := v1.Group("/admin")
	admin.Use(s.requireAdmin())
	admin.DELETE("/data", s.wipeDataHandler)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.checks.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    statuses,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":           "Fraudlens",
		"description":    "Real-time transaction fraud scoring",
		"version":        "0.1.0",
		"modelVersion":   fraud.ModelVersion,
		"alertThreshold": s.cfg.AlertThreshold,
	})
}

// wipeDataHandler handles DELETE /v1/admin/data.
// Clears transactions, alerts, and account profiles. Webhook subscriptions
// survive a wipe; they belong to integrations, not to scored data.
func (s *Server) wipeDataHandler(c *gin.Context) {
	ctx := c.Request.Context()

	if err := s.alertMgr.Store().DeleteAll(ctx); err != nil {
		s.logger.Error("failed to wipe alerts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "wipe_failed",
			"message": "Failed to delete alerts",
		})
		return
	}
	if err := s.txns.DeleteAll(ctx); err != nil {
		s.logger.Error("failed to wipe transactions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "wipe_failed",
			"message": "Failed to delete transactions",
		})
		return
	}
	if err := s.profiles.DeleteAll(ctx); err != nil {
		s.logger.Error("failed to wipe profiles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "wipe_failed",
			"message": "Failed to delete account profiles",
		})
		return
	}

	s.logger.Warn("all scored data wiped by admin request")
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "All transactions, alerts, and account profiles deleted",
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	// Tracing (no-op when TRACES_ENABLED is off or OTLP_ENDPOINT unset)
	otlpEndpoint := ""
	if s.cfg.TracesEnabled {
		otlpEndpoint = s.cfg.OTLPEndpoint
	}
	shutdownTraces, err := traces.Init(runCtx, otlpEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.shutdownTraces = shutdownTraces
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Start async ingest workers for the batch endpoint
	s.ingestQueue.Start(runCtx)

	// Sample DB pool stats for Prometheus
	if s.db != nil {
		metrics.StartDBStatsCollector(runCtx, s.db, 30*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, collectors)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Flush pending spans
	if s.shutdownTraces != nil {
		if err := s.shutdownTraces(ctx); err != nil {
			s.logger.Error("traces shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
