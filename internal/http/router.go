// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, route handlers and the realtime websocket gateway. It
// centralizes cross-cutting concerns such as tracing, correlation IDs,
// logging/redaction, panic recovery, error reporting, compression, metrics,
// CORS, security headers, idempotency, and rate limiting.
package httpapi

import (
	"context"
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/civic-report-backend/internal/config"
	"github.com/tbourn/civic-report-backend/internal/http/handlers"
	"github.com/tbourn/civic-report-backend/internal/http/middleware"
	"github.com/tbourn/civic-report-backend/internal/realtime"
	"github.com/tbourn/civic-report-backend/internal/search"
	"github.com/tbourn/civic-report-backend/internal/services"
)

// Deps are the runtime collaborators the router needs besides config.
type Deps struct {
	DB    *gorm.DB
	Index search.Index
	// Events receives domain events. It is the Hub itself on a single
	// instance, or a NATS relay in front of it when fan-out is enabled.
	Events realtime.Publisher
	// Hub backs the /ws gateway. Nil disables the endpoint.
	Hub *realtime.Hub
}

var allowHeaders = []string{
	"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
	middleware.HeaderUserID, middleware.HeaderUserRole, middleware.HeaderDepartmentID,
	middleware.HeaderIdempotencyKey,
}

var exposeHeaders = []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed", "Retry-After"}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the versioned public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID + Actor: correlation id and gateway identity
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery, then Sentry (which repanics into Recovery)
//  5. Body size limiter
//  6. gzip (never on the websocket endpoint)
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per actor/IP, bypass on replay)
//  10. CORS and security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	db := deps.DB

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID(), middleware.Actor())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
		SkipPaths:   []string{"/health", "/metrics"},
	}))

	// 4) Panic recovery to JSON 500; Sentry sits inside so it sees the panic first
	r.Use(middleware.Recovery())
	r.Use(sentrygin.New(sentrygin.Options{Repanic: true, Timeout: 2 * time.Second}))

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Compression
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws", "/metrics"})))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Services
	events := deps.Events
	reportSvc := services.NewReportService(db, events, deps.Index)
	convSvc := services.NewConversationService(db, events)
	convSvc.IdempotencyTTL = cfg.IdempotencyTTL

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, userID string, conversationID uint, key string, now time.Time) (bool, error) {
			return convSvc.HasIdempotency(ctx, userID, conversationID, key, now)
		},
	))

	// 9) Token-bucket rate limiter per actor/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByActorOrIP(), "/health", "/metrics", "/ws")
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		EnablePolicy:    true,
		NoStorePrefixes: []string{joinPath(apiBase, "/conversations")},
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health: the store must answer a ping
	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if deps.Hub != nil {
		gw := realtime.NewGateway(deps.Hub, realtime.GatewayOptions{
			WriteTimeout:   cfg.Realtime.WriteTimeout,
			PingInterval:   cfg.Realtime.PingInterval,
			AllowedOrigins: cfg.Realtime.AllowedOrigins,
		})
		r.GET("/ws", gin.WrapH(gw))
	}

	h := handlers.New(
		reportSvc,
		services.NewReactionService(db),
		services.NewCommentService(db),
		convSvc,
		services.NewDepartmentService(db),
		services.NewBarangayService(db),
	)

	// Public API
	api := groupWithPrefix(r, apiBase)
	{
		api.GET("/departments", h.ListDepartments)
		api.GET("/barangays", h.ListBarangays)
		api.GET("/analytics", h.GetAnalytics)

		// Reports
		api.POST("/reports", h.CreateReport)
		api.GET("/reports", h.ListReports)
		api.GET("/reports/search", h.SearchReports)
		api.GET("/reports/:token", h.GetReport)
		api.DELETE("/reports/:token", h.DeleteReport)
		api.POST("/reports/:token/status", h.SetReportStatus)
		api.POST("/reports/:token/moderation", h.SetReportModeration)

		// Reactions & comments
		api.POST("/reports/:token/reactions", h.ToggleReaction)
		api.GET("/reports/:token/reactions", h.GetReactions)
		api.POST("/reports/:token/comments", h.AddComment)
		api.GET("/reports/:token/comments", h.ListComments)

		// Conversations
		api.GET("/conversations", h.ListConversations)
		api.POST("/conversations", h.OpenConversation)
		api.GET("/conversations/:id/messages", h.ListMessages)
		api.POST("/conversations/:id/messages", h.SendMessage)
	}
}

// limitBody caps the request body size for all endpoints to maxBytes using
// http.MaxBytesReader. Requests exceeding the cap fail on read.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
