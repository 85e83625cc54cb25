// Package httpapi wires the HTTP transport (Gin) to the bot services,
// middleware, and webhook handlers. It centralizes cross-cutting concerns:
// tracing, correlation ids, logging/redaction, panic recovery, metrics,
// compression, rate limiting, CORS, and security headers.
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/delivio/go-commerce-bot/internal/cache"
	"github.com/delivio/go-commerce-bot/internal/cart"
	"github.com/delivio/go-commerce-bot/internal/catalog"
	"github.com/delivio/go-commerce-bot/internal/checkout"
	"github.com/delivio/go-commerce-bot/internal/commerce"
	"github.com/delivio/go-commerce-bot/internal/config"
	"github.com/delivio/go-commerce-bot/internal/domain"
	"github.com/delivio/go-commerce-bot/internal/http/handlers"
	"github.com/delivio/go-commerce-bot/internal/http/middleware"
	"github.com/delivio/go-commerce-bot/internal/identity"
	"github.com/delivio/go-commerce-bot/internal/messaging"
	"github.com/delivio/go-commerce-bot/internal/payment"
	"github.com/delivio/go-commerce-bot/internal/services"
	"github.com/delivio/go-commerce-bot/internal/tenant"
)

// RegisterRoutes attaches all middleware and endpoints to the given Gin
// engine and builds the full dependency graph from config.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip compression
//  7. Metrics
//  8. Rate limiter (per client IP; per-sender throttling runs after decode)
//  9. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction. The webhook signature header is
	// a credential-grade value.
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-Hub-Signature-256"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB); webhook batches are far smaller
	r.Use(limitBody(1 << 20))

	// 6) Compression for /metrics and JSON responses
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Token-bucket rate limiter per client IP
	edge := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst)
	r.Use(edge.Handler())

	// 9) CORS (no browser clients; allow-all is the harmless posture) and
	// security headers
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:   []string{"X-Request-ID", "Content-Length"},
		MaxAge:          12 * time.Hour,
	}))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"code": "method_not_allowed", "message": "method not allowed"})
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: one commerce client feeds every collaborator.
	backend := commerce.New(cfg.Backend.BaseURL, cfg.Backend.APIKey, cfg.Backend.Timeout)

	tenants := tenant.NewResolver(backend,
		cache.New[*domain.TenantConfig](cfg.TenantCache.PositiveTTL, cfg.TenantCache.NegativeTTL))
	prices := catalog.NewPriceCache(backend,
		cache.New[map[string]catalog.PriceEntry](cfg.TenantCache.PositiveTTL, cfg.TenantCache.NegativeTTL))

	engine := checkout.NewEngine(
		identity.NewResolver(backend),
		cart.NewReconciler(backend),
		backend,
		payment.NewManager(cfg.Stripe.SecretKey, cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL, backend),
		prices,
		cfg.Checkout.MinPayableCents,
		cfg.Checkout.MaxHops,
	)

	svc := &services.BotService{
		DB:      db,
		Tenants: tenants,
		Engine:  engine,
		Sender:  messaging.NewSender(cfg.WhatsApp),
		Limiter: middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst),
	}

	wh := handlers.NewWebhookHandler(cfg.WhatsApp.VerifyToken, svc)
	r.GET("/webhook", wh.Verify)
	r.POST("/webhook", wh.Receive)
}

// limitBody caps the request body for all endpoints using
// http.MaxBytesReader; oversized bodies error on the first downstream read.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
