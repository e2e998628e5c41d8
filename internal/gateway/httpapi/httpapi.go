// Package httpapi implements the HTTP API gateway for Samsara.
//
// Security:
//   - API key authentication on every request (constant-time comparison)
//   - Request body size limits (default 1 MB)
//   - Per-client rate limiting via token bucket
//   - All requests logged with correlation IDs
//   - TLS expected via reverse proxy (not handled here)
package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/okapi"

	"github.com/jkaninda/samsara/internal/domain"
	"github.com/jkaninda/samsara/internal/engine"
	"github.com/jkaninda/samsara/internal/notification"
	"github.com/jkaninda/samsara/internal/observability"
	"github.com/jkaninda/samsara/internal/ratelimit"
	"github.com/jkaninda/samsara/internal/storage"
)

const defaultMaxRequestSize = 1 << 20 // 1 MB

// ErrorBody is the standard error response used in OpenAPI documentation.
type ErrorBody struct {
	Error string `json:"error"`
}

// Config configures the HTTP API gateway.
type Config struct {
	ListenAddr     string // e.g., ":8080"
	EnableDocs     bool
	APIKey         string // Bearer key required on /v1. Empty = no auth.
	MaxRequestSize int64  // Maximum request body in bytes. 0 = 1 MB default.

	// Observability
	MetricsRegistry *prometheus.Registry            // Custom Prometheus registry for /metrics.
	MetricsPath     string                          // Path for metrics endpoint. Default: "/metrics".
	HealthChecker   *observability.HealthChecker    // Health checker for /ready endpoint.
	Metrics         *observability.MetricsCollector // Metrics collector for HTTP middleware.
	Tracer          trace.Tracer                    // OTel tracer for HTTP middleware.
}

// Gateway is the HTTP API gateway.
type Gateway struct {
	config  Config
	engine  *engine.Engine
	store   storage.Store
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	server  *http.Server

	// Optional notification channel management.
	dispatcher *notification.Dispatcher

	// Extra handlers mounted on the HTTP mux (e.g., WebSocket event stream).
	extraRoutes []extraRoute

	okapi *okapi.Okapi
	group *okapi.Group
}

// extraRoute stores an additional handler to be mounted on the HTTP mux.
type extraRoute struct {
	pattern string
	handler http.Handler
}

// NewGateway creates an HTTP API gateway.
func NewGateway(cfg Config, eng *engine.Engine, store storage.Store, rl *ratelimit.Limiter, logger *slog.Logger) *Gateway {
	size := cfg.MaxRequestSize
	if size <= 0 {
		size = defaultMaxRequestSize
	}
	return &Gateway{
		config:  cfg,
		engine:  eng,
		store:   store,
		limiter: rl,
		logger:  logger,
		okapi:   okapi.New(okapi.WithMaxMultipartMemory(size)),
	}
}

// WithNotifications attaches notification channel management to the gateway.
func (g *Gateway) WithNotifications(d *notification.Dispatcher) *Gateway {
	g.dispatcher = d
	return g
}

// WithHandler mounts an additional handler on the HTTP mux at the given pattern.
// Useful for adding the WebSocket event stream alongside the API routes.
func (g *Gateway) WithHandler(pattern string, handler http.Handler) *Gateway {
	g.extraRoutes = append(g.extraRoutes, extraRoute{pattern: pattern, handler: handler})
	return g
}

func (g *Gateway) withOpenAPIDocs() *Gateway {
	g.okapi.WithOpenAPIDocs(
		okapi.OpenAPI{
			Title:   "Samsara",
			Version: "v0.1.0",
		},
	)
	return g
}

// Name identifies this gateway in logs.
func (g *Gateway) Name() string { return "http" }

// Start launches the HTTP server and blocks until it exits or ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	// Metrics/tracing middleware (applied globally).
	if g.config.Metrics != nil || g.config.Tracer != nil {
		g.okapi.UseMiddleware(func(next http.Handler) http.Handler {
			return observability.HTTPMetricsMiddleware(g.config.Metrics, g.config.Tracer, next)
		})
	}

	// Authenticated /v1 group.
	g.group = g.okapi.Group("/v1", g.authenticate)

	// Event endpoints.
	g.group.Post("/actions", g.handleAction,
		okapi.DocSummary("Record an action and apply its karmic consequences"),
		okapi.DocTags("Actions"),
		okapi.DocRequestBody(ActionRequest{}),
		okapi.DocResponse(ActionResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
		okapi.DocResponse(http.StatusGone, ErrorBody{}),
		okapi.DocResponse(http.StatusTooManyRequests, ErrorBody{}),
	)
	g.group.Post("/plans/{id}/proofs", g.handleProof,
		okapi.DocSummary("Submit proof of atonement against a plan"),
		okapi.DocTags("Atonement"),
		okapi.DocPathParam("id", "string", "Plan ID (UUID)"),
		okapi.DocRequestBody(ProofRequest{}),
		okapi.DocResponse(ProofResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
		okapi.DocResponse(http.StatusConflict, ErrorBody{}),
		okapi.DocResponse(http.StatusUnprocessableEntity, ErrorBody{}),
	)
	g.group.Post("/appeals", g.handleAppeal,
		okapi.DocSummary("Contest a classified action"),
		okapi.DocTags("Appeals"),
		okapi.DocRequestBody(AppealRequest{}),
		okapi.DocResponse(AppealResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
		okapi.DocResponse(http.StatusConflict, ErrorBody{}),
	)

	// Identity read endpoints.
	g.group.Get("/identities/{id}", g.handleProfile,
		okapi.DocSummary("Get an identity's karma profile"),
		okapi.DocTags("Identities"),
		okapi.DocPathParam("id", "string", "Identity ID (UUID)"),
		okapi.DocResponse(ProfileResponse{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Get("/identities/{id}/actions", g.handleActionHistory,
		okapi.DocSummary("List an identity's action history"),
		okapi.DocTags("Identities"),
		okapi.DocPathParam("id", "string", "Identity ID (UUID)"),
		okapi.DocResponse([]ActionRecordResponse{}),
	)
	g.group.Get("/identities/{id}/plans", g.handlePlans,
		okapi.DocSummary("List an identity's atonement plans"),
		okapi.DocTags("Identities"),
		okapi.DocPathParam("id", "string", "Identity ID (UUID)"),
		okapi.DocResponse([]PlanResponse{}),
	)
	g.group.Get("/identities/{id}/appeals", g.handleAppeals,
		okapi.DocSummary("List an identity's appeals"),
		okapi.DocTags("Identities"),
		okapi.DocPathParam("id", "string", "Identity ID (UUID)"),
		okapi.DocResponse([]AppealRecordResponse{}),
	)
	g.group.Get("/identities/{id}/lifecycle", g.handleLifecycle,
		okapi.DocSummary("List an identity's death and rebirth events"),
		okapi.DocTags("Identities"),
		okapi.DocPathParam("id", "string", "Identity ID (UUID)"),
		okapi.DocResponse([]LifecycleEventResponse{}),
	)
	g.group.Get("/identities/{id}/audit", g.handleAudit,
		okapi.DocSummary("Recompute an identity's scores from the action log"),
		okapi.DocTags("Identities"),
		okapi.DocPathParam("id", "string", "Identity ID (UUID)"),
		okapi.DocResponse(AuditResponse{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)

	// Notification channel endpoints (only if a dispatcher is configured).
	if g.dispatcher != nil {
		g.group.Post("/notification-channels", g.handleChannelCreate,
			okapi.DocSummary("Create a notification channel"),
			okapi.DocTags("Notification Channels"),
			okapi.DocRequestBody(NotificationChannelRequest{}),
			okapi.DocResponse(http.StatusCreated, NotificationChannelResponse{}),
			okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		)
		g.group.Get("/notification-channels", g.handleChannelList,
			okapi.DocSummary("List all notification channels"),
			okapi.DocTags("Notification Channels"),
			okapi.DocResponse([]NotificationChannelResponse{}),
		)
		g.group.Get("/notification-channels/{id}", g.handleChannelGet,
			okapi.DocSummary("Get a notification channel by ID"),
			okapi.DocTags("Notification Channels"),
			okapi.DocPathParam("id", "string", "Channel ID (UUID)"),
			okapi.DocResponse(NotificationChannelResponse{}),
			okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
		)
		g.group.Put("/notification-channels/{id}", g.handleChannelUpdate,
			okapi.DocSummary("Update a notification channel"),
			okapi.DocTags("Notification Channels"),
			okapi.DocPathParam("id", "string", "Channel ID (UUID)"),
			okapi.DocRequestBody(NotificationChannelRequest{}),
			okapi.DocResponse(NotificationChannelResponse{}),
			okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
		)
		g.group.Delete("/notification-channels/{id}", g.handleChannelDelete,
			okapi.DocSummary("Delete a notification channel"),
			okapi.DocTags("Notification Channels"),
			okapi.DocPathParam("id", "string", "Channel ID (UUID)"),
			okapi.DocResponse(map[string]string{}),
			okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
		)
		g.group.Post("/notification-channels/{id}/test", g.handleChannelTest,
			okapi.DocSummary("Send a test notification"),
			okapi.DocTags("Notification Channels"),
			okapi.DocPathParam("id", "string", "Channel ID (UUID)"),
			okapi.DocResponse(map[string]string{}),
			okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		)
	}

	// Extra handlers (e.g., WebSocket event stream).
	for _, er := range g.extraRoutes {
		g.okapi.HandleStd("GET", er.pattern, er.handler.ServeHTTP)
	}

	// Observability endpoints (unauthenticated).
	g.okapi.Get("/healthz", g.handleLiveness)
	g.okapi.Get("/readyz", g.handleReadiness)

	if g.config.MetricsRegistry != nil {
		path := g.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		g.okapi.HandleStd("GET", path, promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if g.config.EnableDocs {
		g.withOpenAPIDocs()
	}

	g.server = &http.Server{
		Addr:              g.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info("http api gateway starting", slog.String("addr", g.config.ListenAddr))

	return g.okapi.StartServer(g.server)
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("http api gateway stopping")
	return g.okapi.Shutdown(g.server)
}

// HealthResponse is the JSON response for health endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleLiveness is the Kubernetes liveness probe
func (g *Gateway) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness checks all registered dependencies and returns 200 or 503.
func (g *Gateway) handleReadiness(c *okapi.Context) error {
	if g.config.HealthChecker == nil {
		return c.OK(&HealthResponse{Status: "ok"})
	}

	status := g.config.HealthChecker.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// --- Authentication ---

// authenticate validates the bearer API key with a constant-time comparison.
// When no key is configured the gateway runs open (dev mode).
func (g *Gateway) authenticate(next okapi.HandlerFunc) okapi.HandlerFunc {
	return func(c *okapi.Context) error {
		if g.config.APIKey == "" {
			return next(c)
		}
		authHeader := c.Header("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.AbortUnauthorized("missing or invalid Authorization header")
		}
		apiKey := strings.TrimPrefix(authHeader, "Bearer ")

		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(g.config.APIKey)) != 1 {
			return c.AbortUnauthorized("invalid API key")
		}
		return next(c)
	}
}

// rateLimit enforces the per-client token bucket, keyed by remote host.
// Returns nil when the request may proceed.
func (g *Gateway) rateLimit(c *okapi.Context) error {
	if g.limiter == nil {
		return nil
	}
	host, _, err := net.SplitHostPort(c.Request().RemoteAddr)
	if err != nil {
		host = c.Request().RemoteAddr
	}
	if err := g.limiter.Allow(host); err != nil {
		return c.AbortTooManyRequests("rate limit exceeded")
	}
	return nil
}

// --- Helpers ---

// domainError maps the engine's error taxonomy to HTTP responses.
func domainError(c *okapi.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrProfileNotFound),
		errors.Is(err, domain.ErrPlanNotFound),
		errors.Is(err, domain.ErrActionNotFound):
		return c.JSON(http.StatusNotFound, okapi.M{"error": err.Error()})
	case errors.Is(err, domain.ErrIdentityDeceased):
		return c.JSON(http.StatusGone, okapi.M{"error": err.Error()})
	case errors.Is(err, domain.ErrOverRedemption),
		errors.Is(err, domain.ErrNotAppealable):
		return c.JSON(http.StatusUnprocessableEntity, okapi.M{"error": err.Error()})
	case errors.Is(err, domain.ErrPlanExpired),
		errors.Is(err, domain.ErrPlanCompleted),
		errors.Is(err, domain.ErrAlreadyAppealed),
		errors.Is(err, domain.ErrDuplicateEvent):
		return c.JSON(http.StatusConflict, okapi.M{"error": err.Error()})
	case errors.Is(err, domain.ErrConcurrentConflict):
		return c.JSON(http.StatusServiceUnavailable, okapi.M{"error": "temporarily unavailable, retry the request"})
	default:
		return c.AbortInternalServerError("internal error")
	}
}
