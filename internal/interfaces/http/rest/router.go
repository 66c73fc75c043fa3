// Package rest wires the HTTP surface of the service: the network API under
// /api/v1, health probes, metrics and the session WebSocket.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"scent-memory-network/internal/infrastructure/observability"
	"scent-memory-network/internal/interfaces/http/rest/handlers"
	"scent-memory-network/internal/interfaces/http/rest/middleware"
	"scent-memory-network/internal/interfaces/websocket"
	"scent-memory-network/pkg/auth"
	"scent-memory-network/pkg/errors"
)

// RouterConfig selects optional parts of the router.
type RouterConfig struct {
	ServiceName    string
	EnableCORS     bool
	AllowedOrigins []string
	// Lambda trusts API Gateway user headers instead of validating tokens.
	Lambda bool
}

// Router creates and configures the HTTP router
type Router struct {
	config       RouterConfig
	network      *handlers.NetworkHandler
	health       *handlers.HealthHandler
	sessions     *websocket.Server
	validator    *auth.JWTValidator
	metrics      *observability.Collector
	logger       *zap.Logger
	errorHandler *errors.ErrorHandler
}

// NewRouter creates a new router instance. sessions, validator and
// metrics may be nil; a nil validator disables authentication.
func NewRouter(
	config RouterConfig,
	network *handlers.NetworkHandler,
	health *handlers.HealthHandler,
	sessions *websocket.Server,
	validator *auth.JWTValidator,
	metrics *observability.Collector,
	logger *zap.Logger,
	errorHandler *errors.ErrorHandler,
) *Router {
	if config.ServiceName == "" {
		config.ServiceName = observability.TracerName
	}
	return &Router{
		config:       config,
		network:      network,
		health:       health,
		sessions:     sessions,
		validator:    validator,
		metrics:      metrics,
		logger:       logger,
		errorHandler: errorHandler,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errorHandler.Middleware)
	router.Use(middleware.Logger(rt.logger))
	router.Use(observability.MetricsMiddleware(rt.metrics))
	router.Use(observability.TracingMiddleware(rt.config.ServiceName))

	if rt.config.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.config.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.health.Liveness)
	router.Get("/ready", rt.health.Readiness)
	if rt.metrics != nil {
		router.Handle("/metrics", rt.metrics.Handler())
	}

	// The session socket authenticates on its own, tokens arrive as a
	// query parameter there.
	if rt.sessions != nil {
		router.Get("/ws/network", rt.sessions.HandleWebSocket)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authentication())

		r.Route("/network", func(r chi.Router) {
			r.Get("/", rt.network.GetNetwork)
			r.Get("/families", rt.network.GetFamilies)
			r.Post("/inspect", rt.network.Inspect)
		})
	})

	return router
}

func (rt *Router) authentication() func(http.Handler) http.Handler {
	switch {
	case rt.config.Lambda:
		return middleware.AuthenticateForLambda(rt.errorHandler)
	case rt.validator != nil:
		return middleware.AuthenticateWithConfig(rt.validator, rt.errorHandler, rt.logger)
	default:
		rt.logger.Warn("Authentication disabled for /api/v1")
		return middleware.Anonymous()
	}
}
