// Package di wires the service together with Wire.
package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/wire"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"scent-memory-network/internal/application/queries"
	"scent-memory-network/internal/clock"
	"scent-memory-network/internal/config"
	"scent-memory-network/internal/domain/interaction"
	"scent-memory-network/internal/domain/memory"
	"scent-memory-network/internal/domain/network"
	"scent-memory-network/internal/infrastructure/cache"
	"scent-memory-network/internal/infrastructure/observability"
	"scent-memory-network/internal/interfaces/http/rest"
	"scent-memory-network/internal/interfaces/http/rest/handlers"
	"scent-memory-network/internal/interfaces/websocket"
	"scent-memory-network/internal/memories"
	"scent-memory-network/internal/notify"
	"scent-memory-network/internal/view"
	"scent-memory-network/pkg/auth"
	appErrors "scent-memory-network/pkg/errors"
)

// Version is reported by the health endpoints.
var Version = "dev"

// metricsNamespace prefixes every exported metric.
const metricsNamespace = "scent_memory"

// SuperSet combines all provider sets for the complete application.
var SuperSet = wire.NewSet(
	InfrastructureProviders,
	DomainProviders,
	ApplicationProviders,
	InterfaceProviders,
	wire.Struct(new(Container), "*"),
)

// InfrastructureProviders provides logging, telemetry and upstream access.
var InfrastructureProviders = wire.NewSet(
	provideLogger,
	provideMetrics,
	provideTracing,
	provideSnapshotCache,
	provideMemoriesClient,
	provideCachedSource,
	wire.Bind(new(memories.Source), new(*memories.CachedSource)),
)

// DomainProviders provides the family table and graph builder.
var DomainProviders = wire.NewSet(
	provideFamilyRegistry,
	provideBuilder,
	provideTheme,
)

// ApplicationProviders provides the query service.
var ApplicationProviders = wire.NewSet(
	queries.NewNetworkQueryService,
)

// InterfaceProviders provides the HTTP and WebSocket surface.
var InterfaceProviders = wire.NewSet(
	provideErrorHandler,
	provideValidator,
	provideNotifierFactory,
	provideHub,
	provideWebSocketServer,
	provideNetworkHandler,
	provideHealthHandler,
	provideRouter,
)

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var zc zap.Config
	if cfg.IsProduction() || cfg.IsLambda {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger.With(zap.String("environment", cfg.Environment)), nil
}

// provideMetrics returns nil when metrics are disabled; every consumer
// accepts a nil collector.
func provideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector(metricsNamespace)
}

func provideTracing(cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	if !cfg.EnableTracing {
		return nil, func() {}, nil
	}
	tp, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		ServiceName: observability.TracerName,
		Environment: cfg.Environment,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

func provideSnapshotCache(cfg *config.Config, logger *zap.Logger) *cache.LRU[*memory.Snapshot] {
	return cache.NewLRU[*memory.Snapshot](cfg.SnapshotCacheSize, cfg.SnapshotTTL, logger)
}

func provideMemoriesClient(cfg *config.Config, metrics *observability.Collector, logger *zap.Logger) (*memories.Client, error) {
	return memories.NewClient(memories.ClientConfig{
		BaseURL: cfg.MemoriesAPIURL,
		Timeout: cfg.UpstreamTimeout,
	}, metrics, logger)
}

func provideCachedSource(
	client *memories.Client,
	snapshots *cache.LRU[*memory.Snapshot],
	metrics *observability.Collector,
	logger *zap.Logger,
) *memories.CachedSource {
	return memories.NewCachedSource(client, snapshots, metrics, logger)
}

// provideFamilyRegistry loads the configured family table and keeps it in
// sync with the file. Without a path the built-in table is used.
func provideFamilyRegistry(cfg *config.Config, logger *zap.Logger) (*network.FamilyRegistry, func(), error) {
	registry := network.NewFamilyRegistry(nil)
	if cfg.Network.FamilyTablePath == "" {
		return registry, func() {}, nil
	}
	watcher, err := queries.WatchFamilyTable(cfg.Network.FamilyTablePath, registry, logger)
	if err != nil {
		return nil, nil, err
	}
	return registry, watcher.Stop, nil
}

func provideBuilder(cfg *config.Config, registry *network.FamilyRegistry) *network.Builder {
	return network.NewBuilder(network.BuilderConfig{
		NodeCap:             cfg.Network.NodeCap,
		Radius:              cfg.Network.SphereRadius,
		MaxDistanceFraction: cfg.Network.MaxDistanceFraction,
	}, registry)
}

func provideTheme() *view.Theme {
	return view.DefaultTheme()
}

func provideErrorHandler(cfg *config.Config, logger *zap.Logger) *appErrors.ErrorHandler {
	return appErrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// provideValidator returns nil when authentication is disabled.
func provideValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	if !cfg.EnableAuth || cfg.IsLambda {
		return nil, nil
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required when authentication is enabled")
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     cfg.JWTSecret,
		Issuer:        cfg.JWTIssuer,
	})
}

func provideNotifierFactory(cfg *config.Config, logger *zap.Logger) websocket.NotifierFactory {
	dialer := notify.WebsocketDialer{}
	return func(userID string) (websocket.Notifier, error) {
		endpoint, err := notify.EndpointFor(cfg.NotifyWSURL, userID)
		if err != nil {
			return nil, err
		}
		return notify.NewClient(notify.Config{
			URL:            endpoint,
			ReconnectDelay: cfg.ReconnectDelay,
		}, dialer, clock.Real{}, logger.With(zap.String("userID", userID))), nil
	}
}

func provideHub(
	service *queries.NetworkQueryService,
	source *memories.CachedSource,
	notifiers websocket.NotifierFactory,
	theme *view.Theme,
	metrics *observability.Collector,
	logger *zap.Logger,
) *websocket.Hub {
	return websocket.NewHub(websocket.HubConfig{
		Fetcher:     service,
		Invalidator: source,
		Notifiers:   notifiers,
		Theme:       theme,
		Metrics:     metrics,
	}, logger)
}

func provideWebSocketServer(
	cfg *config.Config,
	hub *websocket.Hub,
	service *queries.NetworkQueryService,
	validator *auth.JWTValidator,
	logger *zap.Logger,
) *websocket.Server {
	sc := websocket.DefaultServerConfig()
	sc.Interaction = interaction.DefaultConfig()
	sc.Interaction.CameraDistance = cfg.Interaction.CameraDistance
	sc.Interaction.FieldOfView = cfg.Interaction.FieldOfView
	sc.FrameInterval = cfg.Interaction.FrameInterval
	sc.FrameSendEvery = cfg.Interaction.FrameSendEvery
	sc.Viewport = cfg.Interaction.DefaultViewport
	if cfg.EnableCORS && len(cfg.AllowedOrigins) > 0 {
		sc.CheckOrigin = originChecker(cfg.AllowedOrigins)
	}
	return websocket.NewServer(hub, service, validator, sc, logger)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

func provideNetworkHandler(
	service *queries.NetworkQueryService,
	logger *zap.Logger,
	errorHandler *appErrors.ErrorHandler,
) *handlers.NetworkHandler {
	return handlers.NewNetworkHandler(service, logger, errorHandler)
}

func provideHealthHandler(client *memories.Client) *handlers.HealthHandler {
	return handlers.NewHealthHandler(Version, map[string]handlers.Check{
		"memories_api": client.Check,
	})
}

func provideRouter(
	cfg *config.Config,
	networkHandler *handlers.NetworkHandler,
	health *handlers.HealthHandler,
	sessions *websocket.Server,
	validator *auth.JWTValidator,
	metrics *observability.Collector,
	logger *zap.Logger,
	errorHandler *appErrors.ErrorHandler,
) http.Handler {
	// API Gateway cannot hold the session socket open.
	if cfg.IsLambda {
		sessions = nil
	}
	return rest.NewRouter(rest.RouterConfig{
		ServiceName:    observability.TracerName,
		EnableCORS:     cfg.EnableCORS,
		AllowedOrigins: cfg.AllowedOrigins,
		Lambda:         cfg.IsLambda,
	}, networkHandler, health, sessions, validator, metrics, logger, errorHandler).Setup()
}
