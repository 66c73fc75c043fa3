package di

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"scent-memory-network/internal/application/queries"
	"scent-memory-network/internal/config"
	"scent-memory-network/internal/infrastructure/observability"
	"scent-memory-network/internal/interfaces/websocket"
	"scent-memory-network/internal/memories"
)

// Container holds the assembled service.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *observability.Collector
	Tracing  *observability.TracerProvider
	Source   *memories.CachedSource
	Service  *queries.NetworkQueryService
	Sessions *websocket.Server
	Router   http.Handler
}

// Start runs the session hub and the snapshot cache sweeper until ctx is
// done. Lambda deployments have no sessions and skip both.
func (c *Container) Start(ctx context.Context) {
	if c.Config.IsLambda {
		return
	}
	c.Sessions.Start(ctx)
	go c.Source.Run(ctx, c.Config.SnapshotTTL)
}

// GetRouter returns the HTTP handler.
func (c *Container) GetRouter() http.Handler {
	return c.Router
}
