// Package queries serves read models of the memory network.
package queries

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"scent-memory-network/internal/application/dto"
	"scent-memory-network/internal/domain/memory"
	"scent-memory-network/internal/domain/network"
	"scent-memory-network/internal/infrastructure/observability"
	"scent-memory-network/internal/memories"
	"scent-memory-network/internal/view"
	appErrors "scent-memory-network/pkg/errors"
)

// GetNetworkQuery asks for the network of the calling user.
type GetNetworkQuery struct {
	UserID string
	Token  string
	Legend bool
}

// InspectQuery asks for the network of a posted record list.
type InspectQuery struct {
	Body   []byte
	Legend bool
}

// NetworkQueryService builds networks from memory snapshots.
type NetworkQueryService struct {
	source  memories.Source
	builder *network.Builder
	theme   *view.Theme
	metrics *observability.Collector
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewNetworkQueryService creates a NetworkQueryService. A nil theme uses the
// embedded one; metrics may be nil.
func NewNetworkQueryService(
	source memories.Source,
	builder *network.Builder,
	theme *view.Theme,
	metrics *observability.Collector,
	logger *zap.Logger,
) *NetworkQueryService {
	if theme == nil {
		theme = view.DefaultTheme()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NetworkQueryService{
		source:  source,
		builder: builder,
		theme:   theme,
		metrics: metrics,
		tracer:  observability.Tracer(),
		logger:  logger,
	}
}

// Builder returns the graph builder shared with sessions.
func (s *NetworkQueryService) Builder() *network.Builder {
	return s.builder
}

// Theme returns the shell theme.
func (s *NetworkQueryService) Theme() *view.Theme {
	return s.theme
}

// Snapshot fetches the memory snapshot of a user.
func (s *NetworkQueryService) Snapshot(ctx context.Context, userID, token string) (*memory.Snapshot, error) {
	snap, err := s.source.GetMemories(ctx, memories.Request{UserID: userID, Token: token})
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to fetch memories")
	}
	return snap, nil
}

// GetNetwork builds the network of the calling user.
func (s *NetworkQueryService) GetNetwork(ctx context.Context, query *GetNetworkQuery) (*dto.NetworkResult, error) {
	s.logger.Debug("getting network for user", zap.String("user_id", query.UserID))

	snap, err := s.Snapshot(ctx, query.UserID, query.Token)
	if err != nil {
		return nil, err
	}

	result := s.build(ctx, snap.Records, query.Legend)
	result.Fingerprint = snap.FingerprintHex()
	return result, nil
}

// Inspect builds the network of a posted JSON record list. Malformed
// elements are dropped and listed in the result.
func (s *NetworkQueryService) Inspect(ctx context.Context, query *InspectQuery) (*dto.NetworkResult, error) {
	batch, err := memory.DecodeRecords(query.Body)
	if err != nil {
		return nil, err
	}

	result := s.build(ctx, batch.Records, query.Legend)
	result.Fingerprint = memory.NewSnapshot(batch.Records, time.Time{}).FingerprintHex()
	result.Rejected = batch.Rejected
	return result, nil
}

// Families returns the active family keyword table.
func (s *NetworkQueryService) Families() *dto.FamiliesResult {
	return dto.ToFamiliesResult(s.builder.Families().Table())
}

func (s *NetworkQueryService) build(ctx context.Context, records []memory.Record, legend bool) *dto.NetworkResult {
	_, span := s.tracer.Start(ctx, "network.Build",
		trace.WithAttributes(attribute.Int("memories.count", len(records))),
	)
	defer span.End()

	start := time.Now()
	g := s.builder.Build(records)
	elapsed := time.Since(start)

	result := dto.ToNetworkResult(g, view.Shell(s.theme, g, s.builder.Families().Table(), legend))
	s.metrics.ObserveBuild(string(g.State), result.Stats.NodeCount, result.Stats.EdgesByType, elapsed)

	span.SetAttributes(
		attribute.String("network.state", string(g.State)),
		attribute.Int("network.nodes", len(g.Nodes)),
		attribute.Int("network.edges", len(g.Edges)),
	)
	s.logger.Debug("network built",
		zap.String("state", string(g.State)),
		zap.Int("node_count", len(g.Nodes)),
		zap.Int("edge_count", len(g.Edges)),
		zap.Duration("duration", elapsed),
	)
	return result
}
