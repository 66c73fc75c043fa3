package memories

import (
	"context"
	"time"

	"go.uber.org/zap"

	"scent-memory-network/internal/domain/memory"
	"scent-memory-network/internal/infrastructure/cache"
	"scent-memory-network/internal/infrastructure/observability"
)

// CachedSource serves snapshots from an LRU keyed by user id and falls back
// to the wrapped source on a miss. Requests without a user id bypass the
// cache.
type CachedSource struct {
	source  Source
	cache   *cache.LRU[*memory.Snapshot]
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewCachedSource wraps source with c.
func NewCachedSource(source Source, c *cache.LRU[*memory.Snapshot], metrics *observability.Collector, logger *zap.Logger) *CachedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSource{source: source, cache: c, metrics: metrics, logger: logger}
}

func (s *CachedSource) GetMemories(ctx context.Context, req Request) (*memory.Snapshot, error) {
	if req.UserID == "" {
		return s.source.GetMemories(ctx, req)
	}

	if snap, ok := s.cache.Get(req.UserID); ok {
		s.metrics.CacheLookup(true)
		return snap, nil
	}
	s.metrics.CacheLookup(false)

	snap, err := s.source.GetMemories(ctx, req)
	if err != nil {
		return nil, err
	}
	s.cache.Set(req.UserID, snap)
	return snap, nil
}

// Invalidate drops the cached snapshot of a user so the next read refetches.
func (s *CachedSource) Invalidate(userID string) {
	if s.cache.Delete(userID) {
		s.logger.Debug("Invalidated memory snapshot", zap.String("userID", userID))
	}
}

// Stats exposes cache statistics.
func (s *CachedSource) Stats() cache.Stats {
	return s.cache.Stats()
}

// Run drops expired snapshots every interval until ctx is done.
func (s *CachedSource) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *CachedSource) sweep() int {
	removed := s.cache.CleanupExpired()
	stats := s.Stats()
	s.metrics.CacheSize(stats.Items)
	if removed > 0 {
		s.logger.Debug("Swept snapshot cache",
			zap.Int("expired", removed),
			zap.Int("items", stats.Items),
			zap.Float64("hitRate", stats.HitRate),
		)
	}
	return removed
}

// StaticSource serves a fixed record list to every caller.
type StaticSource struct {
	snapshot *memory.Snapshot
}

// NewStaticSource fingerprints records once.
func NewStaticSource(records []memory.Record) *StaticSource {
	return &StaticSource{snapshot: memory.NewSnapshot(records, time.Now())}
}

func (s *StaticSource) GetMemories(context.Context, Request) (*memory.Snapshot, error) {
	return s.snapshot, nil
}
