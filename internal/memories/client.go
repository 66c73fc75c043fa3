// Package memories fetches users' memory lists from the memories API and
// caches them as fingerprinted snapshots.
package memories

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"scent-memory-network/internal/domain/memory"
	"scent-memory-network/internal/infrastructure/observability"
	appErrors "scent-memory-network/pkg/errors"
)

const (
	serviceName = "memories"
	// maxBodySize bounds an upstream memory list.
	maxBodySize = 16 << 20
)

// Request identifies whose memories to fetch.
type Request struct {
	UserID string
	Token  string
}

// Source returns the current memory snapshot of a user.
type Source interface {
	GetMemories(ctx context.Context, req Request) (*memory.Snapshot, error)
}

// BreakerConfig holds configuration for the upstream circuit breaker.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for the breaker
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// ClientConfig configures the HTTP client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Breaker BreakerConfig
}

// Client calls GET {BaseURL}/memories/ with the caller's bearer token.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	metrics *observability.Collector
	tracer  trace.Tracer
	logger  *zap.Logger
	now     func() time.Time
}

// NewClient creates a memories API client. metrics may be nil.
func NewClient(config ClientConfig, metrics *observability.Collector, logger *zap.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("memories API base URL is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Breaker == (BreakerConfig{}) {
		config.Breaker = DefaultBreakerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL: base,
		http:    &http.Client{Timeout: config.Timeout},
		metrics: metrics,
		tracer:  observability.Tracer(),
		logger:  logger.Named("memories"),
		now:     time.Now,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        serviceName,
		MaxRequests: config.Breaker.MaxRequests,
		Interval:    config.Breaker.Interval,
		Timeout:     config.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.Breaker.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= config.Breaker.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: isBreakerSuccess,
	})
	return c, nil
}

// GetMemories fetches and validates the user's memory list. Malformed
// records are dropped and logged; the rest form the snapshot.
func (c *Client) GetMemories(ctx context.Context, req Request) (snap *memory.Snapshot, err error) {
	ctx, span := c.tracer.Start(ctx, "memories.GetMemories",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("user.id", req.UserID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	start := c.now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, req)
	})
	c.metrics.ObserveUpstream(outcome(err), c.now().Sub(start))

	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, appErrors.NewUnavailableError(serviceName).WithCause(err)
		default:
			return nil, err
		}
	}

	snap = result.(*memory.Snapshot)
	span.SetAttributes(
		attribute.Int("memories.count", len(snap.Records)),
		attribute.String("memories.fingerprint", snap.FingerprintHex()),
	)
	return snap, nil
}

func (c *Client) fetch(ctx context.Context, req Request) (*memory.Snapshot, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/memories/", nil)
	if err != nil {
		return nil, appErrors.NewInternalError("failed to build memories request").WithCause(err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, appErrors.NewTimeoutError("fetch memories").WithCause(err)
		}
		return nil, appErrors.NewNetworkError("memories API unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, appErrors.NewNetworkError("failed to read memories response", err)
	}

	if err := statusError(resp, body); err != nil {
		return nil, err
	}

	batch, err := memory.DecodeRecords(body)
	if err != nil {
		return nil, appErrors.NewExternalError(serviceName, err)
	}
	for _, r := range batch.Rejected {
		c.logger.Warn("Dropped malformed memory",
			zap.String("userID", req.UserID),
			zap.Int("index", r.Index),
			zap.String("memoryID", r.ID),
			zap.String("reason", r.Reason),
		)
	}
	for _, w := range batch.Warnings {
		c.logger.Debug("Cleared invalid memory field",
			zap.String("memoryID", w.ID),
			zap.String("reason", w.Reason),
		)
	}

	return memory.NewSnapshot(batch.Records, c.now()), nil
}

// statusError maps non-2xx upstream responses onto application errors.
func statusError(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	cause := fmt.Errorf("status %d: %s", resp.StatusCode, detail)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		err := appErrors.NewRateLimitError("memories API rate limit exceeded")
		if retry := resp.Header.Get("Retry-After"); retry != "" {
			err = err.WithDetails(map[string]interface{}{"retry_after": retry})
		}
		return err.WithCause(cause)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return appErrors.NewUnauthorizedError("memories API rejected the token").WithCause(cause)
	default:
		return appErrors.NewExternalError(serviceName, cause).WithCode(fmt.Sprintf("UPSTREAM_%d", resp.StatusCode))
	}
}

// isBreakerSuccess keeps caller-side failures from tripping the breaker.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	return appErrors.IsRateLimit(err) || appErrors.IsUnauthorized(err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case appErrors.IsRateLimit(err):
		return "rate_limited"
	case appErrors.IsUnauthorized(err):
		return "unauthorized"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	default:
		return "error"
	}
}

// Check reports the upstream as unavailable while the breaker is open.
func (c *Client) Check(context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return appErrors.NewUnavailableError(serviceName)
	}
	return nil
}
