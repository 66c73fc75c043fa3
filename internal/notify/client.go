// Package notify keeps a connection to the memory notification stream open
// and reports processing events. Reconnection is a fixed-delay state
// machine with no attempt limit.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"scent-memory-network/internal/clock"
)

// DefaultReconnectDelay is the wait between connection attempts.
const DefaultReconnectDelay = 3 * time.Second

// Event types emitted by the processing pipeline.
const (
	EventMemoryProcessed = "memory_processed"
	EventMemoryFailed    = "memory_failed"
)

// Event is one message of the notification stream.
type Event struct {
	Event    string `json:"event"`
	MemoryID string `json:"memory_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// Known reports whether the event is one the service acts on.
func (e Event) Known() bool {
	return e.Event == EventMemoryProcessed || e.Event == EventMemoryFailed
}

// State is the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// Status is the state plus the reconnect attempt, which is non-zero only
// while reconnecting.
type Status struct {
	State   State `json:"state"`
	Attempt int   `json:"attempt,omitempty"`
}

func (s Status) String() string {
	if s.State == StateReconnecting {
		return fmt.Sprintf("%s(%d)", s.State, s.Attempt)
	}
	return string(s.State)
}

// Conn is the read side of a message connection. *websocket.Conn
// satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens connections to the notification stream.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func (d WebsocketDialer) Dial(ctx context.Context, u string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, u, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// EndpointFor builds the per-user stream URL {base}/ws/{userID}.
func EndpointFor(base, userID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid notification URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid notification URL scheme %q", u.Scheme)
	}
	return u.String() + "/ws/" + url.PathEscape(userID), nil
}

// Config configures a Client.
type Config struct {
	URL            string
	ReconnectDelay time.Duration
}

// Client follows one notification stream until its context ends.
type Client struct {
	config Config
	dialer Dialer
	clock  clock.Clock
	logger *zap.Logger

	onEvent func(Event)
	onState func(from, to Status)

	mu     sync.Mutex
	status Status
}

// NewClient creates a client in the disconnected state. A nil clock uses
// wall time.
func NewClient(config Config, dialer Dialer, clk clock.Clock, logger *zap.Logger) *Client {
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = DefaultReconnectDelay
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config: config,
		dialer: dialer,
		clock:  clk,
		logger: logger.Named("notify"),
		status: Status{State: StateDisconnected},
	}
}

// OnEvent registers the event handler. Call before Run.
func (c *Client) OnEvent(fn func(Event)) {
	c.onEvent = fn
}

// OnStateChange registers a transition observer. Call before Run.
func (c *Client) OnStateChange(fn func(from, to Status)) {
	c.onState = fn
}

// Status returns the current connection status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Run connects and keeps reconnecting until ctx is done, then returns
// ctx.Err() in the disconnected state. Events are delivered at least once
// per received message, in arrival order.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		conn, err := c.dialer.Dial(ctx, c.config.URL)
		if err == nil {
			attempt = 0
			c.transition(Status{State: StateConnected})
			err = c.read(ctx, conn)
		}
		if ctx.Err() != nil {
			c.transition(Status{State: StateDisconnected})
			return ctx.Err()
		}

		attempt++
		c.logger.Warn("Notification stream lost",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("retryIn", c.config.ReconnectDelay),
		)
		c.transition(Status{State: StateReconnecting, Attempt: attempt})

		select {
		case <-ctx.Done():
			c.transition(Status{State: StateDisconnected})
			return ctx.Err()
		case <-c.clock.After(c.config.ReconnectDelay):
		}
	}
}

// read consumes messages until the connection fails or ctx ends.
func (c *Client) read(ctx context.Context, conn Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("Ignoring malformed notification", zap.Error(err))
			continue
		}
		if !ev.Known() {
			c.logger.Debug("Ignoring unknown notification", zap.String("event", ev.Event))
			continue
		}
		if c.onEvent != nil {
			c.onEvent(ev)
		}
	}
}

func (c *Client) transition(to Status) {
	c.mu.Lock()
	from := c.status
	c.status = to
	c.mu.Unlock()

	if from == to {
		return
	}
	c.logger.Debug("Notification state changed",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	if c.onState != nil {
		c.onState(from, to)
	}
}
