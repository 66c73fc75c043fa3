package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"scent-memory-network/internal/domain/memory"
	"scent-memory-network/internal/infrastructure/observability"
	"scent-memory-network/internal/notify"
	"scent-memory-network/internal/view"
	appErrors "scent-memory-network/pkg/errors"
)

const refreshTimeout = 15 * time.Second

// SnapshotFetcher loads a user's current memories.
type SnapshotFetcher interface {
	Snapshot(ctx context.Context, userID, token string) (*memory.Snapshot, error)
}

// Invalidator drops cached memories of a user.
type Invalidator interface {
	Invalidate(userID string)
}

// Notifier follows one user's processing notifications. *notify.Client
// satisfies it.
type Notifier interface {
	OnEvent(fn func(notify.Event))
	OnStateChange(fn func(from, to notify.Status))
	Run(ctx context.Context) error
}

// NotifierFactory creates the notifier of a user.
type NotifierFactory func(userID string) (Notifier, error)

// HubConfig wires the hub to the rest of the service. Invalidator,
// Notifiers and Metrics may be nil.
type HubConfig struct {
	Fetcher     SnapshotFetcher
	Invalidator Invalidator
	Notifiers   NotifierFactory
	Theme       *view.Theme
	Metrics     *observability.Collector
}

// Hub tracks live sessions per user. While a user has at least one
// session it follows that user's notifications and refreshes the sessions
// when a memory finishes processing.
type Hub struct {
	// User connections - one user can have multiple connections
	connections map[string]map[*Client]bool
	watchers    map[string]context.CancelFunc
	mu          sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	events     chan userEvent

	ctx    context.Context
	cancel context.CancelFunc
	config HubConfig
	logger *zap.Logger

	metrics *HubMetrics
}

type userEvent struct {
	userID string
	event  notify.Event
}

// HubMetrics tracks WebSocket metrics
type HubMetrics struct {
	ActiveConnections int64
	MessagesSent      int64
	MessagesFailed    int64
	Notifications     int64
	mu                sync.RWMutex
}

// NewHub creates a hub. Run must be started before clients register.
func NewHub(config HubConfig, logger *zap.Logger) *Hub {
	if config.Theme == nil {
		config.Theme = view.DefaultTheme()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		connections: make(map[string]map[*Client]bool),
		watchers:    make(map[string]context.CancelFunc),
		register:    make(chan *Client, 100),
		unregister:  make(chan *Client, 100),
		broadcast:   make(chan *BroadcastMessage, 1000),
		events:      make(chan userEvent, 100),
		ctx:         ctx,
		cancel:      cancel,
		config:      config,
		logger:      logger,
		metrics:     &HubMetrics{},
	}
}

// Context is cancelled when the hub stops. Sessions live under it.
func (h *Hub) Context() context.Context {
	return h.ctx
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("Hub shutting down")
			h.closeAllConnections()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastToUser(message)

		case ev := <-h.events:
			h.handleEvent(ev)

		case <-ticker.C:
			h.performHealthCheck()
		}
	}
}

// Stop gracefully shuts down the hub
func (h *Hub) Stop() {
	h.logger.Info("Stopping WebSocket hub")
	h.cancel()
}

// SendToUser sends a message to all connections of a specific user
func (h *Hub) SendToUser(userID string, messageType string, data interface{}) error {
	message, err := newMessage(userID, messageType, data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	select {
	case h.broadcast <- message:
		return nil
	case <-h.ctx.Done():
		return fmt.Errorf("hub stopped, message dropped")
	case <-time.After(5 * time.Second):
		return fmt.Errorf("broadcast channel full, message dropped")
	}
}

// leave is called by a closing client.
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[client.userID] == nil {
		h.connections[client.userID] = make(map[*Client]bool)
	}
	h.connections[client.userID][client] = true
	if _, watching := h.watchers[client.userID]; !watching {
		h.startWatcher(client.userID)
	}

	h.metrics.mu.Lock()
	h.metrics.ActiveConnections++
	h.metrics.mu.Unlock()
	h.config.Metrics.SessionOpened()

	h.logger.Info("Client registered",
		zap.String("userID", client.userID),
		zap.String("connectionID", client.id),
		zap.Int("userConnections", len(h.connections[client.userID])),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.connections[client.userID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)

	// Last session of the user: stop following notifications
	if len(clients) == 0 {
		delete(h.connections, client.userID)
		if stop, ok := h.watchers[client.userID]; ok {
			stop()
			delete(h.watchers, client.userID)
		}
	}

	h.metrics.mu.Lock()
	h.metrics.ActiveConnections--
	h.metrics.mu.Unlock()
	h.config.Metrics.SessionClosed()

	h.logger.Info("Client unregistered",
		zap.String("userID", client.userID),
		zap.String("connectionID", client.id),
		zap.Int("remainingConnections", len(clients)),
	)
}

// startWatcher runs the user's notifier until the user's last session
// leaves. Called with h.mu held.
func (h *Hub) startWatcher(userID string) {
	if h.config.Notifiers == nil {
		return
	}
	notifier, err := h.config.Notifiers(userID)
	if err != nil {
		h.logger.Error("Failed to create notifier", zap.String("userID", userID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(h.ctx)
	h.watchers[userID] = cancel

	notifier.OnEvent(func(e notify.Event) {
		select {
		case h.events <- userEvent{userID: userID, event: e}:
		case <-ctx.Done():
		}
	})
	notifier.OnStateChange(func(from, to notify.Status) {
		h.config.Metrics.NotifyTransition(string(from.State), string(to.State))
		h.logger.Info("Notification stream state changed",
			zap.String("userID", userID),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	})

	go notifier.Run(ctx)
}

func (h *Hub) handleEvent(ev userEvent) {
	h.metrics.mu.Lock()
	h.metrics.Notifications++
	h.metrics.mu.Unlock()
	h.config.Metrics.NotifyEvent(ev.event.Event)

	h.logger.Info("Memory notification",
		zap.String("userID", ev.userID),
		zap.String("event", ev.event.Event),
		zap.String("memoryID", ev.event.MemoryID),
	)

	if h.config.Invalidator != nil {
		h.config.Invalidator.Invalidate(ev.userID)
	}

	clients := h.clientsOf(ev.userID)
	if len(clients) == 0 {
		return
	}
	event := ev.event
	go h.refresh(ev.userID, clients, &event)
}

// refreshClient refetches for one client on request.
func (h *Hub) refreshClient(c *Client) {
	if h.config.Invalidator != nil {
		h.config.Invalidator.Invalidate(c.userID)
	}
	h.refresh(c.userID, []*Client{c}, nil)
}

// refresh refetches the user's memories and hands the snapshot to each
// session, which rebuilds only if it changed. An event also produces a
// toast.
func (h *Hub) refresh(userID string, clients []*Client, event *notify.Event) {
	ctx, cancel := context.WithTimeout(h.ctx, refreshTimeout)
	defer cancel()

	snap, err := h.config.Fetcher.Snapshot(ctx, userID, clients[0].token)
	if err != nil {
		h.logger.Warn("Failed to refresh memories", zap.String("userID", userID), zap.Error(err))
		if appErrors.ShouldNotify(err) {
			for _, c := range clients {
				c.Send(MessageError, ErrorData{Message: err.Error()})
			}
		}
	} else {
		for _, c := range clients {
			if c.session == nil {
				continue
			}
			if err := c.session.Refresh(snap); err != nil {
				h.logger.Debug("Session gone before refresh", zap.String("connectionID", c.id))
			}
		}
	}

	if event != nil {
		if err := h.SendToUser(userID, MessageNotice, h.notice(*event)); err != nil {
			h.logger.Warn("Failed to send notice", zap.String("userID", userID), zap.Error(err))
		}
	}
}

func (h *Hub) notice(e notify.Event) Notice {
	text := h.config.Theme.Toasts.MemoryProcessed
	if e.Event == notify.EventMemoryFailed {
		text = h.config.Theme.Toasts.MemoryFailed
	}
	return Notice{Event: e.Event, MemoryID: e.MemoryID, Text: text}
}

func (h *Hub) clientsOf(userID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.connections[userID]))
	for c := range h.connections[userID] {
		clients = append(clients, c)
	}
	return clients
}

// broadcastToUser sends a message to all connections of a user
func (h *Hub) broadcastToUser(message *BroadcastMessage) {
	clients := h.clientsOf(message.UserID)
	if len(clients) == 0 {
		h.logger.Debug("No active connections for user",
			zap.String("userID", message.UserID),
			zap.String("messageType", message.Type),
		)
		return
	}

	// Marshal once for all clients
	data, err := marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message",
			zap.Error(err),
			zap.String("messageType", message.Type),
		)
		return
	}

	successCount := 0
	failCount := 0
	for _, client := range clients {
		if client.enqueue(data) {
			successCount++
		} else {
			failCount++
			h.logger.Warn("Dropped message for slow client",
				zap.String("userID", client.userID),
				zap.String("connectionID", client.id),
			)
		}
	}

	h.metrics.mu.Lock()
	h.metrics.MessagesSent += int64(successCount)
	h.metrics.MessagesFailed += int64(failCount)
	h.metrics.mu.Unlock()

	h.logger.Debug("Broadcast complete",
		zap.String("userID", message.UserID),
		zap.String("messageType", message.Type),
		zap.Int("success", successCount),
		zap.Int("failed", failCount),
	)
}

// performHealthCheck pings all connections to check if they're alive
func (h *Hub) performHealthCheck() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ping, _ := marshal(&BroadcastMessage{Type: MessagePing, Timestamp: time.Now().Unix()})
	totalConnections := 0
	for userID, clients := range h.connections {
		totalConnections += len(clients)
		for client := range clients {
			if !client.enqueue(ping) {
				h.logger.Warn("Failed to ping client",
					zap.String("userID", userID),
					zap.String("connectionID", client.id),
				)
			}
		}
	}

	h.logger.Debug("Health check performed",
		zap.Int("totalConnections", totalConnections),
		zap.Int("totalUsers", len(h.connections)),
	)
}

// closeAllConnections closes all active connections during shutdown. The
// clients' read pumps then close their sessions.
func (h *Hub) closeAllConnections() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, clients := range h.connections {
		for client := range clients {
			client.conn.Close()
		}
		delete(h.connections, userID)
	}
	for userID, stop := range h.watchers {
		stop()
		delete(h.watchers, userID)
	}

	h.logger.Info("All connections closed")
}

// GetMetrics returns current hub metrics
func (h *Hub) GetMetrics() HubMetrics {
	h.metrics.mu.RLock()
	defer h.metrics.mu.RUnlock()
	return HubMetrics{
		ActiveConnections: h.metrics.ActiveConnections,
		MessagesSent:      h.metrics.MessagesSent,
		MessagesFailed:    h.metrics.MessagesFailed,
		Notifications:     h.metrics.Notifications,
	}
}

// GetConnectionCount returns the number of active connections for a user
func (h *Hub) GetConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

// IsWatching reports whether the hub follows the user's notifications.
func (h *Hub) IsWatching(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.watchers[userID]
	return ok
}
