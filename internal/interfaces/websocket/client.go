package websocket

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"scent-memory-network/internal/domain/interaction"
	"scent-memory-network/internal/view"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4 * 1024

	// Send buffer size
	sendBufferSize = 256
)

// Client is one browser connection hosting one interactive session.
type Client struct {
	id      string
	userID  string
	token   string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	session *view.Session
	logger  *zap.Logger

	closeOnce sync.Once
	dropped   atomic.Int64
}

// NewClient creates a client for an upgraded connection. The session is
// attached with Attach before Start.
func NewClient(userID, token string, hub *Hub, conn *websocket.Conn, logger *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:     id,
		userID: userID,
		token:  token,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger.With(
			zap.String("userID", userID),
			zap.String("connectionID", id),
		),
	}
}

// Attach binds the session whose events this client forwards.
func (c *Client) Attach(session *view.Session) {
	c.session = session
}

// Listener returns session callbacks that forward to the browser.
func (c *Client) Listener() view.Listener {
	return view.Listener{
		OnHoverChange: func(info *interaction.HoverInfo) {
			c.Send(MessageHover, HoverData{Node: info, Tooltip: view.Tooltip(info)})
		},
		OnEdgeHoverChange: func(label *string) {
			c.Send(MessageEdgeHover, EdgeHoverData{Label: label})
		},
		OnView: func(v view.View) {
			c.Send(MessageView, v)
		},
	}
}

// Start registers with the hub and begins the read and write pumps.
func (c *Client) Start() {
	c.hub.register <- c

	go c.writePump()
	go c.readPump()
}

// Send queues a message without blocking. Messages are dropped when the
// peer is not keeping up.
func (c *Client) Send(messageType string, data interface{}) bool {
	msg, err := newMessage(c.userID, messageType, data)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err), zap.String("messageType", messageType))
		return false
	}
	raw, err := marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err), zap.String("messageType", messageType))
		return false
	}
	return c.enqueue(raw)
}

func (c *Client) enqueue(raw []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- raw:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// readPump feeds browser commands to the session until the connection
// closes, then tears the session down.
func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket read error", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			c.handleTextMessage(message)
		case websocket.BinaryMessage:
			c.logger.Warn("Binary messages not supported")
		}
	}
}

// writePump pumps queued messages to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("Failed to write message", zap.Error(err))
				return
			}

			// Drain what queued up meanwhile
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					c.logger.Debug("Failed to write batched message", zap.Error(err))
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) handleTextMessage(message []byte) {
	var cmd Command
	if err := json.Unmarshal(message, &cmd); err != nil {
		c.logger.Debug("Ignoring malformed command", zap.Error(err))
		return
	}
	if err := c.dispatch(cmd); err != nil {
		c.Send(MessageError, ErrorData{Message: err.Error()})
	}
}

func (c *Client) dispatch(cmd Command) error {
	switch cmd.Type {
	case CommandPointerDown:
		return c.session.PointerDown(cmd.X, cmd.Y)
	case CommandPointerMove:
		return c.session.PointerMove(cmd.X, cmd.Y)
	case CommandPointerUp:
		return c.session.PointerUp(cmd.X, cmd.Y)
	case CommandPointerLeave:
		return c.session.PointerLeave()
	case CommandResize:
		if cmd.Width <= 0 || cmd.Height <= 0 {
			return fmt.Errorf("invalid viewport %dx%d", cmd.Width, cmd.Height)
		}
		return c.session.Resize(cmd.Width, cmd.Height)
	case CommandLegend:
		return c.session.SetLegendVisible(cmd.Visible)
	case CommandRefresh:
		go c.hub.refreshClient(c)
		return nil
	case CommandPong:
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd.Type)
	}
}

// close ends the session before leaving the hub so no session callback
// runs after the client is gone.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.session != nil {
			c.session.Close()
		}
		close(c.done)
		c.hub.leave(c)
		c.conn.Close()

		c.logger.Info("Connection closed", zap.Int64("droppedMessages", c.dropped.Load()))
	})
}

// GetID returns the client's connection ID
func (c *Client) GetID() string {
	return c.id
}

// GetUserID returns the client's user ID
func (c *Client) GetUserID() string {
	return c.userID
}
