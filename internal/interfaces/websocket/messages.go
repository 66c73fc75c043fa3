package websocket

import (
	"encoding/json"
	"time"

	"scent-memory-network/internal/domain/interaction"
)

// Command types sent by the browser.
const (
	CommandPointerDown  = "pointer_down"
	CommandPointerMove  = "pointer_move"
	CommandPointerUp    = "pointer_up"
	CommandPointerLeave = "pointer_leave"
	CommandResize       = "resize"
	CommandLegend       = "legend"
	CommandRefresh      = "refresh"
	CommandPong         = "pong"
)

// Message types sent to the browser.
const (
	MessageHover     = "hover"
	MessageEdgeHover = "edge_hover"
	MessageFrame     = "frame"
	MessageView      = "view"
	MessageNotice    = "notice"
	MessageError     = "error"
	MessagePing      = "ping"
)

// Command is one input event from the browser.
type Command struct {
	Type    string  `json:"type"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Visible bool    `json:"visible"`
}

// BroadcastMessage is the envelope of every outbound message.
type BroadcastMessage struct {
	UserID    string          `json:"-"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// HoverData accompanies a hover message. Node is nil when nothing is
// hovered.
type HoverData struct {
	Node    *interaction.HoverInfo `json:"node"`
	Tooltip []string               `json:"tooltip"`
}

// EdgeHoverData carries the hovered edge label, or null.
type EdgeHoverData struct {
	Label *string `json:"label"`
}

// Notice is a toast shown to the user.
type Notice struct {
	Event    string `json:"event"`
	MemoryID string `json:"memory_id,omitempty"`
	Text     string `json:"text"`
}

// ErrorData reports a failed command or refresh.
type ErrorData struct {
	Message string `json:"message"`
}

func newMessage(userID, messageType string, data interface{}) (*BroadcastMessage, error) {
	msg := &BroadcastMessage{
		UserID:    userID,
		Type:      messageType,
		Timestamp: time.Now().Unix(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return msg, nil
}

func marshal(m *BroadcastMessage) ([]byte, error) {
	return json.Marshal(m)
}
