// Package websocket hosts interactive network sessions over WebSocket:
// pointer input comes in, hover changes, frames and shell views go out.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"scent-memory-network/internal/clock"
	"scent-memory-network/internal/domain/interaction"
	"scent-memory-network/internal/domain/memory"
	"scent-memory-network/internal/domain/network"
	"scent-memory-network/internal/view"
	"scent-memory-network/pkg/auth"
	appErrors "scent-memory-network/pkg/errors"
)

// maxConnectionsPerUser caps concurrent sessions of one user.
const maxConnectionsPerUser = 10

// NetworkService provides what a session is built from.
type NetworkService interface {
	SnapshotFetcher
	Builder() *network.Builder
	Theme() *view.Theme
}

// ServerConfig holds WebSocket server configuration
type ServerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool

	Interaction    interaction.Config
	FrameInterval  time.Duration
	FrameSendEvery int
	Viewport       [2]int
	Clock          clock.Clock
}

// DefaultServerConfig returns default WebSocket server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		Interaction:    interaction.DefaultConfig(),
		FrameInterval:  16 * time.Millisecond,
		FrameSendEvery: 4,
		Viewport:       [2]int{800, 600},
		Clock:          clock.Real{},
	}
}

// Server upgrades requests and opens a session per connection.
type Server struct {
	hub          *Hub
	service      NetworkService
	upgrader     websocket.Upgrader
	config       *ServerConfig
	validator    *auth.JWTValidator
	errorHandler *appErrors.ErrorHandler
	logger       *zap.Logger
}

// NewServer creates a WebSocket server. A nil validator disables
// authentication; the user is then taken from the "user" query parameter.
func NewServer(hub *Hub, service NetworkService, validator *auth.JWTValidator, config *ServerConfig, logger *zap.Logger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	if config.Clock == nil {
		config.Clock = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		hub:     hub,
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:       config,
		validator:    validator,
		errorHandler: appErrors.NewErrorHandler(logger, false),
		logger:       logger,
	}
}

// HandleWebSocket serves GET /ws/network. Query parameters: token, w, h and
// legend.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, err := s.authenticateRequest(r)
	if err != nil {
		s.logger.Warn("WebSocket authentication failed",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		s.errorHandler.Handle(w, r, appErrors.NewUnauthorizedError(err.Error()))
		return
	}

	if count := s.hub.GetConnectionCount(user.UserID); count >= maxConnectionsPerUser {
		s.logger.Warn("Connection limit exceeded for user",
			zap.String("userID", user.UserID),
			zap.Int("currentConnections", count),
		)
		s.errorHandler.Handle(w, r, appErrors.NewRateLimitError("connection limit exceeded"))
		return
	}

	// Fetch before upgrading so failures get a proper HTTP status
	snapshot, err := s.service.Snapshot(r.Context(), user.UserID, user.Token)
	if err != nil {
		s.errorHandler.Handle(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		return
	}

	client := NewClient(user.UserID, user.Token, s.hub, conn, s.logger)
	session, err := s.openSession(client, snapshot, viewport(r, s.config.Viewport), r.URL.Query().Get("legend") == "true")
	if err != nil {
		s.logger.Error("Failed to open session", zap.Error(err))
		conn.Close()
		return
	}
	client.Attach(session)
	client.Start()

	s.logger.Info("New WebSocket connection established",
		zap.String("userID", user.UserID),
		zap.String("connectionID", client.GetID()),
		zap.String("sessionID", session.ID()),
		zap.String("remoteAddr", r.RemoteAddr),
	)
}

func (s *Server) openSession(client *Client, snapshot *memory.Snapshot, size [2]int, legend bool) (*view.Session, error) {
	return view.NewSession(s.hub.Context(), view.Options{
		Builder:       s.service.Builder(),
		Acquire:       surfaceProvider(client, s.config.FrameSendEvery),
		Listener:      client.Listener(),
		Clock:         s.config.Clock,
		Theme:         s.service.Theme(),
		Interaction:   s.config.Interaction,
		FrameInterval: s.config.FrameInterval,
		Width:         size[0],
		Height:        size[1],
		LegendVisible: legend,
		Logger:        client.logger,
	}, snapshot)
}

// authenticateRequest validates the JWT token from the request
func (s *Server) authenticateRequest(r *http.Request) (*auth.UserContext, error) {
	token := r.URL.Query().Get("token")

	if token == "" {
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}

	if token == "" {
		if cookie, err := r.Cookie("auth_token"); err == nil {
			token = cookie.Value
		}
	}

	if s.validator == nil {
		userID := r.URL.Query().Get("user")
		if userID == "" {
			userID = "anonymous"
		}
		return &auth.UserContext{UserID: userID, Token: token}, nil
	}

	if token == "" {
		return nil, errors.New("no authentication token provided")
	}

	claims, err := s.validator.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	return &auth.UserContext{UserID: claims.UserID, Email: claims.Email, Token: token}, nil
}

// viewport reads the w and h query parameters, falling back to def.
func viewport(r *http.Request, def [2]int) [2]int {
	size := def
	for i, key := range [2]string{"w", "h"} {
		if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && v > 0 {
			size[i] = v
		}
	}
	return size
}

// Start runs the hub until ctx is done.
func (s *Server) Start(ctx context.Context) {
	go s.hub.Run()
	go func() {
		<-ctx.Done()
		s.hub.Stop()
	}()
}

// GetHub returns the WebSocket hub
func (s *Server) GetHub() *Hub {
	return s.hub
}
