package realtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingText           = "ping"
	maxClientFrameSize = 4096
)

// SnapshotSource yields the current like count per user.
type SnapshotSource interface {
	LikeCounts(ctx context.Context) (map[string]int, error)
}

// SessionConfig describes the dependencies of the WebSocket session handler.
type SessionConfig struct {
	Registry     *Registry
	Snapshots    SnapshotSource
	WriteTimeout time.Duration
	// CheckOrigin overrides the upgrader origin check; nil accepts every origin.
	CheckOrigin func(r *http.Request) bool
	Clock       func() time.Time
	Logger      *zap.Logger
}

// SessionHandler upgrades requests and runs one connection per client.
type SessionHandler struct {
	registry     *Registry
	snapshots    SnapshotSource
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
	clock        func() time.Time
	logger       *zap.Logger
}

var (
	errMissingRegistry  = errors.New("realtime registry is required")
	errMissingSnapshots = errors.New("snapshot source is required")
)

// NewSessionHandler constructs the handler.
func NewSessionHandler(cfg SessionConfig) (*SessionHandler, error) {
	if cfg.Registry == nil {
		return nil, errMissingRegistry
	}
	if cfg.Snapshots == nil {
		return nil, errMissingSnapshots
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{
		registry:     cfg.Registry,
		snapshots:    cfg.Snapshots,
		writeTimeout: cfg.WriteTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clock:  clock,
		logger: logger,
	}, nil
}

// ServeWebSocket upgrades the request and blocks until the client goes away.
// On upgrade failure the HTTP error response has already been written.
func (h *SessionHandler) ServeWebSocket(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("realtime upgrade failed", zap.Error(err))
		return err
	}
	h.serve(r.Context(), conn, userID)
	return nil
}

func (h *SessionHandler) serve(ctx context.Context, conn *websocket.Conn, userID string) {
	channel := NewWebSocketChannel(conn, h.writeTimeout)
	connection := h.registry.Connect(channel, userID)
	defer func() {
		h.registry.Disconnect(connection)
		_ = channel.Close()
		h.logger.Debug("realtime connection closed", zap.Int64("connection_id", connection.id), zap.String("user_id", userID))
	}()
	h.logger.Debug("realtime connection opened", zap.Int64("connection_id", connection.id), zap.String("user_id", userID))

	counts, err := h.snapshots.LikeCounts(ctx)
	if err != nil {
		h.logger.Error("initial like snapshot failed", zap.String("user_id", userID), zap.Error(err))
		counts = map[string]int{}
	}
	if err := h.registry.Send(connection, NewInitialData(counts, h.clock())); err != nil {
		return
	}

	conn.SetReadLimit(maxClientFrameSize)
	for {
		messageType, payload, readErr := conn.ReadMessage()
		if readErr != nil {
			if websocket.IsUnexpectedCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("realtime connection read failed", zap.String("user_id", userID), zap.Error(readErr))
			}
			return
		}
		if messageType != websocket.TextMessage || string(payload) != pingText {
			continue
		}
		if err := h.registry.Send(connection, NewPong(h.clock())); err != nil {
			return
		}
	}
}
