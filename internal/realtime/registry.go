package realtime

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultFanoutLimit = 32

// Channel is a live duplex connection to one client. Send must be safe for concurrent use.
type Channel interface {
	Send(payload []byte) error
	Close() error
}

// Connection is the registration handle returned by Connect.
type Connection struct {
	id      int64
	userID  string
	channel Channel
}

// UserID returns the user the connection was registered under, or "" for anonymous observers.
func (c *Connection) UserID() string {
	return c.userID
}

// Registry indexes live connections both as a flat set and per user.
// Both views change together under one lock.
type Registry struct {
	mu          sync.RWMutex
	connections map[int64]*Connection
	byUser      map[string]map[int64]*Connection
	nextID      int64
	fanoutLimit int
	logger      *zap.Logger
}

// RegistryConfig tunes the registry.
type RegistryConfig struct {
	// FanoutLimit bounds concurrent writes during a broadcast; zero selects a default.
	FanoutLimit int
	Logger      *zap.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	limit := cfg.FanoutLimit
	if limit <= 0 {
		limit = defaultFanoutLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		connections: make(map[int64]*Connection),
		byUser:      make(map[string]map[int64]*Connection),
		fanoutLimit: limit,
		logger:      logger,
	}
}

// Connect registers channel, optionally under userID.
func (r *Registry) Connect(channel Channel, userID string) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	connection := &Connection{id: r.nextID, userID: userID, channel: channel}
	r.connections[connection.id] = connection
	if userID != "" {
		set, ok := r.byUser[userID]
		if !ok {
			set = make(map[int64]*Connection)
			r.byUser[userID] = set
		}
		set[connection.id] = connection
	}
	connectionsGauge.Inc()
	return connection
}

// Disconnect removes the connection from both views. It reports false when the
// connection was already removed.
func (r *Registry) Disconnect(connection *Connection) bool {
	if connection == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.connections[connection.id]; !ok {
		return false
	}
	delete(r.connections, connection.id)
	if connection.userID != "" {
		if set := r.byUser[connection.userID]; set != nil {
			delete(set, connection.id)
			if len(set) == 0 {
				delete(r.byUser, connection.userID)
			}
		}
	}
	connectionsGauge.Dec()
	return true
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// ActiveUsers returns the number of distinct user ids with at least one connection.
func (r *Registry) ActiveUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Send writes message to a single connection. A failed write drops the connection.
func (r *Registry) Send(connection *Connection, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		r.logger.Error("realtime message encoding failed", zap.String("type", message.Type), zap.Error(err))
		return err
	}
	if err := connection.channel.Send(payload); err != nil {
		r.dropFailed(connection, message.Type, err)
		return err
	}
	return nil
}

// Broadcast writes message to every registered connection and returns the number of
// successful deliveries.
func (r *Registry) Broadcast(message Message) int {
	r.mu.RLock()
	targets := make([]*Connection, 0, len(r.connections))
	for _, connection := range r.connections {
		targets = append(targets, connection)
	}
	r.mu.RUnlock()
	return r.deliver(message, targets)
}

// SendToUser writes message to every connection of userID; a user without connections is a no-op.
func (r *Registry) SendToUser(userID string, message Message) int {
	r.mu.RLock()
	set := r.byUser[userID]
	targets := make([]*Connection, 0, len(set))
	for _, connection := range set {
		targets = append(targets, connection)
	}
	r.mu.RUnlock()
	return r.deliver(message, targets)
}

// CloseAll disconnects and closes every registered connection.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	targets := make([]*Connection, 0, len(r.connections))
	for _, connection := range r.connections {
		targets = append(targets, connection)
	}
	r.mu.RUnlock()
	for _, connection := range targets {
		if r.Disconnect(connection) {
			_ = connection.channel.Close()
		}
	}
}

func (r *Registry) deliver(message Message, targets []*Connection) int {
	if len(targets) == 0 {
		return 0
	}
	payload, err := json.Marshal(message)
	if err != nil {
		r.logger.Error("realtime message encoding failed", zap.String("type", message.Type), zap.Error(err))
		return 0
	}
	broadcastsTotal.WithLabelValues(message.Type).Inc()

	var delivered atomic.Int64
	var group errgroup.Group
	group.SetLimit(r.fanoutLimit)
	for _, connection := range targets {
		connection := connection
		group.Go(func() error {
			if sendErr := connection.channel.Send(payload); sendErr != nil {
				r.dropFailed(connection, message.Type, sendErr)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = group.Wait()
	return int(delivered.Load())
}

func (r *Registry) dropFailed(connection *Connection, messageType string, err error) {
	if !r.Disconnect(connection) {
		return
	}
	_ = connection.channel.Close()
	deliveryFailuresTotal.Inc()
	r.logger.Warn("realtime delivery failed; connection dropped",
		zap.Int64("connection_id", connection.id),
		zap.String("user_id", connection.userID),
		zap.String("type", messageType),
		zap.Error(err))
}
