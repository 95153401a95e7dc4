package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketChannel adapts a gorilla connection to Channel. Writes are serialized
// and bounded by a deadline.
type WebSocketChannel struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
	closeOnce    sync.Once
	closeErr     error
}

// NewWebSocketChannel wraps conn.
func NewWebSocketChannel(conn *websocket.Conn, writeTimeout time.Duration) *WebSocketChannel {
	return &WebSocketChannel{conn: conn, writeTimeout: writeTimeout}
}

// Send writes payload as a single text frame.
func (c *WebSocketChannel) Send(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close closes the underlying connection once.
func (c *WebSocketChannel) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
