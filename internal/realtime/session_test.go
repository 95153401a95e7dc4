package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startSessionServer(t *testing.T, registry *Registry, snapshots SnapshotSource) *httptest.Server {
	t.Helper()
	handler, err := NewSessionHandler(SessionConfig{
		Registry:     registry,
		Snapshots:    snapshots,
		WriteTimeout: time.Second,
	})
	require.NoError(t, err)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = handler.ServeWebSocket(w, r, r.URL.Query().Get("user_id"))
	}))
	t.Cleanup(server.Close)
	return server
}

func dialSession(t *testing.T, server *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?user_id=" + userID
	conn, response, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if response != nil && response.Body != nil {
		_ = response.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var message map[string]any
	require.NoError(t, json.Unmarshal(payload, &message))
	return message
}

func TestSessionSendsInitialDataAndAnswersPing(t *testing.T) {
	registry := NewRegistry(RegistryConfig{})
	server := startSessionServer(t, registry, &stubSnapshots{counts: map[string]int{"alice": 2}})
	conn := dialSession(t, server, "alice")

	initial := readMessage(t, conn)
	assert.Equal(t, TypeInitialData, initial["type"])
	assert.Equal(t, map[string]any{"alice": float64(2)}, initial["data"])
	assert.NotEmpty(t, initial["timestamp"])
	require.Eventually(t, func() bool { return registry.ActiveUsers() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	pong := readMessage(t, conn)
	assert.Equal(t, TypePong, pong["type"])
	assert.NotEmpty(t, pong["timestamp"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	var netErr interface{ Timeout() bool }
	require.True(t, errors.As(err, &netErr) && netErr.Timeout(), "expected no further messages, got %v", err)
}

func TestSessionFallsBackToEmptySnapshot(t *testing.T) {
	registry := NewRegistry(RegistryConfig{})
	server := startSessionServer(t, registry, &stubSnapshots{errs: []error{errors.New("query failed")}})
	conn := dialSession(t, server, "")

	initial := readMessage(t, conn)
	assert.Equal(t, TypeInitialData, initial["type"])
	assert.Equal(t, map[string]any{}, initial["data"])
}

func TestSessionUnregistersOnClientClose(t *testing.T) {
	registry := NewRegistry(RegistryConfig{})
	server := startSessionServer(t, registry, &stubSnapshots{counts: map[string]int{}})
	conn := dialSession(t, server, "bob")
	readMessage(t, conn)
	require.Equal(t, 1, registry.Len())

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, registry.ActiveUsers())
}

func TestNewSessionHandlerRequiresCollaborators(t *testing.T) {
	_, err := NewSessionHandler(SessionConfig{Snapshots: &stubSnapshots{}})
	assert.Error(t, err)
	_, err = NewSessionHandler(SessionConfig{Registry: NewRegistry(RegistryConfig{})})
	assert.Error(t, err)
}
