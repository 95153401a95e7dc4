package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu       sync.Mutex
	payloads [][]byte
	failWith error
	closed   bool
}

func (c *fakeChannel) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	c.payloads = append(c.payloads, append([]byte(nil), payload...))
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) messages(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	decoded := make([]map[string]any, 0, len(c.payloads))
	for _, payload := range c.payloads {
		var message map[string]any
		require.NoError(t, json.Unmarshal(payload, &message))
		decoded = append(decoded, message)
	}
	return decoded
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type stubSnapshots struct {
	mu     sync.Mutex
	counts map[string]int
	errs   []error
	calls  int
	block  chan struct{}
}

func (s *stubSnapshots) LikeCounts(ctx context.Context) (map[string]int, error) {
	s.mu.Lock()
	s.calls++
	var err error
	if len(s.errs) > 0 {
		err = s.errs[0]
		s.errs = s.errs[1:]
	}
	block := s.block
	counts := s.counts
	s.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *stubSnapshots) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var errBrokenPipe = errors.New("broken pipe")

func requireIndexConsistent(t *testing.T, registry *Registry) {
	t.Helper()
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	for id, connection := range registry.connections {
		if connection.userID == "" {
			continue
		}
		require.Contains(t, registry.byUser[connection.userID], id)
	}
	for userID, set := range registry.byUser {
		require.NotEmpty(t, set, "empty set left behind for %s", userID)
		for id, connection := range set {
			require.Equal(t, userID, connection.userID)
			require.Contains(t, registry.connections, id)
		}
	}
}
