package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gavinwade12/canLogger/monitor"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamInterval(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"", defaultInterval},
		{"200ms", 200 * time.Millisecond},
		{"2s", 2 * time.Second},
		{"1ms", defaultInterval},
		{"20s", defaultInterval},
		{"50", defaultInterval},
		{"bogus", defaultInterval},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, streamInterval(tc.raw), "interval %q", tc.raw)
	}
}

func dialSnapshots(t *testing.T, h *Handler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h.InitRoutes())
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	u.Scheme = "ws"
	u.Path = "/ws"
	u.RawQuery = "interval=20ms"

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) snapshot {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var env struct {
		Type string   `json:"type"`
		Data snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg, &env))
	require.Equal(t, "snapshot", env.Type)
	return env.Data
}

func TestWebSocketSnapshots(t *testing.T) {
	h, s, _ := newTestHandler(t, monitor.Config{})
	s.HandleChunk(context.Background(), "t1001AA\r")

	conn := dialSnapshots(t, h)

	first := readSnapshot(t, conn)
	require.Len(t, first.Messages, 1)
	assert.Equal(t, "100", first.Messages[0].ID)
	assert.Equal(t, []string{"100 AA"}, first.Log)
	assert.Empty(t, first.ActiveTx)
	assert.False(t, first.BusOpen)

	s.HandleChunk(context.Background(), "t2001BB\r")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap := readSnapshot(t, conn); len(snap.Messages) == 2 {
			assert.Equal(t, "200", snap.Messages[1].ID)
			assert.Equal(t, []string{"100 AA", "200 BB"}, snap.Log)
			return
		}
	}
	t.Fatal("no snapshot with the second frame")
}

func TestWebSocketSkipsUnchangedSnapshots(t *testing.T) {
	h, _, _ := newTestHandler(t, monitor.Config{})
	conn := dialSnapshots(t, h)

	readSnapshot(t, conn)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	var netErr interface{ Timeout() bool }
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}
