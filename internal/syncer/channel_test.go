package syncer

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfloris/doctran/internal/metrics"
)

func TestReconnectDelay(t *testing.T) {
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{6, 10 * time.Second},
		{20, 10 * time.Second},
		{0, time.Second},
	}

	for _, tt := range tests {
		if got := reconnectDelay(tt.failures); got != tt.want {
			t.Errorf("reconnectDelay(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// pushServer is a websocket endpoint that sends the given messages to every
// connection and then holds it open.
func pushServer(t *testing.T, messages ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestChannelDeliversMessages(t *testing.T) {
	srv := pushServer(t, `{"type":"one"}`, `{"type":"two"}`)

	var received atomic.Int64
	ch := NewChannel(func() string { return wsURL(srv) }, func(msg []byte) {
		received.Add(1)
	}, nil, discardLogger())

	ch.Start()
	defer ch.Stop()

	waitFor(t, func() bool { return received.Load() == 2 }, "expected both messages to reach the handler")
	assert.Equal(t, StateConnected, ch.State())
}

func TestChannelStopPreventsReconnect(t *testing.T) {
	var connects atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		connects.Add(1)
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	ch := NewChannel(func() string { return wsURL(srv) }, func([]byte) {}, nil, discardLogger())
	ch.Start()

	waitFor(t, func() bool { return ch.State() == StateConnected }, "channel should connect")
	require.Equal(t, int64(1), connects.Load())

	// Stop closes the connection; the close-triggered read error must not
	// schedule a reconnect.
	ch.Stop()
	assert.Equal(t, StateDisconnected, ch.State())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), connects.Load(), "stopped channel must not reconnect")
}

func TestChannelCountsReconnects(t *testing.T) {
	collector := metrics.NewCollector()

	// No server listening: every attempt fails and schedules a retry.
	ch := NewChannel(func() string { return "ws://127.0.0.1:1/ws" }, func([]byte) {}, collector, discardLogger())
	ch.Start()
	defer ch.Stop()

	waitFor(t, func() bool { return collector.Snapshot().Reconnects >= 1 }, "failed connect should schedule a reconnect")
	assert.Equal(t, StateDisconnected, ch.State())
}

func TestChannelStartAfterStopIsNoOp(t *testing.T) {
	srv := pushServer(t)

	var connects atomic.Int64
	ch := NewChannel(func() string {
		connects.Add(1)
		return wsURL(srv)
	}, func([]byte) {}, nil, discardLogger())

	ch.Stop()
	ch.Start()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(0), connects.Load(), "a stopped channel must not dial")
}
