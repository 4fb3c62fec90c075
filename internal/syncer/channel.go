package syncer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mfloris/doctran/internal/metrics"
)

// Reconnect backoff bounds. The delay starts at initialBackoff, doubles on
// every consecutive failure, caps at maxBackoff, and resets on a successful
// connect.
const (
	initialBackoff   = time.Second
	maxBackoff       = 10 * time.Second
	handshakeTimeout = 10 * time.Second
)

// ChannelState is the connection state of a push channel.
type ChannelState string

const (
	StateDisconnected ChannelState = "disconnected"
	StateConnecting   ChannelState = "connecting"
	StateConnected    ChannelState = "connected"
)

// reconnectDelay returns the delay before the nth consecutive reconnect
// attempt (1-based): min(initialBackoff * 2^(n-1), maxBackoff).
func reconnectDelay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	delay := initialBackoff
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	if delay > maxBackoff {
		return maxBackoff
	}
	return delay
}

// Channel maintains a live event connection to one backend socket endpoint
// and hands every received message to its handler. It reconnects with
// exponential backoff until stopped.
//
// The handler must never panic the channel: malformed payloads are its
// responsibility to drop.
type Channel struct {
	url       func() string
	handler   func(message []byte)
	collector *metrics.Collector
	logger    *slog.Logger

	mu         sync.Mutex
	state      ChannelState
	generation uint64
	failures   int
	conn       *websocket.Conn
	timer      *time.Timer
	stopped    bool
}

// NewChannel creates a channel for the socket URL produced by url. The URL is
// re-evaluated on every connect attempt so a refreshed session token is picked
// up. The channel is inert until Start.
func NewChannel(url func() string, handler func([]byte), collector *metrics.Collector, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		url:       url,
		handler:   handler,
		collector: collector,
		logger:    logger,
		state:     StateDisconnected,
	}
}

// State returns the current connection state.
func (ch *Channel) State() ChannelState {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}

// Start opens the connection. Safe to call once per channel.
func (ch *Channel) Start() {
	ch.mu.Lock()
	if ch.stopped {
		ch.mu.Unlock()
		return
	}
	gen := ch.generation
	ch.mu.Unlock()

	go ch.connect(gen)
}

// Stop tears the channel down: it marks the channel as not-to-reconnect,
// cancels any pending reconnect timer, then closes an open connection — in
// that order, so a close-triggered read error cannot race a new reconnect.
func (ch *Channel) Stop() {
	ch.mu.Lock()
	ch.stopped = true
	ch.generation++
	if ch.timer != nil {
		ch.timer.Stop()
		ch.timer = nil
	}
	conn := ch.conn
	ch.conn = nil
	ch.state = StateDisconnected
	ch.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (ch *Channel) connect(gen uint64) {
	ch.mu.Lock()
	if ch.stopped || gen != ch.generation {
		ch.mu.Unlock()
		return
	}
	ch.state = StateConnecting
	target := ch.url()
	ch.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.Dial(target, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	ch.mu.Lock()
	if ch.stopped || gen != ch.generation {
		ch.mu.Unlock()
		if err == nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		ch.state = StateDisconnected
		ch.failures++
		delay := reconnectDelay(ch.failures)
		ch.logger.Warn("push channel connect failed", "error", err, "retry_in", delay)
		ch.scheduleReconnectLocked(gen, delay)
		ch.mu.Unlock()
		return
	}
	ch.conn = conn
	ch.state = StateConnected
	ch.failures = 0
	ch.mu.Unlock()

	ch.logger.Debug("push channel connected")
	go ch.readLoop(gen, conn)
}

func (ch *Channel) readLoop(gen uint64, conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			ch.onDisconnect(gen, err)
			return
		}
		ch.handler(message)
	}
}

func (ch *Channel) onDisconnect(gen uint64, cause error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.stopped || gen != ch.generation {
		return
	}
	if ch.conn != nil {
		ch.conn.Close()
		ch.conn = nil
	}
	ch.state = StateDisconnected
	ch.failures++
	delay := reconnectDelay(ch.failures)
	ch.logger.Warn("push channel closed", "error", cause, "retry_in", delay)
	ch.scheduleReconnectLocked(gen, delay)
}

// scheduleReconnectLocked arms the reconnect timer. Caller must hold ch.mu.
func (ch *Channel) scheduleReconnectLocked(gen uint64, delay time.Duration) {
	if ch.collector != nil {
		ch.collector.RecordReconnect()
	}
	ch.timer = time.AfterFunc(delay, func() {
		ch.mu.Lock()
		ch.timer = nil
		stale := ch.stopped || gen != ch.generation
		ch.mu.Unlock()
		if stale {
			return
		}
		ch.connect(gen)
	})
}
