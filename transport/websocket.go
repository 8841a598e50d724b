// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Compile-time interface check.
var _ PersistentChannel = (*WebSocketChannel)(nil)

// writeTimeout bounds every frame write so a stalled peer cannot wedge
// the writer goroutine.
const writeTimeout = 10 * time.Second

// ErrSendQueueFull reports a dropped outbound message. Control messages
// are fire-and-forget: a full queue means the peer is not draining, and
// the channel's own close path will surface the failure eventually.
var ErrSendQueueFull = errors.New("transport: websocket send queue full")

// WebSocketOptions tunes a WebSocketChannel.
type WebSocketOptions struct {
	// KeepaliveInterval is how often the writer pings the peer.
	KeepaliveInterval time.Duration

	// ReadLimit is the maximum inbound message size in bytes.
	ReadLimit int64

	// SendQueue is the outbound queue depth. Sends beyond it are
	// dropped with ErrSendQueueFull.
	SendQueue int
}

// DefaultWebSocketOptions mirrors the config package defaults.
func DefaultWebSocketOptions() WebSocketOptions {
	return WebSocketOptions{
		KeepaliveInterval: 25 * time.Second,
		ReadLimit:         64 * 1024,
		SendQueue:         64,
	}
}

// WebSocketChannel adapts a gorilla/websocket connection to the
// PersistentChannel interface. A dedicated writer goroutine drains the
// outbound queue, giving Send its fire-and-forget contract; the reader
// goroutine delivers inbound text frames and translates read failures
// into exactly one close notification.
type WebSocketChannel struct {
	conn    *websocket.Conn
	options WebSocketOptions
	logger  *slog.Logger

	outbound chan string

	// Callbacks; installed before Start, never mutated afterwards.
	onMessage func(msg string)
	onClosed  func(code int, reason string)

	closed     chan struct{}
	closeOnce  sync.Once
	notifyOnce sync.Once
}

// NewWebSocketChannel wraps an upgraded websocket connection. The
// caller must install callbacks and then call Start.
func NewWebSocketChannel(conn *websocket.Conn, options WebSocketOptions, logger *slog.Logger) *WebSocketChannel {
	return &WebSocketChannel{
		conn:     conn,
		options:  options,
		logger:   logger.With("remote", conn.RemoteAddr().String()),
		outbound: make(chan string, options.SendQueue),
		closed:   make(chan struct{}),
	}
}

// OnMessage installs the inbound text handler. Must be called before Start.
func (c *WebSocketChannel) OnMessage(handler func(msg string)) { c.onMessage = handler }

// OnClosed installs the close handler. Must be called before Start.
func (c *WebSocketChannel) OnClosed(handler func(code int, reason string)) { c.onClosed = handler }

// Start launches the reader and writer goroutines.
func (c *WebSocketChannel) Start() {
	go c.readLoop()
	go c.writeLoop()
}

func (c *WebSocketChannel) Kind() ChannelKind { return KindWebSocket }

// Ready reports whether the channel is still open. A registered
// websocket is assumed live until its close notification fires.
func (c *WebSocketChannel) Ready() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

// Send enqueues one text message for the writer goroutine. It never
// blocks: a closed channel returns net.ErrClosed and a full queue
// returns ErrSendQueueFull.
func (c *WebSocketChannel) Send(msg string) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}

	select {
	case c.outbound <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// CloseWithStatus sends a close frame with the given code and reason,
// then tears the connection down. Safe to call concurrently with Send;
// gorilla permits WriteControl alongside a writer goroutine.
func (c *WebSocketChannel) CloseWithStatus(code int, reason string) {
	frame := websocket.FormatCloseMessage(code, reason)
	deadline := time.Now().Add(writeTimeout)
	if err := c.conn.WriteControl(websocket.CloseMessage, frame, deadline); err != nil {
		c.logger.Debug("writing close frame failed", "error", err)
	}
	// The close notification is deliberately not delivered from here:
	// the registry calls CloseWithStatus while holding its lock, and
	// the read loop emits the notification when the torn-down
	// connection fails its next read.
	c.shutdown()
}

func (c *WebSocketChannel) readLoop() {
	c.conn.SetReadLimit(c.options.ReadLimit)
	readDeadline := 2 * c.options.KeepaliveInterval
	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			code, reason := closeStatus(err)
			c.shutdown()
			c.notifyClosed(code, reason)
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))

		if messageType != websocket.TextMessage {
			c.logger.Debug("ignoring non-text websocket frame", "type", messageType)
			continue
		}
		if c.onMessage != nil {
			c.onMessage(string(data))
		}
	}
}

func (c *WebSocketChannel) writeLoop() {
	keepalive := time.NewTicker(c.options.KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case msg := <-c.outbound:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				// Fire-and-forget: the read side will observe the
				// broken connection and emit the close notification.
				c.logger.Debug("websocket write failed", "error", err)
				c.shutdown()
				return
			}
		case <-keepalive.C:
			deadline := time.Now().Add(writeTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("websocket ping failed", "error", err)
				c.shutdown()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// shutdown closes the underlying connection exactly once and releases
// both loops.
func (c *WebSocketChannel) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

// notifyClosed delivers the close notification exactly once.
func (c *WebSocketChannel) notifyClosed(code int, reason string) {
	c.notifyOnce.Do(func() {
		if c.onClosed != nil {
			c.onClosed(code, reason)
		}
	})
}

// closeStatus extracts the close code and reason from a read error.
// Reads that fail without a close frame (broken TCP, timeouts) map to
// the abnormal-closure code.
func closeStatus(err error) (int, string) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code, closeErr.Text
	}
	return websocket.CloseAbnormalClosure, err.Error()
}
