// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openbridge-project/openbridge/lib/testutil"
)

// wsTestServer upgrades every request and exposes the server-side
// connection and observed close codes.
type wsTestServer struct {
	server *httptest.Server
	conns  chan *websocket.Conn
	closes chan int
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()
	s := &wsTestServer{
		conns:  make(chan *websocket.Conn, 4),
		closes: make(chan int, 4),
	}
	upgrader := websocket.Upgrader{}
	s.server = httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		conn, err := upgrader.Upgrade(writer, request, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		s.conns <- conn
		// Echo until the peer goes away, reporting the close code.
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) {
					s.closes <- closeErr.Code
				}
				conn.Close()
				return
			}
			if err := conn.WriteMessage(messageType, data); err != nil {
				conn.Close()
				return
			}
		}
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *wsTestServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func newTestWebSocketChannel(conn *websocket.Conn) (*WebSocketChannel, chan string, chan closeCall) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	channel := NewWebSocketChannel(conn, DefaultWebSocketOptions(), logger)

	inbound := make(chan string, 16)
	closed := make(chan closeCall, 1)
	channel.OnMessage(func(msg string) { inbound <- msg })
	channel.OnClosed(func(code int, reason string) { closed <- closeCall{code: code, reason: reason} })
	channel.Start()
	return channel, inbound, closed
}

func TestWebSocketChannelRoundTrip(t *testing.T) {
	server := newWSTestServer(t)
	conn := server.dial(t)

	channel, inbound, _ := newTestWebSocketChannel(conn)
	defer channel.CloseWithStatus(CloseGone, "gone")

	if !channel.Ready() {
		t.Fatal("freshly started channel not ready")
	}
	if err := channel.Send(`{"colibriClass":"ClientHello"}`); err != nil {
		t.Fatalf("Send: %v", err)
	}

	echoed := testutil.RequireReceive(t, inbound, 5*time.Second, "echo of the sent message")
	if echoed != `{"colibriClass":"ClientHello"}` {
		t.Errorf("echoed = %q", echoed)
	}
}

func TestWebSocketChannelCloseWithStatus(t *testing.T) {
	server := newWSTestServer(t)
	conn := server.dial(t)

	channel, _, _ := newTestWebSocketChannel(conn)
	channel.CloseWithStatus(CloseReplaced, "replaced")

	code := testutil.RequireReceive(t, server.closes, 5*time.Second, "close code at the server")
	if code != CloseReplaced {
		t.Errorf("server saw close code %d, want %d", code, CloseReplaced)
	}

	if channel.Ready() {
		t.Error("channel still ready after CloseWithStatus")
	}
	if err := channel.Send("x"); err == nil {
		t.Error("Send after close succeeded, want error")
	}
}

func TestWebSocketChannelPeerCloseNotifies(t *testing.T) {
	server := newWSTestServer(t)
	conn := server.dial(t)

	channel, _, closed := newTestWebSocketChannel(conn)
	defer channel.CloseWithStatus(CloseGone, "gone")

	serverConn := testutil.RequireReceive(t, server.conns, 5*time.Second, "server-side connection")
	frame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	deadline := time.Now().Add(time.Second)
	if err := serverConn.WriteControl(websocket.CloseMessage, frame, deadline); err != nil {
		t.Fatalf("server close: %v", err)
	}
	serverConn.Close()

	notification := testutil.RequireReceive(t, closed, 5*time.Second, "close notification")
	if notification.code != websocket.CloseNormalClosure {
		t.Errorf("close code = %d, want %d", notification.code, websocket.CloseNormalClosure)
	}
	if !strings.Contains(notification.reason, "bye") {
		t.Errorf("close reason = %q, want it to carry the peer's text", notification.reason)
	}
}

func TestWebSocketChannelSendQueueFull(t *testing.T) {
	server := newWSTestServer(t)
	conn := server.dial(t)

	options := DefaultWebSocketOptions()
	options.SendQueue = 1
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	channel := NewWebSocketChannel(conn, options, logger)
	// Never started: the writer goroutine is not draining, so the
	// second enqueue must overflow.
	defer conn.Close()

	if err := channel.Send("first"); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	if err := channel.Send("second"); !errors.Is(err, ErrSendQueueFull) {
		t.Errorf("second Send err = %v, want ErrSendQueueFull", err)
	}
}
