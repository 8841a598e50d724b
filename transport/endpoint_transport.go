// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/openbridge-project/openbridge/colibri"
)

// Endpoint is the conference participant this transport serves. The
// transport produces these notifications; it never reaches into the
// endpoint's state directly.
type Endpoint interface {
	// ID returns the endpoint's conference-unique identifier.
	ID() string

	// OnTransportConnected is invoked when a control channel first
	// becomes usable: a websocket was accepted, or the data channel
	// reported ready.
	OnTransportConnected()

	// PinnedEndpointsChanged delivers the new pinned set announced by
	// the client.
	PinnedEndpointsChanged(endpoints []string)

	// SelectedEndpointsChanged delivers the new selected set announced
	// by the client.
	SelectedEndpointsChanged(endpoints []string)
}

// Conference is the transport's view of the owning conference, used
// only for relay propagation.
type Conference interface {
	// IsExpired reports whether the conference has been torn down.
	IsExpired() bool

	// SendToPeerRelays broadcasts a payload to all peer relay nodes
	// participating in this conference. Local endpoints are never
	// targets. Fire-and-forget: no acknowledgment, no retry.
	SendToPeerRelays(payload []byte, excludeEndpoints []string, meshOnly bool)
}

// Registration errors. Both indicate a lifecycle bug elsewhere in the
// bridge — the data channel slot is set exactly once per endpoint.
var (
	// ErrDataChannelReset reports a second registration of the same
	// data channel instance.
	ErrDataChannelReset = errors.New("transport: re-registering the same data channel")

	// ErrDataChannelReplaced reports an attempt to overwrite the data
	// channel with a different instance.
	ErrDataChannelReplaced = errors.New("transport: overwriting a previous data channel")
)

// errUnknownChannelKind guards the single variant-dispatch point in
// sendOn. Hitting it means a new channel kind was added without
// updating the dispatch.
var errUnknownChannelKind = errors.New("transport: unknown channel kind")

// EndpointTransport multiplexes the COLIBRI control protocol for one
// endpoint over a replaceable websocket and a set-once SCTP data
// channel. See the package comment for the selection policy.
//
// Locking: mu guards the websocket slot; the last-active flag is
// written together with the slot under mu on register/close so the
// pair never tears, while the flag flip on message receipt is a bare
// atomic store (a last-writer-wins race with replacement is benign and
// self-corrects on the next send). dcMu independently guards the
// set-once data channel slot.
type EndpointTransport struct {
	endpoint   Endpoint
	conference Conference // may be nil when the endpoint is parentless
	stats      *Statistics
	logger     *slog.Logger

	// fallback receives messages whose class this transport does not
	// handle. Replaceable via SetFallbackHandler before traffic flows.
	fallback func(src Channel, msg string)

	mu                  sync.Mutex
	webSocket           PersistentChannel
	webSocketLastActive atomic.Bool

	dcMu        sync.Mutex
	dataChannel EmbeddedChannel
}

// NewEndpointTransport creates the transport for an endpoint. The
// conference may be nil; propagation then degrades to a logged drop.
func NewEndpointTransport(endpoint Endpoint, conference Conference, stats *Statistics, logger *slog.Logger) *EndpointTransport {
	t := &EndpointTransport{
		endpoint:   endpoint,
		conference: conference,
		stats:      stats,
		logger:     logger.With("endpoint", endpoint.ID()),
	}
	t.fallback = func(_ Channel, msg string) {
		t.logger.Debug("unhandled colibri message", "size", len(msg))
	}
	return t
}

// SetFallbackHandler replaces the handler for unrecognized message
// classes. Install before any channel is registered.
func (t *EndpointTransport) SetFallbackHandler(handler func(src Channel, msg string)) {
	t.fallback = handler
}

// RegisterWebSocket accepts a newly connected websocket for this
// endpoint. Any previously registered websocket is closed with
// CloseReplaced. The new channel becomes last-active immediately — it
// just proved itself by connecting — and is greeted with ServerHello.
func (t *EndpointTransport) RegisterWebSocket(ws PersistentChannel) {
	ws.OnMessage(func(msg string) { t.handleMessage(ws, msg) })
	ws.OnClosed(func(code int, reason string) { t.OnWebSocketClosed(ws, code, reason) })

	t.mu.Lock()
	if t.webSocket != nil {
		t.webSocket.CloseWithStatus(CloseReplaced, "replaced")
	}
	t.webSocket = ws
	t.webSocketLastActive.Store(true)
	// Greet on the accepted channel specifically, not whatever
	// SelectActive would pick. Send only enqueues, so holding mu here
	// does not block on I/O.
	if err := t.sendOn(ws, colibri.ServerHelloMessage()); err != nil {
		t.logger.Warn("sending initial ServerHello failed", "error", err)
	}
	t.mu.Unlock()

	t.endpoint.OnTransportConnected()
}

// OnWebSocketClosed handles a close notification. Notifications for a
// websocket that has already been superseded are no-ops: closes race
// with replacement, and the stale instance must not clobber the slot.
func (t *EndpointTransport) OnWebSocketClosed(ws PersistentChannel, code int, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ws == nil || t.webSocket != ws {
		t.logger.Debug("ignoring close of a stale websocket", "code", code, "reason", reason)
		return
	}
	t.webSocket = nil
	t.webSocketLastActive.Store(false)
	t.logger.Debug("websocket closed", "code", code, "reason", reason)
}

// RegisterDataChannel installs the endpoint's SCTP data channel. The
// slot is set-once: registering the same instance again or a different
// instance both fail and leave the stored reference untouched.
//
// The ready callback is installed before readiness is checked — the
// channel could become ready between a check and a later installation,
// and that edge must not be lost.
func (t *EndpointTransport) RegisterDataChannel(dc EmbeddedChannel) error {
	t.dcMu.Lock()
	defer t.dcMu.Unlock()

	switch {
	case t.dataChannel == nil:
		t.dataChannel = dc
	case t.dataChannel == dc:
		return ErrDataChannelReset
	default:
		return ErrDataChannelReplaced
	}

	dc.OnReady(func() { t.endpoint.OnTransportConnected() })
	if dc.Ready() {
		t.endpoint.OnTransportConnected()
	}
	dc.OnMessage(func(msg string) { t.handleMessage(dc, msg) })
	return nil
}

// SelectActive resolves the channel that should carry the next
// outbound message, or nil when none is usable. Evaluated fresh on
// every call:
//
//  1. the websocket, when it was the last channel to receive a message
//     and is still registered;
//  2. the data channel, when present and ready;
//  3. any registered websocket, as the fallback;
//  4. nothing.
//
// Tier 3 deliberately prefers a registered-but-idle websocket over
// nothing even when the data channel was last active — the websocket's
// registration implies liveness, while a non-ready data channel does
// not.
func (t *EndpointTransport) SelectActive() Channel {
	t.mu.Lock()
	ws := t.webSocket
	lastWasWebSocket := t.webSocketLastActive.Load()
	t.mu.Unlock()

	t.dcMu.Lock()
	dc := t.dataChannel
	t.dcMu.Unlock()

	if lastWasWebSocket && ws != nil {
		return ws
	}
	if dc != nil && dc.Ready() {
		return dc
	}
	if ws != nil {
		return ws
	}
	return nil
}

// SendMessage sends a control message on the active channel. With no
// usable channel the message is dropped with a log entry; the caller
// is never blocked and never sees an error — control delivery is best
// effort by design.
func (t *EndpointTransport) SendMessage(msg string) {
	dst := t.SelectActive()
	if dst == nil {
		t.logger.Info("no available transport channel, dropping message")
		return
	}
	if err := t.sendOn(dst, msg); err != nil {
		t.logger.Warn("sending control message failed", "channel", dst.Kind().String(), "error", err)
	}
}

// sendOn dispatches to the channel-kind-specific send primitive and
// counts the message. This is the only place that branches on the
// channel variant.
func (t *EndpointTransport) sendOn(dst Channel, msg string) error {
	switch dst.Kind() {
	case KindWebSocket:
		if err := dst.Send(msg); err != nil {
			return err
		}
		t.stats.WebSocketMessagesSent.Add(1)
	case KindSCTP:
		if err := dst.Send(msg); err != nil {
			return err
		}
		t.stats.SCTPMessagesSent.Add(1)
	default:
		return fmt.Errorf("%w: %v", errUnknownChannelKind, dst.Kind())
	}
	return nil
}

// handleMessage is the inbound dispatch shared by both channel kinds.
// It stamps the channel as last-active, counts the message, and routes
// by colibriClass.
func (t *EndpointTransport) handleMessage(src Channel, msg string) {
	switch src.Kind() {
	case KindWebSocket:
		// Text from a websocket this transport no longer owns is
		// discarded: the instance was replaced and its traffic must
		// not flip the active flag.
		t.mu.Lock()
		known := t.webSocket == src
		t.mu.Unlock()
		if !known {
			t.logger.Warn("received text from an unknown websocket")
			return
		}
		t.webSocketLastActive.Store(true)
		t.stats.WebSocketMessagesReceived.Add(1)
	case KindSCTP:
		t.webSocketLastActive.Store(false)
		t.stats.SCTPMessagesReceived.Add(1)
	}

	raw := []byte(msg)
	class, err := colibri.ParseClass(raw)
	if err != nil {
		t.logger.Warn("dropping unparseable control message", "error", err)
		return
	}

	switch class {
	case colibri.ClassClientHello:
		// The hello probes liveness of the specific channel it arrived
		// on, so the reply must go back on that channel — not the
		// globally active one.
		if err := t.sendOn(src, colibri.ServerHelloMessage()); err != nil {
			t.logger.Warn("response to ClientHello failed", "channel", src.Kind().String(), "error", err)
		}

	case colibri.ClassPinnedEndpointsChanged:
		endpoints, err := colibri.ParsePinnedEndpoints(raw)
		if err != nil {
			t.logger.Warn("dropping malformed pinned-endpoints event", "error", err)
			return
		}
		t.endpoint.PinnedEndpointsChanged(endpoints)
		t.propagate(raw)

	case colibri.ClassSelectedEndpointsChanged:
		endpoints, err := colibri.ParseSelectedEndpoints(raw)
		if err != nil {
			t.logger.Warn("dropping malformed selected-endpoints event", "error", err)
			return
		}
		t.endpoint.SelectedEndpointsChanged(endpoints)
		t.propagate(raw)

	default:
		t.fallback(src, msg)
	}
}

// propagate forwards an event to all peer relay nodes of the owning
// conference, stamped with the originating endpoint. A missing or
// expired conference degrades to a logged drop.
func (t *EndpointTransport) propagate(raw []byte) {
	conference := t.conference
	if conference == nil || conference.IsExpired() {
		t.logger.Warn("unable to propagate message, conference is absent or expired")
		return
	}

	stamped, err := colibri.StampPropagatedFrom(raw, t.endpoint.ID())
	if err != nil {
		t.logger.Warn("unable to stamp message for propagation", "error", err)
		return
	}
	conference.SendToPeerRelays(stamped, nil, true)
}

// Close tears the transport down with the endpoint. A registered
// websocket is closed with CloseGone; the data channel belongs to the
// media stack and is left alone.
func (t *EndpointTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.webSocket != nil {
		t.webSocket.CloseWithStatus(CloseGone, "gone")
		t.webSocket = nil
		t.logger.Debug("endpoint expired, closed websocket")
	}
}
