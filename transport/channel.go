// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

package transport

// ChannelKind is the closed set of control-channel kinds. Selection and
// send logic operate on this variant so the "unknown kind" case is
// confined to one dispatch point.
type ChannelKind int

const (
	// KindWebSocket is the out-of-band, replaceable websocket channel.
	KindWebSocket ChannelKind = iota

	// KindSCTP is the reliable ordered data channel bound to the
	// endpoint's media session.
	KindSCTP
)

func (k ChannelKind) String() string {
	switch k {
	case KindWebSocket:
		return "websocket"
	case KindSCTP:
		return "sctp"
	default:
		return "unknown"
	}
}

// Websocket close codes used by the transport. Codes in the 4000-4999
// range are reserved for private use by RFC 6455, so these never
// collide with protocol-level closes.
const (
	// CloseReplaced is sent to a websocket displaced by a newer one
	// for the same endpoint.
	CloseReplaced = 4200

	// CloseGone is sent when the endpoint is torn down; the resource
	// will not become available again.
	CloseGone = 4410
)

// Channel is the capability set shared by both channel kinds.
type Channel interface {
	// Kind reports which variant this channel is.
	Kind() ChannelKind

	// Ready reports whether the channel can currently carry a message.
	Ready() bool

	// Send transmits one text control message. Websocket sends enqueue
	// and return immediately; SCTP sends call into the data channel
	// synchronously. An error means the message was not handed to the
	// channel — callers log and drop, they do not retry.
	Send(msg string) error
}

// PersistentChannel is the websocket side of the registry: replaceable,
// closable with a status, and exclusively owned by the transport.
// Callbacks must be installed before the channel starts reading.
type PersistentChannel interface {
	Channel

	// OnMessage installs the inbound text handler.
	OnMessage(handler func(msg string))

	// OnClosed installs the close notification handler. The handler
	// receives the close code and reason from the peer, or a synthetic
	// abnormal-closure code when the connection just broke.
	OnClosed(handler func(code int, reason string))

	// CloseWithStatus closes the channel with the given websocket
	// close code and reason.
	CloseWithStatus(code int, reason string)
}

// EmbeddedChannel is the data-channel side of the registry. The
// transport never closes it — the media stack owns its lifecycle.
type EmbeddedChannel interface {
	Channel

	// OnReady installs a handler invoked when the channel becomes
	// ready to carry messages.
	OnReady(handler func())

	// OnMessage installs the inbound text handler.
	OnMessage(handler func(msg string))
}
