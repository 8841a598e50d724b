// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries COLIBRI control messages between the bridge
// and a single conference endpoint over two interchangeable channels: a
// replaceable websocket and an SCTP data channel riding inside the
// endpoint's media session.
//
// [EndpointTransport] owns the channel registry and selection policy.
// At most one websocket is registered at a time — accepting a new one
// closes its predecessor with [CloseReplaced]. The data channel slot is
// set exactly once for the endpoint's lifetime and is a non-owning
// handle: the media stack owns the channel, and the transport treats a
// handle that no longer reports ready the same as no handle at all.
//
// Outbound sends resolve the "active" channel fresh on every call:
// whichever channel most recently received a message wins, then a ready
// data channel, then any registered websocket. When neither channel is
// usable, the message is dropped with a log entry — control-plane
// delivery failure never tears down the media session.
//
// Sends on the websocket kind are fire-and-forget through a buffered
// writer queue; transport failures surface later via the channel's
// close notification, never through the send call. Sends on the data
// channel kind call synchronously into pion.
//
// [WebSocketChannel] and [SCTPChannel] are the production channel
// implementations; tests substitute in-process fakes behind the
// [PersistentChannel] and [EmbeddedChannel] interfaces, mirroring how
// the relay mesh is tested.
package transport
