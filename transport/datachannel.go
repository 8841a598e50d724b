// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"log/slog"

	"github.com/pion/webrtc/v4"
)

// Compile-time interface check.
var _ EmbeddedChannel = (*SCTPChannel)(nil)

// SCTPChannel adapts a pion data channel to the EmbeddedChannel
// interface. The media session owns the underlying channel; this
// wrapper is a non-owning view and never closes it. Readiness is
// queried live from pion's state rather than cached, so a channel the
// media stack has torn down simply stops reporting ready.
type SCTPChannel struct {
	dc     *webrtc.DataChannel
	logger *slog.Logger
}

// NewSCTPChannel wraps the endpoint's COLIBRI data channel.
func NewSCTPChannel(dc *webrtc.DataChannel, logger *slog.Logger) *SCTPChannel {
	return &SCTPChannel{
		dc:     dc,
		logger: logger.With("label", dc.Label()),
	}
}

func (c *SCTPChannel) Kind() ChannelKind { return KindSCTP }

// Ready reports whether the data channel is open right now.
func (c *SCTPChannel) Ready() bool {
	return c.dc.ReadyState() == webrtc.DataChannelStateOpen
}

// Send transmits one text message synchronously via pion.
func (c *SCTPChannel) Send(msg string) error {
	return c.dc.SendText(msg)
}

// OnReady installs the became-ready handler. If the channel is already
// open, pion does not replay the event — callers must check Ready()
// after installing, in that order, to avoid losing the edge.
func (c *SCTPChannel) OnReady(handler func()) {
	c.dc.OnOpen(handler)
}

// OnMessage installs the inbound handler. Binary frames are not part
// of the control protocol and are dropped with a log entry.
func (c *SCTPChannel) OnMessage(handler func(msg string)) {
	c.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if !msg.IsString {
			c.logger.Debug("ignoring binary data channel message", "bytes", len(msg.Data))
			return
		}
		handler(string(msg.Data))
	})
}
