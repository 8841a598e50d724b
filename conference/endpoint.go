// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

package conference

import (
	"log/slog"
	"sync"
	"time"

	"github.com/openbridge-project/openbridge/lib/clock"
	"github.com/openbridge-project/openbridge/transport"
)

// Compile-time interface check.
var _ transport.Endpoint = (*Endpoint)(nil)

// Endpoint is one participant of a conference on this node. It tracks
// the pinned and selected endpoint sets the client announces, stamps
// activity for idle detection, and owns the endpoint's control
// transport.
type Endpoint struct {
	id         string
	conference *Conference
	clk        clock.Clock
	logger     *slog.Logger
	transport  *transport.EndpointTransport

	mu           sync.Mutex
	pinned       []string
	selected     []string
	lastActivity time.Time
}

func newEndpoint(id string, conference *Conference, stats *transport.Statistics, clk clock.Clock, logger *slog.Logger) *Endpoint {
	endpoint := &Endpoint{
		id:         id,
		conference: conference,
		clk:        clk,
		logger:     logger.With("endpoint", id),
	}
	endpoint.lastActivity = clk.Now()
	endpoint.transport = transport.NewEndpointTransport(endpoint, conference, stats, logger)
	return endpoint
}

// ID returns the endpoint's conference-unique identifier.
func (e *Endpoint) ID() string { return e.id }

// Conference returns the owning conference.
func (e *Endpoint) Conference() *Conference { return e.conference }

// Transport returns the endpoint's control transport, for channel
// registration by the connection acceptors.
func (e *Endpoint) Transport() *transport.EndpointTransport { return e.transport }

// OnTransportConnected records that a control channel became usable.
func (e *Endpoint) OnTransportConnected() {
	e.touch()
	e.logger.Info("control channel connected")
}

// PinnedEndpointsChanged replaces the pinned set.
func (e *Endpoint) PinnedEndpointsChanged(endpoints []string) {
	e.mu.Lock()
	e.pinned = append([]string(nil), endpoints...)
	e.mu.Unlock()
	e.touch()
	e.logger.Debug("pinned endpoints changed", "count", len(endpoints))
}

// SelectedEndpointsChanged replaces the selected set.
func (e *Endpoint) SelectedEndpointsChanged(endpoints []string) {
	e.mu.Lock()
	e.selected = append([]string(nil), endpoints...)
	e.mu.Unlock()
	e.touch()
	e.logger.Debug("selected endpoints changed", "count", len(endpoints))
}

// Pinned returns a copy of the current pinned set.
func (e *Endpoint) Pinned() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.pinned...)
}

// Selected returns a copy of the current selected set.
func (e *Endpoint) Selected() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.selected...)
}

// LastActivity returns when the endpoint last showed signs of life on
// its control channels.
func (e *Endpoint) LastActivity() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastActivity
}

func (e *Endpoint) touch() {
	now := e.clk.Now()
	e.mu.Lock()
	e.lastActivity = now
	e.mu.Unlock()
}

// SendMessage sends a control message to this endpoint's client over
// whatever channel is currently active.
func (e *Endpoint) SendMessage(msg string) {
	e.transport.SendMessage(msg)
}

// close tears the endpoint's transport down. Called by the conference
// on removal and expiry.
func (e *Endpoint) close() {
	e.transport.Close()
}
