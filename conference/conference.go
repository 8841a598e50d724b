// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

package conference

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/openbridge-project/openbridge/colibri"
	"github.com/openbridge-project/openbridge/lib/clock"
	"github.com/openbridge-project/openbridge/transport"
)

// Compile-time interface check.
var _ transport.Conference = (*Conference)(nil)

// RelayNotifier is the mesh surface a conference needs: fan a payload
// out to the peer nodes hosting the rest of this conference.
type RelayNotifier interface {
	Broadcast(conferenceID string, payload []byte, excludePeers []string)
}

var (
	// ErrConferenceExpired reports an operation on a conference that
	// has been torn down.
	ErrConferenceExpired = errors.New("conference: conference is expired")

	// ErrDuplicateEndpoint reports a second endpoint with the same ID.
	ErrDuplicateEndpoint = errors.New("conference: endpoint ID already in use")
)

// Conference owns the local endpoints of one conference hosted on this
// node.
type Conference struct {
	id     string
	relays RelayNotifier // nil on single-node deployments
	stats  *transport.Statistics
	clk    clock.Clock
	logger *slog.Logger

	mu        sync.Mutex
	endpoints map[string]*Endpoint

	expired atomic.Bool
}

// New creates a conference. The relay notifier may be nil; propagation
// then degrades to a logged drop.
func New(id string, relays RelayNotifier, stats *transport.Statistics, clk clock.Clock, logger *slog.Logger) *Conference {
	return &Conference{
		id:        id,
		relays:    relays,
		stats:     stats,
		clk:       clk,
		logger:    logger.With("conference", id),
		endpoints: make(map[string]*Endpoint),
	}
}

// ID returns the conference identifier.
func (c *Conference) ID() string { return c.id }

// IsExpired reports whether the conference has been torn down.
func (c *Conference) IsExpired() bool { return c.expired.Load() }

// SendToPeerRelays fans a control payload out to the peer relay nodes
// hosting the rest of this conference. Local endpoints are never
// targets. Without a mesh this is a logged drop.
func (c *Conference) SendToPeerRelays(payload []byte, excludeEndpoints []string, meshOnly bool) {
	if c.relays == nil {
		c.logger.Debug("no relay mesh, dropping propagated message")
		return
	}
	// excludeEndpoints names endpoints, not peer nodes; with a full
	// mesh every peer may host any endpoint, so the payload goes to
	// all of them and the receiving node filters locally.
	_ = excludeEndpoints
	_ = meshOnly
	c.relays.Broadcast(c.id, payload, nil)
}

// CreateEndpoint adds a new endpoint to the conference.
func (c *Conference) CreateEndpoint(id string) (*Endpoint, error) {
	if c.IsExpired() {
		return nil, ErrConferenceExpired
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.endpoints[id]; ok {
		return nil, ErrDuplicateEndpoint
	}
	endpoint := newEndpoint(id, c, c.stats, c.clk, c.logger)
	c.endpoints[id] = endpoint
	c.logger.Info("endpoint created", "endpoint", id)
	return endpoint, nil
}

// Endpoint looks an endpoint up by ID.
func (c *Conference) Endpoint(id string) (*Endpoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	endpoint, ok := c.endpoints[id]
	return endpoint, ok
}

// Endpoints returns a snapshot of the current endpoints.
func (c *Conference) Endpoints() []*Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	endpoints := make([]*Endpoint, 0, len(c.endpoints))
	for _, endpoint := range c.endpoints {
		endpoints = append(endpoints, endpoint)
	}
	return endpoints
}

// RemoveEndpoint removes an endpoint and closes its transport. Unknown
// IDs are no-ops.
func (c *Conference) RemoveEndpoint(id string) {
	c.mu.Lock()
	endpoint, ok := c.endpoints[id]
	delete(c.endpoints, id)
	c.mu.Unlock()

	if ok {
		endpoint.close()
		c.logger.Info("endpoint removed", "endpoint", id)
	}
}

// BroadcastToLocalEndpoints sends a control message to every local
// endpoint except the excluded IDs.
func (c *Conference) BroadcastToLocalEndpoints(msg string, excludeEndpoints ...string) {
	for _, endpoint := range c.Endpoints() {
		excluded := false
		for _, id := range excludeEndpoints {
			if endpoint.ID() == id {
				excluded = true
				break
			}
		}
		if !excluded {
			endpoint.SendMessage(msg)
		}
	}
}

// ReceiveFromRelay delivers a control payload propagated from a peer
// node to the local endpoints. The originating endpoint lives on the
// remote node, but its ID is excluded anyway in case of a migration
// race.
func (c *Conference) ReceiveFromRelay(payload []byte) {
	if c.IsExpired() {
		c.logger.Debug("dropping relayed message for expired conference")
		return
	}
	origin := colibri.ParsePropagatedFrom(payload)
	c.BroadcastToLocalEndpoints(string(payload), origin)
}

// Expire tears the conference down: every endpoint's transport is
// closed and further operations fail or drop. Idempotent.
func (c *Conference) Expire() {
	if c.expired.Swap(true) {
		return
	}

	c.mu.Lock()
	endpoints := make([]*Endpoint, 0, len(c.endpoints))
	for _, endpoint := range c.endpoints {
		endpoints = append(endpoints, endpoint)
	}
	c.endpoints = make(map[string]*Endpoint)
	c.mu.Unlock()

	for _, endpoint := range endpoints {
		endpoint.close()
	}
	c.logger.Info("conference expired", "endpoints", len(endpoints))
}
