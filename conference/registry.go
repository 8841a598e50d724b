// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

package conference

import (
	"log/slog"
	"sync"

	"github.com/openbridge-project/openbridge/lib/clock"
	"github.com/openbridge-project/openbridge/relay"
	"github.com/openbridge-project/openbridge/transport"
)

// Registry is the node-wide set of live conferences.
type Registry struct {
	relays RelayNotifier
	stats  *transport.Statistics
	clk    clock.Clock
	logger *slog.Logger

	mu          sync.Mutex
	conferences map[string]*Conference
}

// NewRegistry creates the registry. The relay notifier may be nil.
func NewRegistry(relays RelayNotifier, stats *transport.Statistics, clk clock.Clock, logger *slog.Logger) *Registry {
	return &Registry{
		relays:      relays,
		stats:       stats,
		clk:         clk,
		logger:      logger,
		conferences: make(map[string]*Conference),
	}
}

// GetOrCreate returns the conference with the given ID, creating it on
// first use. An expired conference under that ID is replaced.
func (r *Registry) GetOrCreate(id string) *Conference {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conference, ok := r.conferences[id]; ok && !conference.IsExpired() {
		return conference
	}
	conference := New(id, r.relays, r.stats, r.clk, r.logger)
	r.conferences[id] = conference
	r.logger.Info("conference created", "conference", id)
	return conference
}

// Get looks a conference up without creating it.
func (r *Registry) Get(id string) (*Conference, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conference, ok := r.conferences[id]
	return conference, ok
}

// Expire tears a conference down and removes it from the registry.
func (r *Registry) Expire(id string) {
	r.mu.Lock()
	conference, ok := r.conferences[id]
	delete(r.conferences, id)
	r.mu.Unlock()

	if ok {
		conference.Expire()
	}
}

// ExpireAll tears every conference down, for node shutdown.
func (r *Registry) ExpireAll() {
	r.mu.Lock()
	conferences := make([]*Conference, 0, len(r.conferences))
	for _, conference := range r.conferences {
		conferences = append(conferences, conference)
	}
	r.conferences = make(map[string]*Conference)
	r.mu.Unlock()

	for _, conference := range conferences {
		conference.Expire()
	}
}

// HandleEnvelope routes an envelope arriving from the relay mesh into
// its conference's local endpoints. Envelopes for conferences this
// node does not host are dropped: with a full mesh every node sees
// every broadcast.
func (r *Registry) HandleEnvelope(envelope relay.Envelope) {
	conference, ok := r.Get(envelope.Conference)
	if !ok {
		r.logger.Debug("dropping envelope for unknown conference",
			"conference", envelope.Conference, "origin", envelope.Origin)
		return
	}
	conference.ReceiveFromRelay(envelope.Payload)
}
