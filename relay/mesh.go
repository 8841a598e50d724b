// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openbridge-project/openbridge/lib/clock"
)

// Handler receives every envelope arriving from a peer node. It runs
// on the link's read goroutine, so it must not block for long.
type Handler func(envelope Envelope)

// Options tunes the mesh.
type Options struct {
	// Peers lists the websocket URLs of the peer nodes this node
	// dials. Inbound links from unlisted peers are accepted too.
	Peers []string

	// ReconnectMin and ReconnectMax bound the exponential backoff
	// between attempts to re-dial a dead peer link.
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	// SendQueue is the outbound queue depth per peer link.
	SendQueue int
}

// DefaultOptions mirrors the config package defaults.
func DefaultOptions() Options {
	return Options{
		ReconnectMin: time.Second,
		ReconnectMax: time.Minute,
		SendQueue:    256,
	}
}

// Mesh is this node's set of links to peer relay nodes. Outbound
// traffic is enqueued per link and written by a goroutine per link;
// inbound envelopes are decoded and handed to the Handler.
type Mesh struct {
	node    string
	options Options
	clk     clock.Clock
	logger  *slog.Logger
	handler Handler

	mu     sync.Mutex
	links  map[string]*peerLink
	closed bool

	dropped atomic.Uint64
}

// peerLink is one live connection to a peer node.
type peerLink struct {
	name      string
	conn      *websocket.Conn
	outbound  chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (l *peerLink) close() {
	l.closeOnce.Do(func() {
		close(l.done)
		l.conn.Close()
	})
}

// NewMesh creates a mesh for the given node name. The handler receives
// all inbound envelopes; pass clock.Real() outside tests.
func NewMesh(node string, options Options, handler Handler, clk clock.Clock, logger *slog.Logger) *Mesh {
	return &Mesh{
		node:    node,
		options: options,
		clk:     clk,
		logger:  logger.With("component", "relay"),
		handler: handler,
		links:   make(map[string]*peerLink),
	}
}

// Run dials the configured peers and keeps the links alive until the
// context is canceled, then tears every link down. Blocks.
func (m *Mesh) Run(ctx context.Context) {
	var waitGroup sync.WaitGroup
	for _, peer := range m.options.Peers {
		waitGroup.Add(1)
		go func(url string) {
			defer waitGroup.Done()
			m.maintainLink(ctx, url)
		}(peer)
	}
	<-ctx.Done()
	// Close first: the link goroutines block in conn reads and only
	// notice cancellation once their connections are torn down.
	m.Close()
	waitGroup.Wait()
}

// maintainLink dials one peer in a loop with exponential backoff,
// resetting the backoff after every successful session.
func (m *Mesh) maintainLink(ctx context.Context, url string) {
	logger := m.logger.With("peer", url)
	backoff := m.options.ReconnectMin

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			logger.Warn("dialing peer failed", "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return
			case <-m.clk.After(backoff):
			}
			backoff = min(backoff*2, m.options.ReconnectMax)
			continue
		}

		logger.Info("peer link established")
		backoff = m.options.ReconnectMin
		m.runLink(ctx, url, conn, logger)
		logger.Info("peer link lost")
	}
}

// AcceptPeer adopts an inbound connection from a peer node. The link
// lives until the peer disconnects; there is no reconnect on this side.
func (m *Mesh) AcceptPeer(conn *websocket.Conn) {
	name := conn.RemoteAddr().String()
	logger := m.logger.With("peer", name)
	logger.Info("inbound peer link accepted")
	go func() {
		m.runLink(context.Background(), name, conn, logger)
		logger.Info("inbound peer link closed")
	}()
}

// runLink registers the link, pumps it until it dies, and deregisters
// it. Blocks for the life of the connection.
func (m *Mesh) runLink(ctx context.Context, name string, conn *websocket.Conn, logger *slog.Logger) {
	link := &peerLink{
		name:     name,
		conn:     conn,
		outbound: make(chan []byte, m.options.SendQueue),
		done:     make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return
	}
	if previous, ok := m.links[name]; ok {
		previous.close()
	}
	m.links[name] = link
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.links[name] == link {
			delete(m.links, name)
		}
		m.mu.Unlock()
		link.close()
	}()

	go m.writeLink(link, logger)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.BinaryMessage {
			logger.Debug("ignoring non-binary relay frame", "type", messageType)
			continue
		}
		envelope, err := decodeEnvelope(data)
		if err != nil {
			logger.Warn("dropping undecodable envelope", "error", err)
			continue
		}
		if envelope.Origin == m.node {
			// Our own envelope reflected back; a peer misrouted it.
			logger.Debug("ignoring own envelope", "id", envelope.ID)
			continue
		}
		if m.handler != nil {
			m.handler(envelope)
		}
	}
}

func (m *Mesh) writeLink(link *peerLink, logger *slog.Logger) {
	for {
		select {
		case data := <-link.outbound:
			if err := link.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				logger.Debug("relay write failed", "error", err)
				link.close()
				return
			}
		case <-link.done:
			return
		}
	}
}

// Broadcast fans a payload out to every live peer link except the
// excluded ones. Dead links and full queues drop silently; the drop
// counter is the only evidence.
func (m *Mesh) Broadcast(conferenceID string, payload []byte, excludePeers []string) {
	envelope := newEnvelope(m.node, conferenceID, payload)
	data, err := encodeEnvelope(envelope)
	if err != nil {
		m.logger.Warn("unable to encode envelope for broadcast", "error", err)
		m.dropped.Add(1)
		return
	}

	m.mu.Lock()
	targets := make([]*peerLink, 0, len(m.links))
	for name, link := range m.links {
		if slices.Contains(excludePeers, name) {
			continue
		}
		targets = append(targets, link)
	}
	m.mu.Unlock()

	for _, link := range targets {
		select {
		case link.outbound <- data:
		default:
			m.dropped.Add(1)
			m.logger.Warn("relay send queue full, dropping envelope",
				"peer", link.name, "conference", conferenceID)
		}
	}
}

// Dropped returns the number of envelopes dropped so far.
func (m *Mesh) Dropped() uint64 { return m.dropped.Load() }

// PeerCount returns the number of live links.
func (m *Mesh) PeerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.links)
}

// Close tears down every link. The mesh accepts no links afterwards.
func (m *Mesh) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	links := make([]*peerLink, 0, len(m.links))
	for _, link := range m.links {
		links = append(links, link)
	}
	m.links = make(map[string]*peerLink)
	m.mu.Unlock()

	for _, link := range links {
		link.close()
	}
}
