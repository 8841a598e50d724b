// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

// Openbridge is a conference media-relay node's control-plane daemon.
// It terminates the per-endpoint control channels (websocket and
// WebRTC data channel), routes COLIBRI control messages between
// clients and the bridge, and fans endpoint events out to peer relay
// nodes hosting the same conference.
//
// On startup:
//  1. Loads the YAML configuration (--config or OPENBRIDGE_CONFIG).
//  2. Dials the configured peer relay nodes and keeps the links alive.
//  3. Serves the endpoint websocket path, the relay mesh path, the
//     media-session signaling path, and the stats endpoint.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openbridge-project/openbridge/conference"
	"github.com/openbridge-project/openbridge/lib/clock"
	"github.com/openbridge-project/openbridge/lib/config"
	"github.com/openbridge-project/openbridge/lib/version"
	"github.com/openbridge-project/openbridge/relay"
	"github.com/openbridge-project/openbridge/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "path to openbridge.yaml (defaults to $OPENBRIDGE_CONFIG)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("openbridge %s\n", version.Info())
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	node := newNode(cfg, clock.Real(), logger)

	go node.mesh.Run(ctx)

	server := &http.Server{
		Addr:    cfg.BindAddress,
		Handler: node.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.BindAddress, "node", cfg.Node)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("http shutdown failed", "error", err)
	}

	node.registry.ExpireAll()
	node.mesh.Close()
	return nil
}

// node bundles the daemon's long-lived components.
type node struct {
	cfg      *config.Config
	logger   *slog.Logger
	stats    *transport.Statistics
	mesh     *relay.Mesh
	registry *conference.Registry
	media    *mediaSessions
	upgrader websocket.Upgrader
}

func newNode(cfg *config.Config, clk clock.Clock, logger *slog.Logger) *node {
	n := &node{
		cfg:    cfg,
		logger: logger,
		stats:  &transport.Statistics{},
		media:  newMediaSessions(),
	}

	// The mesh handler closes over the registry, which is constructed
	// with the mesh: envelopes only flow once links are up, well after
	// both exist.
	n.mesh = relay.NewMesh(cfg.Node, relay.Options{
		Peers:        cfg.Relay.Peers,
		ReconnectMin: cfg.Relay.ReconnectMin,
		ReconnectMax: cfg.Relay.ReconnectMax,
		SendQueue:    cfg.Relay.SendQueue,
	}, func(envelope relay.Envelope) { n.registry.HandleEnvelope(envelope) }, clk, logger)

	n.registry = conference.NewRegistry(n.mesh, n.stats, clk, logger)
	return n
}

func (n *node) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /colibri-ws/{conference}/{endpoint}", n.handleEndpointWebSocket)
	mux.HandleFunc("GET /relay-ws", n.handleRelayWebSocket)
	mux.HandleFunc("POST /colibri-sdp/{conference}/{endpoint}", n.handleMediaOffer)
	mux.HandleFunc("GET /about/stats", n.handleStats)
	return mux
}

// handleEndpointWebSocket accepts a client's control websocket and
// registers it with the endpoint's transport. The endpoint is created
// on first contact.
func (n *node) handleEndpointWebSocket(writer http.ResponseWriter, request *http.Request) {
	conferenceID := request.PathValue("conference")
	endpointID := request.PathValue("endpoint")

	endpoint, err := n.lookupEndpoint(conferenceID, endpointID)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusConflict)
		return
	}

	conn, err := n.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		n.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	channel := transport.NewWebSocketChannel(conn, transport.WebSocketOptions{
		KeepaliveInterval: n.cfg.WebSocket.KeepaliveInterval,
		ReadLimit:         n.cfg.WebSocket.ReadLimit,
		SendQueue:         n.cfg.WebSocket.SendQueue,
	}, n.logger)

	// Registration installs the callbacks; only then may frames flow.
	endpoint.Transport().RegisterWebSocket(channel)
	channel.Start()
}

// handleRelayWebSocket accepts an inbound link from a peer relay node.
func (n *node) handleRelayWebSocket(writer http.ResponseWriter, request *http.Request) {
	conn, err := n.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		n.logger.Warn("relay upgrade failed", "error", err)
		return
	}
	n.mesh.AcceptPeer(conn)
}

// handleStats serves the node's counters as JSON.
func (n *node) handleStats(writer http.ResponseWriter, _ *http.Request) {
	writer.Header().Set("Content-Type", "application/json")
	json.NewEncoder(writer).Encode(struct {
		Node         string                       `json:"node"`
		Transport    transport.StatisticsSnapshot `json:"transport"`
		RelayPeers   int                          `json:"relay_peers"`
		RelayDropped uint64                       `json:"relay_dropped"`
	}{
		Node:         n.cfg.Node,
		Transport:    n.stats.Snapshot(),
		RelayPeers:   n.mesh.PeerCount(),
		RelayDropped: n.mesh.Dropped(),
	})
}

// lookupEndpoint resolves (creating on first use) the endpoint for a
// path pair.
func (n *node) lookupEndpoint(conferenceID, endpointID string) (*conference.Endpoint, error) {
	conf := n.registry.GetOrCreate(conferenceID)
	if endpoint, ok := conf.Endpoint(endpointID); ok {
		return endpoint, nil
	}
	endpoint, err := conf.CreateEndpoint(endpointID)
	if err != nil && errors.Is(err, conference.ErrDuplicateEndpoint) {
		// Lost a create race; the winner's endpoint serves.
		if existing, ok := conf.Endpoint(endpointID); ok {
			return existing, nil
		}
	}
	return endpoint, err
}
