// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for an OpenBridge node.
type Config struct {
	// Node identifies this relay node in the mesh. Required, unique
	// within a deployment (e.g. "bridge-eu-1").
	Node string `yaml:"node"`

	// BindAddress is the host:port the HTTP listener binds to. The
	// listener serves the endpoint websocket path, the relay mesh
	// path, and the stats endpoint.
	BindAddress string `yaml:"bind_address"`

	// PublicBaseURL is the externally reachable base URL advertised to
	// clients for the endpoint websocket (e.g. "wss://bridge.example.com").
	PublicBaseURL string `yaml:"public_base_url"`

	// ICEServers lists STUN/TURN servers handed to the media stack.
	ICEServers []ICEServer `yaml:"ice_servers"`

	// WebSocket configures per-endpoint websocket channels.
	WebSocket WebSocketConfig `yaml:"websocket"`

	// Relay configures the peer relay mesh.
	Relay RelayConfig `yaml:"relay"`
}

// ICEServer is a single STUN/TURN server entry.
type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

// WebSocketConfig tunes the per-endpoint websocket channel.
type WebSocketConfig struct {
	// KeepaliveInterval is how often the writer sends a ping frame.
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`

	// ReadLimit is the maximum inbound control-message size in bytes.
	ReadLimit int64 `yaml:"read_limit"`

	// SendQueue is the outbound queue depth per channel. When the
	// queue is full, further sends are dropped (control messages are
	// fire-and-forget).
	SendQueue int `yaml:"send_queue"`
}

// RelayConfig configures links to peer relay nodes.
type RelayConfig struct {
	// Peers lists the websocket URLs of peer relay nodes this node
	// keeps persistent links to (e.g. "wss://bridge-us-1.example.com/relay-ws").
	Peers []string `yaml:"peers"`

	// ReconnectMin and ReconnectMax bound the exponential backoff
	// between reconnect attempts to a dead peer link.
	ReconnectMin time.Duration `yaml:"reconnect_min"`
	ReconnectMax time.Duration `yaml:"reconnect_max"`

	// SendQueue is the outbound queue depth per peer link.
	SendQueue int `yaml:"send_queue"`
}

// Default returns the default configuration. The config file is still
// required; these exist so every field has a usable zero-value.
func Default() *Config {
	return &Config{
		BindAddress: "0.0.0.0:9090",
		WebSocket: WebSocketConfig{
			KeepaliveInterval: 25 * time.Second,
			ReadLimit:         64 * 1024,
			SendQueue:         64,
		},
		Relay: RelayConfig{
			ReconnectMin: time.Second,
			ReconnectMax: time.Minute,
			SendQueue:    256,
		},
	}
}

// Load loads configuration from the OPENBRIDGE_CONFIG environment
// variable. There is no fallback: if the variable is unset, Load fails.
func Load() (*Config, error) {
	path := os.Getenv("OPENBRIDGE_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("OPENBRIDGE_CONFIG environment variable not set; " +
			"set it to the path of your openbridge.yaml config file, or use --config flag")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path. Environment
// variables never override file values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Node == "" {
		errs = append(errs, fmt.Errorf("node is required"))
	}
	if c.BindAddress == "" {
		errs = append(errs, fmt.Errorf("bind_address is required"))
	}
	if c.WebSocket.KeepaliveInterval <= 0 {
		errs = append(errs, fmt.Errorf("websocket.keepalive_interval must be positive"))
	}
	if c.WebSocket.ReadLimit <= 0 {
		errs = append(errs, fmt.Errorf("websocket.read_limit must be positive"))
	}
	if c.WebSocket.SendQueue <= 0 {
		errs = append(errs, fmt.Errorf("websocket.send_queue must be positive"))
	}
	if c.Relay.ReconnectMin <= 0 || c.Relay.ReconnectMax < c.Relay.ReconnectMin {
		errs = append(errs, fmt.Errorf("relay.reconnect_min/relay.reconnect_max must be positive and ordered"))
	}
	if c.Relay.SendQueue <= 0 {
		errs = append(errs, fmt.Errorf("relay.send_queue must be positive"))
	}
	for index, server := range c.ICEServers {
		if len(server.URLs) == 0 {
			errs = append(errs, fmt.Errorf("ice_servers[%d].urls is required", index))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
