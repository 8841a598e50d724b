// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "openbridge.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
node: bridge-eu-1
bind_address: 127.0.0.1:9191
public_base_url: wss://bridge.example.com
websocket:
  keepalive_interval: 10s
relay:
  peers:
    - wss://bridge-us-1.example.com/relay-ws
  reconnect_min: 2s
  reconnect_max: 30s
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Node != "bridge-eu-1" {
		t.Errorf("Node = %q, want bridge-eu-1", cfg.Node)
	}
	if cfg.BindAddress != "127.0.0.1:9191" {
		t.Errorf("BindAddress = %q", cfg.BindAddress)
	}
	if cfg.WebSocket.KeepaliveInterval != 10*time.Second {
		t.Errorf("KeepaliveInterval = %v, want 10s", cfg.WebSocket.KeepaliveInterval)
	}
	// Unset fields keep their defaults.
	if cfg.WebSocket.SendQueue != 64 {
		t.Errorf("SendQueue = %d, want default 64", cfg.WebSocket.SendQueue)
	}
	if len(cfg.Relay.Peers) != 1 {
		t.Fatalf("Relay.Peers = %v", cfg.Relay.Peers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateRejectsMissingNode(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted a config without a node name")
	}
	if !strings.Contains(err.Error(), "node is required") {
		t.Errorf("error = %v, want mention of node", err)
	}
}

func TestValidateRejectsBadBackoff(t *testing.T) {
	cfg := Default()
	cfg.Node = "bridge-test"
	cfg.Relay.ReconnectMax = cfg.Relay.ReconnectMin / 2
	if cfg.Validate() == nil {
		t.Error("Validate accepted reconnect_max < reconnect_min")
	}
}

func TestLoadRequiresEnvVar(t *testing.T) {
	t.Setenv("OPENBRIDGE_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Error("Load succeeded without OPENBRIDGE_CONFIG")
	}
}
