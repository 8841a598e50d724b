// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package conference holds the per-conference endpoint registry and
// the endpoint collaborators behind the control-message transport.
//
// A Conference owns the local endpoints of one conference hosted on
// this node, routes control events arriving from peer relay nodes to
// them, and hands events announced by local endpoints to the relay
// mesh. An Endpoint tracks the client-announced pinned and selected
// sets and owns the endpoint's transport.
package conference
