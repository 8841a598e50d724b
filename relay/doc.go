// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay maintains the mesh of persistent links between relay
// nodes hosting a distributed conference. Control events that local
// endpoints announce are fanned out to every peer node, which then
// forwards them to its own local endpoints.
//
// Links are websocket connections carrying CBOR-encoded envelopes. The
// mesh is symmetric: a node both dials the peers it is configured with
// and accepts inbound links from peers configured with it. Delivery is
// fire-and-forget end to end: a dead link or a full send queue drops
// the envelope and bumps a counter, and the caller never sees an
// error.
package relay
