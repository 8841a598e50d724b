// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "sync/atomic"

// Statistics holds the node-wide control-message counters. The
// transport only ever increments them; the stats endpoint reads them
// via Snapshot. All counters are monotonic.
type Statistics struct {
	WebSocketMessagesSent     atomic.Uint64
	WebSocketMessagesReceived atomic.Uint64
	SCTPMessagesSent          atomic.Uint64
	SCTPMessagesReceived      atomic.Uint64
}

// StatisticsSnapshot is a point-in-time copy of the counters.
type StatisticsSnapshot struct {
	WebSocketMessagesSent     uint64 `json:"websocket_messages_sent"`
	WebSocketMessagesReceived uint64 `json:"websocket_messages_received"`
	SCTPMessagesSent          uint64 `json:"sctp_messages_sent"`
	SCTPMessagesReceived      uint64 `json:"sctp_messages_received"`
}

// Snapshot returns the current counter values. The counters are read
// independently, so the snapshot is not a single atomic cut — fine for
// monitoring, which is its only consumer.
func (s *Statistics) Snapshot() StatisticsSnapshot {
	return StatisticsSnapshot{
		WebSocketMessagesSent:     s.WebSocketMessagesSent.Load(),
		WebSocketMessagesReceived: s.WebSocketMessagesReceived.Load(),
		SCTPMessagesSent:          s.SCTPMessagesSent.Load(),
		SCTPMessagesReceived:      s.SCTPMessagesReceived.Load(),
	}
}
