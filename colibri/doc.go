// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package colibri defines the JSON control-message protocol carried on
// an endpoint's message transport. Every message is a JSON object with
// a "colibriClass" discriminator; this package parses the discriminator,
// provides typed views of the recognized classes, and builds outbound
// replies. It deliberately validates nothing beyond the discriminator —
// unrecognized classes are routed to a generic handler by the transport,
// not rejected here.
package colibri
