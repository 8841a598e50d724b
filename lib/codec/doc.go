// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is OpenBridge's CBOR codec configuration. The relay
// mesh envelope is encoded with Core Deterministic Encoding so the same
// logical envelope always produces identical bytes on every node.
// Consumers import this package rather than fxamacker/cbor directly so
// the encoding options stay in one place.
package codec
