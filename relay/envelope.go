// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/openbridge-project/openbridge/lib/codec"
)

// Envelope is the unit of traffic between relay nodes. The payload is
// an opaque control message; the mesh never inspects it.
type Envelope struct {
	// ID uniquely identifies the envelope across the mesh.
	ID string `cbor:"id"`

	// Origin is the node that first injected the envelope. A node never
	// processes its own envelopes, which makes accidental loops inert.
	Origin string `cbor:"origin"`

	// Conference identifies the conference the payload belongs to.
	Conference string `cbor:"conference"`

	// Payload is the control message, verbatim.
	Payload []byte `cbor:"payload"`
}

// newEnvelope wraps a payload for transmission from the given node.
func newEnvelope(origin, conferenceID string, payload []byte) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Origin:     origin,
		Conference: conferenceID,
		Payload:    payload,
	}
}

// encodeEnvelope serializes an envelope for the wire.
func encodeEnvelope(envelope Envelope) ([]byte, error) {
	data, err := codec.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("relay: encoding envelope: %w", err)
	}
	return data, nil
}

// decodeEnvelope parses an envelope off the wire.
func decodeEnvelope(data []byte) (Envelope, error) {
	var envelope Envelope
	if err := codec.Unmarshal(data, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("relay: decoding envelope: %w", err)
	}
	return envelope, nil
}
