// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

package colibri

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ClassField is the discriminator key present in every control message.
const ClassField = "colibriClass"

// PropagatedFromField names the originating endpoint on messages
// forwarded between relay nodes.
const PropagatedFromField = "propagatedFrom"

// Recognized message classes.
const (
	// ClassClientHello probes liveness of a specific channel; the
	// bridge answers with ServerHello on the same channel.
	ClassClientHello = "ClientHello"

	// ClassServerHello is the bridge's reply to ClientHello, and the
	// greeting sent when a websocket channel is accepted.
	ClassServerHello = "ServerHello"

	// ClassPinnedEndpointsChanged announces the endpoints a client has
	// pinned (always wants to receive video for).
	ClassPinnedEndpointsChanged = "PinnedEndpointsChangedEvent"

	// ClassSelectedEndpointsChanged announces the endpoints a client
	// has selected (is viewing at high definition).
	ClassSelectedEndpointsChanged = "SelectedEndpointsChangedEvent"
)

// ErrNoClass reports a message whose colibriClass field is missing or
// empty.
var ErrNoClass = errors.New("colibri: message has no colibriClass")

// ParseClass extracts the colibriClass discriminator from a raw
// message. The rest of the message is not validated.
func ParseClass(raw []byte) (string, error) {
	var header struct {
		Class string `json:"colibriClass"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return "", fmt.Errorf("colibri: malformed message: %w", err)
	}
	if header.Class == "" {
		return "", ErrNoClass
	}
	return header.Class, nil
}

// ServerHelloMessage builds the ServerHello reply.
func ServerHelloMessage() string {
	return `{"colibriClass":"` + ClassServerHello + `"}`
}

// endpointSetMessage is the shared shape of the two endpoint-set
// change events.
type endpointSetMessage struct {
	PinnedEndpoints   []string `json:"pinnedEndpoints"`
	SelectedEndpoints []string `json:"selectedEndpoints"`
}

// ParsePinnedEndpoints extracts the pinned endpoint IDs from a
// PinnedEndpointsChangedEvent. A missing list yields an empty set: a
// client clears its pins by sending the event with no entries.
func ParsePinnedEndpoints(raw []byte) ([]string, error) {
	var msg endpointSetMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("colibri: malformed PinnedEndpointsChangedEvent: %w", err)
	}
	return msg.PinnedEndpoints, nil
}

// ParseSelectedEndpoints extracts the selected endpoint IDs from a
// SelectedEndpointsChangedEvent.
func ParseSelectedEndpoints(raw []byte) ([]string, error) {
	var msg endpointSetMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("colibri: malformed SelectedEndpointsChangedEvent: %w", err)
	}
	return msg.SelectedEndpoints, nil
}

// ParsePropagatedFrom extracts the originating endpoint ID from a
// propagated message. Empty when the message was not propagated.
func ParsePropagatedFrom(raw []byte) string {
	var header struct {
		PropagatedFrom string `json:"propagatedFrom"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return ""
	}
	return header.PropagatedFrom
}

// StampPropagatedFrom returns a copy of the raw message with the
// propagatedFrom field set to the given endpoint ID. Used before
// fanning an event out to peer relay nodes so remote bridges know
// which endpoint originated it. Fails if raw is not a JSON object.
func StampPropagatedFrom(raw []byte, endpointID string) ([]byte, error) {
	var object map[string]json.RawMessage
	if err := json.Unmarshal(raw, &object); err != nil {
		return nil, fmt.Errorf("colibri: cannot stamp non-object message: %w", err)
	}
	id, err := json.Marshal(endpointID)
	if err != nil {
		return nil, err
	}
	object[PropagatedFromField] = id
	return json.Marshal(object)
}
