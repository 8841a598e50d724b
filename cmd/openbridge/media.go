// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/openbridge-project/openbridge/lib/config"
	"github.com/openbridge-project/openbridge/transport"
)

// mediaSessions tracks the peer connection per endpoint so a renewed
// offer replaces the old session.
type mediaSessions struct {
	mu       sync.Mutex
	sessions map[string]*webrtc.PeerConnection
}

func newMediaSessions() *mediaSessions {
	return &mediaSessions{sessions: make(map[string]*webrtc.PeerConnection)}
}

func (m *mediaSessions) replace(key string, pc *webrtc.PeerConnection) {
	m.mu.Lock()
	previous := m.sessions[key]
	m.sessions[key] = pc
	m.mu.Unlock()
	if previous != nil {
		previous.Close()
	}
}

// sdpMessage is the JSON body of the signaling exchange: the client
// POSTs an offer, the bridge answers.
type sdpMessage struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// handleMediaOffer answers a client's SDP offer for the endpoint's
// media session. The session's COLIBRI data channel, once the client
// opens it, is registered as the endpoint's embedded control channel.
func (n *node) handleMediaOffer(writer http.ResponseWriter, request *http.Request) {
	conferenceID := request.PathValue("conference")
	endpointID := request.PathValue("endpoint")

	endpoint, err := n.lookupEndpoint(conferenceID, endpointID)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusConflict)
		return
	}

	var offer sdpMessage
	if err := json.NewDecoder(request.Body).Decode(&offer); err != nil {
		http.Error(writer, "malformed offer", http.StatusBadRequest)
		return
	}

	answer, err := n.answerOffer(endpoint.Transport(), conferenceID+"/"+endpointID, offer)
	if err != nil {
		n.logger.Warn("answering media offer failed",
			"conference", conferenceID, "endpoint", endpointID, "error", err)
		http.Error(writer, "negotiation failed", http.StatusInternalServerError)
		return
	}

	writer.Header().Set("Content-Type", "application/json")
	json.NewEncoder(writer).Encode(answer)
}

func (n *node) answerOffer(tr *transport.EndpointTransport, sessionKey string, offer sdpMessage) (sdpMessage, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: iceServers(n.cfg.ICEServers),
	})
	if err != nil {
		return sdpMessage{}, fmt.Errorf("creating peer connection: %w", err)
	}

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		channel := transport.NewSCTPChannel(dc, n.logger)
		if err := tr.RegisterDataChannel(channel); err != nil {
			n.logger.Warn("rejecting extra data channel",
				"session", sessionKey, "label", dc.Label(), "error", err)
		}
	})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offer.SDP,
	}); err != nil {
		pc.Close()
		return sdpMessage{}, fmt.Errorf("applying offer: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return sdpMessage{}, fmt.Errorf("creating answer: %w", err)
	}

	// Non-trickle: wait for candidate gathering so the answer is
	// complete when it goes back in the HTTP response.
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return sdpMessage{}, fmt.Errorf("applying answer: %w", err)
	}
	<-gathered

	n.media.replace(sessionKey, pc)
	return sdpMessage{
		Type: "answer",
		SDP:  pc.LocalDescription().SDP,
	}, nil
}

// iceServers converts config entries to pion's type.
func iceServers(entries []config.ICEServer) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(entries))
	for _, entry := range entries {
		server := webrtc.ICEServer{URLs: entry.URLs}
		if entry.Username != "" {
			server.Username = entry.Username
			server.Credential = entry.Credential
		}
		servers = append(servers, server)
	}
	return servers
}
