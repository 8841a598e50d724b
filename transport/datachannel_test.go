// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/openbridge-project/openbridge/lib/testutil"
)

// dialDataChannelPair establishes two in-process PeerConnections with a
// "colibri" data channel between them, exchanging SDP directly without
// trickle ICE. Returns the offerer's and answerer's channel handles.
func dialDataChannelPair(t *testing.T) (*webrtc.DataChannel, *webrtc.DataChannel) {
	t.Helper()

	// Host candidates only; everything stays on loopback.
	config := webrtc.Configuration{}

	offerer, err := webrtc.NewPeerConnection(config)
	if err != nil {
		t.Fatalf("offerer PeerConnection: %v", err)
	}
	t.Cleanup(func() { offerer.Close() })

	answerer, err := webrtc.NewPeerConnection(config)
	if err != nil {
		t.Fatalf("answerer PeerConnection: %v", err)
	}
	t.Cleanup(func() { answerer.Close() })

	offerChannel, err := offerer.CreateDataChannel("colibri", nil)
	if err != nil {
		t.Fatalf("CreateDataChannel: %v", err)
	}

	answerChannels := make(chan *webrtc.DataChannel, 1)
	answerer.OnDataChannel(func(dc *webrtc.DataChannel) { answerChannels <- dc })

	offer, err := offerer.CreateOffer(nil)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	offerGathered := webrtc.GatheringCompletePromise(offerer)
	if err := offerer.SetLocalDescription(offer); err != nil {
		t.Fatalf("offerer SetLocalDescription: %v", err)
	}
	<-offerGathered

	if err := answerer.SetRemoteDescription(*offerer.LocalDescription()); err != nil {
		t.Fatalf("answerer SetRemoteDescription: %v", err)
	}
	answer, err := answerer.CreateAnswer(nil)
	if err != nil {
		t.Fatalf("CreateAnswer: %v", err)
	}
	answerGathered := webrtc.GatheringCompletePromise(answerer)
	if err := answerer.SetLocalDescription(answer); err != nil {
		t.Fatalf("answerer SetLocalDescription: %v", err)
	}
	<-answerGathered

	if err := offerer.SetRemoteDescription(*answerer.LocalDescription()); err != nil {
		t.Fatalf("offerer SetRemoteDescription: %v", err)
	}

	answerChannel := testutil.RequireReceive(t, answerChannels, 10*time.Second, "answerer data channel")
	return offerChannel, answerChannel
}

func TestSCTPChannelReadyAndRoundTrip(t *testing.T) {
	offerDC, answerDC := dialDataChannelPair(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	local := NewSCTPChannel(offerDC, logger)
	remote := NewSCTPChannel(answerDC, logger)

	if local.Kind() != KindSCTP {
		t.Errorf("Kind() = %v, want %v", local.Kind(), KindSCTP)
	}

	ready := make(chan struct{})
	local.OnReady(func() { close(ready) })
	if !local.Ready() {
		testutil.RequireClosed(t, ready, 10*time.Second, "local channel open")
	}
	if !local.Ready() {
		t.Fatal("channel not ready after open event")
	}

	remoteReady := make(chan struct{})
	remote.OnReady(func() { close(remoteReady) })
	if !remote.Ready() {
		testutil.RequireClosed(t, remoteReady, 10*time.Second, "remote channel open")
	}

	inbound := make(chan string, 4)
	remote.OnMessage(func(msg string) { inbound <- msg })

	if err := local.Send(`{"colibriClass":"ClientHello"}`); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got := testutil.RequireReceive(t, inbound, 10*time.Second, "message at the remote")
	if got != `{"colibriClass":"ClientHello"}` {
		t.Errorf("received %q", got)
	}
}

func TestSCTPChannelDropsBinaryMessages(t *testing.T) {
	offerDC, answerDC := dialDataChannelPair(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	local := NewSCTPChannel(offerDC, logger)
	remote := NewSCTPChannel(answerDC, logger)

	ready := make(chan struct{})
	local.OnReady(func() { close(ready) })
	if !local.Ready() {
		testutil.RequireClosed(t, ready, 10*time.Second, "local channel open")
	}

	inbound := make(chan string, 4)
	remote.OnMessage(func(msg string) { inbound <- msg })

	if err := offerDC.Send([]byte{0x01, 0x02}); err != nil {
		t.Fatalf("binary Send: %v", err)
	}
	if err := local.Send("text survives"); err != nil {
		t.Fatalf("text Send: %v", err)
	}

	// Only the text frame is delivered; SCTP preserves ordering within
	// the channel, so receiving the text proves the binary frame was
	// filtered rather than still in flight.
	got := testutil.RequireReceive(t, inbound, 10*time.Second, "text message")
	if got != "text survives" {
		t.Errorf("received %q, want the text frame only", got)
	}
	testutil.RequireNoReceive(t, inbound, 200*time.Millisecond, "binary frame must be dropped")
}
