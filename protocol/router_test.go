package protocol

import (
	"testing"

	"drift/transport"
	"drift/transport/memnet"
	"drift/world"
)

func routerPair(t *testing.T) (*ServerRouter, *ClientRouter, *memnet.Server, transport.PeerID) {
	t.Helper()
	net := memnet.Listen(transport.Config{Channels: int(ChannelCount), MaxPeers: 4, Version: Version})
	cl, err := net.Dial(Version)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	peer := net.PollEvents()[0].Peer
	return NewServerRouter(net), NewClientRouter(cl), net, peer
}

func TestDeliveryModes(t *testing.T) {
	if got := deliveryFor(ChannelEvents); got != transport.Reliable {
		t.Errorf("connection-events delivery = %v, want reliable", got)
	}
	if got := deliveryFor(ChannelInput); got != transport.Reliable {
		t.Errorf("player-input delivery = %v, want reliable", got)
	}
	if got := deliveryFor(ChannelSync); got != transport.Unsequenced {
		t.Errorf("world-sync delivery = %v, want unsequenced", got)
	}
}

func TestMessagesTravelTheEventsChannel(t *testing.T) {
	srv, cl, _, peer := routerPair(t)

	if err := srv.SendMessage(peer, ServerMessage{Kind: PlayerConnected, Player: 3}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := srv.BroadcastMessage(ServerMessage{Kind: PlayerDisconnected, Player: 3}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	msgs, err := cl.DrainMessages()
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0] != (ServerMessage{Kind: PlayerConnected, Player: 3}) {
		t.Fatalf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1] != (ServerMessage{Kind: PlayerDisconnected, Player: 3}) {
		t.Fatalf("msgs[1] = %+v", msgs[1])
	}

	// Nothing bled onto the snapshot channel.
	snaps, err := cl.DrainSnapshots()
	if err != nil {
		t.Fatalf("drain snapshots: %v", err)
	}
	if len(snaps) != 0 {
		t.Fatalf("got %d snapshots, want 0", len(snaps))
	}
}

func TestInputsDrainOldestFirst(t *testing.T) {
	srv, cl, _, peer := routerPair(t)

	for _, in := range []world.Input{{Up: true}, {Down: true}, {Left: true}} {
		if err := cl.SendInput(in); err != nil {
			t.Fatalf("send input: %v", err)
		}
	}

	inputs, err := srv.DrainInputs(peer)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(inputs) != 3 {
		t.Fatalf("got %d inputs, want 3", len(inputs))
	}
	if !inputs[0].Up || !inputs[1].Down || !inputs[2].Left {
		t.Fatalf("inputs out of order: %+v", inputs)
	}
	if inputs[len(inputs)-1] != (world.Input{Left: true}) {
		t.Fatalf("latest input = %+v, want left", inputs[len(inputs)-1])
	}
}

func TestSnapshotBroadcastRoundTrip(t *testing.T) {
	srv, cl, _, _ := routerPair(t)

	want := Snapshot{Positions: map[world.PlayerID]world.Vector{
		1: {X: 10, Y: -4},
		2: {},
	}}
	if err := srv.BroadcastSnapshot(want); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	snaps, err := cl.DrainSnapshots()
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}
	for id, pos := range want.Positions {
		if snaps[0].Positions[id] != pos {
			t.Fatalf("positions[%d] = %v, want %v", id, snaps[0].Positions[id], pos)
		}
	}
}

// Undecodable bytes on any channel poison the whole drain: the router
// reports the error instead of skipping the payload.
func TestDrainFailsOnUndecodablePayload(t *testing.T) {
	srv, cl, net, peer := routerPair(t)
	garbage := []byte{0xc1}

	if err := net.Send(peer, ChannelEvents, transport.Reliable, garbage); err != nil {
		t.Fatalf("inject: %v", err)
	}
	if _, err := cl.DrainMessages(); err == nil {
		t.Fatalf("drained garbage from the connection-events channel")
	}

	if err := net.Send(peer, ChannelSync, transport.Unsequenced, garbage); err != nil {
		t.Fatalf("inject: %v", err)
	}
	if _, err := cl.DrainSnapshots(); err == nil {
		t.Fatalf("drained garbage from the world-sync channel")
	}

	if err := cl.SendInput(world.Input{Up: true}); err != nil {
		t.Fatalf("send input: %v", err)
	}
	if err := cl.tr.Send(ChannelInput, transport.Reliable, garbage); err != nil {
		t.Fatalf("inject: %v", err)
	}
	if _, err := srv.DrainInputs(peer); err == nil {
		t.Fatalf("drained garbage from the player-input channel")
	}
}
