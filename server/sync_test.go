package server

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"drift/client"
	"drift/protocol"
	"drift/transport/memnet"
	"drift/world"
)

// End-to-end over the in-process transport: a real Server on one side,
// real Clients on the other, each ticked by the test.

func dialClient(t *testing.T, net *memnet.Server, input client.InputSource) *client.Client {
	t.Helper()
	tr, err := net.Dial(protocol.Version)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return client.New(tr, nil, input, zap.NewNop().Sugar())
}

func pump(t *testing.T, c *client.Client) {
	t.Helper()
	if err := c.Tick(time.Now()); err != nil {
		t.Fatalf("client tick: %v", err)
	}
}

func idSet(l *world.Lobby) map[world.PlayerID]bool {
	set := make(map[world.PlayerID]bool, l.Len())
	for _, id := range l.IDs() {
		set[id] = true
	}
	return set
}

func sameMembers(a, b map[world.PlayerID]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if !b[id] {
			return false
		}
	}
	return true
}

func TestClientMirrorsTrackServerLobby(t *testing.T) {
	s, net := newTestServer(t, nil)

	ca := dialClient(t, net, nil)
	tick(t, s, 0)
	pump(t, ca)

	// The second joiner arrives while the first is present: after the
	// catch-up burst its mirror holds the server's membership at join
	// time plus itself.
	cb := dialClient(t, net, nil)
	tick(t, s, 0)
	pump(t, ca)
	pump(t, cb)

	want := idSet(s.lobby)
	if len(want) != 2 {
		t.Fatalf("server lobby = %v, want two members", want)
	}
	if got := idSet(ca.Lobby()); !sameMembers(got, want) {
		t.Fatalf("first mirror = %v, server = %v", got, want)
	}
	if got := idSet(cb.Lobby()); !sameMembers(got, want) {
		t.Fatalf("joiner mirror = %v, server = %v", got, want)
	}

	// First client leaves; the survivor's mirror follows.
	if err := ca.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	tick(t, s, 0)
	pump(t, cb)

	want = idSet(s.lobby)
	if len(want) != 1 {
		t.Fatalf("server lobby = %v, want one member", want)
	}
	if got := idSet(cb.Lobby()); !sameMembers(got, want) {
		t.Fatalf("survivor mirror = %v, server = %v", got, want)
	}
}

func TestInputFlowsThroughToEveryMirror(t *testing.T) {
	s, net := newTestServer(t, nil)

	ca := dialClient(t, net, nil)
	cb := dialClient(t, net, client.InputFunc(func() world.Input {
		return world.Input{Right: true}
	}))
	tick(t, s, 0)
	pump(t, ca)
	pump(t, cb) // sends the held input

	tick(t, s, 1)
	pump(t, ca)
	pump(t, cb)

	want := world.Vector{X: 100, Y: 0}
	if got := s.lobby.Get(2).Pos; got != want {
		t.Fatalf("server position = %v, want %v", got, want)
	}
	for name, c := range map[string]*client.Client{"a": ca, "b": cb} {
		p := c.Lobby().Get(2)
		if p == nil {
			t.Fatalf("mirror %s lost player 2", name)
		}
		if p.Pos != want {
			t.Fatalf("mirror %s position = %v, want %v", name, p.Pos, want)
		}
	}
	if got := ca.Lobby().Get(1).Pos; got != (world.Vector{}) {
		t.Fatalf("idle player moved to %v", got)
	}
}
