// Package protocol is the wire contract between server and client: channel
// assignments, message shapes, and the codec. Messages are MessagePack with
// array-encoded structs, so field order is fixed and a shape mismatch fails
// to decode instead of silently zero-filling.
package protocol

import "drift/world"

// Version is exchanged during the transport handshake. Both ends must
// agree or the connection attempt is rejected before any message flows.
const Version uint32 = 7

// Channel assignments. The channel id is the only routing information on a
// message, so sender and receiver must agree on what travels where.
const (
	// ChannelEvents carries ServerMessage lifecycle announcements,
	// server to client, reliable and ordered.
	ChannelEvents uint8 = iota
	// ChannelInput carries world.Input, client to server, reliable.
	ChannelInput
	// ChannelSync carries Snapshot broadcasts, server to client,
	// unsequenced. A lost snapshot is obsoleted by the next one anyway.
	ChannelSync

	ChannelCount
)

// MessageKind discriminates the ServerMessage union.
type MessageKind uint8

const (
	PlayerConnected MessageKind = iota + 1
	PlayerDisconnected
)

// ServerMessage is a connection lifecycle announcement. These are the only
// messages that change a client's lobby membership.
type ServerMessage struct {
	_msgpack struct{} `msgpack:",as_array"`

	Kind   MessageKind
	Player world.PlayerID
}

// Snapshot is one tick's complete view of every player's position. It is
// broadcast wholesale every server tick; receivers overwrite positions for
// the identities they know and ignore the rest.
type Snapshot struct {
	_msgpack struct{} `msgpack:",as_array"`

	Positions map[world.PlayerID]world.Vector
}
