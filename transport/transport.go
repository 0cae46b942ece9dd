// Package transport abstracts the datagram session layer the sync core
// runs on: connection lifecycle events as a drainable queue, per-channel
// send/receive, and round-trip telemetry. Implementations buffer
// internally and hand everything over when the owning tick asks, so the
// core stays single-threaded. transport/udp is the production ENet
// implementation, transport/ws the WebSocket fallback, transport/memnet
// the in-process pair used by tests.
package transport

import (
	"errors"
	"time"
)

// Delivery selects the reliability mode for one send.
type Delivery uint8

const (
	// Reliable delivery is ordered and retransmitted.
	Reliable Delivery = iota
	// Unsequenced delivery is fire-and-forget; late or lost datagrams
	// are simply never seen.
	Unsequenced
)

// PeerID names one connection for its lifetime. IDs are assigned from a
// per-listener sequence and never reused.
type PeerID uint64

type EventType uint8

const (
	Connect EventType = iota
	Disconnect
)

// Event is one lifecycle transition observed by a Server.
type Event struct {
	Type EventType
	Peer PeerID
}

var (
	ErrClosed      = errors.New("transport: closed")
	ErrUnknownPeer = errors.New("transport: unknown peer")
)

// Config is shared by all implementations. Version is checked during the
// handshake; a peer presenting a different version never surfaces as a
// Connect event.
type Config struct {
	// Channels is the number of application channels.
	Channels int
	// MaxPeers caps concurrent connections on the listening side.
	MaxPeers int
	// Version is the protocol identifier exchanged at handshake.
	Version uint32
}

// Server is the listening side. All methods are driven from the owner's
// tick goroutine: Service pumps the socket and buffers what arrived, the
// rest drain or send.
type Server interface {
	// Service pumps the underlying socket once. A non-nil error means
	// the transport itself failed and the session cannot continue.
	Service() error
	// PollEvents drains the lifecycle events observed since the last
	// call, in arrival order.
	PollEvents() []Event
	// Receive drains everything peer has buffered on channel, oldest
	// first. Unknown peers drain nothing.
	Receive(peer PeerID, channel uint8) [][]byte
	// Send queues one payload for peer. Sending to a peer that is gone
	// returns ErrUnknownPeer, which callers may tolerate.
	Send(peer PeerID, channel uint8, d Delivery, payload []byte) error
	// Broadcast queues one payload for every connected peer.
	Broadcast(channel uint8, d Delivery, payload []byte) error
	// Peers lists the currently connected peers.
	Peers() []PeerID
	Close() error
}

// Client is the dialing side of one connection.
type Client interface {
	// Service pumps the underlying socket once. Loss of the connection
	// is reported here as an error.
	Service() error
	// Receive drains everything buffered on channel, oldest first.
	Receive(channel uint8) [][]byte
	Send(channel uint8, d Delivery, payload []byte) error
	// RTT is the latest round-trip measurement, zero until one exists.
	RTT() time.Duration
	// Close notifies the remote side and releases the connection.
	Close() error
}
