package protocol

import (
	"fmt"

	"drift/transport"
	"drift/world"
)

// The routers pair each channel with its message type and delivery mode.
// Everything below either serializes a typed message before handing it to
// the transport or drains a channel and deserializes what was buffered.
// Decode errors abort the session: the channel id is an unchecked
// contract, so a payload of the wrong shape means the two ends are not
// speaking the same protocol.

func deliveryFor(channel uint8) transport.Delivery {
	if channel == ChannelSync {
		return transport.Unsequenced
	}
	return transport.Reliable
}

// ServerRouter is the listening side: lifecycle announcements and
// snapshots out, inputs in.
type ServerRouter struct {
	tr transport.Server
}

func NewServerRouter(tr transport.Server) *ServerRouter {
	return &ServerRouter{tr: tr}
}

// SendMessage addresses one lifecycle announcement to a single peer. Used
// for the catch-up burst a joiner receives about players already present.
func (r *ServerRouter) SendMessage(peer transport.PeerID, m ServerMessage) error {
	b, err := EncodeServerMessage(m)
	if err != nil {
		return err
	}
	return r.tr.Send(peer, ChannelEvents, deliveryFor(ChannelEvents), b)
}

func (r *ServerRouter) BroadcastMessage(m ServerMessage) error {
	b, err := EncodeServerMessage(m)
	if err != nil {
		return err
	}
	return r.tr.Broadcast(ChannelEvents, deliveryFor(ChannelEvents), b)
}

func (r *ServerRouter) BroadcastSnapshot(s Snapshot) error {
	b, err := EncodeSnapshot(s)
	if err != nil {
		return err
	}
	return r.tr.Broadcast(ChannelSync, deliveryFor(ChannelSync), b)
}

// DrainInputs decodes everything peer has buffered on the input channel,
// oldest first. The caller keeps only the last element: inputs are
// whole-state, so latest wins.
func (r *ServerRouter) DrainInputs(peer transport.PeerID) ([]world.Input, error) {
	payloads := r.tr.Receive(peer, ChannelInput)
	inputs := make([]world.Input, 0, len(payloads))
	for _, b := range payloads {
		in, err := DecodeInput(b)
		if err != nil {
			return nil, fmt.Errorf("player-input channel: %w", err)
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// ClientRouter is the dialing side: inputs out, announcements and
// snapshots in.
type ClientRouter struct {
	tr transport.Client
}

func NewClientRouter(tr transport.Client) *ClientRouter {
	return &ClientRouter{tr: tr}
}

func (r *ClientRouter) SendInput(in world.Input) error {
	b, err := EncodeInput(in)
	if err != nil {
		return err
	}
	return r.tr.Send(ChannelInput, deliveryFor(ChannelInput), b)
}

func (r *ClientRouter) DrainMessages() ([]ServerMessage, error) {
	payloads := r.tr.Receive(ChannelEvents)
	msgs := make([]ServerMessage, 0, len(payloads))
	for _, b := range payloads {
		m, err := DecodeServerMessage(b)
		if err != nil {
			return nil, fmt.Errorf("connection-events channel: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (r *ClientRouter) DrainSnapshots() ([]Snapshot, error) {
	payloads := r.tr.Receive(ChannelSync)
	snaps := make([]Snapshot, 0, len(payloads))
	for _, b := range payloads {
		s, err := DecodeSnapshot(b)
		if err != nil {
			return nil, fmt.Errorf("world-sync channel: %w", err)
		}
		snaps = append(snaps, s)
	}
	return snaps, nil
}
