package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"drift/world"
)

// The decode functions validate as strictly as msgpack allows: a payload
// that does not match the channel's expected shape, or a ServerMessage with
// a kind outside the known set, returns an error. Callers treat any decode
// error as protocol version skew and abort; see the routers.

func EncodeServerMessage(m ServerMessage) ([]byte, error) {
	return msgpack.Marshal(&m)
}

func DecodeServerMessage(b []byte) (ServerMessage, error) {
	var m ServerMessage
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return ServerMessage{}, fmt.Errorf("decode server message: %w", err)
	}
	switch m.Kind {
	case PlayerConnected, PlayerDisconnected:
	default:
		return ServerMessage{}, fmt.Errorf("decode server message: unknown kind %d", m.Kind)
	}
	return m, nil
}

func EncodeInput(in world.Input) ([]byte, error) {
	return msgpack.Marshal(&in)
}

func DecodeInput(b []byte) (world.Input, error) {
	var in world.Input
	if err := msgpack.Unmarshal(b, &in); err != nil {
		return world.Input{}, fmt.Errorf("decode input: %w", err)
	}
	return in, nil
}

func EncodeSnapshot(s Snapshot) ([]byte, error) {
	return msgpack.Marshal(&s)
}

func DecodeSnapshot(b []byte) (Snapshot, error) {
	var s Snapshot
	if err := msgpack.Unmarshal(b, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}
