package world

// PlayerID is assigned by the server at connection time and is the only
// key shared between server and client state for one participant.
type PlayerID uint64

type Player struct {
	Pos   Vector
	Input Input
}
