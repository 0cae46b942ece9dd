package world

// Lobby tracks the set of connected players and their live state.
// Membership changes only through Add and Remove, never through snapshots.
type Lobby struct {
	players map[PlayerID]*Player
}

func NewLobby() *Lobby {
	return &Lobby{players: make(map[PlayerID]*Player)}
}

// Add inserts a player at the origin with no held input. Adding an id that
// is already present returns the existing entry untouched.
func (l *Lobby) Add(id PlayerID) *Player {
	if p, ok := l.players[id]; ok {
		return p
	}
	p := &Player{}
	l.players[id] = p
	return p
}

func (l *Lobby) Get(id PlayerID) *Player {
	return l.players[id]
}

// Remove reports whether the player was present. A disconnect can race the
// join it follows, so removing an absent id is a silent no-op.
func (l *Lobby) Remove(id PlayerID) bool {
	if _, ok := l.players[id]; !ok {
		return false
	}
	delete(l.players, id)
	return true
}

func (l *Lobby) Len() int {
	return len(l.players)
}

func (l *Lobby) IDs() []PlayerID {
	ids := make([]PlayerID, 0, len(l.players))
	for id := range l.players {
		ids = append(ids, id)
	}
	return ids
}

func (l *Lobby) ForEach(callback func(PlayerID, *Player)) {
	for id, p := range l.players {
		callback(id, p)
	}
}

// Positions copies every member's position for a snapshot.
func (l *Lobby) Positions() map[PlayerID]Vector {
	out := make(map[PlayerID]Vector, len(l.players))
	for id, p := range l.players {
		out[id] = p.Pos
	}
	return out
}
