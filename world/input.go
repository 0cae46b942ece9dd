package world

// Input is a full movement intent for one tick; the server keeps only the
// latest it has seen.
type Input struct {
	_msgpack struct{} `msgpack:",as_array"`

	Up    bool
	Down  bool
	Left  bool
	Right bool
}

// Velocity is unit-per-axis with up as +Y. Opposite keys cancel;
// diagonals are not normalized.
func (in Input) Velocity() Vector {
	var v Vector
	if in.Right {
		v.X++
	}
	if in.Left {
		v.X--
	}
	if in.Up {
		v.Y++
	}
	if in.Down {
		v.Y--
	}
	return v
}
