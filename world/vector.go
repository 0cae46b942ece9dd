package world

// Vector is encoded on the wire as a two-element array; field order is
// part of the protocol.
type Vector struct {
	_msgpack struct{} `msgpack:",as_array"`

	X, Y float64
}

func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vector) Scale(s float64) Vector {
	return Vector{X: v.X * s, Y: v.Y * s}
}
