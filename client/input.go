package client

import (
	"time"

	"drift/world"
)

// InputSource is the capture layer's side of the contract: whatever holds
// the keyboard (or drives a bot) produces one Input per tick.
type InputSource interface {
	Sample() world.Input
}

// InputFunc adapts a plain function to InputSource.
type InputFunc func() world.Input

func (f InputFunc) Sample() world.Input {
	return f()
}

// Patrol holds each direction for hold and cycles right, down, left, up,
// forever. The shipped binary uses it so a bare client is visibly alive
// without an engine attached.
type Patrol struct {
	hold  time.Duration
	start time.Time
}

func NewPatrol(hold time.Duration) *Patrol {
	return &Patrol{hold: hold, start: time.Now()}
}

func (p *Patrol) Sample() world.Input {
	switch (time.Since(p.start) / p.hold) % 4 {
	case 0:
		return world.Input{Right: true}
	case 1:
		return world.Input{Down: true}
	case 2:
		return world.Input{Left: true}
	default:
		return world.Input{Up: true}
	}
}
