package client

import (
	"go.uber.org/zap"

	"drift/world"
)

// View is what the render layer implements: spawn a visual on join, drop
// it on leave, move it on every cached position change. Called from the
// tick goroutine, so implementations hand off to their own loop if they
// need one.
type View interface {
	PlayerJoined(id world.PlayerID)
	PlayerLeft(id world.PlayerID)
	PlayerMoved(id world.PlayerID, pos world.Vector)
}

type NopView struct{}

func (NopView) PlayerJoined(world.PlayerID)              {}
func (NopView) PlayerLeft(world.PlayerID)                {}
func (NopView) PlayerMoved(world.PlayerID, world.Vector) {}

// LogView logs membership changes. Movement is not logged; at tick rate
// it would drown everything else.
type LogView struct {
	Log *zap.SugaredLogger
}

func (v LogView) PlayerJoined(id world.PlayerID) {
	v.Log.Infow("player joined", "player", id)
}

func (v LogView) PlayerLeft(id world.PlayerID) {
	v.Log.Infow("player left", "player", id)
}

func (v LogView) PlayerMoved(world.PlayerID, world.Vector) {}
