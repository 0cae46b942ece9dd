// Package client mirrors the server's lobby from its announcements and
// snapshots. It never simulates and never decides membership on its own.
package client

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"drift/protocol"
	"drift/transport"
	"drift/world"
)

const rttLogInterval = 5 * time.Second

type Client struct {
	tr     transport.Client
	router *protocol.ClientRouter
	lobby  *world.Lobby
	view   View
	input  InputSource
	log    *zap.SugaredLogger

	lastRTTLog time.Time
}

func New(tr transport.Client, view View, input InputSource, log *zap.SugaredLogger) *Client {
	if view == nil {
		view = NopView{}
	}
	if input == nil {
		input = InputFunc(func() world.Input { return world.Input{} })
	}
	return &Client{
		tr:         tr,
		router:     protocol.NewClientRouter(tr),
		lobby:      world.NewLobby(),
		view:       view,
		input:      input,
		log:        log,
		lastRTTLog: time.Now(),
	}
}

// Lobby is the local mirror. Read it between ticks only.
func (c *Client) Lobby() *world.Lobby {
	return c.lobby
}

// Tick runs one frame: service the transport, apply announcements, apply
// snapshots, send this tick's input. Input goes out even when idle; the
// server holds the last value it saw.
func (c *Client) Tick(now time.Time) error {
	if err := c.tr.Service(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if err := c.applyMessages(); err != nil {
		return err
	}
	if err := c.applySnapshots(); err != nil {
		return err
	}
	if err := c.router.SendInput(c.input.Sample()); err != nil {
		return err
	}
	c.maybeLogRTT(now)
	return nil
}

// applyMessages drains the lifecycle channel. Announcements are the only
// membership path, and both kinds are idempotent.
func (c *Client) applyMessages() error {
	msgs, err := c.router.DrainMessages()
	if err != nil {
		return err
	}
	for _, m := range msgs {
		switch m.Kind {
		case protocol.PlayerConnected:
			if c.lobby.Get(m.Player) == nil {
				c.lobby.Add(m.Player)
				c.view.PlayerJoined(m.Player)
			}
		case protocol.PlayerDisconnected:
			if c.lobby.Remove(m.Player) {
				c.view.PlayerLeft(m.Player)
			}
		}
	}
	return nil
}

// applySnapshots overwrites cached positions. Ids the mirror has not seen
// announced are skipped; snapshots never touch membership.
func (c *Client) applySnapshots() error {
	snaps, err := c.router.DrainSnapshots()
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		for id, pos := range snap.Positions {
			p := c.lobby.Get(id)
			if p == nil {
				continue
			}
			p.Pos = pos
			c.view.PlayerMoved(id, pos)
		}
	}
	return nil
}

func (c *Client) maybeLogRTT(now time.Time) {
	if now.Sub(c.lastRTTLog) < rttLogInterval {
		return
	}
	c.lastRTTLog = now
	c.log.Infow("transport rtt", "rtt", c.tr.RTT())
}

// Run ticks at tickRate until ctx is cancelled or a tick fails. An engine
// build would call Tick from its display loop instead.
func (c *Client) Run(ctx context.Context, tickRate int) error {
	if tickRate <= 0 {
		tickRate = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := c.Tick(now); err != nil {
				return err
			}
		}
	}
}

// Close notifies the server instead of leaving it to a liveness timeout.
func (c *Client) Close() error {
	return c.tr.Close()
}
