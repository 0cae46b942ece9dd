// Package server owns the real lobby, simulates movement, and broadcasts
// announcements and snapshots. Everything runs on one goroutine.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"drift/protocol"
	"drift/replay"
	"drift/transport"
	"drift/transport/udp"
	"drift/transport/ws"
	"drift/utils"
	"drift/world"
)

type Server struct {
	tr     transport.Server
	router *protocol.ServerRouter
	lobby  *world.Lobby
	log    *zap.SugaredLogger
	speed  float64

	// sessions is shared with the debug handler.
	mu       sync.Mutex
	sessions map[world.PlayerID]string

	recorder   *replay.Recorder
	recordPath string

	metrics Metrics
	started time.Time
}

func New(cfg *utils.Config, tr transport.Server, log *zap.SugaredLogger) *Server {
	s := &Server{
		tr:       tr,
		router:   protocol.NewServerRouter(tr),
		lobby:    world.NewLobby(),
		log:      log,
		speed:    cfg.Player.Speed,
		sessions: make(map[world.PlayerID]string),
		started:  time.Now(),
	}
	if cfg.Server.RecordPath != "" {
		s.recorder = replay.NewRecorder(cfg.Player.Speed)
		s.recordPath = cfg.Server.RecordPath
	}
	return s
}

// Tick runs one pass: service the transport, apply lifecycle events, drain
// inputs, integrate, broadcast. A join announcement must leave before any
// snapshot that mentions the new id, so the order is fixed.
func (s *Server) Tick(dt float64) error {
	if err := s.tr.Service(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}

	joined, left, err := s.handleConnectionEvents()
	if err != nil {
		return err
	}

	inputs, err := s.drainInputs()
	if err != nil {
		return err
	}

	world.Step(s.lobby, s.speed, dt)

	if err := s.broadcastSnapshot(); err != nil {
		return err
	}

	s.metrics.Ticks.Add(1)
	if s.recorder != nil {
		s.recorder.Record(replay.Frame{Dt: dt, Joined: joined, Left: left, Inputs: inputs})
	}
	return nil
}

func (s *Server) handleConnectionEvents() (joined, left []world.PlayerID, err error) {
	for _, ev := range s.tr.PollEvents() {
		id := world.PlayerID(ev.Peer)
		switch ev.Type {
		case transport.Connect:
			if err := s.acceptPlayer(ev.Peer, id); err != nil {
				return nil, nil, err
			}
			joined = append(joined, id)
		case transport.Disconnect:
			if err := s.dropPlayer(id); err != nil {
				return nil, nil, err
			}
			left = append(left, id)
		}
	}
	return joined, left, nil
}

func (s *Server) acceptPlayer(peer transport.PeerID, id world.PlayerID) error {
	// Catch-up goes out before the lobby insert so the joiner never hears
	// about itself here.
	for _, existing := range s.lobby.IDs() {
		err := s.router.SendMessage(peer, protocol.ServerMessage{
			Kind:   protocol.PlayerConnected,
			Player: existing,
		})
		if errors.Is(err, transport.ErrUnknownPeer) {
			// Joiner already gone; its queued disconnect undoes the insert.
			break
		}
		if err != nil {
			return err
		}
		s.metrics.MessagesOut.Add(1)
	}

	s.lobby.Add(id)
	token := ksuid.New().String()
	s.mu.Lock()
	s.sessions[id] = token
	s.mu.Unlock()
	s.log.Infow("player connected", "player", id, "session", token, "players", s.lobby.Len())

	// The joiner learns its own membership from this broadcast.
	s.metrics.MessagesOut.Add(1)
	return s.router.BroadcastMessage(protocol.ServerMessage{
		Kind:   protocol.PlayerConnected,
		Player: id,
	})
}

func (s *Server) dropPlayer(id world.PlayerID) error {
	if s.lobby.Remove(id) {
		s.log.Infow("player disconnected", "player", id, "players", s.lobby.Len())
	}
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	s.metrics.MessagesOut.Add(1)
	return s.router.BroadcastMessage(protocol.ServerMessage{
		Kind:   protocol.PlayerDisconnected,
		Player: id,
	})
}

// drainInputs keeps only the newest buffered input per peer; inputs are
// whole-state, so older ones are stale by definition.
func (s *Server) drainInputs() (map[world.PlayerID]world.Input, error) {
	var applied map[world.PlayerID]world.Input
	if s.recorder != nil {
		applied = make(map[world.PlayerID]world.Input)
	}

	for _, peer := range s.tr.Peers() {
		inputs, err := s.router.DrainInputs(peer)
		if err != nil {
			return nil, err
		}
		if len(inputs) == 0 {
			continue
		}
		s.metrics.InputsIn.Add(uint64(len(inputs)))

		id := world.PlayerID(peer)
		p := s.lobby.Get(id)
		if p == nil {
			// Input racing its own connect event.
			continue
		}
		p.Input = inputs[len(inputs)-1]
		if applied != nil {
			applied[id] = p.Input
		}
	}
	return applied, nil
}

func (s *Server) broadcastSnapshot() error {
	err := s.router.BroadcastSnapshot(protocol.Snapshot{Positions: s.lobby.Positions()})
	if err != nil {
		return err
	}
	s.metrics.SnapshotsOut.Add(1)
	return nil
}

// Run ticks at tickRate until ctx is cancelled, integrating the wall time
// that actually passed rather than an assumed step.
func (s *Server) Run(ctx context.Context, tickRate int) error {
	if tickRate <= 0 {
		tickRate = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if err := s.Tick(dt); err != nil {
				return err
			}
		}
	}
}

func (s *Server) Close() error {
	if s.recorder != nil && s.recorder.Len() > 0 {
		if err := s.recorder.Save(s.recordPath); err != nil {
			s.log.Errorw("save replay journal", "error", err)
		} else {
			s.log.Infow("replay journal saved", "path", s.recordPath, "frames", s.recorder.Len())
		}
	}
	return s.tr.Close()
}

// Start runs a server from config.toml. An address argument overrides the
// configured listen address.
func Start(args []string) error {
	cfg, err := utils.LoadConfig("config.toml")
	if err != nil {
		return err
	}
	if len(args) > 1 {
		cfg.Server.Listen = args[1]
	}

	log := utils.NewLogger(cfg.Log)
	defer log.Sync()

	tcfg := transport.Config{
		Channels: int(protocol.ChannelCount),
		MaxPeers: cfg.Server.MaxPlayers,
		Version:  protocol.Version,
	}
	var tr transport.Server
	switch cfg.Net.Transport {
	case "ws":
		tr, err = ws.Listen(cfg.Server.Listen, tcfg, log)
	default:
		tr, err = udp.Listen(cfg.Server.Listen, tcfg, log)
	}
	if err != nil {
		return err
	}

	s := New(cfg, tr, log)
	defer s.Close()

	if cfg.Server.DebugAddr != "" {
		stopDebug := s.serveDebug(cfg.Server.DebugAddr)
		defer stopDebug()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx, cfg.Server.TickRate)
}
