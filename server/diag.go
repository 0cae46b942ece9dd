package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/pprof"
	"sync/atomic"
	"time"
)

// Metrics are the tick-thread counters surfaced by /diag. Atomic because
// the debug handler reads them from its own goroutine.
type Metrics struct {
	Ticks        atomic.Uint64
	MessagesOut  atomic.Uint64
	InputsIn     atomic.Uint64
	SnapshotsOut atomic.Uint64
}

func (m *Metrics) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"ticks":         m.Ticks.Load(),
		"messages_out":  m.MessagesOut.Load(),
		"inputs_in":     m.InputsIn.Load(),
		"snapshots_out": m.SnapshotsOut.Load(),
	}
}

type diagPlayer struct {
	Player  uint64 `json:"player"`
	Session string `json:"session"`
}

func (s *Server) handleDiag(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	players := make([]diagPlayer, 0, len(s.sessions))
	for id, session := range s.sessions {
		players = append(players, diagPlayer{Player: uint64(id), Session: session})
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"uptime_seconds": time.Since(s.started).Seconds(),
		"players":        players,
		"metrics":        s.metrics.Snapshot(),
	})
}

// serveDebug exposes pprof, a liveness probe, and /diag on its own
// listener. Returns the function that tears it down.
func (s *Server) serveDebug(addr string) func() {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/diag", s.handleDiag)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorw("debug server", "error", err)
		}
	}()
	s.log.Infow("debug endpoint up", "addr", addr)
	return func() { srv.Close() }
}
