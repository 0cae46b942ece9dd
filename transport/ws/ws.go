// Package ws is the WebSocket fallback transport for networks where UDP
// is blocked. Channels are multiplexed onto the single ordered stream with
// a one-byte prefix per binary frame, which means the Delivery mode is
// advisory here: everything arrives reliably and in order. The protocol
// version is checked at the HTTP upgrade. RTT comes from websocket pings.
package ws

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"drift/transport"
)

const (
	outboundQueue = 1024
	pingInterval  = time.Second
	writeTimeout  = 5 * time.Second
)

type peerConn struct {
	id       transport.PeerID
	c        *websocket.Conn
	outbound chan []byte
	cancel   context.CancelFunc
}

type Server struct {
	log      *zap.SugaredLogger
	serveMux http.ServeMux
	httpSrv  *http.Server
	version  uint32
	channels int
	maxPeers int

	mu     sync.Mutex
	nextID transport.PeerID
	peers  map[transport.PeerID]*peerConn
	inbox  map[transport.PeerID][][][]byte
	events []transport.Event
	closed bool

	errs chan error
}

func Listen(addr string, cfg transport.Config, log *zap.SugaredLogger) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ws: listen %s: %w", addr, err)
	}

	maxPeers := cfg.MaxPeers
	if maxPeers <= 0 {
		maxPeers = 64
	}
	s := &Server{
		log:      log,
		version:  cfg.Version,
		channels: cfg.Channels,
		maxPeers: maxPeers,
		nextID:   1,
		peers:    make(map[transport.PeerID]*peerConn),
		inbox:    make(map[transport.PeerID][][][]byte),
		errs:     make(chan error, 1),
	}
	s.serveMux.HandleFunc("/", s.onConnection)
	s.httpSrv = &http.Server{Handler: &s.serveMux}

	go func() {
		s.errs <- s.httpSrv.Serve(l)
	}()
	log.Infow("listening", "transport", "ws", "addr", addr, "max_peers", maxPeers)
	return s, nil
}

func (s *Server) onConnection(w http.ResponseWriter, r *http.Request) {
	if v, err := strconv.ParseUint(r.URL.Query().Get("v"), 10, 32); err != nil || uint32(v) != s.version {
		s.log.Warnw("rejecting peer: protocol version mismatch", "got", r.URL.Query().Get("v"), "want", s.version)
		http.Error(w, "protocol version mismatch", http.StatusUpgradeRequired)
		return
	}

	s.mu.Lock()
	full := len(s.peers) >= s.maxPeers
	s.mu.Unlock()
	if full {
		http.Error(w, "server full", http.StatusServiceUnavailable)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Debugw("accept failed", "error", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "")

	s.handleConnection(r.Context(), c)
}

// handleConnection owns one peer for its whole life: registers it, pumps
// reads in this goroutine and writes in a second one, and unregisters on
// the way out, which is what produces the Disconnect event.
func (s *Server) handleConnection(ctx context.Context, c *websocket.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := &peerConn{
		c:        c,
		outbound: make(chan []byte, outboundQueue),
		cancel:   cancel,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	p.id = s.nextID
	s.nextID++
	s.peers[p.id] = p
	s.inbox[p.id] = make([][][]byte, s.channels)
	s.events = append(s.events, transport.Event{Type: transport.Connect, Peer: p.id})
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if _, ok := s.peers[p.id]; ok {
			delete(s.peers, p.id)
			delete(s.inbox, p.id)
			s.events = append(s.events, transport.Event{Type: transport.Disconnect, Peer: p.id})
		}
		s.mu.Unlock()
	}()

	go func() {
		for {
			select {
			case msg := <-p.outbound:
				wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
				err := c.Write(wctx, websocket.MessageBinary, msg)
				wcancel()
				if err != nil {
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		typ, b, err := c.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageBinary || len(b) < 1 {
			continue
		}
		ch := b[0]
		if int(ch) >= s.channels {
			continue
		}
		s.mu.Lock()
		if q, ok := s.inbox[p.id]; ok {
			q[ch] = append(q[ch], b[1:])
		}
		s.mu.Unlock()
	}
}

// Service only has to surface asynchronous listener failure; the per-peer
// goroutines do the actual pumping.
func (s *Server) Service() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}
	select {
	case err := <-s.errs:
		return fmt.Errorf("ws: serve: %w", err)
	default:
		return nil
	}
}

func (s *Server) PollEvents() []transport.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events
	s.events = nil
	return events
}

func (s *Server) Receive(peer transport.PeerID, channel uint8) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	queues, ok := s.inbox[peer]
	if !ok || int(channel) >= len(queues) {
		return nil
	}
	payloads := queues[channel]
	queues[channel] = nil
	return payloads
}

func frame(channel uint8, payload []byte) []byte {
	f := make([]byte, 1+len(payload))
	f[0] = channel
	copy(f[1:], payload)
	return f
}

func (s *Server) send(p *peerConn, f []byte) {
	select {
	case p.outbound <- f:
	default:
		// A full queue means the peer stopped reading; drop it rather
		// than stall the tick.
		s.log.Warnw("peer write queue overflow, dropping", "peer", p.id)
		p.c.Close(websocket.StatusPolicyViolation, "write queue overflow")
		p.cancel()
	}
}

func (s *Server) Send(peer transport.PeerID, channel uint8, _ transport.Delivery, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[peer]
	if !ok {
		return transport.ErrUnknownPeer
	}
	s.send(p, frame(channel, payload))
	return nil
}

func (s *Server) Broadcast(channel uint8, _ transport.Delivery, payload []byte) error {
	f := frame(channel, payload)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.peers {
		s.send(p, f)
	}
	return nil
}

func (s *Server) Peers() []transport.PeerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	peers := make([]transport.PeerID, 0, len(s.peers))
	for id := range s.peers {
		peers = append(peers, id)
	}
	return peers
}

func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, p := range s.peers {
		p.cancel()
	}
	s.mu.Unlock()
	return s.httpSrv.Close()
}

type Client struct {
	c      *websocket.Conn
	log    *zap.SugaredLogger
	cancel context.CancelFunc

	mu     sync.Mutex
	inbox  [][][]byte
	closed bool

	rttNs   atomic.Int64
	readErr chan error
}

// Dial connects to ws://addr/?v=<version>. A version mismatch is rejected
// by the server during the upgrade, so it surfaces here as a dial error.
func Dial(ctx context.Context, addr string, cfg transport.Config, log *zap.SugaredLogger) (*Client, error) {
	url := fmt.Sprintf("ws://%s/?v=%d", addr, cfg.Version)
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", url, err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		c:       conn,
		log:     log,
		cancel:  cancel,
		inbox:   make([][][]byte, cfg.Channels),
		readErr: make(chan error, 1),
	}

	go func() {
		for {
			typ, b, err := conn.Read(pumpCtx)
			if err != nil {
				c.readErr <- err
				return
			}
			if typ != websocket.MessageBinary || len(b) < 1 {
				continue
			}
			ch := b[0]
			if int(ch) >= cfg.Channels {
				continue
			}
			c.mu.Lock()
			c.inbox[ch] = append(c.inbox[ch], b[1:])
			c.mu.Unlock()
		}
	}()

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				start := time.Now()
				if err := conn.Ping(pumpCtx); err != nil {
					return
				}
				c.rttNs.Store(int64(time.Since(start)))
			case <-pumpCtx.Done():
				return
			}
		}
	}()

	log.Infow("connected", "transport", "ws", "addr", addr)
	return c, nil
}

func (c *Client) Service() error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}
	select {
	case err := <-c.readErr:
		return fmt.Errorf("ws: connection lost: %w", err)
	default:
		return nil
	}
}

func (c *Client) Receive(channel uint8) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if int(channel) >= len(c.inbox) {
		return nil
	}
	payloads := c.inbox[channel]
	c.inbox[channel] = nil
	return payloads
}

func (c *Client) Send(channel uint8, _ transport.Delivery, payload []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return c.c.Write(ctx, websocket.MessageBinary, frame(channel, payload))
}

func (c *Client) RTT() time.Duration {
	return time.Duration(c.rttNs.Load())
}

// Close performs the polite disconnect: a normal-closure frame the server
// reads as end of connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	return c.c.Close(websocket.StatusNormalClosure, "")
}
