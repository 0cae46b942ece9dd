// Package memnet is an in-process transport pair with the same contract
// as the socket-backed ones: lifecycle events, per-channel queues, version
// check at dial. Nothing is ever lost or reordered, so delivery modes are
// moot, which makes it the transport of choice for deterministic pipeline
// tests.
package memnet

import (
	"errors"
	"fmt"
	"time"

	"drift/transport"
)

type conn struct {
	id       transport.PeerID
	srv      *Server
	toClient [][][]byte
	toServer [][][]byte
	closed   bool
}

type Server struct {
	cfg    transport.Config
	nextID transport.PeerID
	conns  map[transport.PeerID]*conn
	events []transport.Event
	closed bool
}

func Listen(cfg transport.Config) *Server {
	return &Server{
		cfg:    cfg,
		nextID: 1,
		conns:  make(map[transport.PeerID]*conn),
	}
}

// Dial attaches a new client to the listener, performing the same version
// handshake a socket transport would.
func (s *Server) Dial(version uint32) (*Client, error) {
	if s.closed {
		return nil, transport.ErrClosed
	}
	if version != s.cfg.Version {
		return nil, fmt.Errorf("memnet: protocol version mismatch: got %d, want %d", version, s.cfg.Version)
	}
	if s.cfg.MaxPeers > 0 && len(s.conns) >= s.cfg.MaxPeers {
		return nil, errors.New("memnet: server full")
	}
	c := &conn{
		id:       s.nextID,
		srv:      s,
		toClient: make([][][]byte, s.cfg.Channels),
		toServer: make([][][]byte, s.cfg.Channels),
	}
	s.nextID++
	s.conns[c.id] = c
	s.events = append(s.events, transport.Event{Type: transport.Connect, Peer: c.id})
	return &Client{conn: c}, nil
}

func (s *Server) Service() error {
	if s.closed {
		return transport.ErrClosed
	}
	return nil
}

func (s *Server) PollEvents() []transport.Event {
	events := s.events
	s.events = nil
	return events
}

func (s *Server) Receive(peer transport.PeerID, channel uint8) [][]byte {
	c, ok := s.conns[peer]
	if !ok || int(channel) >= len(c.toServer) {
		return nil
	}
	payloads := c.toServer[channel]
	c.toServer[channel] = nil
	return payloads
}

func (s *Server) Send(peer transport.PeerID, channel uint8, _ transport.Delivery, payload []byte) error {
	c, ok := s.conns[peer]
	if !ok {
		return transport.ErrUnknownPeer
	}
	c.toClient[channel] = append(c.toClient[channel], append([]byte(nil), payload...))
	return nil
}

func (s *Server) Broadcast(channel uint8, _ transport.Delivery, payload []byte) error {
	for _, c := range s.conns {
		c.toClient[channel] = append(c.toClient[channel], append([]byte(nil), payload...))
	}
	return nil
}

func (s *Server) Peers() []transport.PeerID {
	peers := make([]transport.PeerID, 0, len(s.conns))
	for id := range s.conns {
		peers = append(peers, id)
	}
	return peers
}

func (s *Server) Close() error {
	s.closed = true
	return nil
}

type Client struct {
	conn *conn
}

func (c *Client) Service() error {
	if c.conn.closed {
		return transport.ErrClosed
	}
	if c.conn.srv.closed {
		return errors.New("memnet: server closed the connection")
	}
	return nil
}

func (c *Client) Receive(channel uint8) [][]byte {
	if int(channel) >= len(c.conn.toClient) {
		return nil
	}
	payloads := c.conn.toClient[channel]
	c.conn.toClient[channel] = nil
	return payloads
}

func (c *Client) Send(channel uint8, _ transport.Delivery, payload []byte) error {
	if c.conn.closed {
		return transport.ErrClosed
	}
	if c.conn.srv.closed {
		return errors.New("memnet: server closed the connection")
	}
	c.conn.toServer[channel] = append(c.conn.toServer[channel], append([]byte(nil), payload...))
	return nil
}

func (c *Client) RTT() time.Duration {
	return 0
}

// Close is the explicit disconnect: the listener sees the Disconnect
// event on its next poll.
func (c *Client) Close() error {
	if c.conn.closed {
		return nil
	}
	c.conn.closed = true
	srv := c.conn.srv
	if _, ok := srv.conns[c.conn.id]; ok {
		delete(srv.conns, c.conn.id)
		srv.events = append(srv.events, transport.Event{Type: transport.Disconnect, Peer: c.conn.id})
	}
	return nil
}
