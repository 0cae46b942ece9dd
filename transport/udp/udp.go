// Package udp is the production transport: ENet over UDP. ENet supplies
// the channel multiplexing, per-packet reliability modes, and connection
// liveness; this adapter pumps the host once per tick and buffers events
// and payloads for the owner to drain. One extra channel beyond the
// application's is reserved for a ping echo that feeds RTT telemetry.
package udp

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/codecat/go-enet"
	"go.uber.org/zap"

	"drift/transport"
)

// Cap on events handled per Service call so one busy socket cannot stall
// the tick.
const maxServiceEvents = 128

const (
	pingInterval = time.Second
	dialTimeout  = 3 * time.Second
)

// Disconnect code handed to peers that present the wrong protocol version.
const rejectVersionMismatch uint32 = 1

var initOnce sync.Once

// enet_initialize is process-wide; never deinitialized, the process
// lifetime is the host lifetime.
func initENet() {
	initOnce.Do(func() {
		enet.Initialize()
	})
}

func flags(d transport.Delivery) enet.PacketFlags {
	if d == transport.Unsequenced {
		return enet.PacketFlagUnsequenced
	}
	return enet.PacketFlagReliable
}

func parseAddr(addr string) (string, uint16, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("udp: bad address %q: %w", addr, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("udp: bad port %q: %w", portStr, err)
	}
	return host, uint16(port), nil
}

type Server struct {
	host     enet.Host
	log      *zap.SugaredLogger
	version  uint32
	channels int
	echo     uint8

	nextID transport.PeerID
	peers  map[transport.PeerID]enet.Peer
	ids    map[enet.Peer]transport.PeerID
	inbox  map[transport.PeerID][][][]byte
	events []transport.Event
	closed bool
}

// Listen binds an ENet host on addr. cfg.MaxPeers is enforced by ENet
// itself; cfg.Version is checked against the connect data each peer
// presents.
func Listen(addr string, cfg transport.Config, log *zap.SugaredLogger) (*Server, error) {
	initENet()
	host, port, err := parseAddr(addr)
	if err != nil {
		return nil, err
	}

	var address enet.Address
	if host == "" {
		address = enet.NewListenAddress(port)
	} else {
		address = enet.NewAddress(host, port)
	}

	maxPeers := cfg.MaxPeers
	if maxPeers <= 0 {
		maxPeers = 64
	}

	h, err := enet.NewHost(address, uint64(maxPeers), uint64(cfg.Channels+1), 0, 0)
	if err != nil {
		return nil, fmt.Errorf("udp: listen %s: %w", addr, err)
	}
	log.Infow("listening", "transport", "udp", "addr", addr, "max_peers", maxPeers)
	return &Server{
		host:     h,
		log:      log,
		version:  cfg.Version,
		channels: cfg.Channels,
		echo:     uint8(cfg.Channels),
		nextID:   1,
		peers:    make(map[transport.PeerID]enet.Peer),
		ids:      make(map[enet.Peer]transport.PeerID),
		inbox:    make(map[transport.PeerID][][][]byte),
	}, nil
}

func (s *Server) Service() error {
	if s.closed {
		return transport.ErrClosed
	}
	for i := 0; i < maxServiceEvents; i++ {
		ev := s.host.Service(0)
		switch ev.GetType() {
		case enet.EventNone:
			return nil

		case enet.EventConnect:
			if ev.GetData() != s.version {
				s.log.Warnw("rejecting peer: protocol version mismatch",
					"got", ev.GetData(), "want", s.version)
				ev.GetPeer().DisconnectNow(rejectVersionMismatch)
				continue
			}
			id := s.nextID
			s.nextID++
			s.peers[id] = ev.GetPeer()
			s.ids[ev.GetPeer()] = id
			s.inbox[id] = make([][][]byte, s.channels)
			s.events = append(s.events, transport.Event{Type: transport.Connect, Peer: id})

		case enet.EventDisconnect:
			id, ok := s.ids[ev.GetPeer()]
			if !ok {
				// Rejected during handshake, never surfaced.
				continue
			}
			delete(s.ids, ev.GetPeer())
			delete(s.peers, id)
			delete(s.inbox, id)
			s.events = append(s.events, transport.Event{Type: transport.Disconnect, Peer: id})

		case enet.EventReceive:
			packet := ev.GetPacket()
			data := packet.GetData()
			packet.Destroy()

			peer := ev.GetPeer()
			if ev.GetChannelID() == s.echo {
				peer.SendBytes(data, s.echo, enet.PacketFlagReliable)
				continue
			}
			id, ok := s.ids[peer]
			if !ok {
				continue
			}
			ch := ev.GetChannelID()
			if int(ch) >= s.channels {
				continue
			}
			s.inbox[id][ch] = append(s.inbox[id][ch], data)
		}
	}
	return nil
}

func (s *Server) PollEvents() []transport.Event {
	events := s.events
	s.events = nil
	return events
}

func (s *Server) Receive(peer transport.PeerID, channel uint8) [][]byte {
	queues, ok := s.inbox[peer]
	if !ok || int(channel) >= len(queues) {
		return nil
	}
	payloads := queues[channel]
	queues[channel] = nil
	return payloads
}

func (s *Server) Send(peer transport.PeerID, channel uint8, d transport.Delivery, payload []byte) error {
	p, ok := s.peers[peer]
	if !ok {
		return transport.ErrUnknownPeer
	}
	return p.SendBytes(payload, channel, flags(d))
}

func (s *Server) Broadcast(channel uint8, d transport.Delivery, payload []byte) error {
	for id, p := range s.peers {
		if err := p.SendBytes(payload, channel, flags(d)); err != nil {
			// A peer mid-teardown is not a broadcast failure.
			s.log.Debugw("broadcast send failed", "peer", id, "error", err)
		}
	}
	return nil
}

func (s *Server) Peers() []transport.PeerID {
	peers := make([]transport.PeerID, 0, len(s.peers))
	for id := range s.peers {
		peers = append(peers, id)
	}
	return peers
}

func (s *Server) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	for _, p := range s.peers {
		p.DisconnectNow(0)
	}
	s.host.Destroy()
	return nil
}

type Client struct {
	host     enet.Host
	peer     enet.Peer
	log      *zap.SugaredLogger
	channels int
	echo     uint8

	inbox    [][][]byte
	rtt      time.Duration
	lastPing time.Time
	closed   bool
}

// Dial connects to addr and blocks until ENet completes the handshake or
// dialTimeout passes. The protocol version rides on the connect data; a
// mismatch surfaces as an immediate disconnect.
func Dial(addr string, cfg transport.Config, log *zap.SugaredLogger) (*Client, error) {
	initENet()
	host, port, err := parseAddr(addr)
	if err != nil {
		return nil, err
	}

	h, err := enet.NewHost(nil, 1, uint64(cfg.Channels+1), 0, 0)
	if err != nil {
		return nil, fmt.Errorf("udp: create host: %w", err)
	}

	peer, err := h.Connect(enet.NewAddress(host, port), cfg.Channels+1, cfg.Version)
	if err != nil {
		h.Destroy()
		return nil, fmt.Errorf("udp: connect %s: %w", addr, err)
	}

	deadline := time.Now().Add(dialTimeout)
	for time.Now().Before(deadline) {
		ev := h.Service(50)
		switch ev.GetType() {
		case enet.EventConnect:
			log.Infow("connected", "transport", "udp", "addr", addr)
			return &Client{
				host:     h,
				peer:     peer,
				log:      log,
				channels: cfg.Channels,
				echo:     uint8(cfg.Channels),
				inbox:    make([][][]byte, cfg.Channels),
			}, nil
		case enet.EventDisconnect:
			h.Destroy()
			return nil, fmt.Errorf("udp: connect %s: rejected by server", addr)
		}
	}
	h.Destroy()
	return nil, fmt.Errorf("udp: connect %s: timed out", addr)
}

func (c *Client) Service() error {
	if c.closed {
		return transport.ErrClosed
	}

	now := time.Now()
	if c.lastPing.IsZero() || now.Sub(c.lastPing) >= pingInterval {
		c.peer.SendBytes([]byte{0}, c.echo, enet.PacketFlagReliable)
		c.lastPing = now
	}

	for i := 0; i < maxServiceEvents; i++ {
		ev := c.host.Service(0)
		switch ev.GetType() {
		case enet.EventNone:
			return nil

		case enet.EventDisconnect:
			return errors.New("udp: server closed the connection")

		case enet.EventReceive:
			packet := ev.GetPacket()
			data := packet.GetData()
			packet.Destroy()

			ch := ev.GetChannelID()
			if ch == c.echo {
				c.rtt = time.Since(c.lastPing)
				continue
			}
			if int(ch) >= c.channels {
				continue
			}
			c.inbox[ch] = append(c.inbox[ch], data)
		}
	}
	return nil
}

func (c *Client) Receive(channel uint8) [][]byte {
	if int(channel) >= len(c.inbox) {
		return nil
	}
	payloads := c.inbox[channel]
	c.inbox[channel] = nil
	return payloads
}

func (c *Client) Send(channel uint8, d transport.Delivery, payload []byte) error {
	if c.closed {
		return transport.ErrClosed
	}
	return c.peer.SendBytes(payload, channel, flags(d))
}

func (c *Client) RTT() time.Duration {
	return c.rtt
}

// Close sends the polite disconnect and services the host briefly so the
// notification actually leaves before the socket goes away.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.peer.Disconnect(0)
	for i := 0; i < 10; i++ {
		if c.host.Service(10).GetType() == enet.EventDisconnect {
			break
		}
	}
	c.host.Destroy()
	return nil
}
