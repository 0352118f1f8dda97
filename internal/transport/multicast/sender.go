package multicast

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/muurk/argo/internal/endpoint"
	"github.com/muurk/argo/internal/logging"
	"github.com/muurk/argo/internal/transport"
	"github.com/muurk/argo/internal/wire"
)

// Sender emits probes as multicast datagrams.
type Sender struct {
	opts  options
	state stateBox

	mu   sync.Mutex
	conn *net.UDPConn
	p4   *ipv4.PacketConn
	p6   *ipv6.PacketConn
	dst  *net.UDPAddr
	ifi  *endpoint.Interface
}

// NewSender creates a sender in the created state.
func NewSender(opts ...Option) *Sender {
	return &Sender{opts: buildOptions(opts)}
}

// State returns the lifecycle state.
func (s *Sender) State() State { return s.state.load() }

// Initialize opens the sending socket and pins the outbound interface.
func (s *Sender) Initialize(props transport.Properties) error {
	if s.State() != StateCreated {
		return &transport.ConfigError{Transport: Name, Message: "already initialized"}
	}
	cfg, err := parseSettings(props)
	if err != nil {
		return err
	}

	name := ""
	if len(cfg.interfaces) > 0 {
		name = cfg.interfaces[0]
	}
	ifi := selectInterface(s.opts.source, name)

	conn, err := net.ListenUDP(cfg.network(), nil)
	if err != nil {
		return &transport.ConfigError{Transport: Name, Message: "cannot open sending socket", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
	s.dst = cfg.group
	s.ifi = ifi

	if cfg.network() == "udp4" {
		s.p4 = ipv4.NewPacketConn(conn)
		err = s.p4.SetMulticastLoopback(cfg.loopback)
		if err == nil && ifi != nil {
			err = s.p4.SetMulticastInterface(ifi.Net())
		}
	} else {
		s.p6 = ipv6.NewPacketConn(conn)
		err = s.p6.SetMulticastLoopback(cfg.loopback)
		if err == nil && ifi != nil {
			err = s.p6.SetMulticastInterface(ifi.Net())
		}
	}
	if err != nil {
		conn.Close()
		s.conn = nil
		return joinConfigError(newJoinError(ifi, cfg.group, err))
	}

	s.state.store(StateBound)
	logging.Debug("Multicast sender ready", zap.String("group", cfg.group.String()), zap.Bool("loopback", cfg.loopback))
	return nil
}

// Send encodes p as XML and writes one datagram with the probe's hop limit.
func (s *Sender) Send(ctx context.Context, p *wire.Probe) error {
	switch s.State() {
	case StateBound:
		s.state.advance(StateBound, StateRunning)
	case StateRunning:
	case StateClosed:
		return &transport.SendError{Transport: Name, ProbeID: p.ID(), Message: "sender closed", Err: transport.ErrClosed}
	default:
		return &transport.SendError{Transport: Name, ProbeID: p.ID(), Message: "sender not initialized"}
	}

	data, err := wire.EncodeProbeXML(p)
	if err != nil {
		return &transport.SendError{Transport: Name, ProbeID: p.ID(), Message: "encode failed", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return &transport.SendError{Transport: Name, ProbeID: p.ID(), Message: "sender closed", Err: transport.ErrClosed}
	}

	if err := s.setHopLimit(p.HopLimit()); err != nil {
		return &transport.SendError{Transport: Name, ProbeID: p.ID(), Message: "cannot set hop limit", Err: err}
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(5 * time.Second)
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return &transport.SendError{Transport: Name, ProbeID: p.ID(), Message: "cannot set deadline", Err: err}
	}
	defer s.conn.SetWriteDeadline(time.Time{})

	n, err := s.conn.WriteToUDP(data, s.dst)
	if err != nil {
		return &transport.SendError{Transport: Name, ProbeID: p.ID(), Message: fmt.Sprintf("write to %s failed", s.dst), Err: err}
	}

	logging.LogProbe("sent", p.ID(), Name, zap.String("group", s.dst.String()), zap.Int("bytes", n), zap.Int("hopLimit", p.HopLimit()))
	return nil
}

// setHopLimit sets the TTL for both multicast and unicast destinations.
func (s *Sender) setHopLimit(hops int) error {
	if s.p4 != nil {
		if err := s.p4.SetMulticastTTL(hops); err != nil {
			return err
		}
		return s.p4.SetTTL(hops)
	}
	if err := s.p6.SetMulticastHopLimit(hops); err != nil {
		return err
	}
	return s.p6.SetHopLimit(hops)
}

// MaxPayloadSize returns the MTU of the pinned interface, or
// transport.Unbounded when it is not known.
func (s *Sender) MaxPayloadSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ifi != nil && s.ifi.MTU > 0 {
		return s.ifi.MTU
	}
	return transport.Unbounded
}

// Close releases the socket. Close is idempotent.
func (s *Sender) Close() error {
	s.state.store(StateClosed)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

var _ transport.Sender = (*Sender)(nil)
