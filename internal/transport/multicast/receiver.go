package multicast

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/argo/internal/logging"
	"github.com/muurk/argo/internal/transport"
)

// packetReader is the part of a UDP socket the receive loop needs.
type packetReader interface {
	ReadFrom(b []byte) (int, net.Addr, error)
	Close() error
}

type listenFunc func(network string, ifi *net.Interface, group *net.UDPAddr) (packetReader, error)

func listenMulticast(network string, ifi *net.Interface, group *net.UDPAddr) (packetReader, error) {
	conn, err := net.ListenMulticastUDP(network, ifi, group)
	if err != nil {
		return nil, err
	}
	if err := conn.SetReadBuffer(maxDatagram); err != nil {
		logging.Debug("Could not raise socket read buffer", zap.Error(err))
	}
	return conn, nil
}

type boundConn struct {
	name string
	conn packetReader
}

// Receiver joins a multicast group on one or more interfaces.
type Receiver struct {
	opts  options
	state stateBox

	mu    sync.Mutex
	conns []boundConn
	mtu   int
}

// NewReceiver creates a receiver in the created state.
func NewReceiver(opts ...Option) *Receiver {
	return &Receiver{opts: buildOptions(opts)}
}

// State returns the lifecycle state.
func (r *Receiver) State() State { return r.state.load() }

// Initialize resolves the configured interfaces and joins the group on each.
func (r *Receiver) Initialize(props transport.Properties) error {
	if r.State() != StateCreated {
		return &transport.ConfigError{Transport: Name, Message: "already initialized"}
	}
	s, err := parseSettings(props)
	if err != nil {
		return err
	}

	names := s.interfaces
	if len(names) == 0 {
		names = []string{""}
	}

	seen := make(map[string]bool)
	var conns []boundConn
	mtu := 0
	for _, name := range names {
		ifi := selectInterface(r.opts.source, name)
		key := "<unbound>"
		if ifi != nil {
			key = ifi.Name
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		conn, err := r.opts.listen(s.network(), ifi.Net(), s.group)
		if err != nil {
			for _, c := range conns {
				c.conn.Close()
			}
			return joinConfigError(newJoinError(ifi, s.group, err))
		}
		conns = append(conns, boundConn{name: key, conn: conn})
		if ifi != nil && ifi.MTU > 0 && (mtu == 0 || ifi.MTU < mtu) {
			mtu = ifi.MTU
		}
		logging.Info("Joined multicast group",
			zap.String("group", s.group.String()),
			zap.String("interface", key))
	}

	r.mu.Lock()
	r.conns = conns
	r.mtu = mtu
	r.mu.Unlock()
	r.state.store(StateBound)
	return nil
}

// Listen runs one receive loop per joined interface and blocks until ctx is
// done or Close is called.
func (r *Receiver) Listen(ctx context.Context, fn transport.ProbeProcessor) error {
	if !r.state.advance(StateBound, StateRunning) {
		if r.State() == StateClosed {
			return transport.ErrClosed
		}
		return &transport.ConfigError{Transport: Name, Message: "listen requires a bound receiver, state is " + r.State().String()}
	}

	r.mu.Lock()
	conns := append([]boundConn(nil), r.conns...)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			r.Close()
		case <-done:
		}
	}()
	defer close(done)

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c boundConn) {
			defer wg.Done()
			r.readLoop(c, fn)
		}(c)
	}
	wg.Wait()
	return nil
}

func (r *Receiver) readLoop(c boundConn, fn transport.ProbeProcessor) {
	buf := make([]byte, maxDatagram)
	for {
		n, src, err := c.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || r.State() == StateClosed {
				logging.Debug("Receive loop stopped", zap.String("interface", c.name))
				return
			}
			logging.Warn("Multicast read failed", zap.String("interface", c.name), zap.Error(err))
			time.Sleep(100 * time.Millisecond)
			continue
		}

		probe, err := transport.DecodeProbe(buf[:n])
		if err != nil {
			logging.Warn("Dropping undecodable datagram",
				zap.String("interface", c.name),
				zap.Stringer("from", addrStringer{src}),
				zap.Int("bytes", n),
				zap.Error(err))
			logging.LogRawBytes("datagram", buf[:n])
			continue
		}

		logging.LogProbe("received", probe.ID(), Name, zap.String("interface", c.name))
		fn(probe)
	}
}

type addrStringer struct{ a net.Addr }

func (s addrStringer) String() string {
	if s.a == nil {
		return "unknown"
	}
	return s.a.String()
}

// MaxPayloadSize returns the smallest MTU among joined interfaces, or
// transport.Unbounded when none is known.
func (r *Receiver) MaxPayloadSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mtu > 0 {
		return r.mtu
	}
	return transport.Unbounded
}

// Close leaves the group on every interface. Pending reads return
// net.ErrClosed and the receive loops end. Close is idempotent.
func (r *Receiver) Close() error {
	if r.State() == StateClosed {
		return nil
	}
	r.state.store(StateClosed)

	r.mu.Lock()
	conns := r.conns
	r.conns = nil
	r.mu.Unlock()

	var errs []error
	for _, c := range conns {
		if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Interfaces returns the names of the joined interfaces.
func (r *Receiver) Interfaces() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.conns))
	for i, c := range r.conns {
		names[i] = c.name
	}
	return names
}

var _ transport.Receiver = (*Receiver)(nil)
