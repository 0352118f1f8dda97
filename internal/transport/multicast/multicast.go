// Package multicast carries probes as single UDP datagrams sent to an IP
// multicast group.
//
// Probes are always XML on the wire. The sender sets the outbound TTL (IPv4)
// or hop limit (IPv6) of every datagram to the probe's hop limit. A receiver
// may be joined on several interfaces at once; each runs its own receive
// goroutine and calls the ProbeProcessor synchronously.
//
// Interface selection, per configured name, first success wins:
//
//  1. the named interface, if it resolves
//  2. the interface that owns the local host's address
//  3. no interface at all, leaving the choice to the kernel (logged as degraded)
//
// Properties:
//
//	multicastAddress      group address (default 230.0.0.1)
//	multicastPort         group port (default 4003)
//	networkInterfaceName  interface name, comma-separated for multihomed receivers
//	loopback              sender only: deliver own datagrams locally (default true)
package multicast

import (
	"fmt"
	"net"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/muurk/argo/internal/endpoint"
	"github.com/muurk/argo/internal/logging"
	"github.com/muurk/argo/internal/transport"
)

// Name is the transport type used in configuration.
const Name = "multicast"

// Property keys and defaults
const (
	PropAddress   = "multicastAddress"
	PropPort      = "multicastPort"
	PropInterface = "networkInterfaceName"
	PropLoopback  = "loopback"

	DefaultAddress = "230.0.0.1"
	DefaultPort    = 4003
)

// maxDatagram is the largest UDP payload over IPv4.
const maxDatagram = 65507

// State is the lifecycle position of a transport.
type State int32

const (
	StateCreated State = iota
	StateBound
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateBound:
		return "bound"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type stateBox struct{ v atomic.Int32 }

func (b *stateBox) load() State { return State(b.v.Load()) }

func (b *stateBox) store(s State) { b.v.Store(int32(s)) }

// advance moves from one state to the next and reports whether it did.
func (b *stateBox) advance(from, to State) bool {
	return b.v.CompareAndSwap(int32(from), int32(to))
}

type settings struct {
	group      *net.UDPAddr
	interfaces []string
	loopback   bool
}

func (s settings) network() string {
	if s.group.IP.To4() != nil {
		return "udp4"
	}
	return "udp6"
}

func parseSettings(props transport.Properties) (settings, error) {
	addr := props.String(PropAddress, DefaultAddress)
	ip := net.ParseIP(addr)
	if ip == nil || !ip.IsMulticast() {
		return settings{}, &transport.ConfigError{Transport: Name, Key: PropAddress, Message: fmt.Sprintf("%q is not a multicast address", addr)}
	}

	port, err := props.Int(Name, PropPort, DefaultPort)
	if err != nil {
		return settings{}, err
	}
	if port < 1 || port > 65535 {
		return settings{}, &transport.ConfigError{Transport: Name, Key: PropPort, Message: "must be between 1 and 65535, got " + strconv.Itoa(port)}
	}

	loopback, err := props.Bool(Name, PropLoopback, true)
	if err != nil {
		return settings{}, err
	}

	return settings{
		group:      &net.UDPAddr{IP: ip, Port: port},
		interfaces: props.List(PropInterface),
		loopback:   loopback,
	}, nil
}

// selectInterface applies the named, local-host, unbound fallback chain.
// A nil result means unbound.
func selectInterface(src endpoint.InterfaceSource, name string) *endpoint.Interface {
	if name != "" {
		ifi, err := src.InterfaceByName(name)
		if err == nil {
			return ifi
		}
		logging.Warn("Configured interface not found, trying the local host interface",
			zap.String("interface", name), zap.Error(err))
	}

	ifi, err := src.LocalHostInterface()
	if err == nil {
		return ifi
	}

	logging.Warn("No interface resolved, joining multicast group unbound (degraded mode)", zap.Error(err))
	return nil
}

// JoinError reports that the operating system refused to join or bind the
// multicast group on an interface. The flags describe the interface to help
// diagnose virtual, loopback and point-to-point links.
type JoinError struct {
	Interface    string
	Group        string
	Loopback     bool
	Multicast    bool
	PointToPoint bool
	Up           bool
	Err          error
}

func newJoinError(ifi *endpoint.Interface, group *net.UDPAddr, err error) *JoinError {
	je := &JoinError{Interface: "<unbound>", Group: group.String(), Err: err}
	if ifi != nil {
		je.Interface = ifi.Name
		je.Loopback = ifi.IsLoopback()
		je.Multicast = ifi.SupportsMulticast()
		je.PointToPoint = ifi.IsPointToPoint()
		je.Up = ifi.IsUp()
	}
	return je
}

// Error implements the error interface
func (e *JoinError) Error() string {
	return fmt.Sprintf("cannot join %s on %s (loopback=%t multicast=%t pointToPoint=%t up=%t): %v",
		e.Group, e.Interface, e.Loopback, e.Multicast, e.PointToPoint, e.Up, e.Err)
}

// Unwrap returns the underlying error
func (e *JoinError) Unwrap() error {
	return e.Err
}

func joinConfigError(je *JoinError) error {
	return &transport.ConfigError{Transport: Name, Key: PropInterface, Message: "multicast join refused", Err: je}
}

// Option configures a Sender or Receiver.
type Option func(*options)

type options struct {
	source endpoint.InterfaceSource
	listen listenFunc
}

// WithInterfaceSource replaces the operating system interface list.
func WithInterfaceSource(src endpoint.InterfaceSource) Option {
	return func(o *options) { o.source = src }
}

func buildOptions(opts []Option) options {
	o := options{source: endpoint.SystemInterfaces{}, listen: listenMulticast}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Register adds the multicast sender and receiver to r.
func Register(r *transport.Registry) {
	r.RegisterSender(Name, func() transport.Sender { return NewSender() })
	r.RegisterReceiver(Name, func() transport.Receiver { return NewReceiver() })
}
