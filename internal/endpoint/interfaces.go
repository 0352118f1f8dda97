package endpoint

import (
	"errors"
	"fmt"
	"net"
	"os"
)

// Interface is a network interface together with its unicast addresses, in
// the order the system reports them.
type Interface struct {
	Name  string
	Index int
	MTU   int
	Flags net.Flags
	Addrs []net.IP
}

// Net returns the interface in the form the net package expects.
func (i *Interface) Net() *net.Interface {
	if i == nil {
		return nil
	}
	return &net.Interface{Index: i.Index, MTU: i.MTU, Name: i.Name, Flags: i.Flags}
}

// IsUp reports whether the interface is administratively up.
func (i *Interface) IsUp() bool { return i.Flags&net.FlagUp != 0 }

// IsLoopback reports whether the interface is a loopback interface.
func (i *Interface) IsLoopback() bool { return i.Flags&net.FlagLoopback != 0 }

// SupportsMulticast reports whether the interface supports multicast.
func (i *Interface) SupportsMulticast() bool { return i.Flags&net.FlagMulticast != 0 }

// IsPointToPoint reports whether the interface is a point-to-point link.
func (i *Interface) IsPointToPoint() bool { return i.Flags&net.FlagPointToPoint != 0 }

// ErrNoInterface is returned when an interface cannot be found.
var ErrNoInterface = errors.New("network interface not found")

// InterfaceSource enumerates network interfaces.
type InterfaceSource interface {
	// InterfaceByName returns the named interface or ErrNoInterface.
	InterfaceByName(name string) (*Interface, error)

	// LocalHostInterface returns the interface owning the local host's address.
	LocalHostInterface() (*Interface, error)
}

// SystemInterfaces reads interfaces from the operating system.
type SystemInterfaces struct {
	// Hostname overrides os.Hostname when set.
	Hostname string
}

// InterfaceByName implements InterfaceSource
func (s SystemInterfaces) InterfaceByName(name string) (*Interface, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoInterface, name, err)
	}
	return fromNet(ifi)
}

// LocalHostInterface implements InterfaceSource. The host name is resolved
// and the first interface carrying one of its addresses wins.
func (s SystemInterfaces) LocalHostInterface() (*Interface, error) {
	host := s.Hostname
	if host == "" {
		h, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("failed to get host name: %w", err)
		}
		host = h
	}

	hostIPs, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot resolve local host %s: %v", ErrNoInterface, host, err)
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}
	for idx := range ifaces {
		ifi, err := fromNet(&ifaces[idx])
		if err != nil {
			continue
		}
		for _, addr := range ifi.Addrs {
			for _, hip := range hostIPs {
				if addr.Equal(hip) {
					return ifi, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("%w: no interface owns %s", ErrNoInterface, host)
}

func fromNet(ifi *net.Interface) (*Interface, error) {
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses of %s: %w", ifi.Name, err)
	}
	out := &Interface{Name: ifi.Name, Index: ifi.Index, MTU: ifi.MTU, Flags: ifi.Flags}
	for _, a := range addrs {
		switch v := a.(type) {
		case *net.IPNet:
			out.Addrs = append(out.Addrs, v.IP)
		case *net.IPAddr:
			out.Addrs = append(out.Addrs, v.IP)
		}
	}
	return out, nil
}
