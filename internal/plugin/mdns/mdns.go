// Package mdns bridges DNS-SD services on the local link into Argo.
//
// The plugin periodically browses the configured service types with
// multicast DNS and publishes every round as a new directory generation.
// Each discovered instance becomes one service:
//
//	id                 instance.type.domain (e.g. "Office._ipp._tcp.local")
//	serviceContractID  contractPrefix + type (e.g. "urn:dns-sd:_ipp._tcp")
//	serviceName        the instance name
//	description        the advertised host name
//	accessPoints       one per address, with the TXT records as data
//
// Properties file (YAML):
//
//	serviceTypes: [_http._tcp, _ipp._tcp]
//	domain: local.
//	browseInterval: 1m
//	browseTimeout: 5s
//	ttlMinutes: 5
//	contractPrefix: "urn:dns-sd:"
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Firewall must allow mDNS (UDP port 5353)
package mdns

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/argo/internal/config"
	"github.com/muurk/argo/internal/logging"
	"github.com/muurk/argo/internal/plugin"
	"github.com/muurk/argo/internal/wire"
)

// Name is the plugin type used in configuration.
const Name = "mdns"

const (
	// DefaultServiceType is browsed when no types are configured
	DefaultServiceType = "_http._tcp"

	// DefaultDomain is the mDNS domain (typically "local.")
	DefaultDomain = "local."

	DefaultBrowseInterval = time.Minute
	DefaultBrowseTimeout  = 5 * time.Second
	DefaultTTLMinutes     = 5
	DefaultContractPrefix = "urn:dns-sd:"
)

// Properties is the plugin's properties file.
type Properties struct {
	ServiceTypes   []string        `yaml:"serviceTypes"`
	Domain         string          `yaml:"domain"`
	BrowseInterval config.Duration `yaml:"browseInterval"`
	BrowseTimeout  config.Duration `yaml:"browseTimeout"`
	TTLMinutes     *int            `yaml:"ttlMinutes"`
	ContractPrefix string          `yaml:"contractPrefix"`
}

func (p *Properties) applyDefaults() {
	if len(p.ServiceTypes) == 0 {
		p.ServiceTypes = []string{DefaultServiceType}
	}
	if p.Domain == "" {
		p.Domain = DefaultDomain
	}
	if p.BrowseInterval.Duration == 0 {
		p.BrowseInterval = config.NewDuration(DefaultBrowseInterval)
	}
	if p.BrowseTimeout.Duration == 0 {
		p.BrowseTimeout = config.NewDuration(DefaultBrowseTimeout)
	}
	if p.TTLMinutes == nil {
		ttl := DefaultTTLMinutes
		p.TTLMinutes = &ttl
	}
	if p.ContractPrefix == "" {
		p.ContractPrefix = DefaultContractPrefix
	}
}

// Browser is the subset of *zeroconf.Resolver the plugin uses.
type Browser interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// Plugin answers probes with services seen in the last browse round.
type Plugin struct {
	name       string
	dir        *plugin.Directory
	newBrowser func() (Browser, error)

	mu    sync.Mutex
	props Properties
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithBrowser replaces the zeroconf resolver, mostly for tests.
func WithBrowser(fn func() (Browser, error)) Option {
	return func(p *Plugin) { p.newBrowser = fn }
}

// New creates an uninitialized plugin.
func New(name string, opts ...Option) *Plugin {
	p := &Plugin{
		name: name,
		dir:  plugin.NewDirectory(),
		newBrowser: func() (Browser, error) {
			return zeroconf.NewResolver(nil)
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register adds the mdns plugin to r.
func Register(r *plugin.Registry) {
	r.Register(Name, func(name string) plugin.Plugin { return New(name) })
}

// Name returns the configured instance name.
func (p *Plugin) Name() string { return p.name }

// Initialize reads the properties file. An empty path uses the defaults.
func (p *Plugin) Initialize(propertiesPath string) error {
	var props Properties
	if propertiesPath != "" {
		if err := config.LoadYAMLFile(propertiesPath, &props); err != nil {
			return &plugin.ConfigError{Plugin: p.name, Path: propertiesPath, Message: "cannot read properties", Err: err}
		}
	}
	props.applyDefaults()

	if props.BrowseTimeout.Duration < 0 || props.BrowseInterval.Duration < 0 {
		return &plugin.ConfigError{Plugin: p.name, Path: propertiesPath, Message: "browse durations must not be negative"}
	}
	if props.BrowseTimeout.Duration >= props.BrowseInterval.Duration {
		return &plugin.ConfigError{Plugin: p.name, Path: propertiesPath,
			Message: fmt.Sprintf("browseTimeout (%s) must be shorter than browseInterval (%s)", props.BrowseTimeout, props.BrowseInterval)}
	}
	if *props.TTLMinutes < 0 {
		return &plugin.ConfigError{Plugin: p.name, Path: propertiesPath, Message: "ttlMinutes must not be negative"}
	}

	p.mu.Lock()
	p.props = props
	p.mu.Unlock()
	return nil
}

// HandleProbe matches against the last browse round.
func (p *Plugin) HandleProbe(probe *wire.Probe) *wire.Response {
	return p.dir.Respond(probe)
}

// Services returns the current generation.
func (p *Plugin) Services() []wire.Service {
	return p.dir.Services()
}

// Serve browses immediately and then once per browse interval.
func (p *Plugin) Serve(ctx context.Context) error {
	p.mu.Lock()
	interval := p.props.BrowseInterval.Duration
	p.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := p.Refresh(ctx); err != nil {
			logging.Warn("mDNS browse failed, keeping previous services",
				zap.String("plugin", p.name),
				zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Refresh runs one browse round over every service type and publishes the
// result. A failed round leaves the directory unchanged.
func (p *Plugin) Refresh(ctx context.Context) error {
	p.mu.Lock()
	props := p.props
	p.mu.Unlock()

	var services []wire.Service
	for _, serviceType := range props.ServiceTypes {
		entries, err := p.browse(ctx, serviceType, props.Domain, props.BrowseTimeout.Duration)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if s, ok := entryToService(entry, props.ContractPrefix, *props.TTLMinutes); ok {
				services = append(services, s)
			}
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	p.dir.Swap(services)
	logging.Debug("mDNS browse round complete",
		zap.String("plugin", p.name),
		zap.Int("services", len(services)))
	return nil
}

// browse collects entries for one service type until timeout.
func (p *Plugin) browse(ctx context.Context, serviceType, domain string, timeout time.Duration) ([]*zeroconf.ServiceEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver, err := p.newBrowser()
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry, 16)
	var found []*zeroconf.ServiceEntry
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				found = append(found, entry)
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, serviceType, domain, entries); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("failed to browse for %s: %w", serviceType, err)
	}

	<-ctx.Done()
	<-done
	return found, nil
}

// entryToService converts a zeroconf entry. Entries without an address are
// skipped.
func entryToService(entry *zeroconf.ServiceEntry, contractPrefix string, ttlMinutes int) (wire.Service, bool) {
	if entry == nil || entry.Instance == "" {
		return wire.Service{}, false
	}
	if len(entry.AddrIPv4) == 0 && len(entry.AddrIPv6) == 0 {
		return wire.Service{}, false
	}

	serviceType := strings.Trim(entry.Service, ".")
	domain := strings.Trim(entry.Domain, ".")
	data := strings.Join(entry.Text, "\n")

	var aps []wire.AccessPoint
	addAP := func(label string, ip net.IP) {
		aps = append(aps, wire.AccessPoint{
			Label:     label,
			IPAddress: ip.String(),
			Port:      entry.Port,
			URL:       accessURL(serviceType, ip, entry.Port, entry.Text),
			DataType:  "dns-sd/txt",
			Data:      data,
		})
	}
	for _, ip := range entry.AddrIPv4 {
		addAP("ipv4", ip)
	}
	for _, ip := range entry.AddrIPv6 {
		addAP("ipv6", ip)
	}

	consumability := wire.MachineConsumable
	if serviceType == "_http._tcp" || serviceType == "_https._tcp" {
		consumability = wire.HumanConsumable
	}

	return wire.Service{
		ID:                  entry.Instance + "." + serviceType + "." + domain,
		ServiceContractID:   contractPrefix + serviceType,
		ServiceName:         entry.Instance,
		Description:         strings.TrimSuffix(entry.HostName, "."),
		ContractDescription: "DNS-SD " + serviceType,
		Consumability:       consumability,
		TTLMinutes:          ttlMinutes,
		AccessPoints:        aps,
	}, true
}

// accessURL builds a URL for web services, honouring the "path" TXT key.
func accessURL(serviceType string, ip net.IP, port int, txt []string) string {
	var scheme string
	switch serviceType {
	case "_http._tcp":
		scheme = "http"
	case "_https._tcp":
		scheme = "https"
	default:
		return ""
	}

	path := "/"
	for _, record := range txt {
		// TXT records are in "key=value" format
		if k, v, ok := strings.Cut(record, "="); ok && k == "path" && v != "" {
			path = v
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}
		}
	}
	return scheme + "://" + net.JoinHostPort(ip.String(), strconv.Itoa(port)) + path
}

var (
	_ plugin.Plugin = (*Plugin)(nil)
	_ plugin.Runner = (*Plugin)(nil)
)
