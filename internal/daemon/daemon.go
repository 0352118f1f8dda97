// Package daemon runs the argod responder: configured receiver transports
// feed probes to the responder engine, which answers from the configured
// plugins.
//
// Every long-running piece is a suture service under one supervisor:
//
//	responder        the engine's worker pool
//	plugin/<name>    background refresh of plugins that implement plugin.Runner
//	transport/<name> one receiver per configured transport
//	stats            periodic throughput log line
//	metrics          /metrics and /stats over HTTP (when metricsAddr is set)
//
// A transport or plugin that fails to initialize is logged and left out;
// the rest of the daemon keeps running.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"

	"github.com/muurk/argo/internal/config"
	"github.com/muurk/argo/internal/endpoint"
	"github.com/muurk/argo/internal/logging"
	"github.com/muurk/argo/internal/plugin"
	pluginbuiltin "github.com/muurk/argo/internal/plugin/builtin"
	"github.com/muurk/argo/internal/responder"
	"github.com/muurk/argo/internal/transport"
	transportbuiltin "github.com/muurk/argo/internal/transport/builtin"
)

// serviceTimeout is how long the supervisor waits for a service to stop.
const serviceTimeout = 10 * time.Second

// Daemon is one configured responder process.
type Daemon struct {
	config     *config.Daemon
	transports *transport.Registry
	pluginReg  *plugin.Registry
	resolver   *endpoint.Resolver
	deliverer  responder.Deliverer
	registry   *prometheus.Registry

	plugins []plugin.Plugin
	engine  *responder.Engine
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithTransportRegistry replaces the built-in transports.
func WithTransportRegistry(r *transport.Registry) Option {
	return func(d *Daemon) { d.transports = r }
}

// WithPluginRegistry replaces the built-in plugins.
func WithPluginRegistry(r *plugin.Registry) Option {
	return func(d *Daemon) { d.pluginReg = r }
}

// WithResolver replaces the resolver used to expand ${ni:...} and ${ip:...}
// tokens in transport properties and plugin paths.
func WithResolver(r *endpoint.Resolver) Option {
	return func(d *Daemon) { d.resolver = r }
}

// WithDeliverer replaces HTTP delivery, mostly for tests.
func WithDeliverer(dl responder.Deliverer) Option {
	return func(d *Daemon) { d.deliverer = dl }
}

// New initializes the configured plugins and builds the engine.
func New(cfg *config.Daemon, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("daemon config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Daemon{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.transports == nil {
		d.transports = transportbuiltin.Registry()
	}
	if d.pluginReg == nil {
		d.pluginReg = pluginbuiltin.Registry()
	}
	if d.resolver == nil {
		d.resolver = endpoint.NewResolver(nil)
	}

	d.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	d.plugins = d.loadPlugins()
	if len(d.plugins) == 0 {
		logging.Warn("No plugins loaded, probes will never be answered")
	}

	d.engine = responder.New(responder.Config{
		Workers:                 cfg.Responder.Workers,
		QueueSize:               cfg.Responder.QueueSize,
		MaxProbesPerSecond:      cfg.Responder.MaxProbesPerSecond,
		DeliveryTimeout:         cfg.Responder.DeliveryTimeout.Duration,
		MaxConcurrentDeliveries: cfg.Responder.MaxConcurrentDeliveries,
		Deliverer:               d.deliverer,
		Registerer:              d.registry,
	}, d.plugins...)
	return d, nil
}

// loadPlugins initializes every enabled plugin, skipping those that fail.
func (d *Daemon) loadPlugins() []plugin.Plugin {
	var loaded []plugin.Plugin
	for _, pc := range d.config.Plugins {
		if pc.Disabled {
			logging.Info("Plugin disabled", zap.String("plugin", pc.Name))
			continue
		}
		p, err := d.pluginReg.New(pc.PluginType(), pc.Name)
		if err != nil {
			logging.Error("Plugin not loaded", zap.String("plugin", pc.Name), zap.Error(err))
			continue
		}
		if err := p.Initialize(d.resolver.Expand(pc.Properties)); err != nil {
			logging.Error("Plugin failed to initialize, skipping",
				zap.String("plugin", pc.Name),
				zap.String("type", pc.PluginType()),
				zap.Error(err))
			continue
		}
		logging.Info("Plugin loaded", zap.String("plugin", pc.Name), zap.String("type", pc.PluginType()))
		loaded = append(loaded, p)
	}
	return loaded
}

// Engine returns the responder engine.
func (d *Daemon) Engine() *responder.Engine {
	return d.engine
}

// Plugins returns the plugins that initialized successfully.
func (d *Daemon) Plugins() []plugin.Plugin {
	return d.plugins
}

// Gatherer exposes the daemon's Prometheus registry.
func (d *Daemon) Gatherer() prometheus.Gatherer {
	return d.registry
}

// Run supervises every service until ctx is done.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.engine.Close()

	sup := suture.New("argod", suture.Spec{
		EventHook: func(e suture.Event) {
			logging.Warn("Supervisor event", zap.String("event", e.String()))
		},
		Timeout: serviceTimeout,
	})

	sup.Add(asService("responder", d.engine.Serve))
	for _, p := range d.plugins {
		if r, ok := p.(plugin.Runner); ok {
			sup.Add(asService("plugin/"+p.Name(), r.Serve))
		}
	}

	started := 0
	for _, tc := range d.config.Transports {
		if tc.Disabled {
			logging.Info("Transport disabled", zap.String("transport", tc.Name))
			continue
		}
		sup.Add(&receiverService{
			config:   tc,
			registry: d.transports,
			expand:   d.resolver.Expand,
			dispatch: d.engine.Dispatch,
		})
		started++
	}
	if started == 0 {
		logging.Warn("No transports enabled, no probes will be received")
	}

	sup.Add(asService("stats", d.logStats))
	if d.config.MetricsAddr != "" {
		sup.Add(asService("metrics", d.serveMetrics))
	}

	logging.Info("Responder daemon running",
		zap.Int("plugins", len(d.plugins)),
		zap.Int("transports", started),
		zap.Int("workers", d.config.Responder.Workers),
	)

	err := sup.Serve(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// logStats writes a throughput line every StatsInterval.
func (d *Daemon) logStats(ctx context.Context) error {
	interval := d.config.StatsInterval.Duration
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s := d.engine.Stats().Snapshot()
			logging.Info("Responder throughput",
				zap.Int64("processed", s.Processed),
				zap.Int64("dropped", s.Dropped),
				zap.Int64("delivered", s.Delivered),
				zap.Int64("failed", s.Failed),
				zap.Float64("probes_per_second", s.Rate1),
			)
		}
	}
}
