// Package responder turns inbound probes into delivered responses.
//
// For every probe the engine asks each plugin, in registration order, for
// its matches, concatenates the answers into one Response carrying the
// probe id, and POSTs it to every respond-to address in the payload type
// the probe asked for. Nothing is sent when no plugin matched. Deliveries
// run concurrently with a bounded fan-out; a failure on one address never
// affects the others and nothing is retried.
//
// Probes are dispatched inline on the receiving goroutine when Workers is
// zero, otherwise on a worker pool fed by a bounded queue. A full queue, or
// a probe over the configured rate, is dropped and counted.
package responder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/muurk/argo/internal/logging"
	"github.com/muurk/argo/internal/plugin"
	"github.com/muurk/argo/internal/wire"
)

// DefaultMaxConcurrentDeliveries bounds the per-probe delivery fan-out.
const DefaultMaxConcurrentDeliveries = 8

// Config holds the engine configuration
type Config struct {
	Workers                 int     // 0 dispatches inline
	QueueSize               int     // probes buffered for the workers
	MaxProbesPerSecond      float64 // 0 disables rate limiting
	DeliveryTimeout         time.Duration
	MaxConcurrentDeliveries int

	Deliverer  Deliverer             // nil uses an HTTPDeliverer with DeliveryTimeout
	Registerer prometheus.Registerer // nil leaves the collectors unregistered
}

// Engine dispatches probes to plugins and delivers the merged responses.
type Engine struct {
	config    Config
	plugins   []plugin.Plugin
	deliverer Deliverer
	limiter   *rate.Limiter
	queue     chan *wire.Probe
	stats     *Stats
	metrics   *Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// New creates an engine answering from plugins.
func New(config Config, plugins ...plugin.Plugin) *Engine {
	if config.MaxConcurrentDeliveries <= 0 {
		config.MaxConcurrentDeliveries = DefaultMaxConcurrentDeliveries
	}
	if config.DeliveryTimeout <= 0 {
		config.DeliveryTimeout = DefaultDeliveryTimeout
	}

	e := &Engine{
		config:    config,
		plugins:   plugins,
		deliverer: config.Deliverer,
		stats:     newStats(),
		metrics:   NewMetrics(config.Registerer),
	}
	if e.deliverer == nil {
		e.deliverer = NewHTTPDeliverer(config.DeliveryTimeout)
	}
	if config.MaxProbesPerSecond > 0 {
		burst := int(config.MaxProbesPerSecond)
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(config.MaxProbesPerSecond), burst)
	}
	if config.Workers > 0 {
		e.queue = make(chan *wire.Probe, config.QueueSize)
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e
}

// Stats returns the engine's throughput accounting.
func (e *Engine) Stats() *Stats {
	return e.stats
}

// PluginNames lists the plugins in dispatch order.
func (e *Engine) PluginNames() []string {
	names := make([]string, len(e.plugins))
	for i, p := range e.plugins {
		names[i] = p.Name()
	}
	return names
}

// Dispatch accepts a probe from a transport. It matches the
// transport.ProbeProcessor signature.
func (e *Engine) Dispatch(p *wire.Probe) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.drop(p, probeResultClosed)
		return
	}
	if e.limiter != nil && !e.limiter.Allow() {
		e.drop(p, probeResultRateLimited)
		return
	}

	if e.queue == nil {
		e.ProcessProbe(e.ctx, p)
		return
	}
	select {
	case e.queue <- p:
	default:
		e.drop(p, probeResultQueueFull)
	}
}

func (e *Engine) drop(p *wire.Probe, reason string) {
	e.stats.dropped.Add(1)
	e.metrics.probesTotal.WithLabelValues(reason).Inc()
	logging.Debug("Probe dropped", zap.String("probe_id", p.ID()), zap.String("reason", reason))
}

// Serve runs the worker pool until ctx is done. With inline dispatch it
// only waits.
func (e *Engine) Serve(ctx context.Context) error {
	if e.queue == nil {
		<-ctx.Done()
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < e.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case p := <-e.queue:
					e.ProcessProbe(ctx, p)
				}
			}
		}()
	}
	wg.Wait()
	return nil
}

// ProcessProbe matches p against every plugin and delivers the merged
// response. It returns the merged response, which may be empty.
func (e *Engine) ProcessProbe(ctx context.Context, p *wire.Probe) *wire.Response {
	e.stats.markProcessed()
	e.metrics.probesTotal.WithLabelValues(probeResultProcessed).Inc()

	resp := wire.NewResponse(p.ID(), nil)
	for _, pl := range e.plugins {
		resp = resp.Merge(e.handle(pl, p))
	}

	logging.LogProbe("handled", p.ID(), "",
		zap.Bool("naked", p.IsNaked()),
		zap.Int("services", resp.Len()),
		zap.Int("respond_to", len(p.RespondTo())))

	if resp.Len() == 0 || !p.Deliverable() {
		return resp
	}
	e.metrics.matchedServices.Observe(float64(resp.Len()))
	e.deliver(ctx, p, resp)
	return resp
}

// handle isolates the engine from a misbehaving plugin.
func (e *Engine) handle(pl plugin.Plugin, p *wire.Probe) (resp *wire.Response) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Plugin panicked handling probe",
				zap.String("plugin", pl.Name()),
				zap.String("probe_id", p.ID()),
				zap.Any("panic", r))
			resp = nil
		}
	}()
	return pl.HandleProbe(p)
}

// deliver POSTs resp to every respond-to address of p.
func (e *Engine) deliver(ctx context.Context, p *wire.Probe, resp *wire.Response) {
	targets := p.RespondTo()
	payload := p.PayloadType()

	body, err := wire.EncodeResponse(resp, payload)
	if err != nil {
		for _, t := range targets {
			e.recordDelivery(p, resp, t.URL, payload, 0, &DeliveryError{Kind: DeliveryEncode, URL: t.URL, ProbeID: p.ID(), Message: "cannot encode response", Err: err})
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(e.config.MaxConcurrentDeliveries)
	for _, t := range targets {
		g.Go(func() error {
			start := time.Now()
			err := e.deliverer.Deliver(ctx, t.URL, payload.ContentType(), body)
			e.recordDelivery(p, resp, t.URL, payload, time.Since(start), err)
			return nil
		})
	}
	g.Wait()
}

func (e *Engine) recordDelivery(p *wire.Probe, resp *wire.Response, target string, payload wire.PayloadType, took time.Duration, err error) {
	result := deliveryResultSuccess
	if err != nil {
		e.stats.failed.Add(1)
		result = DeliveryNetwork.label()
		var de *DeliveryError
		if errors.As(err, &de) {
			result = de.Kind.label()
			if de.ProbeID == "" {
				de.ProbeID = p.ID()
			}
		}
	} else {
		e.stats.delivered.Add(1)
		e.metrics.deliverySeconds.Observe(took.Seconds())
	}
	e.metrics.deliveriesTotal.WithLabelValues(payload.String(), result).Inc()
	logging.LogDelivery(p.ID(), target, resp.Len(), err)
}

// Close stops accepting probes and cancels in-flight inline deliveries.
// Close is idempotent.
func (e *Engine) Close() {
	// Cancel before taking the write lock: inline dispatch holds the read
	// lock for the whole delivery.
	e.cancel()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.stats.stop()
}
