package responder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/muurk/argo/internal/plugin"
	"github.com/muurk/argo/internal/wire"
)

type delivery struct {
	url         string
	contentType string
	body        []byte
}

type recordingDeliverer struct {
	mu         sync.Mutex
	deliveries []delivery
	failFor    map[string]error
	check      func(body []byte) error
}

func (r *recordingDeliverer) Deliver(_ context.Context, url, contentType string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, delivery{url: url, contentType: contentType, body: body})
	if r.check != nil {
		if err := r.check(body); err != nil {
			return err
		}
	}
	return r.failFor[url]
}

func (r *recordingDeliverer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deliveries)
}

// dirPlugin answers from a plugin.Directory.
type dirPlugin struct {
	name string
	dir  *plugin.Directory
}

func newDirPlugin(name string, services ...wire.Service) *dirPlugin {
	d := plugin.NewDirectory()
	d.Swap(services)
	return &dirPlugin{name: name, dir: d}
}

func (d *dirPlugin) Name() string                             { return d.name }
func (d *dirPlugin) Initialize(string) error                  { return nil }
func (d *dirPlugin) HandleProbe(p *wire.Probe) *wire.Response { return d.dir.Respond(p) }

type panicPlugin struct{}

func (panicPlugin) Name() string                           { return "panics" }
func (panicPlugin) Initialize(string) error                { return nil }
func (panicPlugin) HandleProbe(*wire.Probe) *wire.Response { panic("boom") }

func svc(id, contract string) wire.Service {
	return wire.Service{ID: id, ServiceContractID: contract, Consumability: wire.MachineConsumable}
}

func mustProbe(t *testing.T, opts ...wire.ProbeOption) *wire.Probe {
	t.Helper()
	p, err := wire.NewProbe(opts...)
	if err != nil {
		t.Fatalf("NewProbe() error = %v", err)
	}
	return p
}

func TestProcessProbeMergesAndDelivers(t *testing.T) {
	rd := &recordingDeliverer{}
	e := New(Config{Deliverer: rd},
		newDirPlugin("first", svc("A", "X")),
		panicPlugin{},
		newDirPlugin("second", svc("A", "X"), svc("B", "Y")),
	)
	defer e.Close()

	p := mustProbe(t,
		wire.WithPayloadType(wire.PayloadJSON),
		wire.WithServiceContractIDs("X"),
		wire.WithRespondTo("one", "http://10.0.0.1:4005/response"),
		wire.WithRespondTo("two", "http://10.0.0.2:4005/response"),
	)
	resp := e.ProcessProbe(context.Background(), p)

	if resp.ProbeID() != p.ID() {
		t.Errorf("ProbeID = %s, want %s", resp.ProbeID(), p.ID())
	}
	if resp.Len() != 2 {
		t.Fatalf("merged %d services, want the duplicate A from both plugins", resp.Len())
	}
	if rd.count() != 2 {
		t.Fatalf("delivered %d times, want 2", rd.count())
	}
	for _, d := range rd.deliveries {
		if d.contentType != wire.ContentTypeJSON {
			t.Errorf("Content-Type = %s, want %s", d.contentType, wire.ContentTypeJSON)
		}
		got, err := wire.DecodeResponse(d.body, wire.PayloadJSON)
		if err != nil {
			t.Fatalf("delivered body does not decode: %v", err)
		}
		if !got.Equal(resp) {
			t.Errorf("delivered response differs from merged response")
		}
	}
	if s := e.Stats().Snapshot(); s.Processed != 1 || s.Delivered != 2 || s.Failed != 0 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestNoMatchNoDelivery(t *testing.T) {
	rd := &recordingDeliverer{}
	e := New(Config{Deliverer: rd}, newDirPlugin("d", svc("A", "X")))
	defer e.Close()

	tests := []struct {
		name string
		opts []wire.ProbeOption
	}{
		{name: "nothing matches", opts: []wire.ProbeOption{wire.WithServiceContractIDs("Z"), wire.WithRespondTo("l", "http://10.0.0.1/r")}},
		{name: "no respond-to addresses", opts: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.ProcessProbe(context.Background(), mustProbe(t, tt.opts...))
			if rd.count() != 0 {
				t.Errorf("delivered %d times, want 0", rd.count())
			}
		})
	}
	if e.Stats().Processed() != 2 {
		t.Errorf("Processed = %d, want 2", e.Stats().Processed())
	}
}

func TestDeliveryFailureIsIsolated(t *testing.T) {
	rd := &recordingDeliverer{failFor: map[string]error{
		"http://10.0.0.1/r": &DeliveryError{Kind: DeliveryRefused, URL: "http://10.0.0.1/r", Message: "refused"},
	}}
	e := New(Config{Deliverer: rd}, newDirPlugin("d", svc("A", "X")))
	defer e.Close()

	e.ProcessProbe(context.Background(), mustProbe(t,
		wire.WithRespondTo("bad", "http://10.0.0.1/r"),
		wire.WithRespondTo("good", "http://10.0.0.2/r"),
	))

	if rd.count() != 2 {
		t.Fatalf("delivered %d times, want 2", rd.count())
	}
	if s := e.Stats().Snapshot(); s.Delivered != 1 || s.Failed != 1 {
		t.Errorf("Stats = %+v, want 1 delivered and 1 failed", s)
	}
}

func TestQueueFullDrops(t *testing.T) {
	rd := &recordingDeliverer{}
	e := New(Config{Workers: 1, QueueSize: 1, Deliverer: rd}, newDirPlugin("d", svc("A", "X")))
	defer e.Close()

	// No Serve: the queue is never drained.
	for i := 0; i < 3; i++ {
		e.Dispatch(mustProbe(t))
	}
	if got := e.Stats().Dropped(); got != 2 {
		t.Errorf("Dropped = %d, want 2", got)
	}
}

func TestRateLimitDrops(t *testing.T) {
	e := New(Config{MaxProbesPerSecond: 1, Deliverer: &recordingDeliverer{}}, newDirPlugin("d"))
	defer e.Close()

	for i := 0; i < 3; i++ {
		e.Dispatch(mustProbe(t))
	}
	if s := e.Stats().Snapshot(); s.Processed != 1 || s.Dropped != 2 {
		t.Errorf("Stats = %+v, want 1 processed and 2 dropped", s)
	}
}

func TestDispatchAfterClose(t *testing.T) {
	e := New(Config{Deliverer: &recordingDeliverer{}}, newDirPlugin("d"))
	e.Close()
	e.Close()

	e.Dispatch(mustProbe(t))
	if s := e.Stats().Snapshot(); s.Processed != 0 || s.Dropped != 1 {
		t.Errorf("Stats = %+v", s)
	}
}

func generation(g int) []wire.Service {
	out := make([]wire.Service, 10)
	for i := range out {
		out[i] = svc(fmt.Sprintf("svc-%02d", i), fmt.Sprintf("gen-%d", g))
	}
	return out
}

// consistentGeneration checks a delivered body holds one whole generation.
func consistentGeneration(body []byte) error {
	resp, err := wire.DecodeResponse(body, wire.PayloadXML)
	if err != nil {
		return err
	}
	services := resp.Services()
	if len(services) != 10 {
		return fmt.Errorf("response has %d services, want 10", len(services))
	}
	for _, s := range services[1:] {
		if s.ServiceContractID != services[0].ServiceContractID {
			return fmt.Errorf("mixed generations %s and %s", services[0].ServiceContractID, s.ServiceContractID)
		}
	}
	return nil
}

func TestConcurrentDispatch(t *testing.T) {
	tests := []struct {
		name    string
		workers int
	}{
		{name: "inline", workers: 0},
		{name: "worker pool", workers: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var checkErrs []error
			var errMu sync.Mutex
			rd := &recordingDeliverer{check: func(body []byte) error {
				if err := consistentGeneration(body); err != nil {
					errMu.Lock()
					checkErrs = append(checkErrs, err)
					errMu.Unlock()
					return err
				}
				return nil
			}}
			dp := newDirPlugin("d", generation(0)...)
			e := New(Config{Workers: tt.workers, QueueSize: 100, Deliverer: rd, Registerer: prometheus.NewRegistry()}, dp)
			defer e.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go e.Serve(ctx)

			stop := make(chan struct{})
			swapped := make(chan struct{})
			go func() {
				defer close(swapped)
				for g := 1; ; g++ {
					select {
					case <-stop:
						return
					default:
						dp.dir.Swap(generation(g))
					}
				}
			}()

			var wg sync.WaitGroup
			for i := 0; i < 100; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					e.Dispatch(mustProbe(t, wire.WithRespondTo("l", "http://10.0.0.1/r")))
				}()
			}
			wg.Wait()

			deadline := time.Now().Add(5 * time.Second)
			for e.Stats().Processed() < 100 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			for rd.count() < 100 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			close(stop)
			<-swapped

			if got := e.Stats().Processed(); got != 100 {
				t.Errorf("Processed = %d, want 100", got)
			}
			if got := e.Stats().Dropped(); got != 0 {
				t.Errorf("Dropped = %d, want 0", got)
			}
			if got := rd.count(); got != 100 {
				t.Errorf("deliveries = %d, want 100", got)
			}
			errMu.Lock()
			defer errMu.Unlock()
			if len(checkErrs) > 0 {
				t.Errorf("inconsistent directory seen: %v", errors.Join(checkErrs...))
			}
		})
	}
}

func TestMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := New(Config{Deliverer: &recordingDeliverer{}, Registerer: reg}, newDirPlugin("d", svc("A", "X")))
	defer e.Close()

	e.ProcessProbe(context.Background(), mustProbe(t, wire.WithRespondTo("l", "http://10.0.0.1/r")))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"argo_responder_probes_total", "argo_responder_deliveries_total", "argo_responder_delivery_seconds"} {
		if !names[want] {
			t.Errorf("metric %s not gathered", want)
		}
	}
}

type blockingDeliverer struct {
	started chan struct{}
	once    sync.Once
}

func (b *blockingDeliverer) Deliver(ctx context.Context, _, _ string, _ []byte) error {
	b.once.Do(func() { close(b.started) })
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(3 * time.Second):
		return nil
	}
}

func TestCloseCancelsInlineDelivery(t *testing.T) {
	bd := &blockingDeliverer{started: make(chan struct{})}
	e := New(Config{Deliverer: bd}, newDirPlugin("d", svc("A", "X")))

	p := mustProbe(t, wire.WithRespondTo("l", "http://10.0.0.1/r"))
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		e.Dispatch(p)
	}()

	select {
	case <-bd.started:
	case <-time.After(time.Second):
		t.Fatal("delivery never started")
	}

	closed := make(chan struct{})
	go func() {
		e.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked behind an in-flight delivery")
	}
	<-dispatched

	if s := e.Stats().Snapshot(); s.Failed != 1 {
		t.Errorf("Stats = %+v, want the cancelled delivery counted as failed", s)
	}
}

func TestWrappedDeliveryErrorClassified(t *testing.T) {
	de := &DeliveryError{Kind: DeliveryRefused, URL: "http://10.0.0.1/r", Message: "refused"}
	rd := &recordingDeliverer{failFor: map[string]error{
		"http://10.0.0.1/r": fmt.Errorf("wrap: %w", de),
	}}
	reg := prometheus.NewRegistry()
	e := New(Config{Deliverer: rd, Registerer: reg}, newDirPlugin("d", svc("A", "X")))
	defer e.Close()

	p := mustProbe(t, wire.WithRespondTo("l", "http://10.0.0.1/r"))
	e.ProcessProbe(context.Background(), p)

	if de.ProbeID != p.ID() {
		t.Errorf("ProbeID = %q, want %q", de.ProbeID, p.ID())
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	results := make(map[string]float64)
	for _, f := range families {
		if f.GetName() != "argo_responder_deliveries_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" {
					results[l.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	if results["refused"] != 1 || results["network"] != 0 {
		t.Errorf("delivery results = %v, want one refused", results)
	}
}
