package plugin

import (
	"sync/atomic"

	"github.com/muurk/argo/internal/cache"
	"github.com/muurk/argo/internal/wire"
)

// Match applies the reference matching policy. A naked probe matches every
// service. Otherwise the result holds the services whose contract was
// requested followed by the services whose instance id was requested, so a
// service wanted both ways appears twice.
func Match(p *wire.Probe, services []wire.Service) []wire.Service {
	if p.IsNaked() {
		return services
	}

	var matched []wire.Service
	for _, s := range services {
		if p.WantsContract(s.ServiceContractID) {
			matched = append(matched, s)
		}
	}
	for _, s := range services {
		if p.WantsInstance(s.ID) {
			matched = append(matched, s)
		}
	}
	return matched
}

// Directory is a plugin's view of its services. Each Swap publishes a new,
// complete generation; readers always see exactly one generation.
type Directory struct {
	gen atomic.Pointer[cache.Cache[wire.Service]]
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	d := &Directory{}
	d.gen.Store(cache.New[wire.Service]())
	return d
}

// Swap replaces the directory with services, keyed by service id. A later
// service with the same id wins. Directory entries do not expire; their TTL
// is only advertised to clients.
func (d *Directory) Swap(services []wire.Service) {
	next := cache.New[wire.Service]()
	items := make([]cache.Item[wire.Service], 0, len(services))
	for _, s := range services {
		items = append(items, cache.Item[wire.Service]{Key: s.ID, Value: s})
	}
	next.PutAll(items)
	d.gen.Store(next)
}

// Services returns the current generation ordered by service id.
func (d *Directory) Services() []wire.Service {
	return d.gen.Load().Values()
}

// Len returns the size of the current generation.
func (d *Directory) Len() int {
	return d.gen.Load().Len()
}

// Respond matches p against the current generation.
func (d *Directory) Respond(p *wire.Probe) *wire.Response {
	return wire.NewResponse(p.ID(), Match(p, d.Services()))
}
