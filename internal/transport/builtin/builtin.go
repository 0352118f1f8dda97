// Package builtin assembles the registry of transports shipped with Argo.
package builtin

import (
	"github.com/muurk/argo/internal/transport"
	"github.com/muurk/argo/internal/transport/amqp"
	"github.com/muurk/argo/internal/transport/multicast"
	"github.com/muurk/argo/internal/transport/redis"
)

// Registry returns a registry with the multicast, amqp and redis transports.
func Registry() *transport.Registry {
	r := transport.NewRegistry()
	multicast.Register(r)
	amqp.Register(r)
	redis.Register(r)
	return r
}
