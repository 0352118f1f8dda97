// Package transport defines how probes travel from a client to responders.
//
// A transport is sender-oriented, receiver-oriented or both. The probe
// sender only drives Senders and the responder daemon only drives
// Receivers, so implementations can be swapped by configuration alone.
//
// Implementations live in subpackages (multicast, amqp, redis) and register
// themselves in a Registry under their configuration type name.
package transport

import (
	"context"

	"github.com/muurk/argo/internal/wire"
)

// Unbounded is returned by MaxPayloadSize when the transport imposes no
// known limit.
const Unbounded = -1

// Sender emits probes.
type Sender interface {
	// Initialize applies configuration. It fails with a *ConfigError.
	Initialize(props Properties) error

	// Send emits one probe. It fails with a *SendError.
	Send(ctx context.Context, p *wire.Probe) error

	// MaxPayloadSize returns the largest encoded probe the transport can
	// carry in one message, or Unbounded.
	MaxPayloadSize() int

	Close() error
}

// ProbeProcessor is invoked for every probe a Receiver decodes. It runs on
// the receive goroutine, so it must not block for long.
type ProbeProcessor func(p *wire.Probe)

// Receiver delivers inbound probes to a ProbeProcessor.
type Receiver interface {
	// Initialize applies configuration and acquires network resources.
	// It fails with a *ConfigError.
	Initialize(props Properties) error

	// Listen blocks, invoking fn for each decoded probe, until ctx is done
	// or the receiver is closed. A clean shutdown returns nil.
	Listen(ctx context.Context, fn ProbeProcessor) error

	MaxPayloadSize() int

	Close() error
}
