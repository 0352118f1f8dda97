// Package probe builds discovery probes and emits them over a transport.
package probe

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/argo/internal/logging"
	"github.com/muurk/argo/internal/transport"
	"github.com/muurk/argo/internal/wire"
)

// Sender owns exactly one transport for its lifetime.
type Sender struct {
	t transport.Sender

	mu     sync.Mutex
	closed bool
}

// NewSender wraps an initialized transport.
func NewSender(t transport.Sender) *Sender {
	return &Sender{t: t}
}

// Probe builds a probe from opts and sends it. Invalid callback URLs and
// payload types are rejected before anything is sent.
func (s *Sender) Probe(ctx context.Context, opts ...wire.ProbeOption) (*wire.Probe, error) {
	p, err := wire.NewProbe(opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Send(ctx, p); err != nil {
		return p, err
	}
	return p, nil
}

// Send emits p. A probe larger than a bounded transport payload is refused;
// nothing is ever fragmented.
func (s *Sender) Send(ctx context.Context, p *wire.Probe) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return &transport.SendError{Transport: "probe", ProbeID: p.ID(), Message: "sender closed", Err: transport.ErrClosed}
	}

	if limit := s.t.MaxPayloadSize(); limit != transport.Unbounded {
		data, err := wire.EncodeProbeXML(p)
		if err != nil {
			return &transport.SendError{Transport: "probe", ProbeID: p.ID(), Message: "encode failed", Err: err}
		}
		if len(data) > limit {
			return &transport.SendError{
				Transport: "probe",
				ProbeID:   p.ID(),
				Message:   fmt.Sprintf("encoded probe is %d bytes, transport carries at most %d", len(data), limit),
			}
		}
	}

	if err := s.t.Send(ctx, p); err != nil {
		logging.Warn("Probe send failed", zap.String("probe_id", p.ID()), zap.Error(err))
		return err
	}
	logging.Debug("Probe sent", zap.Stringer("probe", p))
	return nil
}

// Close closes the transport. Close is idempotent.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.t.Close()
}
