package transport

import (
	"bytes"
	"context"

	"go.uber.org/zap"

	"github.com/muurk/argo/internal/logging"
	"github.com/muurk/argo/internal/wire"
)

// DecodeProbe decodes an inbound message. Probes travel as XML, but a JSON
// object is accepted as well.
func DecodeProbe(data []byte) (*wire.Probe, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return wire.DecodeProbeJSON(trimmed)
	}
	return wire.DecodeProbeXML(data)
}

// Pump decodes every message from in and hands the probe to fn until ctx is
// done or in is closed. Undecodable messages are logged and skipped.
func Pump[T any](ctx context.Context, name string, in <-chan T, payload func(T) []byte, fn ProbeProcessor) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-in:
			if !ok {
				return nil
			}
			data := payload(msg)
			probe, err := DecodeProbe(data)
			if err != nil {
				logging.Warn("Dropping undecodable message",
					zap.String("transport", name),
					zap.Int("bytes", len(data)),
					zap.Error(err))
				logging.LogRawBytes(name+" message", data)
				continue
			}
			logging.LogProbe("received", probe.ID(), name)
			fn(probe)
		}
	}
}
