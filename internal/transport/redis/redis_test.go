package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/muurk/argo/internal/transport"
	"github.com/muurk/argo/internal/wire"
)

func TestInitializeConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		props transport.Properties
		key   string
	}{
		{name: "missing url", props: transport.Properties{}, key: PropURL},
		{name: "bad scheme", props: transport.Properties{PropURL: "http://localhost:6379"}, key: PropURL},
		// nothing listens on port 1
		{name: "unreachable", props: transport.Properties{PropURL: "redis://127.0.0.1:1/0"}, key: PropURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Initialize(tt.props)
			var ce *transport.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Initialize() error = %v, want ConfigError", err)
			}
			if ce.Key != tt.key {
				t.Errorf("ConfigError.Key = %q, want %q", ce.Key, tt.key)
			}
		})
	}
}

func TestUninitializedAndClosed(t *testing.T) {
	tr := New()
	p, _ := wire.NewProbe()

	if err := tr.Send(context.Background(), p); !transport.IsSendError(err) {
		t.Errorf("Send() before Initialize = %v, want SendError", err)
	}
	if tr.MaxPayloadSize() != transport.Unbounded {
		t.Errorf("MaxPayloadSize() = %d", tr.MaxPayloadSize())
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := tr.Send(context.Background(), p); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Send() after Close = %v, want ErrClosed", err)
	}
	if err := tr.Listen(context.Background(), nil); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Listen() after Close = %v, want ErrClosed", err)
	}
}

func TestRegister(t *testing.T) {
	r := transport.NewRegistry()
	Register(r)
	if _, err := r.NewSender(Name); err != nil {
		t.Errorf("NewSender(%s) error = %v", Name, err)
	}
	if _, err := r.NewReceiver(Name); err != nil {
		t.Errorf("NewReceiver(%s) error = %v", Name, err)
	}
}
