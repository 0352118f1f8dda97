package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/muurk/argo/internal/wire"
)

type nopSender struct{}

func (nopSender) Initialize(Properties) error { return nil }
func (nopSender) Send(context.Context, *wire.Probe) error { return nil }
func (nopSender) MaxPayloadSize() int { return Unbounded }
func (nopSender) Close() error { return nil }

func TestPropertiesGetters(t *testing.T) {
	props := Properties{
		"address":  " 230.0.0.1 ",
		"port":     "4003",
		"badPort":  "forty",
		"loopback": "false",
		"blank":    "   ",
		"ifaces":   "eth0, ,wlan0,",
		"interval": "5s",
	}

	if got := props.String("address", "x"); got != "230.0.0.1" {
		t.Errorf("String(address) = %q", got)
	}
	if got := props.String("blank", "def"); got != "def" {
		t.Errorf("String(blank) = %q, want def", got)
	}
	if n, err := props.Int("test", "port", 1); err != nil || n != 4003 {
		t.Errorf("Int(port) = %d, %v", n, err)
	}
	if n, err := props.Int("test", "missing", 7); err != nil || n != 7 {
		t.Errorf("Int(missing) = %d, %v", n, err)
	}
	if _, err := props.Int("test", "badPort", 0); !IsConfigError(err) {
		t.Errorf("Int(badPort) error = %v, want ConfigError", err)
	}
	if b, err := props.Bool("test", "loopback", true); err != nil || b {
		t.Errorf("Bool(loopback) = %v, %v", b, err)
	}
	if d, err := props.Duration("test", "interval", 0); err != nil || d != 5*time.Second {
		t.Errorf("Duration(interval) = %v, %v", d, err)
	}
	if got := props.List("ifaces"); len(got) != 2 || got[0] != "eth0" || got[1] != "wlan0" {
		t.Errorf("List(ifaces) = %v", got)
	}

	_, err := props.Required("test", "amqpURL")
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Key != "amqpURL" {
		t.Errorf("Required() error = %v", err)
	}
}

func TestPropertiesMap(t *testing.T) {
	props := Properties{"a": "x"}
	mapped := props.Map(func(s string) string { return s + "!" })
	if mapped["a"] != "x!" || props["a"] != "x" {
		t.Errorf("Map() = %v, original %v", mapped, props)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.RegisterSender("nop", func() Sender { return nopSender{} })

	s, err := r.NewSender("nop")
	if err != nil || s.MaxPayloadSize() != Unbounded {
		t.Fatalf("NewSender(nop) = %v, %v", s, err)
	}
	if _, err := r.NewReceiver("nop"); !IsConfigError(err) {
		t.Errorf("NewReceiver(nop) error = %v, want ConfigError", err)
	}
	if _, err := r.NewSender("carrier-pigeon"); !IsConfigError(err) {
		t.Errorf("NewSender(unknown) error = %v, want ConfigError", err)
	}
	if names := r.Names(); len(names) != 1 || names[0] != "nop" {
		t.Errorf("Names() = %v", names)
	}
}

func TestErrorMessages(t *testing.T) {
	cause := errors.New("boom")
	se := &SendError{Transport: "multicast", ProbeID: "urn:uuid:1", Message: "write failed", Err: cause}
	if !errors.Is(se, cause) {
		t.Error("SendError should unwrap to its cause")
	}
	want := "multicast send of urn:uuid:1 failed: write failed (caused by: boom)"
	if se.Error() != want {
		t.Errorf("Error() = %q, want %q", se.Error(), want)
	}
}
