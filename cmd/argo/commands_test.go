package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/muurk/argo/internal/endpoint"
	"github.com/muurk/argo/internal/wire"
)

type fakeSource map[string]*endpoint.Interface

func (f fakeSource) InterfaceByName(name string) (*endpoint.Interface, error) {
	if ifi, ok := f[name]; ok {
		return ifi, nil
	}
	return nil, fmt.Errorf("%w: %s", endpoint.ErrNoInterface, name)
}

func (f fakeSource) LocalHostInterface() (*endpoint.Interface, error) {
	return f.InterfaceByName("en0")
}

func TestSplitRespondTo(t *testing.T) {
	tests := []struct {
		in        string
		wantLabel string
		wantURL   string
	}{
		{in: "http://10.0.0.1:4005/response", wantLabel: "cli", wantURL: "http://10.0.0.1:4005/response"},
		{in: "lab=http://10.0.0.1/r", wantLabel: "lab", wantURL: "http://10.0.0.1/r"},
		{in: "http://h/r?x=1", wantLabel: "cli", wantURL: "http://h/r?x=1"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			label, url := splitRespondTo(tt.in)
			if label != tt.wantLabel || url != tt.wantURL {
				t.Errorf("splitRespondTo(%q) = %q, %q", tt.in, label, url)
			}
		})
	}
}

func TestAdvertiseHost(t *testing.T) {
	withSite := endpoint.NewResolver(fakeSource{
		"en0":  {Name: "en0", Addrs: []net.IP{net.ParseIP("192.168.1.20")}},
		"eth1": {Name: "eth1", Addrs: []net.IP{net.ParseIP("10.9.0.4")}},
	})
	empty := endpoint.NewResolver(fakeSource{})

	tests := []struct {
		name string
		r    *endpoint.Resolver
		flag string
		want string
	}{
		{name: "local host address", r: withSite, want: "192.168.1.20"},
		{name: "flag literal", r: withSite, flag: "printer-gw.lan", want: "printer-gw.lan"},
		{name: "flag expanded", r: withSite, flag: "${ni:eth1:ipv4:sitelocal}", want: "10.9.0.4"},
		{name: "fallback", r: empty, want: fallbackHost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := advertiseHost(tt.r, tt.flag); got != tt.want {
				t.Errorf("advertiseHost() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveArg(t *testing.T) {
	r := endpoint.NewResolver(fakeSource{
		"eth0": {Name: "eth0", Addrs: []net.IP{net.ParseIP("8.8.4.4")}},
	})

	tests := []struct {
		name    string
		kind    string
		arg     string
		strict  bool
		want    string
		wantErr bool
	}{
		{name: "bare spec", kind: endpoint.KindInterface, arg: "eth0", want: "8.8.4.4"},
		{name: "ip passthrough", kind: endpoint.KindIP, arg: "10.1.1.1", want: "10.1.1.1"},
		{name: "unknown interface", kind: endpoint.KindInterface, arg: "wlan9", want: endpoint.UnknownNI},
		{name: "unknown interface strict", kind: endpoint.KindInterface, arg: "wlan9", strict: true, wantErr: true},
		{name: "template", arg: "http://${ni:eth0}:4005/response", want: "http://8.8.4.4:4005/response"},
		{name: "template strict", arg: "http://${ni:wlan9}/", strict: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveArg(r, tt.kind, tt.arg, tt.strict)
			if tt.wantErr {
				if !errors.Is(err, endpoint.ErrUnresolved) {
					t.Errorf("resolveArg() error = %v, want ErrUnresolved", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveArg() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("resolveArg() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCollect(t *testing.T) {
	updates := make(chan *wire.Response, 3)
	updates <- wire.NewResponse("p", nil)
	updates <- wire.NewResponse("p", nil)
	close(updates)

	if n := collect(context.Background(), updates, time.Second); n != 2 {
		t.Errorf("collect() = %d, want 2", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if n := collect(ctx, make(chan *wire.Response), time.Minute); n != 0 {
		t.Errorf("collect() after cancel = %d, want 0", n)
	}
}
