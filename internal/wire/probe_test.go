package wire

import (
	"strings"
	"testing"
)

func TestNewProbeDefaults(t *testing.T) {
	p, err := NewProbe()
	if err != nil {
		t.Fatalf("NewProbe() error = %v", err)
	}
	if !strings.HasPrefix(p.ID(), "urn:uuid:") {
		t.Errorf("ID() = %q, want urn:uuid: prefix", p.ID())
	}
	if p.HopLimit() != DefaultHopLimit {
		t.Errorf("HopLimit() = %d, want %d", p.HopLimit(), DefaultHopLimit)
	}
	if p.PayloadType() != PayloadXML {
		t.Errorf("PayloadType() = %v, want XML", p.PayloadType())
	}
	if !p.IsNaked() {
		t.Error("probe without ids should be naked")
	}
	if p.Deliverable() {
		t.Error("probe without respondTo should not be deliverable")
	}

	other, _ := NewProbe()
	if other.ID() == p.ID() {
		t.Error("two probes got the same id")
	}
}

func TestNewProbeValidation(t *testing.T) {
	tests := []struct {
		name        string
		opts        []ProbeOption
		wantValid   bool
		wantPayload bool
	}{
		{name: "http url", opts: []ProbeOption{WithRespondTo("lan", "http://10.0.0.5:4005/response")}},
		{name: "https url", opts: []ProbeOption{WithRespondTo("", "https://example.com/cb")}},
		{name: "ftp scheme", opts: []ProbeOption{WithRespondTo("x", "ftp://example.com/cb")}, wantValid: true},
		{name: "relative url", opts: []ProbeOption{WithRespondTo("x", "/response")}, wantValid: true},
		{name: "no host", opts: []ProbeOption{WithRespondTo("x", "http:///response")}, wantValid: true},
		{name: "garbage", opts: []ProbeOption{WithRespondTo("x", "http://[::1")}, wantValid: true},
		{name: "hop limit zero", opts: []ProbeOption{WithHopLimit(0)}},
		{name: "hop limit too big", opts: []ProbeOption{WithHopLimit(256)}, wantValid: true},
		{name: "hop limit negative", opts: []ProbeOption{WithHopLimit(-1)}, wantValid: true},
		{name: "bad payload", opts: []ProbeOption{WithPayloadType(PayloadType(9))}, wantPayload: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProbe(tt.opts...)
			wantErr := tt.wantValid || tt.wantPayload
			if (err != nil) != wantErr {
				t.Fatalf("NewProbe() error = %v, wantErr %v", err, wantErr)
			}
			if tt.wantValid && !IsValidationError(err) {
				t.Errorf("error %v should be a ValidationError", err)
			}
			if tt.wantPayload && !IsUnsupportedPayloadType(err) {
				t.Errorf("error %v should be an UnsupportedPayloadTypeError", err)
			}
		})
	}
}

func TestProbeNakedDetection(t *testing.T) {
	naked, _ := NewProbe(WithServiceContractIDs(), WithServiceInstanceIDs())
	if !naked.IsNaked() {
		t.Error("probe with empty id lists should be naked")
	}

	withContract, _ := NewProbe(WithServiceContractIDs("urn:x"))
	if withContract.IsNaked() {
		t.Error("probe with a contract id should not be naked")
	}

	withInstance, _ := NewProbe(WithServiceInstanceIDs("svc-1"))
	if withInstance.IsNaked() {
		t.Error("probe with an instance id should not be naked")
	}
}

func TestProbeIDSets(t *testing.T) {
	p, err := NewProbe(WithServiceContractIDs("b", "a", "b", "", "c", "a"))
	if err != nil {
		t.Fatalf("NewProbe() error = %v", err)
	}
	got := p.ServiceContractIDs()
	want := []string{"b", "a", "c"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ServiceContractIDs() = %v, want %v", got, want)
	}
	if !p.WantsContract("a") || p.WantsContract("z") {
		t.Error("WantsContract() disagrees with the id set")
	}

	got[0] = "mutated"
	if p.ServiceContractIDs()[0] != "b" {
		t.Error("accessor leaked internal slice")
	}
}

func TestParsePayloadType(t *testing.T) {
	tests := []struct {
		in      string
		want    PayloadType
		wantErr bool
	}{
		{"XML", PayloadXML, false},
		{"json", PayloadJSON, false},
		{" Json ", PayloadJSON, false},
		{"YAML", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePayloadType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePayloadType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParsePayloadType(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPayloadTypeFromContentType(t *testing.T) {
	tests := []struct {
		in      string
		want    PayloadType
		wantErr bool
	}{
		{"application/json", PayloadJSON, false},
		{"application/json; charset=utf-8", PayloadJSON, false},
		{"application/xml", PayloadXML, false},
		{"text/xml", PayloadXML, false},
		{"text/plain", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := PayloadTypeFromContentType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
