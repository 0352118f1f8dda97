package wire

import (
	"strings"
	"testing"
)

func fullProbe(t *testing.T, payload PayloadType) *Probe {
	t.Helper()
	p, err := NewProbe(
		WithHopLimit(255),
		WithPayloadType(payload),
		WithClientID("client-7"),
		WithRespondTo("lan", "http://10.0.0.5:4005/response"),
		WithServiceContractIDs("urn:example:printer", "urn:example:scanner"),
		WithServiceInstanceIDs("svc-1", "svc-2"),
	)
	if err != nil {
		t.Fatalf("NewProbe() error = %v", err)
	}
	return p
}

func sampleResponse() *Response {
	return NewResponse("urn:uuid:probe", []Service{
		{
			ID:                  "svc-1",
			ServiceContractID:   "urn:example:printer",
			ServiceName:         "Office printer",
			Description:         "2nd floor <east> & west",
			ContractDescription: "IPP",
			Consumability:       HumanConsumable,
			TTLMinutes:          5,
			AccessPoints: []AccessPoint{
				{Label: "ipp", IPAddress: "10.0.0.9", Port: 631, URL: "ipp://10.0.0.9/", DataType: "text", Data: "duplex=true"},
			},
		},
		{
			ID:                "svc-2",
			ServiceContractID: "urn:example:scanner",
			Consumability:     MachineConsumable,
		},
	})
}

func TestProbeRoundTrip(t *testing.T) {
	for _, payload := range []PayloadType{PayloadXML, PayloadJSON} {
		t.Run(payload.String(), func(t *testing.T) {
			p := fullProbe(t, payload)
			data, err := EncodeProbe(p, payload)
			if err != nil {
				t.Fatalf("EncodeProbe() error = %v", err)
			}
			got, err := DecodeProbe(data, payload)
			if err != nil {
				t.Fatalf("DecodeProbe() error = %v\n%s", err, data)
			}
			if !got.Equal(p) {
				t.Errorf("round trip mismatch:\n got %v\nwant %v", got, p)
			}
		})
	}
}

func TestNakedProbeRoundTrip(t *testing.T) {
	p, _ := NewProbe(WithHopLimit(1))
	for _, payload := range []PayloadType{PayloadXML, PayloadJSON} {
		t.Run(payload.String(), func(t *testing.T) {
			data, err := EncodeProbe(p, payload)
			if err != nil {
				t.Fatalf("EncodeProbe() error = %v", err)
			}
			got, err := DecodeProbe(data, payload)
			if err != nil {
				t.Fatalf("DecodeProbe() error = %v\n%s", err, data)
			}
			if !got.Equal(p) || !got.IsNaked() {
				t.Errorf("naked probe did not survive round trip: %v", got)
			}
		})
	}
}

func TestEncodeProbeXMLAlwaysEmitsGroups(t *testing.T) {
	p, _ := NewProbe()
	data, err := EncodeProbeXML(p)
	if err != nil {
		t.Fatalf("EncodeProbeXML() error = %v", err)
	}
	for _, want := range []string{`contractID="urn:argo:probe:v1"`, "<ra></ra>", "<scids></scids>", "<siids></siids>"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("encoded probe missing %s:\n%s", want, data)
		}
	}
}

func TestResponseRoundTrip(t *testing.T) {
	r := sampleResponse()
	for _, payload := range []PayloadType{PayloadXML, PayloadJSON} {
		t.Run(payload.String(), func(t *testing.T) {
			data, err := EncodeResponse(r, payload)
			if err != nil {
				t.Fatalf("EncodeResponse() error = %v", err)
			}
			got, err := DecodeResponse(data, payload)
			if err != nil {
				t.Fatalf("DecodeResponse() error = %v\n%s", err, data)
			}
			if !got.Equal(r) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got.Services(), r.Services())
			}
		})
	}
}

func TestRoundTripKeepsIDWhitespace(t *testing.T) {
	p, err := NewProbe(
		WithServiceContractIDs("  "),
		WithServiceInstanceIDs(" svc-1 "),
	)
	if err != nil {
		t.Fatalf("NewProbe() error = %v", err)
	}
	r := NewResponse("urn:uuid:probe", []Service{
		{ID: "svc-1", ServiceContractID: " X ", Consumability: MachineConsumable},
	})

	for _, payload := range []PayloadType{PayloadXML, PayloadJSON} {
		t.Run(payload.String(), func(t *testing.T) {
			data, err := EncodeProbe(p, payload)
			if err != nil {
				t.Fatalf("EncodeProbe() error = %v", err)
			}
			got, err := DecodeProbe(data, payload)
			if err != nil {
				t.Fatalf("DecodeProbe() error = %v\n%s", err, data)
			}
			if !got.Equal(p) {
				t.Errorf("probe round trip mismatch:\n got %v\nwant %v", got, p)
			}
			if got.IsNaked() {
				t.Error("whitespace contract ID decoded as a naked probe")
			}
			if ids := got.ServiceInstanceIDs(); len(ids) != 1 || ids[0] != " svc-1 " {
				t.Errorf("instance IDs = %q", ids)
			}

			data, err = EncodeResponse(r, payload)
			if err != nil {
				t.Fatalf("EncodeResponse() error = %v", err)
			}
			gotResp, err := DecodeResponse(data, payload)
			if err != nil {
				t.Fatalf("DecodeResponse() error = %v\n%s", err, data)
			}
			if !gotResp.Equal(r) {
				t.Errorf("response round trip mismatch:\n got %+v\nwant %+v", gotResp.Services(), r.Services())
			}
		})
	}
}

func TestDecodeProbeMissingElements(t *testing.T) {
	tests := []struct {
		name    string
		payload PayloadType
		doc     string
		element string
	}{
		{
			name:    "xml without id",
			payload: PayloadXML,
			doc:     `<probe contractID="urn:argo:probe:v1" hopLimit="3"><respondToPayloadType>XML</respondToPayloadType><ra/><scids/><siids/></probe>`,
			element: "probe@id",
		},
		{
			name:    "xml without ra",
			payload: PayloadXML,
			doc:     `<probe id="p" contractID="urn:argo:probe:v1" hopLimit="3"><respondToPayloadType>XML</respondToPayloadType><scids/><siids/></probe>`,
			element: "ra",
		},
		{
			name:    "xml without payload type",
			payload: PayloadXML,
			doc:     `<probe id="p" contractID="urn:argo:probe:v1" hopLimit="3"><ra/><scids/><siids/></probe>`,
			element: "respondToPayloadType",
		},
		{
			name:    "xml without hop limit",
			payload: PayloadXML,
			doc:     `<probe id="p" contractID="urn:argo:probe:v1"><respondToPayloadType>XML</respondToPayloadType><ra/><scids/><siids/></probe>`,
			element: "probe@hopLimit",
		},
		{
			name:    "json without siids",
			payload: PayloadJSON,
			doc:     `{"id":"p","contractID":"urn:argo:probe:v1","hopLimit":3,"respondToPayloadType":"XML","respondTo":[],"serviceContractIDs":[]}`,
			element: "serviceInstanceIDs",
		},
		{
			name:    "json respondTo without url",
			payload: PayloadJSON,
			doc:     `{"id":"p","contractID":"urn:argo:probe:v1","hopLimit":3,"respondToPayloadType":"XML","respondTo":[{"label":"x"}],"serviceContractIDs":[],"serviceInstanceIDs":[]}`,
			element: "respondTo[0].url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodeProbe([]byte(tt.doc), tt.payload)
			if p != nil {
				t.Errorf("DecodeProbe() returned a partial probe: %v", p)
			}
			pe, ok := err.(*ParseError)
			if !ok {
				t.Fatalf("DecodeProbe() error = %v (%T), want *ParseError", err, err)
			}
			if pe.Element != tt.element {
				t.Errorf("ParseError.Element = %q, want %q", pe.Element, tt.element)
			}
		})
	}
}

func TestDecodeProbeRejects(t *testing.T) {
	tests := []struct {
		name      string
		payload   PayloadType
		doc       string
		unsupport bool
	}{
		{name: "not xml", payload: PayloadXML, doc: "hello"},
		{name: "wrong root", payload: PayloadXML, doc: "<cache/>"},
		{name: "foreign contract", payload: PayloadXML, doc: `<probe id="p" contractID="urn:other" hopLimit="3"><respondToPayloadType>XML</respondToPayloadType><ra/><scids/><siids/></probe>`},
		{name: "bad url", payload: PayloadXML, doc: `<probe id="p" contractID="urn:argo:probe:v1" hopLimit="3"><respondToPayloadType>XML</respondToPayloadType><ra><respondTo label="x">gopher://host/</respondTo></ra><scids/><siids/></probe>`},
		{name: "unknown payload type", payload: PayloadXML, doc: `<probe id="p" contractID="urn:argo:probe:v1" hopLimit="3"><respondToPayloadType>CSV</respondToPayloadType><ra/><scids/><siids/></probe>`, unsupport: true},
		{name: "truncated json", payload: PayloadJSON, doc: `{"id":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeProbe([]byte(tt.doc), tt.payload)
			if err == nil {
				t.Fatal("DecodeProbe() succeeded, want error")
			}
			if tt.unsupport {
				if !IsUnsupportedPayloadType(err) {
					t.Errorf("error = %v, want UnsupportedPayloadTypeError", err)
				}
				return
			}
			if !IsParseError(err) {
				t.Errorf("error = %v, want ParseError", err)
			}
		})
	}
}

func TestDecodeResponseMissingElements(t *testing.T) {
	tests := []struct {
		name    string
		payload PayloadType
		doc     string
	}{
		{name: "json without cache", payload: PayloadJSON, doc: `{"responseID":"r","probeID":"p"}`},
		{name: "json without probe id", payload: PayloadJSON, doc: `{"responseID":"r","cache":[]}`},
		{name: "json service without ttl", payload: PayloadJSON, doc: `{"responseID":"r","probeID":"p","cache":[{"id":"a","serviceContractID":"x","consumability":"HUMAN_CONSUMABLE"}]}`},
		{name: "json bad consumability", payload: PayloadJSON, doc: `{"responseID":"r","probeID":"p","cache":[{"id":"a","serviceContractID":"x","consumability":"ROBOT","ttl":1}]}`},
		{name: "xml without response id", payload: PayloadXML, doc: `<cache probeID="p"></cache>`},
		{name: "xml service without contract", payload: PayloadXML, doc: `<cache responseID="r" probeID="p"><service id="a"><consumability>HUMAN_CONSUMABLE</consumability><ttl>0</ttl></service></cache>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := DecodeResponse([]byte(tt.doc), tt.payload)
			if r != nil {
				t.Errorf("DecodeResponse() returned a partial response")
			}
			if !IsParseError(err) {
				t.Errorf("error = %v, want ParseError", err)
			}
		})
	}
}

func TestResponseMergeKeepsDuplicates(t *testing.T) {
	a := NewResponse("p", []Service{{ID: "a"}})
	b := NewResponse("p", []Service{{ID: "a"}, {ID: "b"}})

	merged := a.Merge(nil, b)
	if merged.Len() != 3 {
		t.Fatalf("Merge() len = %d, want 3", merged.Len())
	}
	if merged.ProbeID() != "p" || merged.ID() != a.ID() {
		t.Errorf("Merge() changed identity: %s/%s", merged.ID(), merged.ProbeID())
	}
	if a.Len() != 1 {
		t.Errorf("Merge() mutated receiver, len = %d", a.Len())
	}
}
