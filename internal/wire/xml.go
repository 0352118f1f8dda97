package wire

import (
	"bytes"
	"encoding/xml"
	"strings"
)

type xmlProbe struct {
	XMLName     xml.Name  `xml:"probe"`
	ID          *string   `xml:"id,attr"`
	ContractID  *string   `xml:"contractID,attr"`
	HopLimit    *int      `xml:"hopLimit,attr"`
	ClientID    *string   `xml:"clientID,omitempty"`
	PayloadType *string   `xml:"respondToPayloadType"`
	RA          *xmlRA    `xml:"ra"`
	SCIDs       *xmlSCIDs `xml:"scids"`
	SIIDs       *xmlSIIDs `xml:"siids"`
}

type xmlRA struct {
	Entries []xmlRespondTo `xml:"respondTo"`
}

type xmlRespondTo struct {
	Label string `xml:"label,attr"`
	URL   string `xml:",chardata"`
}

type xmlSCIDs struct {
	IDs []string `xml:"serviceContractID"`
}

type xmlSIIDs struct {
	IDs []string `xml:"serviceInstanceID"`
}

type xmlResponse struct {
	XMLName    xml.Name     `xml:"cache"`
	ResponseID *string      `xml:"responseID,attr"`
	ProbeID    *string      `xml:"probeID,attr"`
	Services   []xmlService `xml:"service"`
}

type xmlService struct {
	ID                  *string          `xml:"id,attr"`
	ServiceContractID   *string          `xml:"serviceContractID"`
	ServiceName         string           `xml:"serviceName"`
	Description         string           `xml:"description"`
	ContractDescription string           `xml:"contractDescription"`
	Consumability       *string          `xml:"consumability"`
	TTL                 *int             `xml:"ttl"`
	AccessPoints        *xmlAccessPoints `xml:"accessPoints"`
}

type xmlAccessPoints struct {
	Entries []xmlAccessPoint `xml:"accessPoint"`
}

type xmlAccessPoint struct {
	Label     string `xml:"label,attr"`
	IPAddress string `xml:"ipAddress"`
	Port      int    `xml:"port"`
	URL       string `xml:"url"`
	DataType  string `xml:"dataType"`
	Data      string `xml:"data"`
}

// EncodeProbeXML encodes a probe as an XML document.
func EncodeProbeXML(p *Probe) ([]byte, error) {
	contractID := ProbeContractID
	payload := p.payloadType.String()
	hop := p.hopLimit
	id := p.id
	doc := xmlProbe{
		ID:          &id,
		ContractID:  &contractID,
		HopLimit:    &hop,
		PayloadType: &payload,
		RA:          &xmlRA{},
		SCIDs:       &xmlSCIDs{IDs: p.contractIDs},
		SIIDs:       &xmlSIIDs{IDs: p.instanceIDs},
	}
	if p.clientID != "" {
		clientID := p.clientID
		doc.ClientID = &clientID
	}
	for _, rt := range p.respondTo {
		doc.RA.Entries = append(doc.RA.Entries, xmlRespondTo{Label: rt.Label, URL: rt.URL})
	}
	return marshalXML(doc)
}

// DecodeProbeXML decodes an XML probe, failing on any missing required element.
func DecodeProbeXML(data []byte) (*Probe, error) {
	var doc xmlProbe
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, malformed("xml", err)
	}

	switch {
	case doc.ID == nil:
		return nil, missing("xml", "probe@id")
	case doc.ContractID == nil:
		return nil, missing("xml", "probe@contractID")
	case doc.HopLimit == nil:
		return nil, missing("xml", "probe@hopLimit")
	case doc.PayloadType == nil:
		return nil, missing("xml", "respondToPayloadType")
	case doc.RA == nil:
		return nil, missing("xml", "ra")
	case doc.SCIDs == nil:
		return nil, missing("xml", "scids")
	case doc.SIIDs == nil:
		return nil, missing("xml", "siids")
	}
	if *doc.ContractID != ProbeContractID {
		return nil, &ParseError{Format: "xml", Element: "probe@contractID", Message: "not an Argo probe: " + *doc.ContractID}
	}

	payload, err := ParsePayloadType(*doc.PayloadType)
	if err != nil {
		return nil, err
	}

	opts := []ProbeOption{
		WithHopLimit(*doc.HopLimit),
		WithPayloadType(payload),
		WithServiceContractIDs(doc.SCIDs.IDs...),
		WithServiceInstanceIDs(doc.SIIDs.IDs...),
	}
	if doc.ClientID != nil {
		opts = append(opts, WithClientID(*doc.ClientID))
	}
	for _, rt := range doc.RA.Entries {
		opts = append(opts, WithRespondTo(rt.Label, strings.TrimSpace(rt.URL)))
	}

	p, err := buildProbe(*doc.ID, opts...)
	if err != nil {
		return nil, invalid("xml", "probe", err)
	}
	return p, nil
}

// EncodeResponseXML encodes a response with a <cache> root.
func EncodeResponseXML(r *Response) ([]byte, error) {
	id, probeID := r.id, r.probeID
	doc := xmlResponse{ResponseID: &id, ProbeID: &probeID}
	for _, s := range r.services {
		doc.Services = append(doc.Services, toXMLService(s))
	}
	return marshalXML(doc)
}

func toXMLService(s Service) xmlService {
	id, contract, consumability, ttl := s.ID, s.ServiceContractID, string(s.Consumability), s.TTLMinutes
	out := xmlService{
		ID:                  &id,
		ServiceContractID:   &contract,
		ServiceName:         s.ServiceName,
		Description:         s.Description,
		ContractDescription: s.ContractDescription,
		Consumability:       &consumability,
		TTL:                 &ttl,
		AccessPoints:        &xmlAccessPoints{},
	}
	for _, ap := range s.AccessPoints {
		out.AccessPoints.Entries = append(out.AccessPoints.Entries, xmlAccessPoint(ap))
	}
	return out
}

// DecodeResponseXML decodes an XML response.
func DecodeResponseXML(data []byte) (*Response, error) {
	var doc xmlResponse
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, malformed("xml", err)
	}
	if doc.ResponseID == nil {
		return nil, missing("xml", "cache@responseID")
	}
	if doc.ProbeID == nil {
		return nil, missing("xml", "cache@probeID")
	}

	r := &Response{id: *doc.ResponseID, probeID: *doc.ProbeID}
	for i, xs := range doc.Services {
		s, err := fromXMLService(xs, i)
		if err != nil {
			return nil, err
		}
		r.services = append(r.services, s)
	}
	return r, nil
}

func fromXMLService(xs xmlService, i int) (Service, error) {
	at := func(field string) string { return serviceElement(i, field) }
	switch {
	case xs.ID == nil:
		return Service{}, missing("xml", at("id"))
	case xs.ServiceContractID == nil:
		return Service{}, missing("xml", at("serviceContractID"))
	case xs.Consumability == nil:
		return Service{}, missing("xml", at("consumability"))
	case xs.TTL == nil:
		return Service{}, missing("xml", at("ttl"))
	}
	consumability, err := ParseConsumability(*xs.Consumability)
	if err != nil {
		return Service{}, invalid("xml", at("consumability"), err)
	}

	s := Service{
		ID:                  *xs.ID,
		ServiceContractID:   *xs.ServiceContractID,
		ServiceName:         xs.ServiceName,
		Description:         xs.Description,
		ContractDescription: xs.ContractDescription,
		Consumability:       consumability,
		TTLMinutes:          *xs.TTL,
	}
	if xs.AccessPoints != nil {
		for _, ap := range xs.AccessPoints.Entries {
			s.AccessPoints = append(s.AccessPoints, AccessPoint(ap))
		}
	}
	if err := s.Validate(); err != nil {
		return Service{}, invalid("xml", at(""), err)
	}
	return s, nil
}

func marshalXML(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
