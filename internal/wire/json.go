package wire

import (
	"encoding/json"
	"fmt"
)

type jsonProbe struct {
	ID          *string          `json:"id"`
	ContractID  *string          `json:"contractID"`
	HopLimit    *int             `json:"hopLimit"`
	ClientID    string           `json:"clientID,omitempty"`
	PayloadType *string          `json:"respondToPayloadType"`
	RespondTo   *[]jsonRespondTo `json:"respondTo"`
	ContractIDs *[]string        `json:"serviceContractIDs"`
	InstanceIDs *[]string        `json:"serviceInstanceIDs"`
}

type jsonRespondTo struct {
	Label string  `json:"label"`
	URL   *string `json:"url"`
}

type jsonResponse struct {
	ResponseID *string        `json:"responseID"`
	ProbeID    *string        `json:"probeID"`
	Cache      *[]jsonService `json:"cache"`
}

type jsonService struct {
	ID                  *string       `json:"id"`
	ServiceContractID   *string       `json:"serviceContractID"`
	ServiceName         string        `json:"serviceName"`
	Description         string        `json:"description"`
	ContractDescription string        `json:"contractDescription"`
	Consumability       *string       `json:"consumability"`
	TTL                 *int          `json:"ttl"`
	AccessPoints        []AccessPoint `json:"accessPoints"`
}

// EncodeProbeJSON encodes a probe as a flat JSON object.
func EncodeProbeJSON(p *Probe) ([]byte, error) {
	id, contractID, payload, hop := p.id, ProbeContractID, p.payloadType.String(), p.hopLimit
	respondTo := make([]jsonRespondTo, 0, len(p.respondTo))
	for _, rt := range p.respondTo {
		u := rt.URL
		respondTo = append(respondTo, jsonRespondTo{Label: rt.Label, URL: &u})
	}
	contractIDs := append([]string{}, p.contractIDs...)
	instanceIDs := append([]string{}, p.instanceIDs...)

	return json.Marshal(jsonProbe{
		ID:          &id,
		ContractID:  &contractID,
		HopLimit:    &hop,
		ClientID:    p.clientID,
		PayloadType: &payload,
		RespondTo:   &respondTo,
		ContractIDs: &contractIDs,
		InstanceIDs: &instanceIDs,
	})
}

// DecodeProbeJSON decodes a JSON probe, failing on any missing required field.
func DecodeProbeJSON(data []byte) (*Probe, error) {
	var doc jsonProbe
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed("json", err)
	}

	switch {
	case doc.ID == nil:
		return nil, missing("json", "id")
	case doc.ContractID == nil:
		return nil, missing("json", "contractID")
	case doc.HopLimit == nil:
		return nil, missing("json", "hopLimit")
	case doc.PayloadType == nil:
		return nil, missing("json", "respondToPayloadType")
	case doc.RespondTo == nil:
		return nil, missing("json", "respondTo")
	case doc.ContractIDs == nil:
		return nil, missing("json", "serviceContractIDs")
	case doc.InstanceIDs == nil:
		return nil, missing("json", "serviceInstanceIDs")
	}
	if *doc.ContractID != ProbeContractID {
		return nil, &ParseError{Format: "json", Element: "contractID", Message: "not an Argo probe: " + *doc.ContractID}
	}

	payload, err := ParsePayloadType(*doc.PayloadType)
	if err != nil {
		return nil, err
	}

	opts := []ProbeOption{
		WithHopLimit(*doc.HopLimit),
		WithPayloadType(payload),
		WithClientID(doc.ClientID),
		WithServiceContractIDs(*doc.ContractIDs...),
		WithServiceInstanceIDs(*doc.InstanceIDs...),
	}
	for i, rt := range *doc.RespondTo {
		if rt.URL == nil {
			return nil, missing("json", fmt.Sprintf("respondTo[%d].url", i))
		}
		opts = append(opts, WithRespondTo(rt.Label, *rt.URL))
	}

	p, err := buildProbe(*doc.ID, opts...)
	if err != nil {
		return nil, invalid("json", "probe", err)
	}
	return p, nil
}

// EncodeResponseJSON encodes a response as {"responseID", "probeID", "cache": [...]}.
func EncodeResponseJSON(r *Response) ([]byte, error) {
	id, probeID := r.id, r.probeID
	cache := make([]jsonService, 0, len(r.services))
	for _, s := range r.services {
		cache = append(cache, toJSONService(s))
	}
	return json.Marshal(jsonResponse{ResponseID: &id, ProbeID: &probeID, Cache: &cache})
}

func toJSONService(s Service) jsonService {
	id, contract, consumability, ttl := s.ID, s.ServiceContractID, string(s.Consumability), s.TTLMinutes
	aps := s.AccessPoints
	if aps == nil {
		aps = []AccessPoint{}
	}
	return jsonService{
		ID:                  &id,
		ServiceContractID:   &contract,
		ServiceName:         s.ServiceName,
		Description:         s.Description,
		ContractDescription: s.ContractDescription,
		Consumability:       &consumability,
		TTL:                 &ttl,
		AccessPoints:        aps,
	}
}

// DecodeResponseJSON decodes a JSON response.
func DecodeResponseJSON(data []byte) (*Response, error) {
	var doc jsonResponse
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed("json", err)
	}
	switch {
	case doc.ResponseID == nil:
		return nil, missing("json", "responseID")
	case doc.ProbeID == nil:
		return nil, missing("json", "probeID")
	case doc.Cache == nil:
		return nil, missing("json", "cache")
	}

	r := &Response{id: *doc.ResponseID, probeID: *doc.ProbeID}
	for i, js := range *doc.Cache {
		s, err := fromJSONService(js, i)
		if err != nil {
			return nil, err
		}
		r.services = append(r.services, s)
	}
	return r, nil
}

func fromJSONService(js jsonService, i int) (Service, error) {
	at := func(field string) string { return serviceElement(i, field) }
	switch {
	case js.ID == nil:
		return Service{}, missing("json", at("id"))
	case js.ServiceContractID == nil:
		return Service{}, missing("json", at("serviceContractID"))
	case js.Consumability == nil:
		return Service{}, missing("json", at("consumability"))
	case js.TTL == nil:
		return Service{}, missing("json", at("ttl"))
	}
	consumability, err := ParseConsumability(*js.Consumability)
	if err != nil {
		return Service{}, invalid("json", at("consumability"), err)
	}

	s := Service{
		ID:                  *js.ID,
		ServiceContractID:   *js.ServiceContractID,
		ServiceName:         js.ServiceName,
		Description:         js.Description,
		ContractDescription: js.ContractDescription,
		Consumability:       consumability,
		TTLMinutes:          *js.TTL,
	}
	if len(js.AccessPoints) > 0 {
		s.AccessPoints = js.AccessPoints
	}
	if err := s.Validate(); err != nil {
		return Service{}, invalid("json", at(""), err)
	}
	return s, nil
}

func serviceElement(i int, field string) string {
	if field == "" {
		return fmt.Sprintf("service[%d]", i)
	}
	return fmt.Sprintf("service[%d].%s", i, field)
}
