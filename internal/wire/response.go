package wire

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// AccessPoint describes one way to reach a service. All fields are optional.
type AccessPoint struct {
	Label     string `yaml:"label" json:"label"`
	IPAddress string `yaml:"ipAddress" json:"ipAddress"`
	Port      int    `yaml:"port" json:"port"`
	URL       string `yaml:"url" json:"url"`
	DataType  string `yaml:"dataType" json:"dataType"`
	Data      string `yaml:"data" json:"data"`
}

// Service is one directory entry returned in a response.
//
// TTLMinutes is a cache lifetime; zero means the entry never expires.
type Service struct {
	ID                  string        `yaml:"id" json:"id"`
	ServiceContractID   string        `yaml:"serviceContractID" json:"serviceContractID"`
	ServiceName         string        `yaml:"serviceName" json:"serviceName"`
	Description         string        `yaml:"description" json:"description"`
	ContractDescription string        `yaml:"contractDescription" json:"contractDescription"`
	Consumability       Consumability `yaml:"consumability" json:"consumability"`
	TTLMinutes          int           `yaml:"ttl" json:"ttl"`
	AccessPoints        []AccessPoint `yaml:"accessPoints" json:"accessPoints"`
}

// Validate checks the fields a service must carry on the wire.
func (s Service) Validate() error {
	if s.ID == "" {
		return &ValidationError{Field: "service.id", Message: "must not be empty"}
	}
	if s.ServiceContractID == "" {
		return &ValidationError{Field: "service.serviceContractID", Message: fmt.Sprintf("must not be empty (service %s)", s.ID)}
	}
	if _, err := ParseConsumability(string(s.Consumability)); err != nil {
		return err
	}
	if s.TTLMinutes < 0 {
		return &ValidationError{Field: "service.ttl", Message: fmt.Sprintf("must not be negative (service %s)", s.ID)}
	}
	return nil
}

// Equal compares two services. A nil and an empty access point list are equal.
func (s Service) Equal(o Service) bool {
	return s.ID == o.ID &&
		s.ServiceContractID == o.ServiceContractID &&
		s.ServiceName == o.ServiceName &&
		s.Description == o.Description &&
		s.ContractDescription == o.ContractDescription &&
		s.Consumability == o.Consumability &&
		s.TTLMinutes == o.TTLMinutes &&
		slices.Equal(s.AccessPoints, o.AccessPoints)
}

// Response carries the services a responder matched for one probe.
type Response struct {
	id       string
	probeID  string
	services []Service
}

// NewResponse builds a response with a fresh urn:uuid id.
func NewResponse(probeID string, services []Service) *Response {
	return &Response{
		id:       "urn:uuid:" + uuid.NewString(),
		probeID:  probeID,
		services: slices.Clone(services),
	}
}

// ID returns the response identifier.
func (r *Response) ID() string { return r.id }

// ProbeID returns the id of the probe this response answers.
func (r *Response) ProbeID() string { return r.probeID }

// Services returns a copy of the matched services.
func (r *Response) Services() []Service { return slices.Clone(r.services) }

// Len returns the number of services.
func (r *Response) Len() int {
	if r == nil {
		return 0
	}
	return len(r.services)
}

// Merge returns a new response for the same probe whose services are r's
// followed by every other response's. Nil responses are skipped and
// duplicates are kept.
func (r *Response) Merge(others ...*Response) *Response {
	merged := &Response{id: r.id, probeID: r.probeID, services: slices.Clone(r.services)}
	for _, o := range others {
		if o == nil {
			continue
		}
		merged.services = append(merged.services, o.services...)
	}
	return merged
}

// Equal compares two responses field by field.
func (r *Response) Equal(o *Response) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.id == o.id &&
		r.probeID == o.probeID &&
		slices.EqualFunc(r.services, o.services, Service.Equal)
}
