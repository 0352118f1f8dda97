package wire

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/google/uuid"
)

const (
	// ProbeContractID marks a document as an Argo probe.
	ProbeContractID = "urn:argo:probe:v1"

	// DefaultHopLimit is the multicast TTL used when none is given.
	DefaultHopLimit = 255

	// MaxHopLimit is the largest TTL an IP header can carry.
	MaxHopLimit = 255
)

// RespondTo is one callback address carried by a probe.
type RespondTo struct {
	Label string
	URL   string
}

// Probe is an immutable discovery request. Build one with NewProbe or decode
// one from the wire; the zero value is not usable.
type Probe struct {
	id          string
	hopLimit    int
	payloadType PayloadType
	clientID    string
	respondTo   []RespondTo
	contractIDs []string
	instanceIDs []string

	contractSet map[string]struct{}
	instanceSet map[string]struct{}
}

// ProbeOption configures a probe under construction.
type ProbeOption func(*probeBuilder)

type probeBuilder struct {
	hopLimit    int
	payloadType PayloadType
	clientID    string
	respondTo   []RespondTo
	contractIDs []string
	instanceIDs []string
}

// WithHopLimit sets the multicast TTL (0-255).
func WithHopLimit(n int) ProbeOption {
	return func(b *probeBuilder) { b.hopLimit = n }
}

// WithPayloadType sets the encoding responders use for their response.
func WithPayloadType(t PayloadType) ProbeOption {
	return func(b *probeBuilder) { b.payloadType = t }
}

// WithClientID attaches an opaque client identifier.
func WithClientID(id string) ProbeOption {
	return func(b *probeBuilder) { b.clientID = id }
}

// WithRespondTo appends a callback address. The URL must be an absolute
// http or https URL with a host.
func WithRespondTo(label, rawURL string) ProbeOption {
	return func(b *probeBuilder) {
		b.respondTo = append(b.respondTo, RespondTo{Label: label, URL: rawURL})
	}
}

// WithServiceContractIDs adds contract ids to match.
func WithServiceContractIDs(ids ...string) ProbeOption {
	return func(b *probeBuilder) { b.contractIDs = append(b.contractIDs, ids...) }
}

// WithServiceInstanceIDs adds service instance ids to match.
func WithServiceInstanceIDs(ids ...string) ProbeOption {
	return func(b *probeBuilder) { b.instanceIDs = append(b.instanceIDs, ids...) }
}

// NewProbe builds a probe with a fresh urn:uuid id.
func NewProbe(opts ...ProbeOption) (*Probe, error) {
	return buildProbe("urn:uuid:"+uuid.NewString(), opts...)
}

func buildProbe(id string, opts ...ProbeOption) (*Probe, error) {
	b := &probeBuilder{hopLimit: DefaultHopLimit, payloadType: PayloadXML}
	for _, opt := range opts {
		opt(b)
	}

	if strings.TrimSpace(id) == "" {
		return nil, &ValidationError{Field: "id", Message: "must not be empty"}
	}
	if b.hopLimit < 0 || b.hopLimit > MaxHopLimit {
		return nil, &ValidationError{Field: "hopLimit", Message: fmt.Sprintf("must be between 0 and %d, got %d", MaxHopLimit, b.hopLimit)}
	}
	if !b.payloadType.valid() {
		return nil, &UnsupportedPayloadTypeError{Value: b.payloadType.String()}
	}

	respondTo := make([]RespondTo, 0, len(b.respondTo))
	for _, rt := range b.respondTo {
		u := strings.TrimSpace(rt.URL)
		if err := ValidateCallbackURL(u); err != nil {
			return nil, err
		}
		respondTo = append(respondTo, RespondTo{Label: rt.Label, URL: u})
	}

	p := &Probe{
		id:          id,
		hopLimit:    b.hopLimit,
		payloadType: b.payloadType,
		clientID:    b.clientID,
		respondTo:   respondTo,
	}
	p.contractIDs, p.contractSet = orderedSet(b.contractIDs)
	p.instanceIDs, p.instanceSet = orderedSet(b.instanceIDs)
	return p, nil
}

// orderedSet drops empty strings and duplicates, keeping first-insertion order.
func orderedSet(ids []string) ([]string, map[string]struct{}) {
	out := make([]string, 0, len(ids))
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := set[id]; dup {
			continue
		}
		set[id] = struct{}{}
		out = append(out, id)
	}
	return out, set
}

// ValidateCallbackURL accepts absolute http and https URLs that name a host.
func ValidateCallbackURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Field: "respondTo", Message: fmt.Sprintf("malformed URL %q: %v", raw, err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: "respondTo", Message: fmt.Sprintf("URL %q must use http or https", raw)}
	}
	if u.Host == "" {
		return &ValidationError{Field: "respondTo", Message: fmt.Sprintf("URL %q has no host", raw)}
	}
	return nil
}

// ID returns the probe's urn:uuid identifier.
func (p *Probe) ID() string { return p.id }

// HopLimit returns the multicast TTL for the probe datagram.
func (p *Probe) HopLimit() int { return p.hopLimit }

// PayloadType returns the encoding requested for responses.
func (p *Probe) PayloadType() PayloadType { return p.payloadType }

// ClientID returns the optional client identifier.
func (p *Probe) ClientID() string { return p.clientID }

// RespondTo returns a copy of the callback addresses.
func (p *Probe) RespondTo() []RespondTo { return slices.Clone(p.respondTo) }

// ServiceContractIDs returns a copy of the requested contract ids.
func (p *Probe) ServiceContractIDs() []string { return slices.Clone(p.contractIDs) }

// ServiceInstanceIDs returns a copy of the requested instance ids.
func (p *Probe) ServiceInstanceIDs() []string { return slices.Clone(p.instanceIDs) }

// WantsContract reports whether the probe asks for the given contract id.
func (p *Probe) WantsContract(id string) bool {
	_, ok := p.contractSet[id]
	return ok
}

// WantsInstance reports whether the probe asks for the given service id.
func (p *Probe) WantsInstance(id string) bool {
	_, ok := p.instanceSet[id]
	return ok
}

// IsNaked reports whether the probe carries no contract or instance filters.
func (p *Probe) IsNaked() bool {
	return len(p.contractIDs) == 0 && len(p.instanceIDs) == 0
}

// Deliverable reports whether the probe names at least one callback.
func (p *Probe) Deliverable() bool {
	return len(p.respondTo) > 0
}

// Equal compares two probes field by field.
func (p *Probe) Equal(o *Probe) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.id == o.id &&
		p.hopLimit == o.hopLimit &&
		p.payloadType == o.payloadType &&
		p.clientID == o.clientID &&
		slices.Equal(p.respondTo, o.respondTo) &&
		slices.Equal(p.contractIDs, o.contractIDs) &&
		slices.Equal(p.instanceIDs, o.instanceIDs)
}

// String returns a short description for logs.
func (p *Probe) String() string {
	return fmt.Sprintf("probe %s (hop=%d payload=%s scids=%d siids=%d respondTo=%d)",
		p.id, p.hopLimit, p.payloadType, len(p.contractIDs), len(p.instanceIDs), len(p.respondTo))
}
