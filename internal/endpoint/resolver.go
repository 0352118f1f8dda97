// Package endpoint turns "interface:scheme:scope:index" specifications into
// concrete IP addresses.
//
// Results are plain strings because they are spliced straight into
// configuration values such as advertised callback URLs. Failures are
// reported as literal sentinel strings:
//
//	UNKNOWN NI           the interface could not be found
//	EMPTY LIST           no address survived the family/scope filter
//	INDEX OUT OF BOUNDS  the index is past the end of the filtered list
//	BAD TYPE             the resolver type itself is not recognised
//
// Example:
//
//	r := endpoint.NewResolver(endpoint.SystemInterfaces{})
//	r.Resolve("eth0:ipv4:sitelocal:0")                  // "10.0.0.5"
//	r.Expand("http://${ni:eth0:ipv4:sitelocal}:4005/")  // "http://10.0.0.5:4005/"
package endpoint

import (
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/argo/internal/logging"
)

// Sentinel results
const (
	UnknownNI        = "UNKNOWN NI"
	EmptyList        = "EMPTY LIST"
	IndexOutOfBounds = "INDEX OUT OF BOUNDS"
	BadType          = "BAD TYPE"
)

// IsSentinel reports whether s is one of the failure sentinels.
func IsSentinel(s string) bool {
	switch s {
	case UnknownNI, EmptyList, IndexOutOfBounds, BadType:
		return true
	}
	return false
}

// Scheme is an address family.
type Scheme int

const (
	IPv4 Scheme = iota
	IPv6
)

// Scope classifies an address. The three scopes are mutually exclusive.
type Scope int

const (
	Global Scope = iota
	SiteLocal
	LinkLocal
)

func (s Scope) String() string {
	switch s {
	case SiteLocal:
		return "sitelocal"
	case LinkLocal:
		return "linklocal"
	default:
		return "global"
	}
}

// LocalHost names the interface owning the local host's address.
const LocalHost = "localhost"

// Resolver kinds accepted by ResolveType and in ${kind:spec} tokens.
const (
	KindInterface = "ni"
	KindIP        = "ip"
)

var fec0 = net.IPNet{IP: net.ParseIP("fec0::"), Mask: net.CIDRMask(10, 128)}

// ClassifyScope returns the scope of ip. Link-local is 169.254/16 and
// fe80::/10; site-local is RFC 1918, fec0::/10 and fc00::/7; everything else,
// loopback included, is global.
func ClassifyScope(ip net.IP) Scope {
	switch {
	case ip.IsLinkLocalUnicast():
		return LinkLocal
	case ip.IsPrivate(), fec0.Contains(ip):
		return SiteLocal
	default:
		return Global
	}
}

func schemeOf(ip net.IP) Scheme {
	if ip.To4() != nil {
		return IPv4
	}
	return IPv6
}

// Spec is a parsed interface specification.
type Spec struct {
	Interface string
	Scheme    Scheme
	Scope     Scope
	Index     int
}

// ParseSpec parses name[:scheme[:scope[:index]]]. Unknown tokens fall back
// to ipv4, global and 0 with a warning. Interface names may not contain a colon.
func ParseSpec(spec string) Spec {
	parts := strings.Split(strings.TrimSpace(spec), ":")
	s := Spec{Interface: parts[0], Scheme: IPv4, Scope: Global}

	if len(parts) > 1 && parts[1] != "" {
		switch strings.ToLower(parts[1]) {
		case "ipv4":
			s.Scheme = IPv4
		case "ipv6":
			s.Scheme = IPv6
		default:
			logging.Warn("Unknown address scheme, using ipv4", zap.String("spec", spec), zap.String("scheme", parts[1]))
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		switch strings.ToLower(parts[2]) {
		case "global":
			s.Scope = Global
		case "sitelocal":
			s.Scope = SiteLocal
		case "linklocal":
			s.Scope = LinkLocal
		default:
			logging.Warn("Unknown address scope, using global", zap.String("spec", spec), zap.String("scope", parts[2]))
		}
	}
	if len(parts) > 3 && parts[3] != "" {
		idx, err := strconv.Atoi(parts[3])
		if err != nil || idx < 0 {
			logging.Warn("Bad address index, using 0", zap.String("spec", spec), zap.String("index", parts[3]))
		} else {
			s.Index = idx
		}
	}
	return s
}

// Resolver resolves interface specifications against an InterfaceSource.
type Resolver struct {
	source InterfaceSource
}

// NewResolver creates a resolver. A nil source uses the operating system.
func NewResolver(source InterfaceSource) *Resolver {
	if source == nil {
		source = SystemInterfaces{}
	}
	return &Resolver{source: source}
}

// Resolve returns the address selected by spec, or a sentinel.
func (r *Resolver) Resolve(spec string) string {
	s := ParseSpec(spec)

	var (
		ifi *Interface
		err error
	)
	if strings.EqualFold(s.Interface, LocalHost) {
		ifi, err = r.source.LocalHostInterface()
		s.Scope = SiteLocal
	} else {
		ifi, err = r.source.InterfaceByName(s.Interface)
	}
	if err != nil || ifi == nil {
		logging.Debug("Interface lookup failed", zap.String("interface", s.Interface), zap.Error(err))
		return UnknownNI
	}

	matched := Filter(ifi.Addrs, s.Scheme, s.Scope)
	if len(matched) == 0 {
		return EmptyList
	}
	if s.Index >= len(matched) {
		return IndexOutOfBounds
	}
	return matched[s.Index].String()
}

// Filter keeps the addresses of the given family and scope, preserving order.
func Filter(addrs []net.IP, scheme Scheme, scope Scope) []net.IP {
	var out []net.IP
	for _, ip := range addrs {
		if schemeOf(ip) == scheme && ClassifyScope(ip) == scope {
			out = append(out, ip)
		}
	}
	return out
}

// ResolveType dispatches on the resolver kind. "ni" resolves an interface
// specification and "ip" passes a literal address through. Any other kind
// yields BadType without attempting resolution.
func (r *Resolver) ResolveType(kind, spec string) string {
	switch strings.ToLower(kind) {
	case KindInterface:
		return r.Resolve(spec)
	case KindIP:
		if ip := net.ParseIP(strings.TrimSpace(spec)); ip != nil {
			return ip.String()
		}
		return BadType
	default:
		return BadType
	}
}

var tokenPattern = regexp.MustCompile(`\$\{([A-Za-z]+):([^}]*)\}`)

// Expand replaces every ${kind:spec} token in s with its resolution.
// IPv6 results are bracketed so they can be used as URL hosts. Sentinels are
// substituted verbatim.
func (r *Resolver) Expand(s string) string {
	out, _ := r.ExpandStrict(s)
	return out
}

// ErrUnresolved wraps sentinel outcomes for callers that want an error.
var ErrUnresolved = errors.New("endpoint unresolved")

// ExpandStrict is Expand but fails when any token resolved to a sentinel.
func (r *Resolver) ExpandStrict(s string) (string, error) {
	var bad string
	out := tokenPattern.ReplaceAllStringFunc(s, func(tok string) string {
		m := tokenPattern.FindStringSubmatch(tok)
		v := r.ResolveType(m[1], m[2])
		if IsSentinel(v) {
			if bad == "" {
				bad = tok + ": " + v
			}
			return v
		}
		if ip := net.ParseIP(v); ip != nil && ip.To4() == nil {
			return "[" + v + "]"
		}
		return v
	})
	if bad != "" {
		return out, &UnresolvedError{Token: bad}
	}
	return out, nil
}

// UnresolvedError reports a token that resolved to a sentinel.
type UnresolvedError struct {
	Token string
}

// Error implements the error interface
func (e *UnresolvedError) Error() string {
	return "cannot resolve " + e.Token
}

// Unwrap returns ErrUnresolved
func (e *UnresolvedError) Unwrap() error { return ErrUnresolved }
