package wire

import (
	"mime"
	"strings"
)

// PayloadType selects the encoding of a response (and of a probe on transports
// that honour it).
type PayloadType int

const (
	PayloadXML PayloadType = iota
	PayloadJSON
)

// Content types used on the HTTP callback
const (
	ContentTypeXML  = "application/xml"
	ContentTypeJSON = "application/json"
)

// String returns the wire token for the payload type
func (p PayloadType) String() string {
	switch p {
	case PayloadXML:
		return "XML"
	case PayloadJSON:
		return "JSON"
	default:
		return "UNKNOWN"
	}
}

// ContentType returns the HTTP Content-Type for the payload type
func (p PayloadType) ContentType() string {
	if p == PayloadJSON {
		return ContentTypeJSON
	}
	return ContentTypeXML
}

func (p PayloadType) valid() bool {
	return p == PayloadXML || p == PayloadJSON
}

// ParsePayloadType parses "XML" or "JSON" (case-insensitive).
func ParsePayloadType(s string) (PayloadType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "XML":
		return PayloadXML, nil
	case "JSON":
		return PayloadJSON, nil
	default:
		return 0, &UnsupportedPayloadTypeError{Value: s}
	}
}

// PayloadTypeFromContentType maps an HTTP Content-Type header to a payload type.
func PayloadTypeFromContentType(contentType string) (PayloadType, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return 0, &UnsupportedPayloadTypeError{Value: contentType}
	}
	switch {
	case mediaType == ContentTypeJSON || strings.HasSuffix(mediaType, "+json"):
		return PayloadJSON, nil
	case mediaType == ContentTypeXML || mediaType == "text/xml" || strings.HasSuffix(mediaType, "+xml"):
		return PayloadXML, nil
	default:
		return 0, &UnsupportedPayloadTypeError{Value: contentType}
	}
}

// Consumability tells a client who is expected to use a service.
type Consumability string

const (
	HumanConsumable   Consumability = "HUMAN_CONSUMABLE"
	MachineConsumable Consumability = "MACHINE_CONSUMABLE"
)

// ParseConsumability validates a consumability token.
func ParseConsumability(s string) (Consumability, error) {
	switch c := Consumability(strings.ToUpper(strings.TrimSpace(s))); c {
	case HumanConsumable, MachineConsumable:
		return c, nil
	default:
		return "", &ValidationError{Field: "consumability", Message: "must be HUMAN_CONSUMABLE or MACHINE_CONSUMABLE, got " + s}
	}
}
