package wire

// EncodeProbe encodes a probe in the given payload type.
func EncodeProbe(p *Probe, t PayloadType) ([]byte, error) {
	switch t {
	case PayloadXML:
		return EncodeProbeXML(p)
	case PayloadJSON:
		return EncodeProbeJSON(p)
	default:
		return nil, &UnsupportedPayloadTypeError{Value: t.String()}
	}
}

// DecodeProbe decodes a probe in the given payload type.
func DecodeProbe(data []byte, t PayloadType) (*Probe, error) {
	switch t {
	case PayloadXML:
		return DecodeProbeXML(data)
	case PayloadJSON:
		return DecodeProbeJSON(data)
	default:
		return nil, &UnsupportedPayloadTypeError{Value: t.String()}
	}
}

// EncodeResponse encodes a response in the given payload type.
func EncodeResponse(r *Response, t PayloadType) ([]byte, error) {
	switch t {
	case PayloadXML:
		return EncodeResponseXML(r)
	case PayloadJSON:
		return EncodeResponseJSON(r)
	default:
		return nil, &UnsupportedPayloadTypeError{Value: t.String()}
	}
}

// DecodeResponse decodes a response in the given payload type.
func DecodeResponse(data []byte, t PayloadType) (*Response, error) {
	switch t {
	case PayloadXML:
		return DecodeResponseXML(data)
	case PayloadJSON:
		return DecodeResponseJSON(data)
	default:
		return nil, &UnsupportedPayloadTypeError{Value: t.String()}
	}
}
