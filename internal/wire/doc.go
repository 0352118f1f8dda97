// Package wire defines the Argo discovery messages and their XML and JSON encodings.
//
// A client broadcasts a Probe; responders answer out-of-band by POSTing a
// Response to each respondTo URL carried inside the probe. Both message types
// are immutable once built: constructors validate their input and decoders
// either return a fully populated value or a typed error.
//
// # Probes
//
//	probe, err := wire.NewProbe(
//	    wire.WithRespondTo("lan", "http://10.0.0.5:4005/response"),
//	    wire.WithServiceContractIDs("urn:example:printer"),
//	    wire.WithPayloadType(wire.PayloadJSON),
//	)
//
// A probe with no contract or instance ids is naked and matches every
// service a responder knows about. HopLimit is the multicast TTL of the
// probe datagram; it has nothing to do with Service.TTLMinutes.
//
// # Encodings
//
// Probe XML:
//
//	<probe id="urn:uuid:..." contractID="urn:argo:probe:v1" hopLimit="255">
//	  <respondToPayloadType>XML</respondToPayloadType>
//	  <ra><respondTo label="lan">http://10.0.0.5:4005/response</respondTo></ra>
//	  <scids><serviceContractID>urn:example:printer</serviceContractID></scids>
//	  <siids></siids>
//	</probe>
//
// Response JSON:
//
//	{"responseID": "...", "probeID": "...", "cache": [{"id": "...", ...}]}
//
// The ra, scids and siids groups are always written, so a naked probe and a
// populated one differ only in list content. Decoding fails with a *ParseError
// when a required element is absent.
package wire
