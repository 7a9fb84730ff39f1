package connection

import (
	"encoding/json"
	"errors"

	"github.com/eventline-go/catchup/pkg/wire"
)

// DecodeJSON turns a Frame carrying a JSON-encoded payload into a
// wire.Inbound[P], dispatching on Frame.Kind the same way a generated
// protobuf client would dispatch on a oneof tag. It is the decode function
// cmd/catchupctl passes to NewGRPCConnection, which has no default; a
// deployment with real .proto-generated types would supply its own decode.
func DecodeJSON[P any](f *Frame) (wire.Inbound[P], bool) {
	switch f.Kind {
	case wire.KindReadCompleted.String():
		var body wire.ReadCompleted[P]
		if err := json.Unmarshal(f.Payload, &body); err != nil {
			return wire.Inbound[P]{}, false
		}
		return wire.Inbound[P]{Kind: wire.KindReadCompleted, CorrelationID: f.CorrelationID, Read: &body}, true

	case wire.KindSubscribeCompleted.String():
		var body wire.SubscribeCompleted[P]
		if err := json.Unmarshal(f.Payload, &body); err != nil {
			return wire.Inbound[P]{}, false
		}
		return wire.Inbound[P]{Kind: wire.KindSubscribeCompleted, CorrelationID: f.CorrelationID, Subscribe: &body}, true

	case wire.KindEventAppeared.String():
		var body wire.EventAppeared[P]
		if err := json.Unmarshal(f.Payload, &body); err != nil {
			return wire.Inbound[P]{}, false
		}
		return wire.Inbound[P]{Kind: wire.KindEventAppeared, CorrelationID: f.CorrelationID, Appeared: &body}, true

	case wire.KindUnsubscribed.String():
		var body wire.Unsubscribed
		if err := json.Unmarshal(f.Payload, &body); err != nil {
			return wire.Inbound[P]{}, false
		}
		return wire.Inbound[P]{Kind: wire.KindUnsubscribed, CorrelationID: f.CorrelationID, Unsub: &body}, true

	case wire.KindProbeAcknowledged.String():
		var body wire.ProbeAcknowledged
		if err := json.Unmarshal(f.Payload, &body); err != nil {
			return wire.Inbound[P]{}, false
		}
		return wire.Inbound[P]{Kind: wire.KindProbeAcknowledged, CorrelationID: f.CorrelationID, Probe: &body}, true

	case wire.KindFailure.String():
		var body struct{ Message string }
		if err := json.Unmarshal(f.Payload, &body); err != nil {
			return wire.Inbound[P]{}, false
		}
		return wire.Inbound[P]{Kind: wire.KindFailure, CorrelationID: f.CorrelationID, Err: errors.New(body.Message)}, true

	default:
		return wire.Inbound[P]{}, false
	}
}
