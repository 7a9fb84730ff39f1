// Package connection defines the outbound side of the connection port the
// subscription state machine talks to. It is the boundary between the core
// and the transport actor that carries framed requests to the event-store
// server; that actor's internals (dialing, retries, reconnection) are
// represented here only by this interface.
package connection

import (
	"context"

	"github.com/eventline-go/catchup/pkg/wire"
)

// Port is everything the subscription state machine needs from the
// transport: four outbound calls, and one inbound channel of replies and
// push notifications. At most one Read and one SubscribeTo are ever
// outstanding per subscription instance; the Port implementation is not
// required to enforce that itself.
type Port[P any] interface {
	// Read issues a paged historical read. The reply arrives on Events() as
	// a wire.KindReadCompleted (or wire.KindFailure) message carrying the
	// same CorrelationID.
	Read(ctx context.Context, req wire.ReadRequest[P]) error

	// SubscribeTo asks the server to start pushing live events. The
	// confirmation arrives on Events() as wire.KindSubscribeCompleted.
	SubscribeTo(ctx context.Context, req wire.SubscribeRequest) error

	// Unsubscribe tears down a confirmed push subscription. The server's
	// acknowledgement arrives on Events() as wire.KindUnsubscribed.
	Unsubscribe(ctx context.Context, req wire.UnsubscribeRequest) error

	// Probe sends the readiness round trip (pkg/probe). The reply arrives on
	// Events() as wire.KindProbeAcknowledged (or KindFailure).
	Probe(ctx context.Context, req wire.ProbeRequest) error

	// Events is the single serialized inbound channel for this connection.
	// It is closed when the transport peer terminates; the subscription
	// state machine treats channel closure as connection termination,
	// surfacing as a single OnComplete.
	Events() <-chan wire.Inbound[P]
}
