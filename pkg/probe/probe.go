// Package probe implements a connection readiness round trip: a generic
// "is the connection still responsive?" check, following this codebase's
// pluggable Checker pattern (pkg/health) rather than hard-coding one probe
// strategy into the subscription state machine.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/eventline-go/catchup/pkg/connection"
	"github.com/eventline-go/catchup/pkg/wire"
)

// Checker performs a single readiness check and reports whether the
// connection is responsive. Any error terminates the owning subscription.
type Checker interface {
	Check(ctx context.Context) error
}

// AckProbe sends a zero-payload identify request over the connection port
// and waits for the matching acknowledgement within Timeout.
type AckProbe[P any] struct {
	conn    connection.Port[P]
	timeout time.Duration
}

// DefaultTimeout bounds how long a single readiness round trip may take.
const DefaultTimeout = 5 * time.Second

// New builds an AckProbe against conn. A zero timeout uses DefaultTimeout.
func New[P any](conn connection.Port[P], timeout time.Duration) *AckProbe[P] {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &AckProbe[P]{conn: conn, timeout: timeout}
}

// Check sends a ProbeRequest and blocks until the matching
// ProbeAcknowledged arrives on the connection's inbound channel, the
// request times out, or the channel closes (connection termination).
//
// Any other message read from replies while waiting is discarded.
// pkg/subscription passes the connection's Events() channel directly and
// runs the probe only once, before its mailbox loop starts and before it
// issues any Read or SubscribeTo.
func (p *AckProbe[P]) Check(ctx context.Context, correlationID string, replies <-chan wire.Inbound[P]) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.conn.Probe(ctx, wire.ProbeRequest{CorrelationID: correlationID}); err != nil {
		return fmt.Errorf("probe send failed: %w", err)
	}

	for {
		select {
		case msg, ok := <-replies:
			if !ok {
				return fmt.Errorf("probe failed: connection closed")
			}
			switch msg.Kind {
			case wire.KindProbeAcknowledged:
				if msg.Probe != nil && msg.Probe.CorrelationID != correlationID {
					continue
				}
				return nil
			case wire.KindFailure:
				return fmt.Errorf("probe failed: %w", msg.Err)
			default:
				// Not our reply (no other request should be outstanding
				// during a pre-flight probe); keep waiting for the ack.
				continue
			}
		case <-ctx.Done():
			return fmt.Errorf("probe timed out: %w", ctx.Err())
		}
	}
}
