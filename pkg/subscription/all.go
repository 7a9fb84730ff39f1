package subscription

import (
	"github.com/eventline-go/catchup/pkg/connection"
	"github.com/eventline-go/catchup/pkg/consumer"
	"github.com/eventline-go/catchup/pkg/position"
)

// NewAllSubscription builds a catch-up subscription over the virtual
// all-streams log, positions addressed by a commit/prepare Position. Call
// Run to start it.
func NewAllSubscription(
	conn connection.Port[position.Position],
	sink consumer.Sink[position.Position],
	start Start[position.Position],
	opts ...Option[position.Position],
) *Subscription[position.Position] {
	cfg := newConfig("", "all", start, opts...)
	return newSubscription[position.Position](conn, sink, cfg)
}
