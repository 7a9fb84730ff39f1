package wire_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eventline-go/catchup/pkg/wire"
)

func TestIsRecoverableToEmpty(t *testing.T) {
	assert.True(t, wire.IsRecoverableToEmpty(wire.ErrStreamNotFound))
	assert.True(t, wire.IsRecoverableToEmpty(fmt.Errorf("wrapped: %w", wire.ErrStreamNotFound)))

	assert.False(t, wire.IsRecoverableToEmpty(wire.ErrStreamDeleted))
	assert.False(t, wire.IsRecoverableToEmpty(wire.ErrServerError))
	assert.False(t, wire.IsRecoverableToEmpty(errors.New("unrelated")))
}

func TestInboundKindString(t *testing.T) {
	cases := map[wire.InboundKind]string{
		wire.KindReadCompleted:      "ReadCompleted",
		wire.KindSubscribeCompleted: "SubscribeCompleted",
		wire.KindEventAppeared:      "EventAppeared",
		wire.KindUnsubscribed:       "Unsubscribed",
		wire.KindProbeAcknowledged:  "ProbeAcknowledged",
		wire.KindFailure:            "Failure",
		wire.InboundKind(99):        "Unknown",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}
