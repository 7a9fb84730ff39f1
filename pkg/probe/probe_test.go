package probe_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventline-go/catchup/pkg/fakeconn"
	"github.com/eventline-go/catchup/pkg/position"
	"github.com/eventline-go/catchup/pkg/probe"
	"github.com/eventline-go/catchup/pkg/wire"
)

func TestAckProbe_SucceedsOnMatchingAck(t *testing.T) {
	conn := fakeconn.New[position.EventNumber](4)
	p := probe.New[position.EventNumber](conn, time.Second)

	go func() {
		req := <-conn.ProbeCalls
		conn.Push(wire.Inbound[position.EventNumber]{
			Kind:  wire.KindProbeAcknowledged,
			Probe: &wire.ProbeAcknowledged{CorrelationID: req.CorrelationID},
		})
	}()

	err := p.Check(context.Background(), "corr-1", conn.Events())
	assert.NoError(t, err)
}

func TestAckProbe_FailsOnFailureReply(t *testing.T) {
	conn := fakeconn.New[position.EventNumber](4)
	p := probe.New[position.EventNumber](conn, time.Second)

	go func() {
		<-conn.ProbeCalls
		conn.Push(wire.Inbound[position.EventNumber]{
			Kind: wire.KindFailure,
			Err:  wire.ErrServerError,
		})
	}()

	err := p.Check(context.Background(), "corr-2", conn.Events())
	require.Error(t, err)
	assert.ErrorIs(t, err, wire.ErrServerError)
}

func TestAckProbe_TimesOutWithNoReply(t *testing.T) {
	conn := fakeconn.New[position.EventNumber](4)
	p := probe.New[position.EventNumber](conn, 20*time.Millisecond)

	err := p.Check(context.Background(), "corr-3", conn.Events())
	require.Error(t, err)
}

func TestAckProbe_FailsWhenConnectionCloses(t *testing.T) {
	conn := fakeconn.New[position.EventNumber](4)
	p := probe.New[position.EventNumber](conn, time.Second)

	go func() {
		<-conn.ProbeCalls
		conn.Close()
	}()

	err := p.Check(context.Background(), "corr-4", conn.Events())
	require.Error(t, err)
}

func TestAckProbe_DefaultTimeoutAppliedWhenZero(t *testing.T) {
	conn := fakeconn.New[position.EventNumber](4)
	p := probe.New[position.EventNumber](conn, 0)

	go func() {
		req := <-conn.ProbeCalls
		conn.Push(wire.Inbound[position.EventNumber]{
			Kind:  wire.KindProbeAcknowledged,
			Probe: &wire.ProbeAcknowledged{CorrelationID: req.CorrelationID},
		})
	}()

	err := p.Check(context.Background(), "corr-5", conn.Events())
	assert.NoError(t, err, "a zero timeout should fall back to probe.DefaultTimeout, not fail immediately")
}
