package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/eventline-go/catchup/pkg/consumer"
	"github.com/eventline-go/catchup/pkg/event"
	"github.com/eventline-go/catchup/pkg/position"
)

// stdoutSink prints every delivered event to stdout and logs terminal
// transitions, a minimal illustrative consumer.Sink[P] implementation. It
// signals completion on done once OnComplete or OnError fires.
type stdoutSink[P position.P[P]] struct {
	logger zerolog.Logger
	done   chan struct{}
}

func newStdoutSink[P position.P[P]](logger zerolog.Logger) *stdoutSink[P] {
	return &stdoutSink[P]{logger: logger, done: make(chan struct{})}
}

func (s *stdoutSink[P]) OnNext(e event.Event[P]) {
	fmt.Printf("%-24s %-20s %s\n", e.Position, e.EventType, e.StreamID)
}

func (s *stdoutSink[P]) OnLiveProcessingStarted() {
	s.logger.Info().Msg("caught up: now delivering live events")
}

func (s *stdoutSink[P]) OnDropped(reason consumer.DropReason) {
	s.logger.Warn().Stringer("reason", reason).Msg("subscription dropped")
}

func (s *stdoutSink[P]) OnComplete() {
	s.logger.Info().Msg("subscription complete")
	close(s.done)
}

func (s *stdoutSink[P]) OnError(err error) {
	s.logger.Error().Err(err).Msg("subscription failed")
	close(s.done)
}

func (s *stdoutSink[P]) Done() <-chan struct{} { return s.done }
