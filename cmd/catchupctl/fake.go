package main

import (
	"context"
	"fmt"
	"time"

	"github.com/eventline-go/catchup/pkg/event"
	"github.com/eventline-go/catchup/pkg/fakeconn"
	"github.com/eventline-go/catchup/pkg/position"
)

// newFakeStreamDriver builds an in-memory fake connection for a single
// stream, seeded with seed events and optionally appending one new event
// every tick while ctx is alive, so --fake demos something live-looking
// without a real event-store server.
func newFakeStreamDriver(ctx context.Context, streamID string, seed int, tick time.Duration) *fakeconn.Driver[position.EventNumber] {
	d := fakeconn.NewDriver[position.EventNumber](
		func(p position.EventNumber) int { return int(p) },
		func(i int) position.EventNumber { return position.EventNumber(i) },
	)
	for i := 0; i < seed; i++ {
		d.Append(event.Event[position.EventNumber]{
			StreamID:  streamID,
			Position:  position.EventNumber(i),
			EventType: "Seeded",
			Data:      []byte(fmt.Sprintf(`{"n":%d}`, i)),
		})
	}
	if tick > 0 {
		go liveAppendStream(ctx, d, streamID, seed, tick)
	}
	return d
}

func liveAppendStream(ctx context.Context, d *fakeconn.Driver[position.EventNumber], streamID string, next int, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Append(event.Event[position.EventNumber]{
				StreamID:  streamID,
				Position:  position.EventNumber(next),
				EventType: "Live",
				Data:      []byte(fmt.Sprintf(`{"n":%d}`, next)),
			})
			next++
		}
	}
}

// newFakeAllDriver builds an in-memory fake connection over the virtual
// all-streams log, analogous to newFakeStreamDriver.
func newFakeAllDriver(ctx context.Context, seed int, tick time.Duration) *fakeconn.Driver[position.Position] {
	d := fakeconn.NewDriver[position.Position](
		func(p position.Position) int { return int(p.Commit) },
		func(i int) position.Position { return position.Position{Commit: int64(i)} },
	)
	for i := 0; i < seed; i++ {
		d.Append(event.Event[position.Position]{
			StreamID:  fmt.Sprintf("stream-%d", i%3),
			Position:  position.Position{Commit: int64(i)},
			EventType: "Seeded",
		})
	}
	if tick > 0 {
		go liveAppendAll(ctx, d, seed, tick)
	}
	return d
}

func liveAppendAll(ctx context.Context, d *fakeconn.Driver[position.Position], next int, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Append(event.Event[position.Position]{
				StreamID:  fmt.Sprintf("stream-%d", next%3),
				Position:  position.Position{Commit: int64(next)},
				EventType: "Live",
			})
			next++
		}
	}
}
