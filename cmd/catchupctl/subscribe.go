package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eventline-go/catchup/pkg/connection"
	"github.com/eventline-go/catchup/pkg/log"
	"github.com/eventline-go/catchup/pkg/metrics"
	"github.com/eventline-go/catchup/pkg/position"
	"github.com/eventline-go/catchup/pkg/subscription"
	"github.com/eventline-go/catchup/pkg/wire"
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Run a catch-up subscription against a stream or the all-streams log",
	Long: `subscribe constructs one catch-up subscription and prints every
delivered event to stdout until the subscription completes, fails, or the
process receives an interrupt.

Examples:
  # All-streams, from the beginning, against a fake in-memory log
  catchupctl subscribe --fake --from first

  # A single stream, from event 10 exclusive, against a real event store
  catchupctl subscribe --target eventstore:9898 --stream orders-42 --from 10`,
	RunE: runSubscribe,
}

func init() {
	flags := subscribeCmd.Flags()
	flags.String("target", "localhost:9898", "event-store gRPC address")
	flags.Bool("fake", false, "use an in-memory fake connection instead of dialing --target")
	flags.Int("fake-seed", 20, "number of demo events to seed the fake connection with")
	flags.Bool("fake-live", true, "keep appending a new demo event periodically (only with --fake)")
	flags.String("stream", "", "stream ID to subscribe to; empty subscribes to the all-streams log")
	flags.String("from", "first", `starting position: "first", "last", or an exact position (event number, or commit for all-streams)`)
	flags.Bool("resolve-link-tos", false, "resolve link events to the events they point to")
	flags.Bool("infinite", true, "transition to live push at end-of-stream instead of completing")
	flags.Uint32("batch-size", 500, "historical read page size")
	flags.String("creds-user", "", "username attached to every outbound request")
	flags.String("creds-pass", "", "password attached to every outbound request")
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	target, _ := flags.GetString("target")
	fake, _ := flags.GetBool("fake")
	fakeSeed, _ := flags.GetInt("fake-seed")
	fakeLive, _ := flags.GetBool("fake-live")
	streamID, _ := flags.GetString("stream")
	from, _ := flags.GetString("from")
	resolveLinkTos, _ := flags.GetBool("resolve-link-tos")
	infinite, _ := flags.GetBool("infinite")
	batchSize, _ := flags.GetUint32("batch-size")
	credsUser, _ := flags.GetString("creds-user")
	credsPass, _ := flags.GetString("creds-pass")
	metricsAddr, _ := cmd.InheritedFlags().GetString("metrics-addr")

	serveMetrics(metricsAddr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var creds *wire.Credentials
	if credsUser != "" {
		creds = &wire.Credentials{Username: credsUser, Password: credsPass}
	}

	if streamID == "" {
		return runAllSubscription(ctx, allParams{
			target: target, fake: fake, fakeSeed: fakeSeed, fakeLive: fakeLive,
			from: from, resolveLinkTos: resolveLinkTos, infinite: infinite,
			batchSize: batchSize, creds: creds,
		})
	}
	return runStreamSubscription(ctx, streamParams{
		target: target, fake: fake, fakeSeed: fakeSeed, fakeLive: fakeLive,
		streamID: streamID, from: from, resolveLinkTos: resolveLinkTos, infinite: infinite,
		batchSize: batchSize, creds: creds,
	})
}

type streamParams struct {
	target                   string
	fake, fakeLive           bool
	fakeSeed                 int
	streamID, from           string
	resolveLinkTos, infinite bool
	batchSize                uint32
	creds                    *wire.Credentials
}

type allParams struct {
	target                   string
	fake, fakeLive           bool
	fakeSeed                 int
	from                     string
	resolveLinkTos, infinite bool
	batchSize                uint32
	creds                    *wire.Credentials
}

func parseStreamFrom(from string) (subscription.Start[position.EventNumber], error) {
	switch from {
	case "first", "":
		return subscription.FromBeginning[position.EventNumber](), nil
	case "last":
		return subscription.FromEnd[position.EventNumber](), nil
	default:
		n, err := strconv.ParseUint(from, 10, 64)
		if err != nil {
			return subscription.Start[position.EventNumber]{}, fmt.Errorf("invalid --from %q: %w", from, err)
		}
		return subscription.FromExact(position.EventNumber(n)), nil
	}
}

func parseAllFrom(from string) (subscription.Start[position.Position], error) {
	switch from {
	case "first", "":
		return subscription.FromBeginning[position.Position](), nil
	case "last":
		return subscription.FromEnd[position.Position](), nil
	default:
		n, err := strconv.ParseInt(from, 10, 64)
		if err != nil {
			return subscription.Start[position.Position]{}, fmt.Errorf("invalid --from %q: %w", from, err)
		}
		return subscription.FromExact(position.Position{Commit: n}), nil
	}
}

func runStreamSubscription(ctx context.Context, p streamParams) error {
	start, err := parseStreamFrom(p.from)
	if err != nil {
		return err
	}

	var conn connection.Port[position.EventNumber]
	if p.fake {
		tick := time.Duration(0)
		if p.fakeLive {
			tick = 1500 * time.Millisecond
		}
		conn = newFakeStreamDriver(ctx, p.streamID, p.fakeSeed, tick)
		metrics.RegisterComponent("connection", true, "fake in-memory connection")
	} else {
		c, err := connection.NewGRPCConnection(ctx, p.target, connection.DecodeJSON[position.EventNumber])
		if err != nil {
			return err
		}
		conn = c
	}

	logger := log.WithStream(p.streamID)
	sink := newStdoutSink[position.EventNumber](logger)

	opts := []subscription.Option[position.EventNumber]{
		subscription.WithResolveLinkTos[position.EventNumber](p.resolveLinkTos),
		subscription.WithReadBatchSize[position.EventNumber](p.batchSize),
	}
	if !p.infinite {
		opts = append(opts, subscription.WithFinite[position.EventNumber]())
	}
	if p.creds != nil {
		opts = append(opts, subscription.WithCredentials[position.EventNumber](*p.creds))
	}

	sub := subscription.NewStreamSubscription(conn, sink, p.streamID, start, opts...)
	sub.Run(ctx)
	sub.Request(^uint64(0))

	<-sink.Done()
	return nil
}

func runAllSubscription(ctx context.Context, p allParams) error {
	start, err := parseAllFrom(p.from)
	if err != nil {
		return err
	}

	var conn connection.Port[position.Position]
	if p.fake {
		tick := time.Duration(0)
		if p.fakeLive {
			tick = 1500 * time.Millisecond
		}
		conn = newFakeAllDriver(ctx, p.fakeSeed, tick)
		metrics.RegisterComponent("connection", true, "fake in-memory connection")
	} else {
		c, err := connection.NewGRPCConnection(ctx, p.target, connection.DecodeJSON[position.Position])
		if err != nil {
			return err
		}
		conn = c
	}

	logger := log.WithStream("")
	sink := newStdoutSink[position.Position](logger)

	opts := []subscription.Option[position.Position]{
		subscription.WithResolveLinkTos[position.Position](p.resolveLinkTos),
		subscription.WithReadBatchSize[position.Position](p.batchSize),
	}
	if !p.infinite {
		opts = append(opts, subscription.WithFinite[position.Position]())
	}
	if p.creds != nil {
		opts = append(opts, subscription.WithCredentials[position.Position](*p.creds))
	}

	sub := subscription.NewAllSubscription(conn, sink, start, opts...)
	sub.Run(ctx)
	sub.Request(^uint64(0))

	<-sink.Done()
	return nil
}
