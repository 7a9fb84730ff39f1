/*
Package log provides structured logging for the catch-up subscription
engine using zerolog.

It wraps a single global zerolog.Logger with JSON or console output and a
handful of child-logger constructors used throughout pkg/subscription and
cmd/catchupctl to tag log lines with the stream and subscription instance
they belong to, the same "global logger + With() child loggers" shape this
codebase uses elsewhere.

Initialization:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

Context loggers:

	streamLog := log.WithStream("orders-123")
	subLog := streamLog.With().Str("subscription_id", id).Logger()
	subLog.Debug().Str("state", "CatchingUp").Msg("entering state")

Do not log event payloads or credentials; log positions, stream IDs, and
state transitions only.
*/
package log
