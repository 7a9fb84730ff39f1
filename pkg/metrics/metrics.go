// Package metrics exposes Prometheus instrumentation for the subscription
// engine, adapted from this codebase's cluster-wide metrics package: one
// package-level var block of collectors, registered in init(), plus a small
// Timer helper for histogram observations.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsDeliveredTotal counts events handed to consumer.Sink.OnNext, by
	// subscription kind ("stream" or "all").
	EventsDeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catchup_events_delivered_total",
			Help: "Total number of events delivered to subscription consumers",
		},
		[]string{"kind"},
	)

	// EventsDroppedTotal counts events that failed the monotone gate filter
	// (position <= last), by subscription kind and origin.
	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catchup_events_dropped_total",
			Help: "Total number of events dropped by the monotone delivery gate",
		},
		[]string{"kind", "origin"},
	)

	// CatchUpDuration measures time spent in the CatchingUp state, from
	// subscribe confirmation to the meeting condition.
	CatchUpDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catchup_catch_up_duration_seconds",
			Help:    "Time spent reconciling historical reads with live push before reaching Subscribed",
			Buckets: prometheus.DefBuckets,
		},
	)

	// BackpressureStalls counts transitions into Unsubscribing caused by
	// exhausted consumer demand.
	BackpressureStalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catchup_backpressure_stalls_total",
			Help: "Total number of times a subscription paused due to exhausted consumer demand",
		},
		[]string{"kind"},
	)

	// ActiveSubscriptions tracks how many subscriptions are currently running.
	ActiveSubscriptions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catchup_active_subscriptions",
			Help: "Number of subscriptions currently in a non-terminal state",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(EventsDeliveredTotal)
	prometheus.MustRegister(EventsDroppedTotal)
	prometheus.MustRegister(CatchUpDuration)
	prometheus.MustRegister(BackpressureStalls)
	prometheus.MustRegister(ActiveSubscriptions)
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
