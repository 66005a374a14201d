package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stream labels used by the consumer metrics.
const (
	StreamLifecycle = "lifecycle"
	StreamClicks    = "clicks"
)

// Drop reasons.
const (
	ReasonMalformed = "malformed"
	ReasonNoPayload = "no_payload"
)

var (
	// EventsProcessed counts events successfully projected, per stream.
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_events_processed_total",
		Help: "Events consumed and applied to the read model.",
	}, []string{"stream"})

	// EventsDropped counts events discarded without a projection, per
	// stream and reason.
	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_events_dropped_total",
		Help: "Events discarded as malformed or empty.",
	}, []string{"stream", "reason"})

	// EventsFailed counts events that hit a storage error and were left
	// for broker redelivery.
	EventsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_events_failed_total",
		Help: "Events returned to the stream after a storage failure.",
	}, []string{"stream"})
)
