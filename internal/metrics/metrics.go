// Package metrics exposes prometheus collectors for the signaling server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "callbox_connections_live",
			Help: "Live signaling connections, joined or not",
		},
	)

	UsersOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "callbox_users_online",
			Help: "Identities currently in the presence set",
		},
	)

	CallsInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "callbox_calls_in_progress",
			Help: "Non-terminal call sessions by state",
		},
		[]string{"state"}, // "ringing" or "active"
	)

	CallEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callbox_call_events_total",
			Help: "Call state machine outcomes",
		},
		[]string{"outcome"},
	)

	PresenceBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "callbox_presence_broadcasts_total",
			Help: "Full presence snapshots broadcast",
		},
	)

	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callbox_frames_dropped_total",
			Help: "Outbound frames that could not be queued",
		},
		[]string{"reason"}, // "backpressure" or "closed"
	)

	SignalMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callbox_signal_messages_total",
			Help: "Inbound signaling messages by type",
		},
		[]string{"type"},
	)

	PresenceMirrorEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callbox_presence_mirror_events_total",
			Help: "Presence changes handled by the redis mirror",
		},
		[]string{"result"}, // "applied", "dropped" or "error"
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "callbox_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path", "status"},
	)
)

// Call outcomes recorded in CallEvents.
const (
	OutcomeRequested   = "requested"
	OutcomeUnreachable = "unreachable"
	OutcomeBusy        = "busy"
	OutcomeCallerBusy  = "caller_busy"
	OutcomeAnswered    = "answered"
	OutcomeRejected    = "rejected"
	OutcomeEnded       = "ended"
	OutcomeDropped     = "dropped_on_disconnect"
	OutcomeStale       = "stale"
)
