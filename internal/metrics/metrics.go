// Package metrics defines the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Telemetry link.
	SamplesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wellsteer",
		Subsystem: "wits",
		Name:      "samples_received_total",
		Help:      "Telemetry samples parsed from the wire",
	})

	PairsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wellsteer",
		Subsystem: "wits",
		Name:      "pairs_skipped_total",
		Help:      "Malformed or unmapped channel=value pairs dropped during parsing",
	})

	ReconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wellsteer",
		Subsystem: "wits",
		Name:      "reconnect_attempts_total",
		Help:      "Automatic reconnect attempts",
	})

	MissedPongs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wellsteer",
		Subsystem: "wits",
		Name:      "missed_pongs_total",
		Help:      "Heartbeat pings that timed out without a pong",
	})

	ConnectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wellsteer",
		Subsystem: "wits",
		Name:      "connection_state",
		Help:      "Current link state (0=disconnected 1=connecting 2=connected 3=receiving 4=reconnecting)",
	})

	// Survey aggregation.
	SurveysRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellsteer",
		Subsystem: "survey",
		Name:      "rejected_total",
		Help:      "Surveys rejected at insertion",
	}, []string{"reason"})

	// Steering engine.
	SnapshotRecomputes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wellsteer",
		Subsystem: "steering",
		Name:      "snapshot_recomputes_total",
		Help:      "Curve snapshot recomputations triggered by upstream changes",
	})

	ActiveOverrides = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wellsteer",
		Subsystem: "steering",
		Name:      "active_overrides",
		Help:      "Snapshot fields currently pinned by a manual override",
	})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wellsteer",
		Subsystem: "ws",
		Name:      "clients",
		Help:      "Currently connected WebSocket clients",
	})
)
