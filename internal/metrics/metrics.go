package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesSent counts accepted private messages by scheme.
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hushwire_messages_sent_total",
		Help: "Number of private messages accepted and persisted.",
	}, []string{"scheme"})

	// MessagesDestroyed counts destroy transitions by trigger.
	MessagesDestroyed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hushwire_messages_destroyed_total",
		Help: "Number of message payloads destroyed.",
	}, []string{"trigger"})

	// ActiveConnections tracks currently open chat websocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hushwire_ws_connections",
		Help: "Number of open chat websocket connections.",
	})
)

// Destroy trigger labels.
const (
	TriggerRead  = "read"
	TriggerSweep = "sweep"
)
