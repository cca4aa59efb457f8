// Package metrics provides Prometheus metrics for the chat service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks the number of open websocket connections.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_active_connections",
			Help: "Number of currently open websocket connections",
		},
	)

	// ConversationsOpened counts openOrCreate calls by outcome.
	ConversationsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_conversations_opened_total",
			Help: "Total number of open conversation requests",
		},
		[]string{"result"}, // created | existing
	)

	// MessagesSent counts send attempts by outcome.
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Total number of send message attempts",
		},
		[]string{"result"}, // ok | error kind
	)

	// Notifications counts frames handed to live connections.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_notifications_total",
			Help: "Total number of realtime events delivered to connections",
		},
		[]string{"event"},
	)

	// StoreRetries counts retried store operations.
	StoreRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_store_retries_total",
			Help: "Total number of retried store operations",
		},
		[]string{"operation"},
	)

	// SendDuration tracks end-to-end send latency.
	SendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_send_duration_seconds",
			Help:    "Duration of the send message path",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)
)

// RecordConnectionOpened increments the connection gauge.
func RecordConnectionOpened() {
	ActiveConnections.Inc()
}

// RecordConnectionClosed decrements the connection gauge.
func RecordConnectionClosed() {
	ActiveConnections.Dec()
}

// RecordSend records one send attempt.
func RecordSend(result string, started time.Time) {
	MessagesSent.WithLabelValues(result).Inc()
	SendDuration.Observe(time.Since(started).Seconds())
}

// RecordNotified adds delivered frames for an event type.
func RecordNotified(event string, delivered int) {
	if delivered > 0 {
		Notifications.WithLabelValues(event).Add(float64(delivered))
	}
}
