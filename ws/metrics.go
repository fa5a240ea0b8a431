package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatd",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Number of open websocket connections.",
	})

	messagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatd",
		Subsystem: "ws",
		Name:      "messages_sent_total",
		Help:      "Messages durably persisted via send_message.",
	})

	receiptsPushed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatd",
		Subsystem: "ws",
		Name:      "read_receipts_pushed_total",
		Help:      "Read receipts delivered live to online senders.",
	})

	pushesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatd",
		Subsystem: "ws",
		Name:      "pushes_dropped_total",
		Help:      "Live pushes dropped because the target went offline between fan-out and write.",
	})
)
