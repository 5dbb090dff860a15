// Package metrics exposes prometheus instrumentation for the bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ventaxia_messages_received_total",
		Help: "Decoded inbound messages processed by the coordinator.",
	})

	reconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ventaxia_reconnect_attempts_total",
		Help: "Reconnect attempts made after an unexpected disconnect.",
	})

	commandsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ventaxia_commands_sent_total",
		Help: "Outbound control commands, by command name.",
	}, []string{"command"})

	connected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ventaxia_connected",
		Help: "1 while the device session is up.",
	})
)

func MessageReceived() {
	messagesReceived.Inc()
}

func ReconnectAttempt() {
	reconnectAttempts.Inc()
}

func CommandSent(command string) {
	commandsSent.WithLabelValues(command).Inc()
}

func SetConnected(up bool) {
	if up {
		connected.Set(1)
	} else {
		connected.Set(0)
	}
}
