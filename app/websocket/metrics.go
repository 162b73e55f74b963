package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Number of currently registered WebSocket connections",
	})

	connectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_connections_total",
		Help: "Total number of accepted WebSocket connections",
	})

	messagesReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_messages_received_total",
		Help: "Total inbound WebSocket messages by kind",
	}, []string{"kind"})

	messagesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_messages_sent_total",
		Help: "Total outbound WebSocket messages by kind",
	}, []string{"kind"})

	broadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_broadcasts_total",
		Help: "Total broadcast fan-outs to subscribed clients",
	})

	broadcastErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_broadcast_errors_total",
		Help: "Broadcast attempts abandoned because the counter snapshot failed",
	})

	sendDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_send_drops_total",
		Help: "Messages dropped because a client send buffer was full",
	})

	livenessReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_liveness_reaped_total",
		Help: "Connections closed by the liveness sweep",
	})
)
