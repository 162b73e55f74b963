// Package websocket implements the real-time channel: a registry of live
// client connections, per-connection message dispatch, a periodic liveness
// sweep, and best-effort broadcast of counter updates.
package websocket

import (
	"github.com/clickwars/clickwars/utils"
)

// Client-to-server message kinds
const (
	KindPing        = "ping"
	KindGetCounters = "get_counters"
	KindGetStats    = "get_stats"
	KindSubscribe   = "subscribe_updates"
	KindUnsubscribe = "unsubscribe_updates"
)

// Server-to-client message kinds
const (
	KindConnectionConfirmed   = "connection_confirmed"
	KindPong                  = "pong"
	KindCounterUpdate         = "counter_update"
	KindStatisticsUpdate      = "statistics_update"
	KindSubscriptionConfirmed = "subscription_confirmed"
	KindError                 = "error"
	KindServerShutdown        = "server_shutdown"
)

// Envelope is the bidirectional message frame. Unknown inbound kinds are
// answered with an error envelope naming the kind; they never close the
// connection, so version skew between client and server stays survivable.
type Envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	TimeRange string `json:"timeRange,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
}

func errorEnvelope(message string) Envelope {
	return Envelope{
		Type:      KindError,
		Error:     message,
		Timestamp: utils.UTCNowRFC3339(),
	}
}

func pongEnvelope() Envelope {
	return Envelope{
		Type:      KindPong,
		Timestamp: utils.UTCNowRFC3339(),
	}
}

func subscriptionEnvelope(subscribed bool) Envelope {
	return Envelope{
		Type:      KindSubscriptionConfirmed,
		Data:      map[string]bool{"subscribed": subscribed},
		Timestamp: utils.UTCNowRFC3339(),
	}
}
