package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	businessflow "github.com/clickwars/clickwars/business_flow"
	"github.com/clickwars/clickwars/config"
	"github.com/clickwars/clickwars/utils"
	ws "github.com/fasthttp/websocket"
)

const flowCallTimeout = 5 * time.Second

// Registry owns every live connection. All registration, dispatch, broadcast,
// liveness, and teardown paths go through it; nothing else touches the
// client map.
type Registry struct {
	flow businessflow.CounterFlow
	cfg  config.WebSocketConfig

	mu      sync.RWMutex
	clients map[string]*Client
}

func NewRegistry(flow businessflow.CounterFlow, cfg config.WebSocketConfig) *Registry {
	return &Registry{
		flow:    flow,
		cfg:     cfg,
		clients: make(map[string]*Client),
	}
}

// Accept registers a freshly upgraded connection, starts its write pump, and
// pushes the initial state: a connection confirmation, the current counters,
// and statistics over the default window.
func (r *Registry) Accept(conn Conn, remoteAddress, userAgent string) *Client {
	client := newClient(conn, remoteAddress, userAgent, r.cfg.SendBufferSize)

	if r.cfg.ReadLimit > 0 {
		conn.SetReadLimit(r.cfg.ReadLimit)
	}
	conn.SetPongHandler(func(string) error {
		client.setAlive(true)
		client.markSeen()
		return nil
	})

	r.mu.Lock()
	r.clients[client.ID] = client
	total := len(r.clients)
	r.mu.Unlock()

	connectionsActive.Set(float64(total))
	connectionsTotal.Inc()

	go client.writePump(r.cfg.WriteTimeout)

	client.enqueue(Envelope{
		Type: KindConnectionConfirmed,
		Data: map[string]string{
			"clientId":    client.ID,
			"connectedAt": client.ConnectedAt.Format(time.RFC3339),
		},
		Timestamp: utils.UTCNowRFC3339(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), flowCallTimeout)
	defer cancel()
	r.pushCounters(ctx, client)
	r.pushStatistics(ctx, client, utils.DefaultTimeRange)

	log.Printf("WebSocket client %s connected from %s (%d active)", client.ID, remoteAddress, total)
	return client
}

// ReadLoop consumes inbound frames until the transport fails, then
// deregisters the client. Runs on the connection's serving goroutine.
func (r *Registry) ReadLoop(client *Client) {
	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			r.Close(client.ID, "transport closed")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), flowCallTimeout)
		r.Dispatch(ctx, client, data)
		cancel()
	}
}

// Dispatch handles one inbound message. Malformed payloads and unrecognized
// kinds produce an error reply; the connection itself stays open.
func (r *Registry) Dispatch(ctx context.Context, client *Client, raw []byte) {
	client.markSeen()

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		client.enqueue(errorEnvelope("invalid message: expected a JSON object with a type field"))
		return
	}

	messagesReceivedTotal.WithLabelValues(kindLabel(env.Type)).Inc()

	switch env.Type {
	case KindPing:
		client.enqueue(pongEnvelope())
	case KindGetCounters:
		r.pushCounters(ctx, client)
	case KindGetStats:
		r.pushStatistics(ctx, client, env.TimeRange)
	case KindSubscribe:
		client.setSubscribed(true)
		client.enqueue(subscriptionEnvelope(true))
	case KindUnsubscribe:
		client.setSubscribed(false)
		client.enqueue(subscriptionEnvelope(false))
	default:
		client.enqueue(errorEnvelope(fmt.Sprintf("unrecognized message type: %q", env.Type)))
	}
}

func (r *Registry) pushCounters(ctx context.Context, client *Client) {
	resp, err := r.flow.GetCurrentCounters(ctx)
	if err != nil {
		log.Printf("WebSocket client %s: counter snapshot failed: %v", client.ID, err)
		client.enqueue(errorEnvelope("failed to read counters"))
		return
	}
	client.enqueue(Envelope{
		Type:      KindCounterUpdate,
		Data:      resp.Counters,
		Timestamp: utils.UTCNowRFC3339(),
	})
}

func (r *Registry) pushStatistics(ctx context.Context, client *Client, timeRange string) {
	resp, err := r.flow.GetStatistics(ctx, timeRange)
	if err != nil {
		log.Printf("WebSocket client %s: statistics query failed: %v", client.ID, err)
		client.enqueue(errorEnvelope("failed to compute statistics"))
		return
	}
	client.enqueue(Envelope{
		Type:      KindStatisticsUpdate,
		Data:      resp,
		TimeRange: resp.TimeRange,
		Timestamp: utils.UTCNowRFC3339(),
	})
}

// Broadcast delivers a message to every subscribed client. Delivery is
// best-effort and per-connection isolated: a slow or dead client drops the
// message without affecting its peers.
func (r *Registry) Broadcast(env Envelope) {
	for _, client := range r.snapshot() {
		if client.Subscribed() {
			client.enqueue(env)
		}
	}
	broadcastsTotal.Inc()
}

// sendAll delivers to every connection regardless of subscription state.
// Used for operational notices such as shutdown.
func (r *Registry) sendAll(env Envelope) {
	for _, client := range r.snapshot() {
		client.enqueue(env)
	}
}

// Close deregisters a client and tears down its transport. Safe to call
// multiple times and from concurrent paths; only the first call acts.
func (r *Registry) Close(id, reason string) {
	r.mu.Lock()
	client, ok := r.clients[id]
	if ok {
		delete(r.clients, id)
	}
	total := len(r.clients)
	r.mu.Unlock()

	if !ok {
		return
	}

	client.shutdown()
	connectionsActive.Set(float64(total))
	log.Printf("WebSocket client %s disconnected: %s (%d active)", id, reason, total)
}

// Count returns the number of registered connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Get returns a registered client by id
func (r *Registry) Get(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[id]
	return client, ok
}

func (r *Registry) snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

// StartLivenessSweep launches the periodic probe loop and returns a stop
// function. Each pass marks every client unconfirmed, sends a ping control
// frame, waits out the grace period, and reaps clients that never ponged.
func (r *Registry) StartLivenessSweep() func() {
	stop := make(chan struct{})

	go func() {
		ticker := time.NewTicker(r.cfg.ProbeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweepOnce(stop)
			case <-stop:
				return
			}
		}
	}()

	log.Printf("WebSocket liveness sweep started (interval %s, grace %s)", r.cfg.ProbeInterval, r.cfg.ProbeGrace)
	return func() { close(stop) }
}

func (r *Registry) sweepOnce(stop <-chan struct{}) {
	probed := make([]*Client, 0)
	for _, client := range r.snapshot() {
		client.setAlive(false)
		deadline := utils.UTCNow().Add(r.cfg.ProbeGrace)
		if err := client.conn.WriteControl(ws.PingMessage, nil, deadline); err != nil {
			r.Close(client.ID, "liveness probe failed")
			livenessReapedTotal.Inc()
			continue
		}
		probed = append(probed, client)
	}

	select {
	case <-time.After(r.cfg.ProbeGrace):
	case <-stop:
		return
	}

	for _, client := range probed {
		if !client.Alive() {
			r.Close(client.ID, "liveness timeout")
			livenessReapedTotal.Inc()
		}
	}
}

// Shutdown notifies every connection that the server is going away, then
// closes them all. Called once during graceful shutdown.
func (r *Registry) Shutdown(message string) {
	r.sendAll(Envelope{
		Type:      KindServerShutdown,
		Message:   message,
		Timestamp: utils.UTCNowRFC3339(),
	})

	// Give the write pumps a moment to flush the notice.
	time.Sleep(100 * time.Millisecond)

	for _, client := range r.snapshot() {
		r.Close(client.ID, "server shutdown")
	}
}

// kindLabel folds arbitrary client-supplied kinds into a bounded label set
// so inbound message metrics stay low-cardinality
func kindLabel(kind string) string {
	switch kind {
	case KindPing, KindGetCounters, KindGetStats, KindSubscribe, KindUnsubscribe:
		return kind
	default:
		return "unknown"
	}
}
