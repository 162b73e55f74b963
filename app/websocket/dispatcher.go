package websocket

import (
	"context"
	"log"

	businessflow "github.com/clickwars/clickwars/business_flow"
	"github.com/clickwars/clickwars/utils"
)

// Dispatcher bridges counter mutations to the real-time channel. It
// implements businessflow.MutationNotifier and is attached to the flow with
// SetNotifier after both sides exist.
type Dispatcher struct {
	registry *Registry
	flow     businessflow.CounterFlow
}

func NewDispatcher(registry *Registry, flow businessflow.CounterFlow) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		flow:     flow,
	}
}

// NotifyMutation fetches a fresh counter snapshot and broadcasts it to every
// subscribed client. The snapshot is read after the mutation committed, so a
// burst of concurrent mutations may coalesce into equal broadcasts; clients
// always converge on the latest state.
func (d *Dispatcher) NotifyMutation() {
	if d.registry.Count() == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flowCallTimeout)
	defer cancel()

	resp, err := d.flow.GetCurrentCounters(ctx)
	if err != nil {
		log.Printf("Broadcast dispatcher: counter snapshot failed: %v", err)
		broadcastErrorsTotal.Inc()
		return
	}

	d.registry.Broadcast(Envelope{
		Type:      KindCounterUpdate,
		Data:      resp.Counters,
		Timestamp: utils.UTCNowRFC3339(),
	})
}
