package replication

import (
	"sync"

	"github.com/tessera-db/tessera/lib/engine"
	"github.com/tessera-db/tessera/lib/storage"
	"github.com/tessera-db/tessera/rpc/common"
)

var Logger = common.GetLogger("replication")

// --------------------------------------------------------------------------
// Hub
// --------------------------------------------------------------------------

// Hub fans committed batches out to subscriptions. It is installed on the
// engine via Observer(); commits on keyspaces nobody subscribed to cost one
// map lookup.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	nextID uint64
}

// subscriptionBuffer is the number of pending updates a subscription may
// fall behind before it is dropped.
const subscriptionBuffer = 256

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Observer returns the commit observer to install on the engine.
func (h *Hub) Observer() engine.CommitObserver {
	return func(ksID uint32, ops []storage.BatchOp) {
		h.publish(ksID, ops)
	}
}

// publish serializes the batch once and hands it to every subscription.
// A subscription that cannot keep up is closed rather than blocking the
// committing transaction.
func (h *Hub) publish(ksID uint32, ops []storage.BatchOp) {
	h.mu.Lock()
	if len(h.subs) == 0 {
		h.mu.Unlock()
		return
	}
	payload := EncodeUpdate(nil, ksID, ops)
	var lagged []*Subscription
	for sub := range h.subs {
		select {
		case sub.updates <- payload:
		default:
			lagged = append(lagged, sub)
		}
	}
	for _, sub := range lagged {
		delete(h.subs, sub)
		close(sub.updates)
	}
	h.mu.Unlock()

	for _, sub := range lagged {
		Logger.Warningf("dropped lagging subscription %d", sub.id)
	}
}

// Subscribe registers a new subscription receiving every future commit.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{
		hub:     h,
		id:      h.nextID,
		updates: make(chan []byte, subscriptionBuffer),
	}
	h.subs[sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.updates)
	}
}

// --------------------------------------------------------------------------
// Subscription
// --------------------------------------------------------------------------

// Subscription is one consumer's queue of update payloads. Updates() is
// closed when the subscription ends, either by Close or because the
// consumer lagged too far behind.
type Subscription struct {
	hub *Hub
	id  uint64

	updates chan []byte
}

// Updates returns the stream of serialized update payloads.
func (s *Subscription) Updates() <-chan []byte { return s.updates }

// Close ends the subscription.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}
