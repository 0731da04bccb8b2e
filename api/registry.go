/*
registry.go - Live-order registry

PURPOSE:
  Lifecycle endpoints need the stateful Order value, not its persisted
  snapshot. The registry holds the live order per correlation id; a
  recalculation or an annulment replaces the entry, since at most one
  order of a correlation is ever active.

  Orders do not survive a restart. History always does, through the
  revision store; a restarted service answers queries from the store and
  requires a fresh computation before further lifecycle events.

SEE ALSO:
  - handlers.go: the only consumer
*/
package api

import (
	"sync"

	"github.com/google/uuid"

	"github.com/warp/sickpay-engine/disbursement"
)

// Registry maps correlation ids to their live order.
type Registry struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*disbursement.Order
}

func NewRegistry() *Registry {
	return &Registry{orders: make(map[uuid.UUID]*disbursement.Order)}
}

// Put installs the order as the live one for its correlation id,
// replacing any predecessor.
func (r *Registry) Put(o *disbursement.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.CorrelationID] = o
}

// Get returns the live order, or nil.
func (r *Registry) Get(correlationID uuid.UUID) *disbursement.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orders[correlationID]
}
