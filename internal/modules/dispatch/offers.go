package dispatch

import (
	"errors"
	"sync"

	"dispatch/internal/types"
)

// ErrNoActiveOffer is returned for a response that matches no outstanding
// offer: the offer timed out, the order moved on, or the responding courier
// was never offered the order. Race-lost responses land here.
var ErrNoActiveOffer = errors.New("no active offer for this order and courier")

type offerResponse struct {
	courierID types.ID
	accepted  bool
}

// openOffer is the rendezvous between one offer iteration of the
// orchestrator and the courier's accept/decline signal. The channel is
// buffered so a response never blocks the caller; duplicates are dropped.
type openOffer struct {
	courierID types.ID
	ch        chan offerResponse
}

// offerRegistry tracks the single outstanding offer per order.
type offerRegistry struct {
	mu   sync.Mutex
	open map[types.ID]*openOffer
}

func newOfferRegistry() *offerRegistry {
	return &offerRegistry{open: make(map[types.ID]*openOffer)}
}

// put claims the order's offer slot. ok=false means another negotiation
// already holds it; per-order negotiation is single-threaded.
func (r *offerRegistry) put(orderID, courierID types.ID) (*openOffer, bool) {
	o := &openOffer{courierID: courierID, ch: make(chan offerResponse, 1)}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.open[orderID]; exists {
		return nil, false
	}
	r.open[orderID] = o
	return o, true
}

// remove clears the registry entry, but only if it still belongs to the
// given offer; a newer offer for the same order is left untouched.
func (r *offerRegistry) remove(orderID types.ID, o *openOffer) {
	r.mu.Lock()
	if cur, ok := r.open[orderID]; ok && cur == o {
		delete(r.open, orderID)
	}
	r.mu.Unlock()
}

func (r *offerRegistry) respond(orderID, courierID types.ID, accepted bool) error {
	r.mu.Lock()
	o, ok := r.open[orderID]
	r.mu.Unlock()

	if !ok || o.courierID != courierID {
		return ErrNoActiveOffer
	}
	select {
	case o.ch <- offerResponse{courierID: courierID, accepted: accepted}:
		// The offer is settled the moment a response lands; later responses
		// must not slip into the drained buffer.
		r.mu.Lock()
		if cur, ok := r.open[orderID]; ok && cur == o {
			delete(r.open, orderID)
		}
		r.mu.Unlock()
		return nil
	default:
		// A response is already buffered; this one is a duplicate.
		return ErrNoActiveOffer
	}
}
