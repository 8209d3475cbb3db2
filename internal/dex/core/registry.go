package core

import "github.com/drongunkam-dotcom/arb-bot/internal/types"

// Registry holds the adapters built from config, keyed by venue id.
// It is populated once at startup and read-only afterwards.
type Registry struct {
	adapters map[types.VenueID]Adapter
	order    []types.VenueID
}

func NewRegistry() *Registry {
	return &Registry{adapters: map[types.VenueID]Adapter{}}
}

func (r *Registry) Register(a Adapter) {
	if _, dup := r.adapters[a.Venue()]; !dup {
		r.order = append(r.order, a.Venue())
	}
	r.adapters[a.Venue()] = a
}

func (r *Registry) Get(id types.VenueID) Adapter { return r.adapters[id] }

// All returns adapters in registration order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.adapters[id])
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }
