// Package marketdata polls every venue for prices on a fixed cadence and
// keeps the latest snapshot per (venue, pair).
package marketdata

import (
	"sort"
	"sync"
	"time"

	"github.com/drongunkam-dotcom/arb-bot/internal/types"
)

type snapKey struct {
	venue types.VenueID
	pair  types.Pair
}

// Store is the concurrent snapshot cache. Writers are the poll workers,
// readers are detection and the API layer.
type Store struct {
	mu    sync.RWMutex
	snaps map[snapKey]types.PriceSnapshot
}

func NewStore() *Store {
	return &Store{snaps: make(map[snapKey]types.PriceSnapshot)}
}

// Update replaces the (venue, pair) entry. Snapshots never move backwards:
// an older ObservedAt than the stored one is dropped and reported false.
func (s *Store) Update(snap types.PriceSnapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := snapKey{venue: snap.Venue, pair: snap.Pair}
	if cur, ok := s.snaps[k]; ok && snap.ObservedAt.Before(cur.ObservedAt) {
		return false
	}
	s.snaps[k] = snap
	return true
}

// Fresh returns every snapshot for pair younger than maxAge, ordered by
// venue id so downstream ranking sees a stable input.
func (s *Store) Fresh(pair types.Pair, now time.Time, maxAge time.Duration) []types.PriceSnapshot {
	s.mu.RLock()
	var out []types.PriceSnapshot
	for k, snap := range s.snaps {
		if k.pair == pair && now.Sub(snap.ObservedAt) <= maxAge {
			out = append(out, snap)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Venue < out[j].Venue })
	return out
}

// All returns every stored snapshot, ordered by pair then venue.
func (s *Store) All() []types.PriceSnapshot {
	s.mu.RLock()
	out := make([]types.PriceSnapshot, 0, len(s.snaps))
	for _, snap := range s.snaps {
		out = append(out, snap)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Pair != out[j].Pair {
			return out[i].Pair.String() < out[j].Pair.String()
		}
		return out[i].Venue < out[j].Venue
	})
	return out
}
