package detector

import (
	"sort"
	"sync"
	"time"

	"github.com/drongunkam-dotcom/arb-bot/internal/types"
)

// Book holds the most recent ranking per pair for the API layer. Each
// polling cycle replaces a pair's entry wholesale.
type Book struct {
	mu        sync.RWMutex
	byPair    map[types.Pair][]types.Opportunity
	updatedAt time.Time
}

func NewBook() *Book {
	return &Book{byPair: make(map[types.Pair][]types.Opportunity)}
}

func (b *Book) Set(pair types.Pair, opps []types.Opportunity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byPair[pair] = opps
	b.updatedAt = time.Now()
}

// List merges all pairs' rankings, best net profit first, optionally
// filtered by a minimum profit and truncated to limit. limit <= 0 means
// no truncation.
func (b *Book) List(limit int, minProfit float64) []types.Opportunity {
	b.mu.RLock()
	var out []types.Opportunity
	for _, opps := range b.byPair {
		for _, o := range opps {
			if o.NetProfitPercent >= minProfit {
				out = append(out, o)
			}
		}
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].NetProfitPercent != out[j].NetProfitPercent {
			return out[i].NetProfitPercent > out[j].NetProfitPercent
		}
		if out[i].Pair.String() != out[j].Pair.String() {
			return out[i].Pair.String() < out[j].Pair.String()
		}
		if out[i].FromVenue != out[j].FromVenue {
			return out[i].FromVenue < out[j].FromVenue
		}
		return out[i].ToVenue < out[j].ToVenue
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (b *Book) UpdatedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updatedAt
}
