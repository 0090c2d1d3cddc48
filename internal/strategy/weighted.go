package strategy

import (
	"sync"

	"github.com/vkgw/vk-gateway/internal/domain"
)

// DefaultProviderWeights mirrors the production traffic split: supabase
// backends take three shares for every one share a gdrive backend takes.
var DefaultProviderWeights = map[string]int{
	"supabase": 3,
	"gdrive":   1,
}

// WeightedRoundRobin advances a cursor over a weighted cycle of the candidate
// set, where each backend appears once per share of its provider's weight. The
// cycle is recomputed from the current candidates on every call, so changes in
// the set's provider composition between calls cannot leave a stale expansion
// behind.
type WeightedRoundRobin struct {
	mu      sync.Mutex
	cursor  int
	weights map[string]int
}

// NewWeightedRoundRobin creates a weighted round-robin strategy. A nil or
// empty weight table uses DefaultProviderWeights; providers absent from the
// table weigh one.
func NewWeightedRoundRobin(providerWeights map[string]int) *WeightedRoundRobin {
	if len(providerWeights) == 0 {
		providerWeights = DefaultProviderWeights
	}
	return &WeightedRoundRobin{weights: providerWeights}
}

func (s *WeightedRoundRobin) weightOf(provider string) int {
	if w, ok := s.weights[provider]; ok && w > 0 {
		return w
	}
	return 1
}

// Select returns the next backend in the weighted cycle, or nil if candidates
// is empty. The cursor stays put on an empty candidate set.
func (s *WeightedRoundRobin) Select(candidates []domain.Backend) *domain.Backend {
	if len(candidates) == 0 {
		return nil
	}

	indices := make([]int, 0, len(candidates))
	for i, backend := range candidates {
		for n := 0; n < s.weightOf(backend.Provider); n++ {
			indices = append(indices, i)
		}
	}

	s.mu.Lock()
	selected := candidates[indices[s.cursor%len(indices)]]
	s.cursor++
	s.mu.Unlock()
	return &selected
}

// Release is a no-op; the weighted rotation does not track outstanding load.
func (s *WeightedRoundRobin) Release(domain.Backend) {}

// Name returns the strategy label used on the stats endpoint.
func (s *WeightedRoundRobin) Name() string {
	return "WeightedRoundRobin"
}
