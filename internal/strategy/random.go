package strategy

import (
	"math/rand"

	"github.com/vkgw/vk-gateway/internal/domain"
)

// Random draws uniformly from the candidate set using the process-wide random
// source. It keeps no state.
type Random struct{}

// NewRandom creates a random strategy.
func NewRandom() *Random {
	return &Random{}
}

// Select returns a uniformly chosen candidate, or nil if candidates is empty.
func (s *Random) Select(candidates []domain.Backend) *domain.Backend {
	if len(candidates) == 0 {
		return nil
	}
	selected := candidates[rand.Intn(len(candidates))]
	return &selected
}

// Release is a no-op.
func (s *Random) Release(domain.Backend) {}

// Name returns the strategy label used on the stats endpoint.
func (s *Random) Name() string {
	return "Random"
}
