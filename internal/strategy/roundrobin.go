package strategy

import (
	"sync/atomic"

	"github.com/vkgw/vk-gateway/internal/domain"
)

// RoundRobin distributes requests in a circular rotation over the candidate
// set. The cursor is taken modulo the current candidate count on every call,
// so the rotation self-corrects when backends are added, removed, or flip
// health between calls.
type RoundRobin struct {
	cursor uint64
}

// NewRoundRobin creates a round-robin strategy.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// Select returns the next backend in rotation, or nil if candidates is empty.
// An empty candidate set leaves the cursor unchanged.
func (s *RoundRobin) Select(candidates []domain.Backend) *domain.Backend {
	if len(candidates) == 0 {
		return nil
	}
	next := atomic.AddUint64(&s.cursor, 1)
	selected := candidates[(next-1)%uint64(len(candidates))]
	return &selected
}

// Release is a no-op; round robin tracks no outstanding load.
func (s *RoundRobin) Release(domain.Backend) {}

// Name returns the strategy label used on the stats endpoint.
func (s *RoundRobin) Name() string {
	return "RoundRobin"
}
