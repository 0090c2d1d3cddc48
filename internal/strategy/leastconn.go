package strategy

import (
	"sync"

	"github.com/vkgw/vk-gateway/internal/domain"
)

// LeastConnections routes each request to the candidate with the fewest
// in-flight requests, tracked in a counter table keyed by server ID. It is the
// only strategy whose Release has an observable effect: the select/release
// pair brackets the lifetime of each proxied request.
type LeastConnections struct {
	mu     sync.Mutex
	active map[string]int
}

// NewLeastConnections creates a least-connections strategy with an empty
// counter table.
func NewLeastConnections() *LeastConnections {
	return &LeastConnections{active: make(map[string]int)}
}

// Select returns the candidate with the minimum active-connection count,
// breaking ties by first occurrence in the candidate order, and increments the
// winner's counter before returning. Unseen server IDs count as zero.
func (s *LeastConnections) Select(candidates []domain.Backend) *domain.Backend {
	if len(candidates) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	best := 0
	for i := 1; i < len(candidates); i++ {
		if s.active[candidates[i].ServerID] < s.active[candidates[best].ServerID] {
			best = i
		}
	}

	selected := candidates[best]
	s.active[selected.ServerID]++
	return &selected
}

// Release decrements the backend's counter, flooring at zero so an unexpected
// extra release cannot drive the count negative.
func (s *LeastConnections) Release(backend domain.Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := s.active[backend.ServerID]; n > 0 {
		s.active[backend.ServerID] = n - 1
	}
}

// Forget drops the counter for a backend removed from the registry.
func (s *LeastConnections) Forget(serverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, serverID)
}

// Connections reports the current counter for a server ID.
func (s *LeastConnections) Connections(serverID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[serverID]
}

// Tracked reports whether a counter exists for the server ID.
func (s *LeastConnections) Tracked(serverID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[serverID]
	return ok
}

// Name returns the strategy label used on the stats endpoint.
func (s *LeastConnections) Name() string {
	return "LeastConnections"
}
