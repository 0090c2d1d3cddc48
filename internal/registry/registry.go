// Package registry holds the in-process set of known backends and their live
// health state, shared between the health monitor and every request-handling
// goroutine.
package registry

import (
	"sort"
	"sync"

	"github.com/vkgw/vk-gateway/internal/domain"
)

// DefaultFailureThreshold is the number of consecutive probe failures after
// which a backend is marked unhealthy.
const DefaultFailureThreshold = 3

// Registry is the authoritative in-memory backend set. Reads are frequent
// (every request) and cheap; mutations happen only on the health-monitor
// cadence and on directory refresh, so a readers-writer lock at snapshot
// granularity is enough to keep updates atomic for concurrent readers.
type Registry struct {
	mu        sync.RWMutex
	backends  map[string]*domain.Backend
	threshold int
}

// New creates an empty registry with the given consecutive-failure threshold.
// A non-positive threshold falls back to DefaultFailureThreshold.
func New(failureThreshold int) *Registry {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	return &Registry{
		backends:  make(map[string]*domain.Backend),
		threshold: failureThreshold,
	}
}

// Snapshot returns value copies of all backends, ordered by server ID. The
// stable order gives strategies a deterministic candidate sequence.
func (r *Registry) Snapshot() []domain.Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]domain.Backend, 0, len(r.backends))
	for _, backend := range r.backends {
		snapshot = append(snapshot, *backend)
	}
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].ServerID < snapshot[j].ServerID
	})
	return snapshot
}

// HealthySubset returns the snapshot filtered to healthy backends.
func (r *Registry) HealthySubset() []domain.Backend {
	snapshot := r.Snapshot()
	healthy := snapshot[:0]
	for _, backend := range snapshot {
		if backend.Healthy {
			healthy = append(healthy, backend)
		}
	}
	return healthy
}

// Get returns a copy of the backend with the given server ID.
func (r *Registry) Get(serverID string) (domain.Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	backend, ok := r.backends[serverID]
	if !ok {
		return domain.Backend{}, false
	}
	return *backend, true
}

// Len returns the number of registered backends.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backends)
}

// Refresh replaces the directory-sourced fields of every backend with the
// given records. Backends already registered keep their health state; new
// backends start healthy with zero failures; backends absent from the new set
// are removed. The removed server IDs are returned so strategy bookkeeping
// (least-connections counters) can be pruned.
func (r *Registry) Refresh(records []domain.Record) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		seen[rec.ServerID] = struct{}{}
		if existing, ok := r.backends[rec.ServerID]; ok {
			existing.Record = rec
			continue
		}
		r.backends[rec.ServerID] = &domain.Backend{Record: rec, Healthy: true}
	}

	var removed []string
	for id := range r.backends {
		if _, ok := seen[id]; !ok {
			removed = append(removed, id)
			delete(r.backends, id)
		}
	}
	sort.Strings(removed)
	return removed
}

// MarkResult records one probe outcome. A success resets the failure counter
// and restores health immediately; a failure increments the counter and flips
// the backend to unhealthy once the counter reaches the threshold. Both fields
// change under the same critical section so readers never observe a
// half-applied update.
func (r *Registry) MarkResult(serverID string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	backend, ok := r.backends[serverID]
	if !ok {
		return
	}

	if success {
		backend.ConsecutiveFailures = 0
		backend.Healthy = true
		return
	}

	backend.ConsecutiveFailures++
	if backend.ConsecutiveFailures >= r.threshold {
		backend.Healthy = false
	}
}
