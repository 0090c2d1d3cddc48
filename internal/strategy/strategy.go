// Package strategy implements the pluggable backend-selection algorithms.
package strategy

import (
	"strings"

	"github.com/vkgw/vk-gateway/internal/domain"
	"github.com/vkgw/vk-gateway/pkg/logger"
)

// Strategy selects one backend per request from the healthy candidate set.
// Select must be a bounded in-memory operation: it runs on the hot path of
// every request. Candidates arrive pre-filtered to healthy backends; Select
// returns nil when the candidate set is empty. Release is invoked exactly once
// per successful Select, on every exit path of the proxied request.
type Strategy interface {
	Select(candidates []domain.Backend) *domain.Backend
	Release(backend domain.Backend)
	Name() string
}

// Forgetter is implemented by strategies that keep per-backend bookkeeping
// which must be dropped when a backend disappears from the registry.
type Forgetter interface {
	Forget(serverID string)
}

// New maps a configured strategy name to a concrete instance. Matching is
// case-insensitive; unrecognized or empty names fall back to round robin.
// Strategy choice is a startup-time decision only.
func New(name string, providerWeights map[string]int, log *logger.Logger) Strategy {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "round-robin", "roundrobin":
		return NewRoundRobin()
	case "least-connections", "leastconnections":
		return NewLeastConnections()
	case "random":
		return NewRandom()
	case "weighted-round-robin", "weightedroundrobin":
		return NewWeightedRoundRobin(providerWeights)
	default:
		if log != nil {
			log.Warnf("Unknown load balancer strategy %q, defaulting to round-robin", name)
		}
		return NewRoundRobin()
	}
}
