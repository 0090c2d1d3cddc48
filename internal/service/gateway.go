// Package service composes the registry, the active strategy, and the backend
// directory into the selection contract consumed by the proxy layer.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vkgw/vk-gateway/internal/directory"
	"github.com/vkgw/vk-gateway/internal/domain"
	"github.com/vkgw/vk-gateway/internal/gwerrors"
	"github.com/vkgw/vk-gateway/internal/registry"
	"github.com/vkgw/vk-gateway/internal/strategy"
	"github.com/vkgw/vk-gateway/pkg/logger"
)

// Gateway owns the registry and the single strategy instance for the lifetime
// of the process. All request-handling goroutines share it by reference.
type Gateway struct {
	registry *registry.Registry
	strategy strategy.Strategy
	dir      directory.Directory
	log      *logger.Logger

	refreshInterval time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a gateway service around an already-seeded registry.
func New(reg *registry.Registry, strat strategy.Strategy, dir directory.Directory, refreshInterval time.Duration, log *logger.Logger) *Gateway {
	return &Gateway{
		registry:        reg,
		strategy:        strat,
		dir:             dir,
		log:             log.GatewayLogger(),
		refreshInterval: refreshInterval,
		stopChan:        make(chan struct{}),
	}
}

// Acquire selects a healthy backend via the active strategy. The caller must
// pair every successful Acquire with exactly one Release, on every exit path.
func (g *Gateway) Acquire() (domain.Backend, error) {
	healthy := g.registry.HealthySubset()
	selected := g.strategy.Select(healthy)
	if selected == nil {
		return domain.Backend{}, gwerrors.ErrNoBackends
	}
	return *selected, nil
}

// Release returns a previously acquired backend to the strategy.
func (g *Gateway) Release(backend domain.Backend) {
	g.strategy.Release(backend)
}

// Backend looks up one backend by server ID.
func (g *Gateway) Backend(serverID string) (domain.Backend, bool) {
	return g.registry.Get(serverID)
}

// StrategyName returns the active strategy's label.
func (g *Gateway) StrategyName() string {
	return g.strategy.Name()
}

// Stats builds the operational status view.
func (g *Gateway) Stats() domain.Stats {
	backends := g.registry.Snapshot()

	healthy := 0
	for _, backend := range backends {
		if backend.Healthy {
			healthy++
		}
	}

	return domain.Stats{
		Strategy:        g.strategy.Name(),
		TotalBackends:   len(backends),
		HealthyBackends: healthy,
		Backends:        backends,
	}
}

// RefreshBackends reloads the directory and applies it to the registry. On
// directory failure the registry keeps its last-known set: availability wins
// over freshness. Strategy bookkeeping for removed backends is pruned.
func (g *Gateway) RefreshBackends(ctx context.Context) error {
	records, err := g.dir.LoadBackends(ctx)
	if err != nil {
		return gwerrors.Wrap(gwerrors.CodeDirectoryUnavailable, "failed to load backends from directory", err)
	}

	removed := g.registry.Refresh(records)
	if forgetter, ok := g.strategy.(strategy.Forgetter); ok {
		for _, serverID := range removed {
			forgetter.Forget(serverID)
		}
	}

	if len(removed) > 0 {
		g.log.WithField("removed", removed).Info("Backends removed on directory refresh")
	}
	g.log.Debugf("Directory refresh applied, %d backends registered", g.registry.Len())
	return nil
}

// StartRefreshLoop launches the periodic directory refresh.
func (g *Gateway) StartRefreshLoop(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return fmt.Errorf("refresh loop is already running")
	}
	g.running = true
	g.log.Infof("Starting directory refresh loop with interval %v", g.refreshInterval)

	g.wg.Add(1)
	go g.refreshLoop(ctx)
	return nil
}

// Stop halts the refresh loop.
func (g *Gateway) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	close(g.stopChan)
	g.mu.Unlock()

	g.wg.Wait()

	g.mu.Lock()
	g.running = false
	g.stopChan = make(chan struct{})
	g.mu.Unlock()
}

func (g *Gateway) refreshLoop(ctx context.Context) {
	defer g.wg.Done()

	ticker := time.NewTicker(g.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.stopChan:
			return
		case <-ticker.C:
			if err := g.RefreshBackends(ctx); err != nil {
				// Keep the last-known backend set and try again next tick.
				g.log.WithError(err).Warn("Directory refresh failed, keeping last-known backends")
			}
		}
	}
}
