// Package health runs the background probe loop that keeps registry health
// state current.
package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vkgw/vk-gateway/internal/config"
	"github.com/vkgw/vk-gateway/internal/domain"
	"github.com/vkgw/vk-gateway/internal/registry"
	"github.com/vkgw/vk-gateway/pkg/logger"
)

// ProbePath is the health endpoint probed on every backend.
const ProbePath = "/api/v1/health"

// SecretHeader carries the shared probe secret when configured.
const SecretHeader = "X-KV-SECRET"

// HealthRecorder receives health transitions for the metrics surface.
type HealthRecorder interface {
	SetBackendHealth(serverID string, healthy bool)
}

// Monitor probes every registered backend on a fixed interval and reports
// outcomes exclusively through Registry.MarkResult. Probes for different
// backends run concurrently; a slow backend cannot delay the rest of the cycle
// because each probe carries a hard timeout shorter than the interval.
type Monitor struct {
	registry *registry.Registry
	client   *http.Client
	interval time.Duration
	timeout  time.Duration
	secret   string
	recorder HealthRecorder
	log      *logger.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewMonitor creates a health monitor for the given registry.
func NewMonitor(reg *registry.Registry, cfg config.HealthCheckConfig, secret string, recorder HealthRecorder, log *logger.Logger) *Monitor {
	return &Monitor{
		registry: reg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 2,
			},
		},
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		secret:   secret,
		recorder: recorder,
		log:      log.ProbeLogger(),
		stopChan: make(chan struct{}),
	}
}

// Start launches the probe loop. The first cycle runs immediately, then on
// every interval tick until the context is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("health monitor is already running")
	}
	m.running = true
	m.log.Infof("Starting health monitor with interval %v", m.interval)

	m.wg.Add(1)
	go m.loop(ctx)
	return nil
}

// Stop halts the probe loop and waits for in-flight probes to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.stopChan)
	m.mu.Unlock()

	m.wg.Wait()

	m.mu.Lock()
	m.running = false
	m.stopChan = make(chan struct{})
	m.mu.Unlock()

	m.log.Info("Health monitor stopped")
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.CheckAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.CheckAll(ctx)
		}
	}
}

// CheckAll probes every backend in the current registry snapshot in parallel
// and waits for the cycle to complete.
func (m *Monitor) CheckAll(ctx context.Context) {
	backends := m.registry.Snapshot()

	var cycle sync.WaitGroup
	for _, backend := range backends {
		cycle.Add(1)
		go func(b domain.Backend) {
			defer cycle.Done()
			m.Check(ctx, b)
		}(backend)
	}
	cycle.Wait()
}

// Check issues one probe against a backend and records the outcome. A probe
// failure only moves that backend's counters; it is never fatal to the loop.
func (m *Monitor) Check(ctx context.Context, backend domain.Backend) {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	success := m.probe(probeCtx, backend)
	m.registry.MarkResult(backend.ServerID, success)

	if m.recorder != nil {
		if updated, ok := m.registry.Get(backend.ServerID); ok {
			m.recorder.SetBackendHealth(updated.ServerID, updated.Healthy)
		}
	}
}

func (m *Monitor) probe(ctx context.Context, backend domain.Backend) bool {
	probeURL := strings.TrimRight(backend.URL, "/") + ProbePath
	log := m.log.BackendLogger(backend.ServerID, backend.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		log.WithError(err).Warn("Failed to build health probe request")
		return false
	}
	req.Header.Set("User-Agent", "vk-gateway-health/1.0")
	if m.secret != "" {
		req.Header.Set(SecretHeader, m.secret)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		// Timeouts and connection failures both count as probe failures.
		log.WithError(err).Warn("Health probe failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		log.Debug("Backend is healthy")
		return true
	}

	log.WithField("status_code", resp.StatusCode).Warn("Health probe returned non-success status")
	return false
}
