package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkgw/vk-gateway/internal/directory"
	"github.com/vkgw/vk-gateway/internal/domain"
	"github.com/vkgw/vk-gateway/internal/gwerrors"
	"github.com/vkgw/vk-gateway/internal/registry"
	"github.com/vkgw/vk-gateway/internal/strategy"
	"github.com/vkgw/vk-gateway/pkg/logger"
)

type fakeDirectory struct {
	mu      sync.Mutex
	records []domain.Record
	err     error
}

func (d *fakeDirectory) setRecords(records []domain.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = records
	d.err = nil
}

func (d *fakeDirectory) setError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDirectory) LoadBackends(ctx context.Context) ([]domain.Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return append([]domain.Record(nil), d.records...), nil
}

func (d *fakeDirectory) FileBackend(ctx context.Context, fileID string) (string, error) {
	return "", nil
}

func (d *fakeDirectory) ExpiredFiles(ctx context.Context) ([]directory.ExpiredFile, error) {
	return nil, nil
}

func (d *fakeDirectory) DeleteFileMetadata(ctx context.Context, fileID string) error {
	return nil
}

func (d *fakeDirectory) Close() {}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	return log
}

func record(id, provider string) domain.Record {
	return domain.Record{ServerID: id, Provider: provider, Name: "kv-" + id, URL: "http://" + id + ".internal:3000"}
}

func TestAcquireReleasePairing(t *testing.T) {
	t.Parallel()

	reg := registry.New(3)
	reg.Refresh([]domain.Record{record("srv-a", "supabase"), record("srv-b", "supabase")})

	lc := strategy.NewLeastConnections()
	gw := New(reg, lc, &fakeDirectory{}, time.Minute, testLogger(t))

	backend, err := gw.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 1, lc.Connections(backend.ServerID))

	gw.Release(backend)
	assert.Equal(t, 0, lc.Connections(backend.ServerID))
}

func TestAcquireNoHealthyBackends(t *testing.T) {
	t.Parallel()

	reg := registry.New(1)
	reg.Refresh([]domain.Record{record("srv-a", "supabase")})
	reg.MarkResult("srv-a", false)

	gw := New(reg, strategy.NewRoundRobin(), &fakeDirectory{}, time.Minute, testLogger(t))

	_, err := gw.Acquire()
	require.Error(t, err)
	assert.True(t, errors.Is(err, gwerrors.ErrNoBackends))

	var gwErr *gwerrors.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, gwerrors.CodeNoBackends, gwErr.Code)
}

func TestAcquireSkipsUnhealthy(t *testing.T) {
	t.Parallel()

	reg := registry.New(1)
	reg.Refresh([]domain.Record{record("srv-a", "supabase"), record("srv-b", "supabase")})
	reg.MarkResult("srv-a", false)

	gw := New(reg, strategy.NewRoundRobin(), &fakeDirectory{}, time.Minute, testLogger(t))

	for i := 0; i < 5; i++ {
		backend, err := gw.Acquire()
		require.NoError(t, err)
		assert.Equal(t, "srv-b", backend.ServerID)
	}
}

func TestRefreshBackendsPrunesStrategyState(t *testing.T) {
	t.Parallel()

	reg := registry.New(3)
	reg.Refresh([]domain.Record{record("srv-a", "supabase"), record("srv-b", "supabase")})

	lc := strategy.NewLeastConnections()
	dir := &fakeDirectory{}
	gw := New(reg, lc, dir, time.Minute, testLogger(t))

	// Put in-flight counters on both backends.
	a, err := gw.Acquire()
	require.NoError(t, err)
	b, err := gw.Acquire()
	require.NoError(t, err)
	require.NotEqual(t, a.ServerID, b.ServerID)

	// The directory drops srv-a; its counter must go with it.
	dir.setRecords([]domain.Record{record("srv-b", "supabase")})
	require.NoError(t, gw.RefreshBackends(context.Background()))

	assert.Equal(t, 1, reg.Len())
	assert.False(t, lc.Tracked("srv-a"))
	assert.True(t, lc.Tracked("srv-b"))
}

func TestRefreshBackendsKeepsLastKnownOnError(t *testing.T) {
	t.Parallel()

	reg := registry.New(3)
	dir := &fakeDirectory{}
	dir.setRecords([]domain.Record{record("srv-a", "supabase")})
	gw := New(reg, strategy.NewRoundRobin(), dir, time.Minute, testLogger(t))

	require.NoError(t, gw.RefreshBackends(context.Background()))
	require.Equal(t, 1, reg.Len())

	dir.setError(errors.New("connection refused"))
	err := gw.RefreshBackends(context.Background())
	require.Error(t, err)

	var gwErr *gwerrors.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, gwerrors.CodeDirectoryUnavailable, gwErr.Code)

	// The last-known set survives the failed refresh.
	assert.Equal(t, 1, reg.Len())
	backend, ok := gw.Backend("srv-a")
	require.True(t, ok)
	assert.True(t, backend.Healthy)
}

func TestStats(t *testing.T) {
	t.Parallel()

	reg := registry.New(1)
	reg.Refresh([]domain.Record{record("srv-a", "supabase"), record("srv-b", "gdrive"), record("srv-c", "supabase")})
	reg.MarkResult("srv-b", false)

	gw := New(reg, strategy.NewRoundRobin(), &fakeDirectory{}, time.Minute, testLogger(t))

	stats := gw.Stats()
	assert.Equal(t, "RoundRobin", stats.Strategy)
	assert.Equal(t, 3, stats.TotalBackends)
	assert.Equal(t, 2, stats.HealthyBackends)
	require.Len(t, stats.Backends, 3)
	assert.Equal(t, "srv-a", stats.Backends[0].ServerID)
}

func TestRefreshLoopLifecycle(t *testing.T) {
	t.Parallel()

	reg := registry.New(3)
	dir := &fakeDirectory{}
	dir.setRecords([]domain.Record{record("srv-a", "supabase")})
	gw := New(reg, strategy.NewRoundRobin(), dir, 10*time.Millisecond, testLogger(t))

	require.NoError(t, gw.StartRefreshLoop(context.Background()))
	assert.Error(t, gw.StartRefreshLoop(context.Background()), "second start must be rejected")

	// Give the loop a few ticks to apply the directory.
	assert.Eventually(t, func() bool {
		return reg.Len() == 1
	}, time.Second, 5*time.Millisecond)

	gw.Stop()
	gw.Stop()
}
