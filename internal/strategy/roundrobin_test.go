package strategy

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkgw/vk-gateway/internal/domain"
)

func makeBackends(ids ...string) []domain.Backend {
	backends := make([]domain.Backend, 0, len(ids))
	for i, id := range ids {
		backends = append(backends, domain.Backend{
			Record: domain.Record{
				ServerID: id,
				Provider: "supabase",
				Name:     id,
				URL:      fmt.Sprintf("http://localhost:%d", 8001+i),
			},
			Healthy: true,
		})
	}
	return backends
}

func TestRoundRobinRotation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		ids      []string
		requests int
		expected []string
	}{
		{
			name:     "three backends cycle in order",
			ids:      []string{"srv-a", "srv-b", "srv-c"},
			requests: 7,
			expected: []string{"srv-a", "srv-b", "srv-c", "srv-a", "srv-b", "srv-c", "srv-a"},
		},
		{
			name:     "single backend always selected",
			ids:      []string{"srv-a"},
			requests: 3,
			expected: []string{"srv-a", "srv-a", "srv-a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewRoundRobin()
			candidates := makeBackends(tt.ids...)

			results := make([]string, tt.requests)
			for i := 0; i < tt.requests; i++ {
				backend := s.Select(candidates)
				require.NotNil(t, backend, "request %d should get a backend", i)
				results[i] = backend.ServerID
			}

			assert.Equal(t, tt.expected, results)
		})
	}
}

func TestRoundRobinEmptyCandidates(t *testing.T) {
	t.Parallel()

	s := NewRoundRobin()
	candidates := makeBackends("srv-a", "srv-b")

	first := s.Select(candidates)
	require.NotNil(t, first)
	assert.Equal(t, "srv-a", first.ServerID)

	// An empty set returns nil and must not advance the rotation.
	assert.Nil(t, s.Select(nil))
	assert.Nil(t, s.Select([]domain.Backend{}))

	second := s.Select(candidates)
	require.NotNil(t, second)
	assert.Equal(t, "srv-b", second.ServerID)
}

func TestRoundRobinShrinkingCandidateSet(t *testing.T) {
	t.Parallel()

	s := NewRoundRobin()
	three := makeBackends("srv-a", "srv-b", "srv-c")

	for i := 0; i < 3; i++ {
		require.NotNil(t, s.Select(three))
	}

	// Cursor keeps advancing modulo the new, smaller set without panicking.
	two := makeBackends("srv-a", "srv-b")
	for i := 0; i < 4; i++ {
		backend := s.Select(two)
		require.NotNil(t, backend)
		assert.Contains(t, []string{"srv-a", "srv-b"}, backend.ServerID)
	}
}

func TestRoundRobinReturnsCopy(t *testing.T) {
	t.Parallel()

	s := NewRoundRobin()
	candidates := makeBackends("srv-a")

	backend := s.Select(candidates)
	require.NotNil(t, backend)

	backend.Healthy = false
	assert.True(t, candidates[0].Healthy, "mutating the selection must not touch the candidate slice")
}
