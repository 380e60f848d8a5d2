package dataset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInferenceSamplerPartition(t *testing.T) {
	cases := []struct {
		totalSize int
		worldSize int
	}{
		{totalSize: 10, worldSize: 3},
		{totalSize: 1, worldSize: 1},
		{totalSize: 7, worldSize: 7},
		{totalSize: 5, worldSize: 8},
		{totalSize: 100, worldSize: 4},
		{totalSize: 101, worldSize: 4},
	}

	for _, tc := range cases {
		seen := make(map[int]int)
		sizes := make([]int, 0, tc.worldSize)
		next := 0
		for rank := 0; rank < tc.worldSize; rank++ {
			sampler, err := NewInferenceSampler(tc.totalSize, tc.worldSize, rank)
			require.NoError(t, err)

			// Shards are contiguous and in rank order.
			require.Equal(t, next, sampler.Begin())
			next = sampler.End()

			for _, idx := range sampler.Indices() {
				seen[idx]++
			}
			sizes = append(sizes, sampler.Len())
		}

		// Union is exactly [0, totalSize) with no overlap.
		require.Equal(t, tc.totalSize, next)
		require.Len(t, seen, tc.totalSize)
		for idx := 0; idx < tc.totalSize; idx++ {
			require.Equal(t, 1, seen[idx])
		}

		// Shard sizes differ by at most one, larger shards first.
		for rank := 1; rank < tc.worldSize; rank++ {
			require.LessOrEqual(t, sizes[rank], sizes[rank-1])
			require.LessOrEqual(t, sizes[0]-sizes[rank], 1)
		}
	}
}

func TestInferenceSamplerExample(t *testing.T) {
	wantBegin := []int{0, 4, 7}
	wantEnd := []int{4, 7, 10}
	for rank := 0; rank < 3; rank++ {
		sampler, err := NewInferenceSampler(10, 3, rank)
		require.NoError(t, err)
		require.Equal(t, wantBegin[rank], sampler.Begin())
		require.Equal(t, wantEnd[rank], sampler.End())
	}
}

func TestInferenceSamplerSingleProcess(t *testing.T) {
	sampler, err := NewInferenceSampler(42, 1, 0)
	require.NoError(t, err)
	require.Equal(t, 0, sampler.Begin())
	require.Equal(t, 42, sampler.End())
	require.Equal(t, 42, sampler.Len())
}

func TestInferenceSamplerInvalidArgs(t *testing.T) {
	_, err := NewInferenceSampler(0, 1, 0)
	require.Error(t, err)

	_, err = NewInferenceSampler(-5, 1, 0)
	require.Error(t, err)

	_, err = NewInferenceSampler(10, 0, 0)
	require.Error(t, err)

	_, err = NewInferenceSampler(10, 2, 2)
	require.Error(t, err)

	_, err = NewInferenceSampler(10, 2, -1)
	require.Error(t, err)
}
