package model

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"popeval/pkg/cache"
	"popeval/pkg/core"
)

func TestMockVisionModelFixedResponse(t *testing.T) {
	m := MockVisionModel{ResponseText: "yes"}
	resp, err := m.Generate(context.Background(), core.PixelValues{}, "q", core.GenerateOptions{})
	require.NoError(t, err)
	require.Equal(t, "yes", resp.Content)
}

func TestMockVisionModelDeterministicSampling(t *testing.T) {
	m := MockVisionModel{}
	opts := core.GenerateOptions{DoSample: true, Temperature: 0.7, Seed: 11}

	first, err := m.Generate(context.Background(), core.PixelValues{}, "q", opts)
	require.NoError(t, err)
	second, err := m.Generate(context.Background(), core.PixelValues{}, "q", opts)
	require.NoError(t, err)
	require.Equal(t, first.Content, second.Content)
}

func TestMockVisionModelGreedy(t *testing.T) {
	m := MockVisionModel{}
	resp, err := m.Generate(context.Background(), core.PixelValues{}, "q", core.GenerateOptions{})
	require.NoError(t, err)
	require.Equal(t, "no", resp.Content)
}

type countingBackend struct {
	calls int
}

func (f *countingBackend) Name() string { return "counting" }

func (f *countingBackend) Config() core.ModelConfig { return core.ModelConfig{} }

func (f *countingBackend) Generate(context.Context, core.PixelValues, string, core.GenerateOptions) (core.Response, error) {
	f.calls++
	return core.Response{Content: "yes"}, nil
}

func TestCachedVisionModel(t *testing.T) {
	responseCache, err := cache.New(t.TempDir(), time.Hour)
	require.NoError(t, err)

	inner := &countingBackend{}
	cached := CachedVisionModel{Model: inner, Cache: responseCache}

	data := make([]float32, 3*4*4)
	pixels := core.PixelValues{Data: data, Size: 4}
	opts := core.GenerateOptions{NumBeams: 5}

	resp, err := cached.Generate(context.Background(), pixels, "q", opts)
	require.NoError(t, err)
	require.Equal(t, "yes", resp.Content)
	require.Equal(t, 1, inner.calls)

	// Second identical request is served from disk.
	resp, err = cached.Generate(context.Background(), pixels, "q", opts)
	require.NoError(t, err)
	require.Equal(t, "yes", resp.Content)
	require.Equal(t, 1, inner.calls)
}
