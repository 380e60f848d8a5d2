package cache

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"popeval/pkg/core"
)

func testPixels() core.PixelValues {
	data := make([]float32, 3*4*4)
	for i := range data {
		data[i] = float32(i) * 0.01
	}
	return core.PixelValues{Data: data, Size: 4}
}

func TestCacheRoundTrip(t *testing.T) {
	c, err := New(t.TempDir(), time.Hour)
	require.NoError(t, err)

	pixels := testPixels()
	opts := core.GenerateOptions{NumBeams: 5, MaxNewTokens: 100, MinNewTokens: 1, LengthPenalty: 1}
	resp := core.Response{Content: "yes", Latency: 42 * time.Millisecond}

	_, ok := c.Get("m", pixels, "prompt", opts)
	require.False(t, ok)

	require.NoError(t, c.Put("m", pixels, "prompt", opts, resp))

	got, ok := c.Get("m", pixels, "prompt", opts)
	require.True(t, ok)
	require.Equal(t, resp, got)
}

func TestCacheKeyIncludesOptions(t *testing.T) {
	c, err := New(t.TempDir(), time.Hour)
	require.NoError(t, err)

	pixels := testPixels()
	opts := core.GenerateOptions{NumBeams: 5}
	require.NoError(t, c.Put("m", pixels, "prompt", opts, core.Response{Content: "yes"}))

	changed := opts
	changed.NumBeams = 1
	_, ok := c.Get("m", pixels, "prompt", changed)
	require.False(t, ok)

	_, ok = c.Get("other", pixels, "prompt", opts)
	require.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, time.Nanosecond)
	require.NoError(t, err)

	pixels := testPixels()
	require.NoError(t, c.Put("m", pixels, "p", core.GenerateOptions{}, core.Response{Content: "yes"}))
	time.Sleep(time.Millisecond)

	_, ok := c.Get("m", pixels, "p", core.GenerateOptions{})
	require.False(t, ok)

	// An expired entry is removed rather than left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCachePutLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, time.Hour)
	require.NoError(t, err)

	pixels := testPixels()
	require.NoError(t, c.Put("m", pixels, "p", core.GenerateOptions{}, core.Response{Content: "yes"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.False(t, strings.HasPrefix(entries[0].Name(), "tmp-"))
	require.True(t, strings.HasSuffix(entries[0].Name(), ".json.gz"))
}
