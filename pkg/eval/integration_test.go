package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"popeval/pkg/core"
	"popeval/pkg/dist"
	"popeval/pkg/model"
)

// TestDriverOverTCPGroup runs the full pipeline with a real TCP
// collective: two ranks shard the dataset, gather predictions over
// localhost, and rank 0 writes the merged results.
func TestDriverOverTCPGroup(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const worldSize = 2
	cfg := writeFixture(t, 7)
	outDir := t.TempDir()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	files := make([]string, worldSize)
	errs := make([]error, worldSize)
	var wg sync.WaitGroup
	for rank := 0; rank < worldSize; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			group, err := dist.NewTCPGroup(ctx, rank, worldSize, addr)
			if err != nil {
				errs[rank] = err
				return
			}
			defer group.Close()

			driver := Driver{
				Model:      model.MockVisionModel{ResponseText: "yes", ModelConfig: core.ModelConfig{VisionImageSize: 8}},
				Group:      group,
				Checkpoint: "ckpt",
				Template:   "vicuna_v1.1",
				BatchSize:  1,
				Workers:    2,
				OutDir:     outDir,
				Registry:   map[string]Collection{"pope": cfg},
			}
			files[rank], errs[rank] = driver.Evaluate(ctx, "pope")
		}(rank)
	}
	wg.Wait()

	for rank := 0; rank < worldSize; rank++ {
		require.NoError(t, errs[rank], "rank %d", rank)
	}
	require.NotEmpty(t, files[0])
	require.Empty(t, files[1])

	predictions, err := ReadResults(files[0])
	require.NoError(t, err)
	require.Len(t, predictions, 7)
	for i, prediction := range predictions {
		require.Equal(t, json.RawMessage(fmt.Sprintf("%d", i)), prediction.QuestionID)
		require.Equal(t, "yes", prediction.Text)
	}
}
