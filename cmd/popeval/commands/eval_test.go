package commands

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func runEval(t *testing.T, args ...string) error {
	t.Helper()
	root := NewRootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"eval"}, args...))
	return root.Execute()
}

func TestEvalRejectsBatchSizeOtherThanOne(t *testing.T) {
	t.Setenv("WORLD_SIZE", "1")
	t.Setenv("RANK", "0")

	for _, value := range []string{"0", "-3", "2"} {
		t.Run("batch_size_"+value, func(t *testing.T) {
			err := runEval(t, "--batch-size", value)
			require.Error(t, err)
			require.Contains(t, err.Error(), "batch size 1")
		})
	}
}

func TestEvalBatchSizeOnePassesPrecondition(t *testing.T) {
	t.Setenv("WORLD_SIZE", "1")
	t.Setenv("RANK", "0")

	// The run still fails later (no dataset files on disk), but not on
	// the batch size precondition.
	err := runEval(t, "--batch-size", "1", "--score-script", "none")
	require.Error(t, err)
	require.NotContains(t, err.Error(), "batch size 1")
}
