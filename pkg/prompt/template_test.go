package prompt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderPlain(t *testing.T) {
	out, err := Render("plain", "Is there a dog in the image?")
	require.NoError(t, err)
	require.Equal(t, "Is there a dog in the image?", out)
}

func TestRenderVicuna(t *testing.T) {
	out, err := Render("vicuna_v1.1", "Is there a dog in the image?")
	require.NoError(t, err)
	require.Contains(t, out, "A chat between a curious user")
	require.Contains(t, out, "USER: Is there a dog in the image?")
	require.Contains(t, out, "ASSISTANT:")
}

func TestRenderUnknown(t *testing.T) {
	_, err := Render("nope", "q")
	require.Error(t, err)
}

func TestNames(t *testing.T) {
	require.Equal(t, []string{"plain", "vicuna_v1.1"}, Names())
}
