package core

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModelConfigInputSize(t *testing.T) {
	require.Equal(t, 224, ModelConfig{}.InputSize())
	require.Equal(t, 336, ModelConfig{VisionImageSize: 336}.InputSize())
	// An explicit override wins over the encoder size.
	require.Equal(t, 448, ModelConfig{ForceImageSize: 448, VisionImageSize: 336}.InputSize())
}

func TestPixelValuesEncodePNG(t *testing.T) {
	data := make([]float32, 3*4*4)
	pixels := PixelValues{Data: data, Size: 4}
	require.True(t, pixels.Valid())

	encoded, err := pixels.EncodePNG()
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(encoded))
	require.NoError(t, err)
	require.Equal(t, 4, img.Bounds().Dx())
	require.Equal(t, 4, img.Bounds().Dy())
}

func TestPixelValuesInvalidShape(t *testing.T) {
	pixels := PixelValues{Data: make([]float32, 5), Size: 4}
	require.False(t, pixels.Valid())
	_, err := pixels.EncodePNG()
	require.Error(t, err)
}
