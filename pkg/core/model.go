package core

import "context"

const defaultVisionImageSize = 224

// ModelConfig describes how a backend wants its image input prepared.
type ModelConfig struct {
	// ForceImageSize overrides the vision encoder's native size when set.
	ForceImageSize  int
	VisionImageSize int
	Pad2Square      bool
}

// InputSize resolves the square image edge the dataset transform must
// produce. An explicit override wins over the encoder size.
func (c ModelConfig) InputSize() int {
	if c.ForceImageSize > 0 {
		return c.ForceImageSize
	}
	if c.VisionImageSize > 0 {
		return c.VisionImageSize
	}
	return defaultVisionImageSize
}

// VisionModel generates a text answer for an image and a prompt.
type VisionModel interface {
	Name() string
	Config() ModelConfig
	Generate(ctx context.Context, pixels PixelValues, prompt string, opts GenerateOptions) (Response, error)
}
