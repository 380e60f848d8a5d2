package model

import (
	"context"
	"math/rand"
	"time"

	"popeval/pkg/core"
)

var mockAnswers = []string{"yes", "no"}

// MockVisionModel is an offline backend for dry runs and tests. It
// returns a fixed response when one is set; otherwise it answers
// deterministically from the seed when sampling is requested, or "no".
type MockVisionModel struct {
	NameValue    string
	ResponseText string
	ModelConfig  core.ModelConfig
}

func (m MockVisionModel) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m MockVisionModel) Config() core.ModelConfig {
	return m.ModelConfig
}

func (m MockVisionModel) Generate(_ context.Context, _ core.PixelValues, _ string, opts core.GenerateOptions) (core.Response, error) {
	start := time.Now()
	content := m.ResponseText
	if content == "" {
		if opts.DoSample {
			rng := rand.New(rand.NewSource(opts.Seed))
			content = mockAnswers[rng.Intn(len(mockAnswers))]
		} else {
			content = mockAnswers[1]
		}
	}
	return core.Response{
		Content: content,
		Latency: time.Since(start),
	}, nil
}
