package model

import (
	"context"

	"popeval/pkg/cache"
	"popeval/pkg/core"
)

// CachedVisionModel serves responses from a disk cache before falling
// through to the wrapped backend.
type CachedVisionModel struct {
	Model core.VisionModel
	Cache *cache.Cache
}

func (c CachedVisionModel) Name() string {
	if c.Model == nil {
		return ""
	}
	return c.Model.Name()
}

func (c CachedVisionModel) Config() core.ModelConfig {
	if c.Model == nil {
		return core.ModelConfig{}
	}
	return c.Model.Config()
}

func (c CachedVisionModel) Generate(ctx context.Context, pixels core.PixelValues, prompt string, opts core.GenerateOptions) (core.Response, error) {
	if c.Model == nil {
		return core.Response{}, nil
	}
	if c.Cache != nil {
		if resp, ok := c.Cache.Get(c.Name(), pixels, prompt, opts); ok {
			return resp, nil
		}
	}
	resp, err := c.Model.Generate(ctx, pixels, prompt, opts)
	if err != nil {
		return core.Response{}, err
	}
	if c.Cache != nil {
		// A failed cache write never fails the run.
		_ = c.Cache.Put(c.Name(), pixels, prompt, opts, resp)
	}
	return resp, nil
}
