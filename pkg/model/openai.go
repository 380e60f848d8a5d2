package model

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"popeval/pkg/core"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIVisionModel runs inference through the OpenAI chat completions
// API with inline base64 images. With a custom base URL it also serves
// OpenAI-compatible local servers (vLLM, Ollama, llama.cpp).
type OpenAIVisionModel struct {
	Client      openai.Client
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	Backoff     time.Duration
	ModelConfig core.ModelConfig
}

func NewOpenAIVisionModelFromEnv(modelName string) (*OpenAIVisionModel, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("openai: OPENAI_API_KEY is required")
	}
	if modelName == "" {
		modelName = defaultOpenAIModel
	}
	return &OpenAIVisionModel{
		Client:     openai.NewClient(option.WithAPIKey(apiKey)),
		Model:      modelName,
		Timeout:    60 * time.Second,
		MaxRetries: 2,
		Backoff:    500 * time.Millisecond,
	}, nil
}

// NewOpenAICompatibleVisionModel targets a local OpenAI-compatible
// server that needs no real credentials.
func NewOpenAICompatibleVisionModel(baseURL, modelName string) (*OpenAIVisionModel, error) {
	if baseURL == "" {
		return nil, errors.New("openai: base URL is required")
	}
	if modelName == "" {
		modelName = defaultOpenAIModel
	}
	return &OpenAIVisionModel{
		Client: openai.NewClient(
			option.WithBaseURL(baseURL),
			option.WithAPIKey("local"),
		),
		Model:      modelName,
		Timeout:    120 * time.Second,
		MaxRetries: 2,
		Backoff:    500 * time.Millisecond,
	}, nil
}

func (o OpenAIVisionModel) Name() string {
	if o.Model == "" {
		return defaultOpenAIModel
	}
	return o.Model
}

func (o OpenAIVisionModel) Config() core.ModelConfig {
	return o.ModelConfig
}

func (o OpenAIVisionModel) Generate(ctx context.Context, pixels core.PixelValues, prompt string, opts core.GenerateOptions) (core.Response, error) {
	modelName := o.Name()
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxRetries := o.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := o.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	encoded, err := pixels.EncodePNG()
	if err != nil {
		return core.Response{}, err
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(encoded)

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
		openai.TextContentPart(prompt),
	}
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(modelName),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(parts),
		},
	}
	if opts.MaxNewTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxNewTokens))
	}
	if opts.DoSample && opts.Temperature > 0 {
		params.Temperature = openai.Float(float64(opts.Temperature))
	}
	if opts.Seed != 0 {
		params.Seed = openai.Int(opts.Seed)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		completion, err := o.Client.Chat.Completions.New(attemptCtx, params)
		cancel()
		if err == nil {
			if len(completion.Choices) == 0 {
				return core.Response{}, fmt.Errorf("openai: empty response")
			}
			content := completion.Choices[0].Message.Content
			usage := core.TokenUsage{
				PromptTokens:     int(completion.Usage.PromptTokens),
				CompletionTokens: int(completion.Usage.CompletionTokens),
				TotalTokens:      int(completion.Usage.TotalTokens),
			}
			return core.Response{
				Content:    content,
				TokenUsage: usage,
				Latency:    time.Since(start),
			}, nil
		}

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return core.Response{}, err
		}
		lastErr = err

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return core.Response{}, ctx.Err()
			case <-time.After(backoff * time.Duration(attempt+1)):
			}
		}
	}

	return core.Response{}, fmt.Errorf("openai: request failed after retries: %w", lastErr)
}
