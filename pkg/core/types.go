package core

import (
	"encoding/json"
	"time"
)

// Record is one evaluation example read from a question file. It is
// immutable once constructed by the dataset reader.
type Record struct {
	QuestionID json.RawMessage
	Question   string
	Pixels     PixelValues
	Annotation json.RawMessage
}

// Prediction is the generated answer for one record. Metadata is always
// present so the serialized form carries an empty object, never null.
type Prediction struct {
	QuestionID json.RawMessage   `json:"question_id"`
	Text       string            `json:"text"`
	ModelID    string            `json:"model_id"`
	Metadata   map[string]string `json:"metadata"`
}

// Response is a model response plus basic telemetry.
type Response struct {
	Content    string        `json:"content"`
	TokenUsage TokenUsage    `json:"token_usage"`
	Latency    time.Duration `json:"latency"`
}

// TokenUsage captures token accounting for a request.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerateOptions controls model generation behavior.
type GenerateOptions struct {
	NumBeams      int     `json:"num_beams"`
	MinNewTokens  int     `json:"min_new_tokens"`
	MaxNewTokens  int     `json:"max_new_tokens"`
	LengthPenalty float64 `json:"length_penalty"`
	DoSample      bool    `json:"do_sample"`
	Temperature   float32 `json:"temperature"`
	Seed          int64   `json:"seed,omitempty"`
}
