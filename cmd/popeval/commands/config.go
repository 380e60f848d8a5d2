package commands

import (
	"errors"

	"github.com/spf13/viper"
)

type Config struct {
	Checkpoint  string          `mapstructure:"checkpoint"`
	Datasets    string          `mapstructure:"datasets"`
	BatchSize   int             `mapstructure:"batch_size"`
	NumWorkers  int             `mapstructure:"num_workers"`
	NumBeams    int             `mapstructure:"num_beams"`
	Template    string          `mapstructure:"template"`
	Temperature float64         `mapstructure:"temperature"`
	OutDir      string          `mapstructure:"out_dir"`
	Seed        int64           `mapstructure:"seed"`
	Provider    string          `mapstructure:"provider"`
	ScoreScript string          `mapstructure:"score_script"`
	CacheDir    string          `mapstructure:"cache_dir"`
	Model       ModelConfig     `mapstructure:"model"`
	OpenAI      OpenAIConfig    `mapstructure:"openai"`
	Anthropic   AnthropicConfig `mapstructure:"anthropic"`
	Gemini      GeminiConfig    `mapstructure:"gemini"`
}

type ModelConfig struct {
	Name           string `mapstructure:"name"`
	MockResponse   string `mapstructure:"mock_response"`
	BaseURL        string `mapstructure:"base_url"`
	ForceImageSize int    `mapstructure:"force_image_size"`
	ImageSize      int    `mapstructure:"image_size"`
	Pad2Square     bool   `mapstructure:"pad2square"`
}

type OpenAIConfig struct {
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
	BackoffMillis  int    `mapstructure:"backoff_millis"`
}

type AnthropicConfig struct {
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
	BackoffMillis  int    `mapstructure:"backoff_millis"`
	MaxTokens      int    `mapstructure:"max_tokens"`
}

type GeminiConfig struct {
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
	BackoffMillis  int    `mapstructure:"backoff_millis"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".popeval")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
