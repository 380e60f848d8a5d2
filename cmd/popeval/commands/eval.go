package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"popeval/pkg/cache"
	"popeval/pkg/core"
	"popeval/pkg/dist"
	"popeval/pkg/eval"
	"popeval/pkg/model"
	"popeval/pkg/reporter"
)

func newEvalCommand() *cobra.Command {
	var (
		checkpoint   string
		datasets     string
		batchSize    int
		numWorkers   int
		numBeams     int
		template     string
		temperature  float64
		outDir       string
		seed         int64
		provider     string
		modelName    string
		mockResponse string
		baseURL      string
		cacheDir     string
		scoreScript  string
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Run a benchmark evaluation",
		RunE: func(cmd *cobra.Command, args []string) error {
			checkpointResolved := resolveString(checkpoint, appConfig.Checkpoint)
			datasetsResolved := resolveString(datasets, appConfig.Datasets)
			if datasetsResolved == "" {
				datasetsResolved = "pope"
			}
			batchResolved := resolveInt(batchSize, appConfig.BatchSize, 1)
			if cmd.Flags().Changed("batch-size") {
				// An explicit value, zero and negatives included, is
				// taken as given rather than resolved to the default.
				batchResolved = batchSize
			}
			if batchResolved != 1 {
				return fmt.Errorf("only batch size 1 is supported, got %d", batchResolved)
			}
			workersResolved := resolveInt(numWorkers, appConfig.NumWorkers, 1)
			beamsResolved := resolveInt(numBeams, appConfig.NumBeams, 5)
			templateResolved := resolveString(template, appConfig.Template)
			if templateResolved == "" {
				templateResolved = "vicuna_v1.1"
			}
			temperatureResolved := temperature
			if temperatureResolved == 0 {
				temperatureResolved = appConfig.Temperature
			}
			outDirResolved := resolveString(outDir, appConfig.OutDir)
			if outDirResolved == "" {
				outDirResolved = "results"
			}
			seedResolved := seed
			if seedResolved == 0 {
				seedResolved = appConfig.Seed
			}
			providerResolved := resolveString(provider, appConfig.Provider)
			if providerResolved == "" {
				providerResolved = "mock"
			}
			modelResolved := resolveString(modelName, appConfig.Model.Name)
			mockResolved := resolveString(mockResponse, appConfig.Model.MockResponse)
			baseURLResolved := resolveString(baseURL, appConfig.Model.BaseURL)
			cacheDirResolved := resolveString(cacheDir, appConfig.CacheDir)
			scoreResolved := resolveString(scoreScript, appConfig.ScoreScript)
			if scoreResolved == "" {
				scoreResolved = eval.DefaultScoreScript
			}
			if scoreResolved == "none" {
				scoreResolved = ""
			}

			names := splitDatasets(datasetsResolved)
			if len(names) == 0 {
				return errors.New("at least one dataset is required")
			}

			env, err := dist.EnvFromOS()
			if err != nil {
				return err
			}
			logger.Info("joining process group",
				zap.Int("rank", env.Rank),
				zap.Int("world_size", env.WorldSize),
				zap.Int("local_rank", env.LocalRank),
			)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			group, err := dist.Connect(ctx, env)
			if err != nil {
				return err
			}
			defer group.Close()

			evalModel, err := buildModel(providerResolved, modelResolved, mockResolved, baseURLResolved)
			if err != nil {
				return err
			}
			if cacheDirResolved != "" {
				responseCache, err := cache.New(cacheDirResolved, 0)
				if err != nil {
					return err
				}
				evalModel = model.CachedVisionModel{Model: evalModel, Cache: responseCache}
			}

			modelID := checkpointResolved
			if modelID == "" {
				modelID = evalModel.Name()
			}

			for _, name := range names {
				bar := newProgressBar(progressWriter(cmd), env.Rank)
				driver := eval.Driver{
					Model:       evalModel,
					Group:       group,
					Checkpoint:  modelID,
					Template:    templateResolved,
					BatchSize:   batchResolved,
					Workers:     workersResolved,
					NumBeams:    beamsResolved,
					Temperature: float32(temperatureResolved),
					Seed:        seedResolved,
					OutDir:      outDirResolved,
					ScoreScript: scoreResolved,
					Logger:      logger,
					Progress:    bar.Update,
				}
				resultsFile, err := driver.Evaluate(ctx, name)
				if err != nil {
					return err
				}
				if resultsFile == "" {
					continue
				}
				predictions, err := eval.ReadResults(resultsFile)
				if err != nil {
					return err
				}
				summary := reporter.Summarize(name, modelID, resultsFile, predictions)
				if err := (reporter.TableReporter{Writer: os.Stdout}).Report(summary); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "checkpoint identifier recorded in predictions")
	cmd.Flags().StringVar(&datasets, "datasets", "", "comma-separated dataset names")
	cmd.Flags().IntVar(&batchSize, "batch-size", 1, "inference batch size (must be 1)")
	cmd.Flags().IntVar(&numWorkers, "num-workers", 1, "image decode workers")
	cmd.Flags().IntVar(&numBeams, "num-beams", 5, "beam count for generation")
	cmd.Flags().StringVar(&template, "template", "", "prompt template name")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "sampling temperature (0 = greedy)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "directory for the results file")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	cmd.Flags().StringVar(&provider, "provider", "", "model provider (mock, openai, openai-compatible, anthropic, gemini)")
	cmd.Flags().StringVar(&modelName, "model", "", "provider model name")
	cmd.Flags().StringVar(&mockResponse, "mock-response", "", "fixed mock response")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "base URL for an OpenAI-compatible server")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "response cache directory (empty disables caching)")
	cmd.Flags().StringVar(&scoreScript, "score-script", "", "scoring command prefix (\"none\" disables scoring)")

	return cmd
}

func buildModel(provider, modelName, mockResponse, baseURL string) (core.VisionModel, error) {
	modelCfg := core.ModelConfig{
		ForceImageSize:  appConfig.Model.ForceImageSize,
		VisionImageSize: appConfig.Model.ImageSize,
		Pad2Square:      appConfig.Model.Pad2Square,
	}
	switch provider {
	case "mock":
		return model.MockVisionModel{
			NameValue:    modelName,
			ResponseText: mockResponse,
			ModelConfig:  modelCfg,
		}, nil
	case "openai":
		openaiModel, err := model.NewOpenAIVisionModelFromEnv(modelName)
		if err != nil {
			return nil, err
		}
		applyOpenAIConfig(openaiModel)
		openaiModel.ModelConfig = modelCfg
		return openaiModel, nil
	case "openai-compatible":
		openaiModel, err := model.NewOpenAICompatibleVisionModel(baseURL, modelName)
		if err != nil {
			return nil, err
		}
		applyOpenAIConfig(openaiModel)
		openaiModel.ModelConfig = modelCfg
		return openaiModel, nil
	case "anthropic":
		anthropicModel, err := model.NewAnthropicVisionModelFromEnv(modelName)
		if err != nil {
			return nil, err
		}
		anthropicCfg := appConfig.Anthropic
		if anthropicCfg.TimeoutSeconds > 0 {
			anthropicModel.Timeout = time.Duration(anthropicCfg.TimeoutSeconds) * time.Second
		}
		if anthropicCfg.MaxRetries > 0 {
			anthropicModel.MaxRetries = anthropicCfg.MaxRetries
		}
		if anthropicCfg.BackoffMillis > 0 {
			anthropicModel.Backoff = time.Duration(anthropicCfg.BackoffMillis) * time.Millisecond
		}
		if anthropicCfg.MaxTokens > 0 {
			anthropicModel.MaxTokens = anthropicCfg.MaxTokens
		}
		anthropicModel.ModelConfig = modelCfg
		return anthropicModel, nil
	case "gemini":
		geminiModel, err := model.NewGeminiVisionModelFromEnv(modelName)
		if err != nil {
			return nil, err
		}
		geminiCfg := appConfig.Gemini
		if geminiCfg.TimeoutSeconds > 0 {
			geminiModel.Timeout = time.Duration(geminiCfg.TimeoutSeconds) * time.Second
		}
		if geminiCfg.MaxRetries > 0 {
			geminiModel.MaxRetries = geminiCfg.MaxRetries
		}
		if geminiCfg.BackoffMillis > 0 {
			geminiModel.Backoff = time.Duration(geminiCfg.BackoffMillis) * time.Millisecond
		}
		geminiModel.ModelConfig = modelCfg
		return geminiModel, nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

func applyOpenAIConfig(m *model.OpenAIVisionModel) {
	openaiCfg := appConfig.OpenAI
	if openaiCfg.Model != "" && m.Model == "" {
		m.Model = openaiCfg.Model
	}
	if openaiCfg.TimeoutSeconds > 0 {
		m.Timeout = time.Duration(openaiCfg.TimeoutSeconds) * time.Second
	}
	if openaiCfg.MaxRetries > 0 {
		m.MaxRetries = openaiCfg.MaxRetries
	}
	if openaiCfg.BackoffMillis > 0 {
		m.Backoff = time.Duration(openaiCfg.BackoffMillis) * time.Millisecond
	}
}

func splitDatasets(value string) []string {
	var names []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			names = append(names, part)
		}
	}
	return names
}

func resolveString(value string, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func resolveInt(value int, fallback int, defaultValue int) int {
	if value > 0 {
		return value
	}
	if fallback > 0 {
		return fallback
	}
	return defaultValue
}
