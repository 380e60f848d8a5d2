package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"popeval/pkg/core"
	"popeval/pkg/dataset"
	"popeval/pkg/dist"
	"popeval/pkg/prompt"
)

// DefaultScoreScript is the scoring program invoked over the results
// file unless the caller overrides it.
const DefaultScoreScript = "python eval/pope/eval_pope.py"

// Driver runs one benchmark pass: shard the dataset over the group, run
// single-item inference locally, gather predictions across ranks, and
// on rank 0 write the results file and hand it to the scoring script.
type Driver struct {
	Model       core.VisionModel
	Group       dist.Group
	Checkpoint  string
	Template    string
	BatchSize   int
	Workers     int
	NumBeams    int
	Temperature float32
	Seed        int64
	OutDir      string

	// ScoreScript is the command prefix invoked over the results file.
	// Empty disables scoring (useful for dry runs).
	ScoreScript string

	// Registry overrides the built-in dataset collections when set.
	Registry map[string]Collection

	Logger   *zap.Logger
	Progress func(completed, total int)
}

// Evaluate runs the named dataset and returns the results file path on
// rank 0, or the empty string on every other rank.
func (d *Driver) Evaluate(ctx context.Context, name string) (string, error) {
	if d.Model == nil || d.Group == nil {
		return "", fmt.Errorf("eval: model and group are required")
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg, err := d.lookup(name)
	if err != nil {
		return "", err
	}
	if d.BatchSize != 1 {
		return "", fmt.Errorf("eval: only batch size 1 is supported, got %d", d.BatchSize)
	}

	modelCfg := d.Model.Config()
	transform := dataset.BuildTransform(modelCfg.InputSize(), modelCfg.Pad2Square)
	ds, err := dataset.NewVQADataset(cfg.Root, cfg.Question, "", transform)
	if err != nil {
		return "", err
	}
	sampler, err := dataset.NewInferenceSampler(ds.Len(), d.Group.WorldSize(), d.Group.Rank())
	if err != nil {
		return "", err
	}

	logger.Info("evaluating shard",
		zap.String("dataset", name),
		zap.Int("rank", d.Group.Rank()),
		zap.Int("world_size", d.Group.WorldSize()),
		zap.Int("shard_size", sampler.Len()),
		zap.Int("total_size", ds.Len()),
	)

	opts := core.GenerateOptions{
		NumBeams:      d.NumBeams,
		MinNewTokens:  cfg.MinNewTokens,
		MaxNewTokens:  cfg.MaxNewTokens,
		LengthPenalty: 1,
		DoSample:      d.Temperature > 0,
		Temperature:   d.Temperature,
		Seed:          d.Seed,
	}

	// Prefetch runs under its own context so an early return unwinds
	// the pipeline instead of leaving goroutines parked.
	prefetchCtx, cancelPrefetch := context.WithCancel(ctx)
	defer cancelPrefetch()

	local := make([]core.Prediction, 0, sampler.Len())
	for item := range prefetch(prefetchCtx, ds, sampler.Indices(), d.Workers) {
		if item.err != nil {
			return "", item.err
		}
		question, err := prompt.Render(d.Template, item.record.Question)
		if err != nil {
			return "", err
		}
		resp, err := d.Model.Generate(ctx, item.record.Pixels, question, opts)
		if err != nil {
			return "", err
		}
		local = append(local, core.Prediction{
			QuestionID: item.record.QuestionID,
			Text:       resp.Content,
			ModelID:    d.Checkpoint,
			Metadata:   map[string]string{},
		})
		if d.Progress != nil {
			d.Progress(len(local), sampler.Len())
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := d.Group.Barrier(ctx); err != nil {
		return "", err
	}
	payload, err := json.Marshal(local)
	if err != nil {
		return "", err
	}
	parts, err := d.Group.AllGather(ctx, payload)
	if err != nil {
		return "", err
	}
	merged, err := MergeGathered(parts)
	if err != nil {
		return "", err
	}

	if d.Group.Rank() != 0 {
		return "", nil
	}

	logger.Info("evaluating results", zap.String("dataset", name), zap.Int("predictions", len(merged)))
	if err := os.MkdirAll(d.OutDir, 0o755); err != nil {
		return "", err
	}
	resultsFile := filepath.Join(d.OutDir, ResultsFileName(name, time.Now()))
	if err := WriteResults(resultsFile, merged); err != nil {
		return "", err
	}
	logger.Info("results saved", zap.String("file", resultsFile))

	d.score(ctx, logger, cfg, resultsFile)
	return resultsFile, nil
}

// score shells out to the external scoring program. Its exit status is
// logged but never fails the run.
func (d *Driver) score(ctx context.Context, logger *zap.Logger, cfg Collection, resultsFile string) {
	script := d.ScoreScript
	if script == "" {
		logger.Info("scoring disabled")
		return
	}
	argv := strings.Fields(script)
	argv = append(argv,
		"--annotation-dir", cfg.AnnotationDir,
		"--question-file", cfg.Question,
		"--result-file", resultsFile,
	)

	fmt.Println(strings.Join(argv, " "))
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		logger.Warn("scoring command failed", zap.Error(err))
	}
}

func (d *Driver) lookup(name string) (Collection, error) {
	if d.Registry != nil {
		cfg, ok := d.Registry[name]
		if !ok {
			return Collection{}, fmt.Errorf("eval: unknown dataset %q", name)
		}
		return cfg, nil
	}
	return Lookup(name)
}

type loadedRecord struct {
	record core.Record
	err    error
}

// prefetch decodes records concurrently with up to workers goroutines
// while preserving shard order on the output channel. Decode workers
// only affect throughput; observable order never changes.
func prefetch(ctx context.Context, ds *dataset.VQADataset, indices []int, workers int) <-chan loadedRecord {
	if workers < 1 {
		workers = 1
	}

	slots := make(chan chan loadedRecord, workers)
	go func() {
		defer close(slots)
		sem := make(chan struct{}, workers)
		for _, idx := range indices {
			select {
			case <-ctx.Done():
				return
			case sem <- struct{}{}:
			}
			slot := make(chan loadedRecord, 1)
			slots <- slot
			go func(idx int, slot chan<- loadedRecord) {
				defer func() { <-sem }()
				record, err := ds.Get(idx)
				slot <- loadedRecord{record: record, err: err}
			}(idx, slot)
		}
	}()

	out := make(chan loadedRecord)
	go func() {
		defer close(out)
		for slot := range slots {
			item := <-slot
			select {
			case <-ctx.Done():
				return
			case out <- item:
			}
		}
	}()
	return out
}
