// Package benchmark compares algorithms by running each one, on its own
// engine, over the same frame set.
package benchmark

import (
	"context"
	"log/slog"
	"time"

	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/service/lgr"
)

// Engine is the slice of detect.Engine the runner needs.
type Engine interface {
	Initialize(kind model.AlgorithmKind) error
	Detect(frame *model.ImageBuffer) ([]model.Detection, error)
	Close() error
}

// Factory returns a fresh engine. Engines are never shared between kinds or
// with a live pipeline.
type Factory func() Engine

type Runner struct {
	factory Factory
}

func NewRunner(factory Factory) *Runner {
	return &Runner{factory: factory}
}

// Run benchmarks kinds in order and returns one result per kind that
// initialized. Kinds that fail to load are left out. Cancelling ctx stops
// before the next kind or frame; the results gathered so far are returned.
func (r *Runner) Run(ctx context.Context, frames []*model.ImageBuffer, kinds []model.AlgorithmKind) []model.BenchmarkResult {
	results := make([]model.BenchmarkResult, 0, len(kinds))
	if len(frames) == 0 {
		return results
	}

	for _, kind := range kinds {
		if ctx.Err() != nil {
			break
		}
		res, ok := r.runOne(ctx, frames, kind)
		if ok {
			results = append(results, res)
		}
	}
	return results
}

func (r *Runner) runOne(ctx context.Context, frames []*model.ImageBuffer, kind model.AlgorithmKind) (model.BenchmarkResult, bool) {
	engine := r.factory()
	defer engine.Close()

	if err := engine.Initialize(kind); err != nil {
		lgr.Logger.InfoContext(ctx, "benchmark skipping algorithm",
			slog.String("algorithm", kind.String()),
			slog.Any("error", err),
		)
		return model.BenchmarkResult{}, false
	}

	lgr.Logger.InfoContext(ctx, "benchmarking algorithm",
		slog.String("algorithm", kind.String()),
		slog.Int("frames", len(frames)),
	)

	var (
		total      time.Duration
		count      int
		detections int
		errs       int
	)
	for _, frame := range frames {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		dets, err := engine.Detect(frame)
		total += time.Since(start)
		count++
		if err != nil {
			errs++
			continue
		}
		detections += len(dets)
	}

	if errs > 0 {
		lgr.Logger.WarnContext(ctx, "benchmark detect errors",
			slog.String("algorithm", kind.String()),
			slog.Int("errors", errs),
		)
	}
	if count == 0 {
		return model.BenchmarkResult{}, false
	}
	return Summarize(kind, float64(total)/float64(time.Millisecond), count, detections), true
}

// Summarize derives the averages from a run's totals.
func Summarize(kind model.AlgorithmKind, totalMs float64, frames, detections int) model.BenchmarkResult {
	res := model.BenchmarkResult{
		Algorithm:       kind,
		Frames:          frames,
		TotalTimeMs:     totalMs,
		TotalDetections: detections,
	}
	if frames > 0 {
		res.AvgInferenceTimeMs = totalMs / float64(frames)
	}
	if res.AvgInferenceTimeMs > 0 {
		res.AvgFPS = 1000 / res.AvgInferenceTimeMs
	}
	return res
}
