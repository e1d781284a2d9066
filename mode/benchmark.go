package mode

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/khaledhikmat/vs-detect/benchmark"
	"github.com/khaledhikmat/vs-detect/service/lgr"
)

// Benchmark runs every requested algorithm over the same frame set and
// prints a comparison table. Algorithms that cannot load are skipped; the
// mode only fails when there are no frames to run.
func Benchmark(canxCtx context.Context, svcs Services) error {
	runID := uuid.New()
	canxCtx = lgr.WithRunID(canxCtx, runID)

	frames, err := benchmark.LoadFrames(svcs.CfgSvc.GetBenchmarkFrames(), svcs.CfgSvc.GetCaptureSize())
	if err != nil {
		return err
	}

	kinds, unknown := benchmark.Kinds(svcs.CfgSvc.GetBenchmarkAlgorithms(), svcs.Catalog)
	for _, name := range unknown {
		lgr.Logger.WarnContext(canxCtx, "ignoring unknown benchmark algorithm", slog.String("algorithm", name))
	}

	lgr.Logger.InfoContext(canxCtx, "benchmark starting",
		slog.Int("frames", len(frames)),
		slog.Int("algorithms", len(kinds)),
	)

	runner := benchmark.NewRunner(func() benchmark.Engine {
		return newEngine(svcs)
	})
	results := runner.Run(canxCtx, frames, kinds)

	if err := benchmark.WriteReport(os.Stdout, results); err != nil {
		return err
	}

	if len(results) > 0 {
		if err := svcs.DataSvc.SaveBenchmarkResults(runID.String(), results); err != nil {
			lgr.Logger.ErrorContext(canxCtx, "failed to store benchmark results", slog.Any("error", err))
		}
	}
	return nil
}
