package mode

import (
	"context"
	"log/slog"

	"github.com/khaledhikmat/vs-detect/detect"
	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/service/config"
	"github.com/khaledhikmat/vs-detect/service/data"
	"github.com/khaledhikmat/vs-detect/service/inference"
	"github.com/khaledhikmat/vs-detect/service/lgr"
)

// Services are built once in main and shared by every mode.
type Services struct {
	CfgSvc    config.IService
	DataSvc   data.IService
	LoaderSvc inference.IService
	Catalog   *detect.Catalog
}

type Processor func(canxCtx context.Context, svcs Services) error

func newEngine(svcs Services) *detect.Engine {
	return detect.NewEngine(svcs.Catalog, svcs.LoaderSvc,
		detect.WithModelDir(svcs.CfgSvc.GetModelDir()),
		detect.WithGPU(svcs.CfgSvc.GetUseGPU()),
	)
}

func procStats(datasvc data.IService, stats interface{}) {
	var err error
	switch stats := stats.(type) {
	case model.CaptureStats:
		err = datasvc.NewCaptureStats(stats)
	case model.ProcessingStats:
		err = datasvc.NewProcessingStats(stats)
	case model.SinkStats:
		err = datasvc.NewSinkStats(stats)
	case model.PipelineStats:
		err = datasvc.NewPipelineStats(stats)
	default:
		lgr.Logger.Error(
			"unknown stats type",
			slog.Any("stats", stats),
		)
		return
	}

	if err != nil {
		lgr.Logger.Error(
			"failed to store stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procError(datasvc data.IService, err interface{}) {
	lgr.Logger.Error(
		"pipeline error",
		slog.Any("error", err),
	)

	errTemp := datasvc.NewError(err)
	if errTemp != nil {
		lgr.Logger.Error(
			"failed to store error",
			slog.Any("error", errTemp),
		)
	}
}
