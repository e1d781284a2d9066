package mode

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-detect/control"
	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/pipeline"
	"github.com/khaledhikmat/vs-detect/service/capture"
	"github.com/khaledhikmat/vs-detect/service/capture/gocvcap"
	"github.com/khaledhikmat/vs-detect/service/config"
	"github.com/khaledhikmat/vs-detect/service/lgr"
	"github.com/khaledhikmat/vs-detect/service/webhook"
	"github.com/khaledhikmat/vs-detect/sink"
	"github.com/khaledhikmat/vs-detect/sink/annotate"
)

const (
	statsPeriod     = 10 * time.Second
	switchWait      = 5 * time.Second
	webhookCooldown = 10 * time.Second
)

// Live runs the capture/detect/sink pipeline and the control server until
// the context is cancelled.
func Live(canxCtx context.Context, svcs Services) error {
	runID := uuid.New()
	canxCtx = lgr.WithRunID(canxCtx, runID)

	kind, ok := model.ParseAlgorithm(svcs.CfgSvc.GetAlgorithm())
	if !ok {
		return xerrors.Errorf("unknown algorithm %q", svcs.CfgSvc.GetAlgorithm())
	}

	engine := newEngine(svcs)
	defer engine.Close()

	// A failed load leaves the engine uninitialized: frames keep flowing with
	// empty results and the last error is visible on /algorithm until a
	// switch succeeds.
	if err := engine.Initialize(kind); err != nil {
		procError(svcs.DataSvc, model.GenError("live", err,
			map[string]interface{}{"algorithm": kind.Key()},
			"initial algorithm failed to load"))
	}

	source, err := openSource(svcs.CfgSvc)
	if err != nil {
		return err
	}
	defer source.Close()

	hub := sink.NewBroadcaster(svcs.CfgSvc.GetResultQueueCapacity())
	go hub.Run(canxCtx)

	out, err := buildSinks(svcs, hub)
	if err != nil {
		return err
	}
	defer out.Close()

	errorStream := make(chan interface{}, 64)
	statsStream := make(chan interface{}, 16)

	p := pipeline.New(source, engine, out, pipeline.Options{
		FrameQueueCapacity:  svcs.CfgSvc.GetFrameQueueCapacity(),
		ResultQueueCapacity: svcs.CfgSvc.GetResultQueueCapacity(),
		CaptureRetry:        svcs.CfgSvc.GetCaptureRetry(),
		ResultPoll:          svcs.CfgSvc.GetResultPoll(),
	}, errorStream, statsStream)

	if err := p.Start(canxCtx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         svcs.CfgSvc.GetHTTPAddr(),
		Handler:      control.NewRouter(p, svcs.Catalog, svcs.DataSvc, hub, switchWait),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	go func() {
		lgr.Logger.InfoContext(canxCtx, "control server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorStream <- model.GenError("control", err, map[string]interface{}{"addr": srv.Addr}, "control server failed")
		}
	}()

	ticker := time.NewTicker(statsPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.InfoContext(canxCtx, "live mode context cancelled")
			goto resume

		case <-ticker.C:
			stats := p.Stats()
			lgr.Logger.InfoContext(canxCtx, "pipeline stats",
				slog.String("algorithm", stats.Algorithm),
				slog.Float64("fps", stats.FPS),
				slog.Float64("avgDetectionMs", stats.AvgDetectionMs),
				slog.Uint64("captured", stats.FramesCaptured),
				slog.Uint64("frameDrops", stats.FrameQueueDrops),
				slog.Uint64("detectErrors", stats.DetectErrors),
			)
			procStats(svcs.DataSvc, stats)

		case s := <-statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}

resume:
	lgr.Logger.InfoContext(canxCtx, "live mode is waiting for the pipeline to exit")

	shutdown := time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime()) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lgr.Logger.Warn("control server shutdown", slog.Any("error", err))
	}

	p.Stop()
	procStats(svcs.DataSvc, p.Stats())

	// Stage stats and late errors are buffered; drain what is there.
	for {
		select {
		case s := <-statsStream:
			procStats(svcs.DataSvc, s)
		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		default:
			return nil
		}
	}
}

// openSource maps CAPTURE_SOURCE to a frame source: "random", an image
// directory replayed in a loop, or anything OpenCV can open (device index,
// file, URL).
func openSource(cfgSvc config.IService) (capture.IService, error) {
	src := cfgSvc.GetCaptureSource()
	size := cfgSvc.GetCaptureSize()

	if src == "random" {
		return capture.NewRandom(size.Width, size.Height, 0), nil
	}
	if _, err := strconv.Atoi(src); err != nil {
		if info, statErr := os.Stat(src); statErr == nil && info.IsDir() {
			frames, err := capture.LoadDir(src)
			if err != nil {
				return nil, err
			}
			return capture.NewReplay(frames, true), nil
		}
	}
	return gocvcap.New(src, size.Width, size.Height)
}

func buildSinks(svcs Services, hub *sink.Broadcaster) (sink.Sink, error) {
	out := sink.Multi{hub, sink.NewStore(svcs.DataSvc)}

	if path := svcs.CfgSvc.GetDetectionsLog(); path != "" {
		out = append(out, sink.NewJSONLog(path))
	}
	if url := svcs.CfgSvc.GetWebhookURL(); url != "" {
		out = append(out, sink.NewWebhook(webhook.NewHTTP(url, svcs.CfgSvc.GetWebhookTimeout()), webhookCooldown))
	}
	if dir := svcs.CfgSvc.GetSnapshotDir(); dir != "" {
		snapshots, err := annotate.NewSnapshots(dir, svcs.CfgSvc.GetSnapshotEvery())
		if err != nil {
			return nil, err
		}
		out = append(out, snapshots)
	}
	return out, nil
}
