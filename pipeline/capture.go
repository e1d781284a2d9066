package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/service/capture"
	"github.com/khaledhikmat/vs-detect/service/lgr"
)

// captureLoop pulls frames from the source and publishes them without ever
// waiting on the frame queue.
func (p *Pipeline) captureLoop(ctx context.Context) {
	defer p.wg.Done()

	startTime := time.Now()
	frames := 0
	errs := 0

	defer func() {
		p.reportStats(model.CaptureStats{
			Name:    "capture",
			Source:  p.source.Name(),
			FPS:     fpsOf(frames, startTime),
			Frames:  frames,
			Errors:  errs,
			Dropped: p.frames.Dropped(),
			Uptime:  uptimeSince(startTime),
		})
	}()

	retry := time.NewTimer(0)
	if !retry.Stop() {
		<-retry.C
	}
	defer retry.Stop()

	for {
		select {
		case <-ctx.Done():
			lgr.Logger.InfoContext(ctx, "capture context cancelled")
			return
		default:
		}

		frame, err := p.source.TryGetFrame()
		if err != nil {
			if errors.Is(err, capture.ErrClosed) {
				lgr.Logger.InfoContext(ctx, "capture source closed",
					slog.String("source", p.source.Name()),
					slog.Int("frames", frames),
				)
				return
			}

			errs++
			p.captureFailures.Add(1)
			if !errors.Is(err, capture.ErrNoFrame) {
				lgr.Logger.WarnContext(ctx, "capture read failed", slog.Any("error", err))
			}

			retry.Reset(p.opts.CaptureRetry)
			select {
			case <-ctx.Done():
				return
			case <-retry.C:
			}
			continue
		}

		frame.Seq = p.seq.Add(1)
		if frame.Timestamp.IsZero() {
			frame.Timestamp = time.Now()
		}
		frames++
		p.captured.Add(1)

		// The frame belongs to the queue from here on.
		if evicted := p.frames.Push(frame); evicted {
			lgr.Logger.DebugContext(ctx, "frame queue full, dropped oldest frame",
				slog.Uint64("seq", frame.Seq),
			)
		}
	}
}
