package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/khaledhikmat/vs-detect/detect"
	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/service/lgr"
)

// processLoop is the only goroutine that drives the detector while the
// pipeline runs, so algorithm switches are applied here too.
func (p *Pipeline) processLoop(ctx context.Context) {
	defer p.wg.Done()

	startTime := time.Now()
	frames := 0
	errs := 0
	dets := 0
	var totalInferenceTime time.Duration
	var throttle errorThrottle

	defer func() {
		var avgProcTime float64
		if frames > errs {
			avgProcTime = totalInferenceTime.Seconds() / float64(frames-errs)
		}
		p.reportStats(model.ProcessingStats{
			Name:        "processing",
			Algorithm:   p.detector.Algorithm().String(),
			FPS:         fpsOf(frames, startTime),
			Frames:      frames,
			Errors:      errs,
			Detections:  dets,
			Uptime:      uptimeSince(startTime),
			AvgProcTime: avgProcTime,
		})
	}()
	defer p.rejectPendingSwitches()

	for {
		frame, ok := p.frames.Pop()
		if !ok {
			lgr.Logger.InfoContext(ctx, "processing stopped")
			return
		}

		p.applySwitches(ctx)

		start := time.Now()
		found, err := p.detector.Detect(frame)
		elapsed := time.Since(start)

		frames++
		p.processed.Add(1)
		p.tickFPS(start)

		if err != nil {
			errs++
			p.detectErrors.Add(1)
			msg := p.describe(err)
			p.setLastError(msg)

			report, suppressed := throttle.allow(msg, start)
			if !report {
				continue
			}
			lgr.Logger.WarnContext(ctx, "detect failed",
				slog.Uint64("seq", frame.Seq),
				slog.Int("suppressedRepeats", suppressed),
				slog.Any("error", err),
			)
			p.reportError(model.GenError("processing", err,
				map[string]interface{}{"seq": frame.Seq, "algorithm": p.detector.Algorithm().Key(), "suppressedRepeats": suppressed},
				"detect failed: %s", msg))
			continue
		}

		dets += len(found)
		totalInferenceTime += elapsed
		p.detections.Add(uint64(len(found)))
		p.detectNanos.Add(int64(elapsed))
		p.detectCalls.Add(1)

		p.results.Push(model.Result{
			Frame:       frame,
			Seq:         frame.Seq,
			Algorithm:   p.detector.Algorithm(),
			Detections:  found,
			Latency:     elapsed,
			CapturedAt:  frame.Timestamp,
			ProcessedAt: time.Now(),
		})
	}
}

func (p *Pipeline) applySwitches(ctx context.Context) {
	for {
		select {
		case req := <-p.switches:
			err := p.detector.SetAlgorithm(req.kind)
			if err != nil {
				p.setLastError(err.Error())
				lgr.Logger.WarnContext(ctx, "algorithm switch failed",
					slog.String("algorithm", req.kind.String()),
					slog.Any("error", err),
				)
			} else {
				p.setLastError("")
				lgr.Logger.InfoContext(ctx, "algorithm switched",
					slog.String("algorithm", req.kind.String()),
				)
			}
			req.done <- err
		default:
			return
		}
	}
}

// rejectPendingSwitches runs when processing exits. Later requests are applied
// directly by RequestAlgorithm.
func (p *Pipeline) rejectPendingSwitches() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.running = false
	for {
		select {
		case req := <-p.switches:
			req.done <- ErrStopped
		default:
			return
		}
	}
}

// describe adds the detector's load failure to not-initialized errors, so an
// engine that never loaded reports why.
func (p *Pipeline) describe(err error) string {
	lr, ok := p.detector.(loadReporter)
	if !ok || !errors.Is(err, detect.ErrNotInitialized) {
		return err.Error()
	}
	loadErr := lr.LoadError()
	if loadErr == "" || strings.Contains(err.Error(), loadErr) {
		return err.Error()
	}
	return err.Error() + ": " + loadErr
}

func (p *Pipeline) setLastError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastError = msg
}

// tickFPS maintains a one-second window frame rate.
func (p *Pipeline) tickFPS(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.windowN++
	if elapsed := now.Sub(p.window); elapsed >= time.Second {
		p.fps = float64(p.windowN) / elapsed.Seconds()
		p.windowN = 0
		p.window = now
	}
}
