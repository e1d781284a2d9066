// Package pipeline runs the three long-lived stages: capture, processing and
// result consumption, connected by two drop-oldest queues.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/queue"
	"github.com/khaledhikmat/vs-detect/service/capture"
	"github.com/khaledhikmat/vs-detect/service/lgr"
	"github.com/khaledhikmat/vs-detect/sink"
)

type Pipeline struct {
	source   capture.IService
	detector Detector
	sink     sink.Sink
	opts     Options

	errorStream chan interface{}
	statsStream chan interface{}

	frames   *queue.Bounded[*model.ImageBuffer]
	results  *queue.Bounded[model.Result]
	switches chan switchRequest

	runID    string
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	mu        sync.Mutex
	started   time.Time
	running   bool
	stopped   bool
	fps       float64
	window    time.Time
	windowN   int
	lastError string

	seq             atomic.Uint64
	captured        atomic.Uint64
	captureFailures atomic.Uint64
	processed       atomic.Uint64
	detectErrors    atomic.Uint64
	detections      atomic.Uint64
	delivered       atomic.Uint64
	sinkErrors      atomic.Uint64
	detectNanos     atomic.Int64
	detectCalls     atomic.Uint64
}

// New wires a pipeline. errorStream and statsStream may be nil; sends on them
// never block.
func New(source capture.IService, detector Detector, out sink.Sink, opts Options, errorStream, statsStream chan interface{}) *Pipeline {
	opts = opts.withDefaults()
	return &Pipeline{
		source:      source,
		detector:    detector,
		sink:        out,
		opts:        opts,
		errorStream: errorStream,
		statsStream: statsStream,
		frames:      queue.New[*model.ImageBuffer](opts.FrameQueueCapacity),
		results:     queue.New[model.Result](opts.ResultQueueCapacity),
		switches:    make(chan switchRequest, 1),
	}
}

// Start launches the stages. They run until Stop is called or ctx is done.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running || p.stopped {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}

	id, ok := lgr.RunID(ctx)
	if !ok {
		id = uuid.New()
		ctx = lgr.WithRunID(ctx, id)
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.runID = id.String()
	p.started = time.Now()
	p.window = p.started
	p.running = true
	p.mu.Unlock()

	lgr.Logger.InfoContext(ctx, "pipeline starting",
		slog.String("source", p.source.Name()),
		slog.String("algorithm", p.detector.Algorithm().String()),
		slog.Int("frameQueue", p.frames.Cap()),
		slog.Int("resultQueue", p.results.Cap()),
	)

	p.wg.Add(4)
	go p.captureLoop(ctx)
	go p.processLoop(ctx)
	go p.consumeLoop(ctx)
	go func() {
		defer p.wg.Done()
		<-ctx.Done()
		// Wake any stage blocked on a queue.
		p.frames.Stop()
		p.results.Stop()
	}()
	return nil
}

// Stop signals every stage, wakes blocked consumers and waits for all of
// them to exit. A detect call in flight runs to completion first.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		cancel := p.cancel
		p.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		p.frames.Stop()
		p.results.Stop()
	})
	p.wg.Wait()
}

// Wait blocks until every stage has exited.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// RequestAlgorithm asks the processing stage to switch algorithms before its
// next detect call. The returned channel yields the switch outcome. When the
// pipeline is not running the switch is applied immediately.
func (p *Pipeline) RequestAlgorithm(kind model.AlgorithmKind) <-chan error {
	done := make(chan error, 1)

	p.mu.Lock()
	switch {
	case p.stopped:
		done <- ErrStopped
	case p.running:
		select {
		case p.switches <- switchRequest{kind: kind, done: done}:
		default:
			done <- ErrSwitchBusy
		}
	default:
		p.mu.Unlock()
		err := p.detector.SetAlgorithm(kind)
		if err != nil {
			p.setLastError(err.Error())
		} else {
			p.setLastError("")
		}
		done <- err
		return done
	}
	p.mu.Unlock()
	return done
}

func (p *Pipeline) Algorithm() model.AlgorithmKind {
	return p.detector.Algorithm()
}

func (p *Pipeline) Stats() model.PipelineStats {
	p.mu.Lock()
	started, fps, runID := p.started, p.fps, p.runID
	p.mu.Unlock()

	stats := model.PipelineStats{
		RunID:            runID,
		Algorithm:        p.detector.Algorithm().String(),
		FramesCaptured:   p.captured.Load(),
		CaptureFailures:  p.captureFailures.Load(),
		FrameQueueDrops:  p.frames.Dropped(),
		ResultQueueDrops: p.results.Dropped(),
		FramesProcessed:  p.processed.Load(),
		DetectErrors:     p.detectErrors.Load(),
		Detections:       p.detections.Load(),
		ResultsDelivered: p.delivered.Load(),
		SinkErrors:       p.sinkErrors.Load(),
		FPS:              fps,
		Timestamp:        time.Now().Unix(),
	}
	if calls := p.detectCalls.Load(); calls > 0 {
		stats.AvgDetectionMs = float64(p.detectNanos.Load()) / float64(calls) / float64(time.Millisecond)
	}
	if !started.IsZero() {
		stats.Uptime = int64(time.Since(started).Seconds())
	}
	return stats
}

// LastError is the most recent detect or switch error. Before any is
// recorded it falls back to the detector's load failure, or "".
func (p *Pipeline) LastError() string {
	p.mu.Lock()
	msg := p.lastError
	p.mu.Unlock()
	if msg != "" {
		return msg
	}
	if lr, ok := p.detector.(loadReporter); ok {
		return lr.LoadError()
	}
	return ""
}

func (p *Pipeline) reportError(err model.CustomError) {
	if p.errorStream == nil {
		return
	}
	select {
	case p.errorStream <- err:
	default:
	}
}

func (p *Pipeline) reportStats(stats interface{}) {
	if p.statsStream == nil {
		return
	}
	select {
	case p.statsStream <- stats:
	default:
	}
}

func uptimeSince(start time.Time) int64 {
	return int64(time.Since(start).Seconds())
}

func fpsOf(frames int, start time.Time) int {
	secs := time.Since(start).Seconds()
	if secs < 1 {
		return frames
	}
	return int(float64(frames) / secs)
}
