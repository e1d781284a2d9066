package pipeline

import (
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-detect/model"
)

var (
	ErrStopped        = xerrors.New("pipeline stopped")
	ErrAlreadyStarted = xerrors.New("pipeline already started")
	ErrSwitchBusy     = xerrors.New("algorithm switch already pending")
)

// Detector is the part of the detection engine the processing stage drives.
type Detector interface {
	Detect(frame *model.ImageBuffer) ([]model.Detection, error)
	SetAlgorithm(kind model.AlgorithmKind) error
	Algorithm() model.AlgorithmKind
}

// loadReporter is implemented by detectors that remember why their last
// model load failed.
type loadReporter interface {
	LoadError() string
}

// repeatReportInterval bounds how often an identical detect error is logged
// and sent on the error stream.
const repeatReportInterval = 5 * time.Second

// errorThrottle suppresses consecutive repeats of the same error message.
type errorThrottle struct {
	msg        string
	reported   time.Time
	suppressed int
}

// allow reports whether msg should be reported at now, and how many repeats
// were suppressed since the last report.
func (t *errorThrottle) allow(msg string, now time.Time) (bool, int) {
	if msg == t.msg && now.Sub(t.reported) < repeatReportInterval {
		t.suppressed++
		return false, 0
	}
	suppressed := 0
	if msg == t.msg {
		suppressed = t.suppressed
	}
	t.msg = msg
	t.reported = now
	t.suppressed = 0
	return true, suppressed
}

type Options struct {
	FrameQueueCapacity  int
	ResultQueueCapacity int
	// CaptureRetry is the pause after a failed frame read.
	CaptureRetry time.Duration
	// ResultPoll bounds how long the consumer waits for a result before
	// rechecking for shutdown.
	ResultPoll time.Duration
	// OnResult, when set, sees every delivered result before the sink.
	OnResult func(model.Result)
}

func DefaultOptions() Options {
	return Options{
		FrameQueueCapacity:  5,
		ResultQueueCapacity: 5,
		CaptureRetry:        10 * time.Millisecond,
		ResultPoll:          100 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.FrameQueueCapacity <= 0 {
		o.FrameQueueCapacity = def.FrameQueueCapacity
	}
	if o.ResultQueueCapacity <= 0 {
		o.ResultQueueCapacity = def.ResultQueueCapacity
	}
	if o.CaptureRetry <= 0 {
		o.CaptureRetry = def.CaptureRetry
	}
	if o.ResultPoll <= 0 {
		o.ResultPoll = def.ResultPoll
	}
	return o
}

type switchRequest struct {
	kind model.AlgorithmKind
	done chan error
}
