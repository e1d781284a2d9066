package model

import (
	"fmt"
	"runtime/debug"
	"time"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (e CustomError) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("%s: %s: %v", e.Processor, e.Message, e.Inner)
	}
	return fmt.Sprintf("%s: %s", e.Processor, e.Message)
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

func GenError(proc string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	return CustomError{
		Processor:  proc,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

// Result is one processed frame travelling from the processing stage to the sinks.
type Result struct {
	Frame       *ImageBuffer  `json:"-"`
	Seq         uint64        `json:"seq"`
	Algorithm   AlgorithmKind `json:"algorithm"`
	Detections  []Detection   `json:"detections"`
	Latency     time.Duration `json:"latency"`
	CapturedAt  time.Time     `json:"capturedAt"`
	ProcessedAt time.Time     `json:"processedAt"`
}

type CaptureStats struct {
	Name      string `json:"name"`
	Source    string `json:"source"`
	FPS       int    `json:"fps"`
	Frames    int    `json:"frames"`
	Errors    int    `json:"errors"`
	Dropped   uint64 `json:"dropped"`
	Uptime    int64  `json:"uptime"`
	Timestamp int64  `json:"timestamp"`
}

type ProcessingStats struct {
	Name        string  `json:"name"`
	Algorithm   string  `json:"algorithm"`
	FPS         int     `json:"fps"`
	Frames      int     `json:"frames"`
	Errors      int     `json:"errors"`
	Detections  int     `json:"detections"`
	Uptime      int64   `json:"uptime"`
	AvgProcTime float64 `json:"avgProcTime"`
	Timestamp   int64   `json:"timestamp"`
}

type SinkStats struct {
	Name      string `json:"name"`
	Results   int    `json:"results"`
	Errors    int    `json:"errors"`
	Dropped   uint64 `json:"dropped"`
	Uptime    int64  `json:"uptime"`
	Timestamp int64  `json:"timestamp"`
}

// PipelineStats is a point-in-time snapshot of the running pipeline.
type PipelineStats struct {
	RunID            string  `json:"runId"`
	Algorithm        string  `json:"algorithm"`
	FramesCaptured   uint64  `json:"framesCaptured"`
	CaptureFailures  uint64  `json:"captureFailures"`
	FrameQueueDrops  uint64  `json:"frameQueueDrops"`
	ResultQueueDrops uint64  `json:"resultQueueDrops"`
	FramesProcessed  uint64  `json:"framesProcessed"`
	DetectErrors     uint64  `json:"detectErrors"`
	Detections       uint64  `json:"detections"`
	ResultsDelivered uint64  `json:"resultsDelivered"`
	SinkErrors       uint64  `json:"sinkErrors"`
	FPS              float64 `json:"fps"`
	AvgDetectionMs   float64 `json:"avgDetectionMs"`
	Uptime           int64   `json:"uptime"`
	Timestamp        int64   `json:"timestamp"`
}

// BenchmarkResult aggregates one algorithm's run over a fixed frame set.
// MemoryUsageMB and AccuracyScore are not measured and stay zero.
type BenchmarkResult struct {
	Algorithm          AlgorithmKind `json:"algorithm"`
	Frames             int           `json:"frames"`
	TotalTimeMs        float64       `json:"totalTimeMs"`
	AvgInferenceTimeMs float64       `json:"avgInferenceTimeMs"`
	AvgFPS             float64       `json:"avgFps"`
	TotalDetections    int           `json:"totalDetections"`
	MemoryUsageMB      float64       `json:"memoryUsageMb"`
	AccuracyScore      float64       `json:"accuracyScore"`
}

// DetectionRecord is one persisted detection, flattened for storage.
type DetectionRecord struct {
	Seq        uint64        `json:"seq"`
	Algorithm  AlgorithmKind `json:"algorithm"`
	Box        Rect          `json:"box"`
	Confidence float32       `json:"confidence"`
	CapturedAt time.Time     `json:"capturedAt"`
}

// Records flattens r into one record per detection.
func (r Result) Records() []DetectionRecord {
	out := make([]DetectionRecord, 0, len(r.Detections))
	for _, d := range r.Detections {
		out = append(out, DetectionRecord{
			Seq:        r.Seq,
			Algorithm:  d.Algorithm,
			Box:        d.Box,
			Confidence: d.Confidence,
			CapturedAt: r.CapturedAt,
		})
	}
	return out
}
