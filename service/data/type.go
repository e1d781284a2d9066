package data

import "github.com/khaledhikmat/vs-detect/model"

type IService interface {
	NewError(err interface{}) error
	NewCaptureStats(stats model.CaptureStats) error
	NewProcessingStats(stats model.ProcessingStats) error
	NewSinkStats(stats model.SinkStats) error
	NewPipelineStats(stats model.PipelineStats) error

	SaveDetections(res model.Result) error
	RetrieveRecentDetections(limit int) ([]model.DetectionRecord, error)

	SaveBenchmarkResults(runID string, results []model.BenchmarkResult) error
	RetrieveBenchmarkResults(runID string) ([]model.BenchmarkResult, error)

	Close() error
}

// ErrorRecord is the persisted form of an error reported over an error stream.
type ErrorRecord struct {
	Timestamp  int64                  `json:"timestamp"`
	Processor  string                 `json:"processor"`
	Inner      string                 `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func toErrorRecord(err interface{}, now int64) ErrorRecord {
	rec := ErrorRecord{
		Timestamp:  now,
		Processor:  "N/A",
		StackTrace: "N/A",
	}

	switch e := err.(type) {
	case model.CustomError:
		rec.Processor = e.Processor
		rec.Message = e.Message
		rec.StackTrace = e.StackTrace
		rec.Misc = e.Misc
		if e.Inner != nil {
			rec.Inner = e.Inner.Error()
		}
	case error:
		rec.Inner = e.Error()
		rec.Message = e.Error()
	default:
		rec.Message = fmtAny(err)
	}
	return rec
}
