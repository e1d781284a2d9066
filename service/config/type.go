package config

import (
	"time"

	"github.com/khaledhikmat/vs-detect/model"
)

const (
	RuntimeOpenCV      = "opencv"
	RuntimeONNXRuntime = "onnxruntime"
)

type IService interface {
	GetModeMaxShutdownTime() int
	GetHTTPAddr() string
	GetLogFile() string

	GetAlgorithm() string
	GetModelDir() string
	GetProfilesFile() string
	GetUseGPU() bool
	GetInferenceRuntime() string
	GetORTLibraryPath() string

	GetCaptureSource() string
	GetCaptureSize() model.Size
	GetCaptureRetry() time.Duration
	GetFrameQueueCapacity() int
	GetResultQueueCapacity() int
	GetResultPoll() time.Duration

	GetDetectionsLog() string
	GetDBPath() string
	GetSnapshotDir() string
	GetSnapshotEvery() int
	GetWebhookURL() string
	GetWebhookTimeout() time.Duration

	GetBenchmarkFrames() string
	GetBenchmarkAlgorithms() []string
}
