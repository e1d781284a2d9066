package config

import (
	"time"

	"github.com/khaledhikmat/vs-detect/model"
)

type hardcodedService struct {
}

// NewHardCoded returns the built-in defaults.
func NewHardCoded() IService {
	return &hardcodedService{}
}

func (svc *hardcodedService) GetModeMaxShutdownTime() int {
	return 5
}

func (svc *hardcodedService) GetHTTPAddr() string {
	return ":8080"
}

func (svc *hardcodedService) GetLogFile() string {
	// Console only
	return ""
}

func (svc *hardcodedService) GetAlgorithm() string {
	return model.YoloV5.Key()
}

func (svc *hardcodedService) GetModelDir() string {
	return "./models"
}

func (svc *hardcodedService) GetProfilesFile() string {
	return ""
}

func (svc *hardcodedService) GetUseGPU() bool {
	return false
}

func (svc *hardcodedService) GetInferenceRuntime() string {
	return RuntimeOpenCV
}

func (svc *hardcodedService) GetORTLibraryPath() string {
	return ""
}

func (svc *hardcodedService) GetCaptureSource() string {
	return "random"
}

func (svc *hardcodedService) GetCaptureSize() model.Size {
	return model.Size{Width: 640, Height: 480}
}

func (svc *hardcodedService) GetCaptureRetry() time.Duration {
	return 10 * time.Millisecond
}

func (svc *hardcodedService) GetFrameQueueCapacity() int {
	return 5
}

func (svc *hardcodedService) GetResultQueueCapacity() int {
	return 5
}

func (svc *hardcodedService) GetResultPoll() time.Duration {
	return 100 * time.Millisecond
}

func (svc *hardcodedService) GetDetectionsLog() string {
	return "detections.log"
}

func (svc *hardcodedService) GetDBPath() string {
	return ""
}

func (svc *hardcodedService) GetSnapshotDir() string {
	return ""
}

func (svc *hardcodedService) GetSnapshotEvery() int {
	return 30
}

func (svc *hardcodedService) GetWebhookURL() string {
	// Disabled
	return ""
}

func (svc *hardcodedService) GetWebhookTimeout() time.Duration {
	return 2 * time.Second
}

func (svc *hardcodedService) GetBenchmarkFrames() string {
	// A number means that many synthetic frames; anything else is a directory.
	return "100"
}

func (svc *hardcodedService) GetBenchmarkAlgorithms() []string {
	return nil
}
