package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/khaledhikmat/vs-detect/model"
)

type envService struct {
	base IService
}

// NewEnv layers environment variables over base. Unset or unparsable
// variables fall through to base.
func NewEnv(base IService) IService {
	if base == nil {
		base = NewHardCoded()
	}
	return &envService{base: base}
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getEnvAsBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getEnvAsMillis(key string, def time.Duration) time.Duration {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v < 0 {
		return def
	}
	return time.Duration(v) * time.Millisecond
}

func getEnvAsList(key string, def []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (svc *envService) GetModeMaxShutdownTime() int {
	return getEnvAsInt("MODE_MAX_SHUTDOWN_SECS", svc.base.GetModeMaxShutdownTime())
}

func (svc *envService) GetHTTPAddr() string {
	return getEnv("HTTP_ADDR", svc.base.GetHTTPAddr())
}

func (svc *envService) GetLogFile() string {
	return getEnv("LOG_FILE", svc.base.GetLogFile())
}

func (svc *envService) GetAlgorithm() string {
	return getEnv("ALGORITHM", svc.base.GetAlgorithm())
}

func (svc *envService) GetModelDir() string {
	return getEnv("MODEL_DIR", svc.base.GetModelDir())
}

func (svc *envService) GetProfilesFile() string {
	return getEnv("PROFILES_FILE", svc.base.GetProfilesFile())
}

func (svc *envService) GetUseGPU() bool {
	return getEnvAsBool("USE_GPU", svc.base.GetUseGPU())
}

func (svc *envService) GetInferenceRuntime() string {
	return strings.ToLower(getEnv("INFERENCE_RUNTIME", svc.base.GetInferenceRuntime()))
}

func (svc *envService) GetORTLibraryPath() string {
	return getEnv("ORT_LIBRARY_PATH", svc.base.GetORTLibraryPath())
}

func (svc *envService) GetCaptureSource() string {
	return getEnv("CAPTURE_SOURCE", svc.base.GetCaptureSource())
}

func (svc *envService) GetCaptureSize() model.Size {
	def := svc.base.GetCaptureSize()
	return model.Size{
		Width:  getEnvAsInt("CAPTURE_WIDTH", def.Width),
		Height: getEnvAsInt("CAPTURE_HEIGHT", def.Height),
	}
}

func (svc *envService) GetCaptureRetry() time.Duration {
	return getEnvAsMillis("CAPTURE_RETRY_MS", svc.base.GetCaptureRetry())
}

func (svc *envService) GetFrameQueueCapacity() int {
	return getEnvAsInt("FRAME_QUEUE_CAPACITY", svc.base.GetFrameQueueCapacity())
}

func (svc *envService) GetResultQueueCapacity() int {
	return getEnvAsInt("RESULT_QUEUE_CAPACITY", svc.base.GetResultQueueCapacity())
}

func (svc *envService) GetResultPoll() time.Duration {
	return getEnvAsMillis("RESULT_POLL_MS", svc.base.GetResultPoll())
}

func (svc *envService) GetDetectionsLog() string {
	return getEnv("DETECTIONS_LOG", svc.base.GetDetectionsLog())
}

func (svc *envService) GetDBPath() string {
	return getEnv("DB_PATH", svc.base.GetDBPath())
}

func (svc *envService) GetSnapshotDir() string {
	return getEnv("SNAPSHOT_DIR", svc.base.GetSnapshotDir())
}

func (svc *envService) GetSnapshotEvery() int {
	return getEnvAsInt("SNAPSHOT_EVERY", svc.base.GetSnapshotEvery())
}

func (svc *envService) GetWebhookURL() string {
	return getEnv("WEBHOOK_URL", svc.base.GetWebhookURL())
}

func (svc *envService) GetWebhookTimeout() time.Duration {
	return getEnvAsMillis("WEBHOOK_TIMEOUT_MS", svc.base.GetWebhookTimeout())
}

func (svc *envService) GetBenchmarkFrames() string {
	return getEnv("BENCHMARK_FRAMES", svc.base.GetBenchmarkFrames())
}

func (svc *envService) GetBenchmarkAlgorithms() []string {
	return getEnvAsList("BENCHMARK_ALGORITHMS", svc.base.GetBenchmarkAlgorithms())
}
