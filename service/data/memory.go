package data

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/khaledhikmat/vs-detect/model"
)

type memoryDBService struct {
	mu         sync.RWMutex
	entities   map[string][]json.RawMessage
	detections []model.DetectionRecord
	benchmarks map[string][]model.BenchmarkResult
}

// NewMemory keeps everything in process memory. It is used when no database
// path is configured.
func NewMemory() IService {
	return &memoryDBService{
		entities:   map[string][]json.RawMessage{},
		benchmarks: map[string][]model.BenchmarkResult{},
	}
}

func (svc *memoryDBService) NewError(err interface{}) error {
	return newEntity(svc, toErrorRecord(err, time.Now().Unix()), "errors")
}

func (svc *memoryDBService) NewCaptureStats(stats model.CaptureStats) error {
	stats.Timestamp = time.Now().Unix()
	return newEntity(svc, stats, "capture-stats")
}

func (svc *memoryDBService) NewProcessingStats(stats model.ProcessingStats) error {
	stats.Timestamp = time.Now().Unix()
	return newEntity(svc, stats, "processing-stats")
}

func (svc *memoryDBService) NewSinkStats(stats model.SinkStats) error {
	stats.Timestamp = time.Now().Unix()
	return newEntity(svc, stats, "sink-stats")
}

func (svc *memoryDBService) NewPipelineStats(stats model.PipelineStats) error {
	if stats.Timestamp == 0 {
		stats.Timestamp = time.Now().Unix()
	}
	return newEntity(svc, stats, "pipeline-stats")
}

func (svc *memoryDBService) SaveDetections(res model.Result) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.detections = append(svc.detections, res.Records()...)
	return nil
}

func (svc *memoryDBService) RetrieveRecentDetections(limit int) ([]model.DetectionRecord, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	n := len(svc.detections)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]model.DetectionRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, svc.detections[i])
	}
	return out, nil
}

func (svc *memoryDBService) SaveBenchmarkResults(runID string, results []model.BenchmarkResult) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.benchmarks[runID] = append(svc.benchmarks[runID], results...)
	return nil
}

func (svc *memoryDBService) RetrieveBenchmarkResults(runID string) ([]model.BenchmarkResult, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return append([]model.BenchmarkResult(nil), svc.benchmarks[runID]...), nil
}

func (svc *memoryDBService) Close() error {
	return nil
}

// Entities returns the raw JSON documents stored under a collection name.
func (svc *memoryDBService) Entities(collection string) []json.RawMessage {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return append([]json.RawMessage(nil), svc.entities[collection]...)
}

func newEntity[T any](svc *memoryDBService, entity T, collection string) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.entities[collection] = append(svc.entities[collection], data)
	return nil
}

func fmtAny(v interface{}) string {
	return fmt.Sprintf("%v", v)
}
