package detect

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/service/inference"
	"github.com/khaledhikmat/vs-detect/service/lgr"
)

type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateDetecting
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateDetecting:
		return "detecting"
	default:
		return "unknown"
	}
}

// Config selects an algorithm and optionally overrides where its model lives
// and how its output is thresholded.
type Config struct {
	Algorithm  model.AlgorithmKind
	ModelPath  string
	ConfigPath string
	Thresholds *model.Thresholds
}

type Option func(e *Engine)

// WithModelDir sets the directory profile model files are resolved against.
func WithModelDir(dir string) Option {
	return func(e *Engine) {
		e.modelDir = dir
	}
}

func WithGPU(use bool) Option {
	return func(e *Engine) {
		e.useGPU = use
	}
}

// Engine runs one active algorithm at a time. Detect, Initialize and the
// load/unload calls are serialized; State, Algorithm and LastError may be
// read from any goroutine.
type Engine struct {
	op sync.Mutex

	mu         sync.Mutex
	registry   *Registry
	loader     inference.IService
	modelDir   string
	useGPU     bool
	state      State
	active     model.AlgorithmKind
	thresholds map[model.AlgorithmKind]model.Thresholds
	lastErr    error
	loadErr    error

	profiling  bool
	lastMs     float64
	totalMs    float64
	detections uint64
	calls      uint64
}

func NewEngine(catalog *Catalog, loader inference.IService, opts ...Option) *Engine {
	e := &Engine{
		registry:   NewRegistry(catalog),
		loader:     loader,
		thresholds: map[model.AlgorithmKind]model.Thresholds{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Algorithm is the active algorithm, AlgorithmUnknown before the first
// successful load.
func (e *Engine) Algorithm() model.AlgorithmKind {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Engine) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastErr == nil {
		return ""
	}
	return e.lastErr.Error()
}

// LoadError is the most recent model load failure, cleared by the next
// successful Initialize.
func (e *Engine) LoadError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loadErr == nil {
		return ""
	}
	return e.loadErr.Error()
}

func (e *Engine) Profile(kind model.AlgorithmKind) model.AlgorithmProfile {
	return e.registry.Profile(kind)
}

func (e *Engine) Profiles() []model.AlgorithmProfile {
	return e.registry.Profiles()
}

// Initialize makes kind the active algorithm, loading it if needed. On
// failure the engine keeps its previous algorithm, or stays uninitialized.
func (e *Engine) Initialize(kind model.AlgorithmKind) error {
	return e.InitializeWithConfig(Config{Algorithm: kind})
}

func (e *Engine) InitializeWithConfig(cfg Config) error {
	e.op.Lock()
	defer e.op.Unlock()

	e.mu.Lock()
	resident := e.registry.IsLoaded(cfg.Algorithm) && cfg.ModelPath == ""
	e.mu.Unlock()

	if !resident {
		if err := e.load(cfg.Algorithm, cfg.ModelPath, cfg.ConfigPath); err != nil {
			return err
		}
	}

	e.mu.Lock()
	prev := e.active
	if cfg.Thresholds != nil {
		e.thresholds[cfg.Algorithm] = *cfg.Thresholds
	}
	e.active = cfg.Algorithm
	e.state = StateReady
	e.lastErr = nil
	e.loadErr = nil
	e.mu.Unlock()

	if prev != cfg.Algorithm {
		lgr.Logger.Info("detection engine algorithm active",
			slog.String("algorithm", cfg.Algorithm.String()),
			slog.String("previous", prev.String()),
		)
	}
	return nil
}

// SetAlgorithm switches algorithms; it is a no-op when kind is already active.
func (e *Engine) SetAlgorithm(kind model.AlgorithmKind) error {
	e.mu.Lock()
	same := e.state == StateReady && e.active == kind
	e.mu.Unlock()
	if same {
		return nil
	}
	return e.Initialize(kind)
}

// LoadModel loads kind from explicit paths and keeps it resident without
// activating it.
func (e *Engine) LoadModel(kind model.AlgorithmKind, modelPath, configPath string) error {
	e.op.Lock()
	defer e.op.Unlock()
	return e.load(kind, modelPath, configPath)
}

func (e *Engine) IsModelLoaded(kind model.AlgorithmKind) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.IsLoaded(kind)
}

func (e *Engine) LoadedModels() []model.AlgorithmKind {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Loaded()
}

// UnloadModel releases kind. Unloading the active algorithm returns the
// engine to Uninitialized.
func (e *Engine) UnloadModel(kind model.AlgorithmKind) error {
	e.op.Lock()
	defer e.op.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == kind {
		e.active = model.AlgorithmUnknown
		e.state = StateUninitialized
	}
	return e.registry.Unload(kind)
}

// Close unloads every backend.
func (e *Engine) Close() error {
	e.op.Lock()
	defer e.op.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = model.AlgorithmUnknown
	e.state = StateUninitialized
	return e.registry.UnloadAll()
}

// load runs the load path for kind; e.op must be held.
func (e *Engine) load(kind model.AlgorithmKind, modelPath, configPath string) error {
	profile := e.registry.Profile(kind)
	if profile.Empty() {
		return e.loadFailed(kind, "", xerrors.Errorf("%s: %w", kind, ErrUnsupportedAlgorithm))
	}
	if _, ok := StrategyFor(kind); !ok {
		return e.loadFailed(kind, "", xerrors.Errorf("%s: no decoder: %w", kind, ErrUnsupportedAlgorithm))
	}

	if modelPath == "" {
		modelPath = e.resolve(profile.ModelFile)
	}
	if configPath == "" && profile.ConfigFile != "" {
		configPath = e.resolve(profile.ConfigFile)
	}

	e.mu.Lock()
	prevState := e.state
	e.state = StateLoading
	e.mu.Unlock()

	started := time.Now()
	backend, err := e.loader.Load(inference.ModelSpec{
		Kind:       kind,
		Path:       modelPath,
		ConfigPath: configPath,
		InputSize:  profile.InputSize,
		UseGPU:     e.useGPU,
		Cascade:    profile.Cascade,
	})

	e.mu.Lock()
	e.state = prevState
	e.mu.Unlock()

	if err != nil {
		return e.loadFailed(kind, modelPath, err)
	}

	e.mu.Lock()
	e.registry.put(kind, modelPath, backend)
	e.mu.Unlock()

	lgr.Logger.Info("model loaded",
		slog.String("algorithm", kind.String()),
		slog.String("path", modelPath),
		slog.Duration("took", time.Since(started)),
	)
	return nil
}

func (e *Engine) loadFailed(kind model.AlgorithmKind, path string, err error) error {
	lerr := &ModelLoadError{Kind: kind, Path: path, Err: err}

	e.mu.Lock()
	e.registry.fail(kind, path, lerr)
	e.lastErr = lerr
	e.loadErr = lerr
	state := e.state
	e.mu.Unlock()

	lgr.Logger.Error("model load failed",
		slog.String("algorithm", kind.String()),
		slog.String("state", state.String()),
		slog.Any("error", lerr),
	)
	return lerr
}

func (e *Engine) resolve(file string) string {
	if file == "" || filepath.IsAbs(file) || e.modelDir == "" {
		return file
	}
	return filepath.Join(e.modelDir, file)
}

// Detect runs the active algorithm over frame. Every returned detection is
// tagged with the algorithm and the wall-clock time of the whole call.
func (e *Engine) Detect(frame *model.ImageBuffer) ([]model.Detection, error) {
	e.op.Lock()
	defer e.op.Unlock()

	e.mu.Lock()
	if e.state != StateReady {
		// Keep the load failure that left the engine uninitialized.
		if e.loadErr == nil {
			e.lastErr = ErrNotInitialized
		}
		e.mu.Unlock()
		return nil, ErrNotInitialized
	}
	if frame.Empty() {
		e.lastErr = ErrInvalidInput
		e.mu.Unlock()
		return nil, ErrInvalidInput
	}
	kind := e.active
	lb, _ := e.registry.Backend(kind)
	profile := e.registry.Profile(kind)
	override, hasOverride := e.thresholds[kind]
	e.state = StateDetecting
	e.mu.Unlock()

	started := time.Now()
	dets, err := e.run(lb.Backend, kind, profile, override, hasOverride, frame)
	took := time.Since(started)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateReady
	if err != nil {
		e.lastErr = err
		return nil, err
	}

	for i := range dets {
		dets[i].Algorithm = kind
		dets[i].Latency = took
	}

	if e.profiling {
		e.lastMs = float64(took) / float64(time.Millisecond)
		e.totalMs += e.lastMs
		e.calls++
		e.detections += uint64(len(dets))
	}
	return dets, nil
}

func (e *Engine) run(backend inference.Backend, kind model.AlgorithmKind, profile model.AlgorithmProfile, override model.Thresholds, hasOverride bool, frame *model.ImageBuffer) ([]model.Detection, error) {
	strategy, _ := StrategyFor(kind)
	if hasOverride {
		if override.Confidence > 0 {
			profile.Thresholds.Confidence = override.Confidence
		}
		if override.NMS > 0 {
			profile.Thresholds.NMS = override.NMS
		}
	}
	profile.Thresholds = effectiveThresholds(strategy, profile)

	in, err := strategy.Preprocess(frame, profile)
	if err != nil {
		return nil, xerrors.Errorf("preprocess: %v: %w", err, ErrInvalidInput)
	}

	outputs, err := backend.Run(in)
	if err != nil {
		return nil, xerrors.Errorf("%s: %v: %w", kind, err, ErrInferenceRuntime)
	}

	dets, err := strategy.Decode(outputs, profile, frame.Size())
	if err != nil {
		return nil, xerrors.Errorf("%s decode: %v: %w", kind, err, ErrInferenceRuntime)
	}

	dets = FilterConfidence(dets, profile.Thresholds.Confidence)
	return NMS(dets, profile.Thresholds.NMS), nil
}

// DetectBatch runs Detect over frames in order and stops at the first error.
func (e *Engine) DetectBatch(frames []*model.ImageBuffer) ([][]model.Detection, error) {
	out := make([][]model.Detection, 0, len(frames))
	for _, f := range frames {
		dets, err := e.Detect(f)
		if err != nil {
			return out, err
		}
		out = append(out, dets)
	}
	return out, nil
}

// Recommend applies Recommend to this engine's catalog.
func (e *Engine) Recommend(size model.Size, realTime, highAccuracy bool) model.AlgorithmKind {
	return Recommend(e.registry.Profiles(), size, realTime, highAccuracy)
}

func (e *Engine) EnableProfiling(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profiling = on
}

// ProfilingResults reports detection_time (last call, ms), detection_count,
// avg_detection_time (ms) and calls.
func (e *Engine) ProfilingResults() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	avg := 0.0
	if e.calls > 0 {
		avg = e.totalMs / float64(e.calls)
	}
	return map[string]float64{
		"detection_time":     e.lastMs,
		"detection_count":    float64(e.detections),
		"avg_detection_time": avg,
		"calls":              float64(e.calls),
	}
}

func (e *Engine) ResetProfiling() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastMs, e.totalMs = 0, 0
	e.calls, e.detections = 0, 0
}
