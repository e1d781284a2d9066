package detect

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/service/inference"
)

func newTestEngine(t *testing.T) (*Engine, *inference.Fake) {
	t.Helper()
	fake := inference.NewFake()
	e := NewEngine(DefaultCatalog(), fake)
	t.Cleanup(func() { _ = e.Close() })
	return e, fake
}

func testFrame() *model.ImageBuffer {
	return model.NewImageBuffer(640, 480, model.PixelFormatBGR)
}

func TestDetectBeforeInitialize(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Detect(testFrame())
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Detect() error = %v, expected ErrNotInitialized", err)
	}
	if e.State() != StateUninitialized {
		t.Errorf("State() = %v, expected uninitialized", e.State())
	}
	if e.LastError() == "" {
		t.Error("LastError() should be set")
	}
}

func TestDetectKeepsLoadFailureAsLastError(t *testing.T) {
	e, fake := newTestEngine(t)
	fake.FailLoad(model.YoloV5, errors.New("yolov5s.onnx: no such file"))

	if err := e.Initialize(model.YoloV5); err == nil {
		t.Fatal("Initialize() should fail")
	}
	loadErr := e.LastError()

	if _, err := e.Detect(testFrame()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Detect() error = %v, expected ErrNotInitialized", err)
	}
	if got := e.LastError(); got != loadErr || !strings.Contains(got, "no such file") {
		t.Errorf("LastError() after Detect = %q, expected the load failure %q", got, loadErr)
	}
	if got := e.LoadError(); got != loadErr {
		t.Errorf("LoadError() = %q, expected %q", got, loadErr)
	}

	fake.FailLoad(model.YoloV5, nil)
	if err := e.Initialize(model.YoloV5); err != nil {
		t.Fatalf("Initialize() after fix = %v", err)
	}
	if e.LastError() != "" || e.LoadError() != "" {
		t.Errorf("errors not cleared: last=%q load=%q", e.LastError(), e.LoadError())
	}
}

func TestDetectEmptyFrame(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.Initialize(model.SSDMobileNet); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	for _, frame := range []*model.ImageBuffer{nil, {}, {Width: 10, Height: 10}} {
		if _, err := e.Detect(frame); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Detect(%+v) error = %v, expected ErrInvalidInput", frame, err)
		}
	}
	if e.State() != StateReady {
		t.Errorf("State() = %v, expected ready", e.State())
	}
}

func TestDetectTagsAndSuppresses(t *testing.T) {
	e, fake := newTestEngine(t)
	fake.SetOutputs(model.SSDMobileNet, rows(5,
		0.95, 0.1, 0.1, 0.3, 0.4,
		0.80, 0.1, 0.1, 0.3, 0.41, // overlaps the first
		0.90, 0.6, 0.6, 0.8, 0.9,
		0.10, 0.6, 0.1, 0.8, 0.3, // below threshold
	))

	if err := e.Initialize(model.SSDMobileNet); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	dets, err := e.Detect(testFrame())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(dets) != 2 {
		t.Fatalf("Detect() returned %d detections, expected 2", len(dets))
	}
	if dets[0].Confidence != 0.95 || dets[1].Confidence != 0.90 {
		t.Errorf("confidences = %v, %v", dets[0].Confidence, dets[1].Confidence)
	}
	for _, d := range dets {
		if d.Algorithm != model.SSDMobileNet {
			t.Errorf("Algorithm = %v, expected SSD MobileNet", d.Algorithm)
		}
		if d.Latency <= 0 {
			t.Errorf("Latency = %v, expected > 0", d.Latency)
		}
	}

	in := fake.LastInput()
	if got := in.Tensor.Shape; !reflect.DeepEqual(got, []int{1, 3, 300, 300}) {
		t.Errorf("backend input shape = %v, expected [1 3 300 300]", got)
	}
}

func TestDetectAllBelowThresholdIsEmpty(t *testing.T) {
	e, fake := newTestEngine(t)
	fake.SetOutputs(model.YoloV5, rows(6,
		0.5, 0.5, 0.2, 0.2, 0.9, 0.1,
		0.4, 0.4, 0.2, 0.2, 0.9, 0.3,
	))
	if err := e.Initialize(model.YoloV5); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	dets, err := e.Detect(testFrame())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(dets) != 0 {
		t.Errorf("Detect() = %+v, expected empty", dets)
	}
}

func TestDetectInferenceErrorIsNotLatched(t *testing.T) {
	e, fake := newTestEngine(t)
	fake.SetOutputs(model.LFFD, rows(5))
	if err := e.Initialize(model.LFFD); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	fake.FailRun(model.LFFD, errors.New("cuda out of memory"))
	if _, err := e.Detect(testFrame()); !errors.Is(err, ErrInferenceRuntime) {
		t.Fatalf("Detect() error = %v, expected ErrInferenceRuntime", err)
	}
	if e.State() != StateReady {
		t.Errorf("State() = %v after runtime error, expected ready", e.State())
	}

	fake.FailRun(model.LFFD, nil)
	if _, err := e.Detect(testFrame()); err != nil {
		t.Errorf("Detect() after recovery error = %v", err)
	}
}

func TestInitializeFailureKeepsPreviousAlgorithm(t *testing.T) {
	e, fake := newTestEngine(t)
	fake.FailLoad(model.RetinaNet, errors.New("corrupt file"))

	err := e.Initialize(model.RetinaNet)
	if !errors.Is(err, ErrModelLoad) {
		t.Fatalf("Initialize() error = %v, expected ErrModelLoad", err)
	}
	var lerr *ModelLoadError
	if !errors.As(err, &lerr) || lerr.Kind != model.RetinaNet {
		t.Errorf("error = %#v, expected *ModelLoadError for RetinaNet", err)
	}
	if e.State() != StateUninitialized {
		t.Errorf("State() = %v after first failed load, expected uninitialized", e.State())
	}

	if err := e.Initialize(model.YoloV5); err != nil {
		t.Fatalf("Initialize(YoloV5) error = %v", err)
	}
	if err := e.SetAlgorithm(model.RetinaNet); !errors.Is(err, ErrModelLoad) {
		t.Fatalf("SetAlgorithm(RetinaNet) error = %v", err)
	}
	if e.State() != StateReady || e.Algorithm() != model.YoloV5 {
		t.Errorf("engine is %v/%v, expected ready on YOLO v5", e.State(), e.Algorithm())
	}
}

func TestInitializeUnsupportedAlgorithm(t *testing.T) {
	e, _ := newTestEngine(t)
	err := e.Initialize(model.SCRFD)
	if !errors.Is(err, ErrModelLoad) || !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("Initialize(SCRFD) error = %v", err)
	}
}

func TestAlgorithmSwitchIsolation(t *testing.T) {
	e, fake := newTestEngine(t)
	before := e.Profile(model.YoloV5)

	if err := e.Initialize(model.YoloV5); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := e.InitializeWithConfig(Config{
		Algorithm:  model.SSDResNet,
		Thresholds: &model.Thresholds{Confidence: 0.1, NMS: 0.9},
	}); err != nil {
		t.Fatalf("InitializeWithConfig() error = %v", err)
	}
	if err := e.SetAlgorithm(model.YoloV5); err != nil {
		t.Fatalf("SetAlgorithm() error = %v", err)
	}

	if after := e.Profile(model.YoloV5); !reflect.DeepEqual(before, after) {
		t.Errorf("profile changed across switches:\nbefore %+v\nafter  %+v", before, after)
	}
	if ssd := e.Profile(model.SSDResNet); ssd.Thresholds.Confidence != 0.7 {
		t.Errorf("threshold override leaked into the catalog: %+v", ssd.Thresholds)
	}
	if fake.Loads(model.YoloV5) != 1 {
		t.Errorf("YOLO v5 loaded %d times, expected the resident backend to be reused", fake.Loads(model.YoloV5))
	}
}

func TestSetAlgorithmSameIsNoop(t *testing.T) {
	e, fake := newTestEngine(t)
	if err := e.Initialize(model.HaarCascade); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := e.SetAlgorithm(model.HaarCascade); err != nil {
		t.Fatalf("SetAlgorithm() error = %v", err)
	}
	if fake.Loads(model.HaarCascade) != 1 {
		t.Errorf("loads = %d, expected 1", fake.Loads(model.HaarCascade))
	}
}

func TestLoadUnloadModel(t *testing.T) {
	e, fake := newTestEngine(t)

	if err := e.LoadModel(model.MTCNN, "/models/custom.onnx", ""); err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}
	if !e.IsModelLoaded(model.MTCNN) {
		t.Fatal("IsModelLoaded() = false after LoadModel")
	}
	if e.State() != StateUninitialized {
		t.Errorf("LoadModel should not activate; state = %v", e.State())
	}

	if err := e.Initialize(model.MTCNN); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if fake.Loads(model.MTCNN) != 1 {
		t.Errorf("loads = %d, expected resident model to be reused", fake.Loads(model.MTCNN))
	}

	if err := e.UnloadModel(model.MTCNN); err != nil {
		t.Fatalf("UnloadModel() error = %v", err)
	}
	if e.IsModelLoaded(model.MTCNN) || e.State() != StateUninitialized {
		t.Errorf("after unload: loaded=%v state=%v", e.IsModelLoaded(model.MTCNN), e.State())
	}
	if fake.Closed() != 1 {
		t.Errorf("backend closed %d times, expected 1", fake.Closed())
	}
}

func TestCloseUnloadsAll(t *testing.T) {
	e, fake := newTestEngine(t)
	for _, k := range []model.AlgorithmKind{model.YoloV3, model.YoloV4, model.LFFD} {
		if err := e.Initialize(k); err != nil {
			t.Fatalf("Initialize(%v) error = %v", k, err)
		}
	}
	if got := len(e.LoadedModels()); got != 3 {
		t.Fatalf("LoadedModels() = %d, expected 3", got)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if fake.Closed() != 3 || len(e.LoadedModels()) != 0 {
		t.Errorf("closed=%d resident=%d after Close", fake.Closed(), len(e.LoadedModels()))
	}
	if len(e.Profiles()) != len(DefaultCatalog().Profiles()) {
		t.Error("Close() should leave the catalog intact")
	}
}

func TestDetectBatchAndProfiling(t *testing.T) {
	e, fake := newTestEngine(t)
	fake.SetOutputs(model.RetinaNet, rows(5, 10, 20, 110, 220, 0.8))
	if err := e.Initialize(model.RetinaNet); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	e.EnableProfiling(true)

	out, err := e.DetectBatch([]*model.ImageBuffer{testFrame(), testFrame(), testFrame()})
	if err != nil {
		t.Fatalf("DetectBatch() error = %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("DetectBatch() returned %d results", len(out))
	}

	prof := e.ProfilingResults()
	if prof["detection_count"] != 3 || prof["calls"] != 3 {
		t.Errorf("ProfilingResults() = %v", prof)
	}

	e.ResetProfiling()
	if prof := e.ProfilingResults(); prof["calls"] != 0 {
		t.Errorf("ResetProfiling() left %v", prof)
	}

	_, err = e.DetectBatch([]*model.ImageBuffer{testFrame(), nil, testFrame()})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("DetectBatch() with nil frame error = %v", err)
	}
}

func TestEngineModelPathResolution(t *testing.T) {
	fake := inference.NewFake()
	var got inference.ModelSpec
	loader := loaderFunc(func(spec inference.ModelSpec) (inference.Backend, error) {
		got = spec
		return fake.Load(spec)
	})

	e := NewEngine(DefaultCatalog(), loader, WithModelDir("/opt/models"), WithGPU(true))
	if err := e.Initialize(model.YoloV3); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if got.Path != "/opt/models/yolov3-face.weights" || got.ConfigPath != "/opt/models/yolov3-face.cfg" {
		t.Errorf("spec paths = %q, %q", got.Path, got.ConfigPath)
	}
	if !got.UseGPU || got.InputSize.Width != 416 {
		t.Errorf("spec = %+v", got)
	}
}

type loaderFunc func(spec inference.ModelSpec) (inference.Backend, error)

func (f loaderFunc) Load(spec inference.ModelSpec) (inference.Backend, error) {
	return f(spec)
}
