package benchmark

import (
	"bytes"
	"context"
	"errors"
	"math"
	"regexp"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/khaledhikmat/vs-detect/detect"
	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/service/capture"
	"github.com/khaledhikmat/vs-detect/service/inference"
)

func TestSummarize(t *testing.T) {
	res := Summarize(model.YoloV5, 500, 10, 7)
	if res.AvgInferenceTimeMs != 50 || res.AvgFPS != 20 {
		t.Errorf("avg = %v ms, %v fps; want 50 ms, 20 fps", res.AvgInferenceTimeMs, res.AvgFPS)
	}
	if res.TotalDetections != 7 || res.Frames != 10 || res.Algorithm != model.YoloV5 {
		t.Errorf("result = %+v", res)
	}

	zero := Summarize(model.LFFD, 0, 10, 0)
	if zero.AvgFPS != 0 || math.IsInf(zero.AvgFPS, 0) {
		t.Errorf("zero time gives fps %v", zero.AvgFPS)
	}
}

func newFactory(fake *inference.Fake) Factory {
	return func() Engine {
		return detect.NewEngine(detect.DefaultCatalog(), fake)
	}
}

func TestRunnerSkipsKindsThatFailToLoad(t *testing.T) {
	fake := inference.NewFake()
	fake.SetOutputs(model.SSDResNet, inference.NewTensor([]int{1, 2, 5}, []float32{
		0.95, 0.1, 0.1, 0.3, 0.4,
		0.90, 0.6, 0.6, 0.8, 0.9,
	}))
	fake.SetOutputs(model.LFFD, inference.NewTensor([]int{1, 0, 5}, nil))
	fake.FailLoad(model.YoloV3, errors.New("weights missing"))

	frames := capture.Synthetic(4, 64, 48)
	kinds := []model.AlgorithmKind{model.SSDResNet, model.YoloV3, model.SCRFD, model.LFFD}

	results := NewRunner(newFactory(fake)).Run(context.Background(), frames, kinds)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2: %+v", len(results), results)
	}
	if results[0].Algorithm != model.SSDResNet || results[1].Algorithm != model.LFFD {
		t.Errorf("algorithms = %v, %v", results[0].Algorithm, results[1].Algorithm)
	}
	if results[0].TotalDetections != 8 || results[0].Frames != 4 {
		t.Errorf("SSD ResNet result = %+v", results[0])
	}
	if results[1].TotalDetections != 0 {
		t.Errorf("LFFD result = %+v", results[1])
	}
	if fake.Closed() != fake.Loads(model.SSDResNet)+fake.Loads(model.LFFD) {
		t.Errorf("every loaded backend should be closed: closed=%d", fake.Closed())
	}
}

func TestRunnerEmptyInputs(t *testing.T) {
	r := NewRunner(newFactory(inference.NewFake()))
	if got := r.Run(context.Background(), nil, []model.AlgorithmKind{model.YoloV5}); len(got) != 0 {
		t.Errorf("no frames gave %+v", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := r.Run(ctx, capture.Synthetic(2, 8, 8), []model.AlgorithmKind{model.YoloV5}); len(got) != 0 {
		t.Errorf("cancelled run gave %+v", got)
	}
}

func TestWriteReport(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	err := WriteReport(&buf, []model.BenchmarkResult{
		Summarize(model.YoloV5, 500, 10, 7),
		Summarize(model.LFFD, 100, 10, 3),
	})
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("report:\n%s", buf.String())
	}
	if !strings.Contains(lines[1], model.YoloV5.String()) || !strings.Contains(lines[1], "50.00") || !strings.Contains(lines[1], "20.0") {
		t.Errorf("row = %q", lines[1])
	}
	if !strings.Contains(lines[2], "100.0") {
		t.Errorf("row = %q", lines[2])
	}

	buf.Reset()
	_ = WriteReport(&buf, nil)
	if !strings.Contains(buf.String(), "no algorithm") {
		t.Errorf("empty report = %q", buf.String())
	}
}

func TestWriteReportAlignsColouredRows(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = prev }()

	var buf bytes.Buffer
	err := WriteReport(&buf, []model.BenchmarkResult{
		Summarize(model.YoloV5, 500, 10, 7),
		Summarize(model.LFFD, 100, 10, 3),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected ANSI colour codes in %q", buf.String())
	}

	ansi := regexp.MustCompile("\x1b\\[[0-9;]*m")
	lines := strings.Split(strings.TrimSpace(ansi.ReplaceAllString(buf.String(), "")), "\n")
	if len(lines) != 3 {
		t.Fatalf("report:\n%s", buf.String())
	}
	col := strings.Index(lines[0], "AVG TIME")
	if got := strings.Index(lines[1], "50.00"); got != col {
		t.Errorf("plain row column at %d, header at %d", got, col)
	}
	if got := strings.Index(lines[2], "10.00"); got != col {
		t.Errorf("highlighted row column at %d, header at %d", got, col)
	}
}

func TestWriteComparison(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	if err := WriteComparison(&buf, detect.DefaultCatalog().Profiles()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"*****",
		"recommended for real-time: " + model.LFFD.String(),
		"recommended for high accuracy: " + model.RetinaNet.String(),
		"recommended for balanced: " + model.YoloV5.String(),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("comparison missing %q:\n%s", want, out)
		}
	}
}

func TestLoadFrames(t *testing.T) {
	frames, err := LoadFrames("3", model.Size{Width: 32, Height: 24})
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 3 || frames[0].Width != 32 || frames[0].Height != 24 {
		t.Errorf("frames = %d, first %dx%d", len(frames), frames[0].Width, frames[0].Height)
	}

	if _, err := LoadFrames("0", model.Size{Width: 8, Height: 8}); err == nil {
		t.Error("zero frames should fail")
	}
	if _, err := LoadFrames(t.TempDir(), model.Size{}); err == nil {
		t.Error("empty directory should fail")
	}
}

func TestKinds(t *testing.T) {
	catalog := detect.DefaultCatalog()

	all, unknown := Kinds(nil, catalog)
	if len(all) != len(catalog.Kinds()) || len(unknown) != 0 {
		t.Errorf("Kinds(nil) = %v, %v", all, unknown)
	}

	kinds, unknown := Kinds([]string{"yolov5", "YOLO v5", "ssd", "darknet"}, catalog)
	if len(kinds) != 2 || kinds[0] != model.YoloV5 || kinds[1] != model.SSDMobileNet {
		t.Errorf("kinds = %v", kinds)
	}
	if len(unknown) != 1 || unknown[0] != "darknet" {
		t.Errorf("unknown = %v", unknown)
	}
}
