package mode

import (
	"encoding/json"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/service/config"
	"github.com/khaledhikmat/vs-detect/service/data"
)

type entityLister interface {
	Entities(collection string) []json.RawMessage
}

func TestOpenSourceRandom(t *testing.T) {
	t.Setenv("CAPTURE_SOURCE", "random")
	t.Setenv("CAPTURE_WIDTH", "32")
	t.Setenv("CAPTURE_HEIGHT", "16")

	src, err := openSource(config.NewEnv(nil))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	frame, err := src.TryGetFrame()
	if err != nil {
		t.Fatal(err)
	}
	if frame.Width != 32 || frame.Height != 16 {
		t.Errorf("frame is %dx%d", frame.Width, frame.Height)
	}
}

func TestOpenSourceReplaysDirectory(t *testing.T) {
	dir := t.TempDir()
	img := imaging.New(8, 6, color.Black)
	if err := imaging.Save(img, filepath.Join(dir, "a.png")); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CAPTURE_SOURCE", dir)

	src, err := openSource(config.NewEnv(nil))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	// One image on loop keeps producing frames.
	for i := 0; i < 3; i++ {
		frame, err := src.TryGetFrame()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if frame.Width != 8 || frame.Height != 6 {
			t.Errorf("frame is %dx%d", frame.Width, frame.Height)
		}
	}
}

func TestBuildSinksSnapshotDirFailure(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DETECTIONS_LOG", "")
	t.Setenv("SNAPSHOT_DIR", filepath.Join(file, "snaps"))

	svcs := Services{CfgSvc: config.NewEnv(nil), DataSvc: data.NewMemory()}
	if _, err := buildSinks(svcs, nil); err == nil {
		t.Error("snapshot dir under a file should fail")
	}
}

func TestProcStatsAndErrorsReachDataService(t *testing.T) {
	dataSvc := data.NewMemory()

	procStats(dataSvc, model.CaptureStats{Frames: 3})
	procStats(dataSvc, model.PipelineStats{FramesCaptured: 3})
	procStats(dataSvc, "not stats")
	procError(dataSvc, model.GenError("processing", errors.New("boom"), nil, "detect failed"))

	lister := dataSvc.(entityLister)
	for collection, want := range map[string]int{
		"capture-stats":  1,
		"pipeline-stats": 1,
		"errors":         1,
	} {
		if got := len(lister.Entities(collection)); got != want {
			t.Errorf("%s has %d entries, want %d", collection, got, want)
		}
	}
}
