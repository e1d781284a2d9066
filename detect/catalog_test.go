package detect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/khaledhikmat/vs-detect/model"
)

func TestRecommend(t *testing.T) {
	profiles := DefaultCatalog().Profiles()
	sizes := []model.Size{{Width: 320, Height: 240}, {Width: 1920, Height: 1080}, {}}

	tests := []struct {
		name         string
		realTime     bool
		highAccuracy bool
		expected     model.AlgorithmKind
	}{
		{"real time picks the lightest fast profile", true, false, model.LFFD},
		{"accuracy picks the most accurate profile", false, true, model.RetinaNet},
		{"accuracy wins over real time", true, true, model.RetinaNet},
		{"balanced", false, false, model.YoloV5},
	}

	for _, tt := range tests {
		for _, size := range sizes {
			if got := Recommend(profiles, size, tt.realTime, tt.highAccuracy); got != tt.expected {
				t.Errorf("%s (%v): Recommend() = %v, expected %v", tt.name, size, got, tt.expected)
			}
		}
	}
}

func TestRecommendEmptyCatalog(t *testing.T) {
	if got := Recommend(nil, model.Size{}, true, false); got != fallbackAlgorithm {
		t.Errorf("Recommend(nil) = %v, expected %v", got, fallbackAlgorithm)
	}
}

func TestCatalogProfileUnknownIsEmpty(t *testing.T) {
	c := DefaultCatalog()
	if p := c.Profile(model.SCRFD); !p.Empty() {
		t.Errorf("Profile(SCRFD) = %+v, expected empty", p)
	}
	if p := c.Profile(model.AlgorithmKind(99)); !p.Empty() {
		t.Errorf("Profile(99) = %+v, expected empty", p)
	}
}

func TestCatalogReturnsCopies(t *testing.T) {
	c := DefaultCatalog()
	p := c.Profile(model.YoloV5)
	p.UseCases[0] = "mutated"
	p.Thresholds.Confidence = 0.01

	again := c.Profile(model.YoloV5)
	if again.UseCases[0] == "mutated" || again.Thresholds.Confidence != 0.5 {
		t.Errorf("catalog was mutated through a returned profile: %+v", again)
	}
}

func TestCatalogWith(t *testing.T) {
	base := DefaultCatalog()
	tuned := base.With(func(p *model.AlgorithmProfile) {
		if p.Kind == model.LFFD {
			p.Thresholds.Confidence = 0.5
		}
	})

	if base.Profile(model.LFFD).Thresholds.Confidence != 0.7 {
		t.Error("With() modified the receiver")
	}
	if tuned.Profile(model.LFFD).Thresholds.Confidence != 0.5 {
		t.Error("With() did not apply the change")
	}
	if len(tuned.Kinds()) != len(base.Kinds()) || tuned.Kinds()[0] != model.HaarCascade {
		t.Errorf("With() changed catalog order: %v", tuned.Kinds())
	}
}

func TestBuiltinProfilesHaveStrategies(t *testing.T) {
	for _, p := range DefaultCatalog().Profiles() {
		if _, ok := StrategyFor(p.Kind); !ok {
			t.Errorf("%v has no strategy", p.Kind)
		}
		if p.ModelFile == "" {
			t.Errorf("%v has no model file", p.Kind)
		}
		if p.SpeedRating < 1 || p.SpeedRating > 5 || p.AccuracyRating < 1 || p.AccuracyRating > 5 {
			t.Errorf("%v ratings out of range", p.Kind)
		}
	}
}

func TestVerifyModelFiles(t *testing.T) {
	dir := t.TempDir()
	p := DefaultCatalog().Profile(model.YoloV3)

	if missing := VerifyModelFiles(p, dir); len(missing) != 2 {
		t.Fatalf("VerifyModelFiles() = %v, expected weights and cfg missing", missing)
	}

	if err := os.WriteFile(filepath.Join(dir, "yolov3-face.weights"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	missing := VerifyModelFiles(p, dir)
	if len(missing) != 1 || missing[0] != "yolov3-face.cfg" {
		t.Errorf("VerifyModelFiles() = %v, expected only the cfg", missing)
	}
}

func TestBestProfile(t *testing.T) {
	profiles := DefaultCatalog().Profiles()

	fast, ok := BestProfile(profiles, true)
	if !ok || fast.Kind != model.YoloV5 {
		t.Errorf("BestProfile(speed) = %v, expected YOLO v5", fast.Kind)
	}

	accurate, _ := BestProfile(profiles, false)
	if accurate.Kind != model.MTCNN {
		t.Errorf("BestProfile(accuracy) = %v, expected MTCNN", accurate.Kind)
	}

	if _, ok := BestProfile(nil, true); ok {
		t.Error("BestProfile(nil) should report false")
	}
}
