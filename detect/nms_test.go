package detect

import (
	"math"
	"testing"

	"github.com/khaledhikmat/vs-detect/model"
)

func det(x, y, w, h int, conf float32) model.Detection {
	return model.NewDetection(model.Rect{X: x, Y: y, Width: w, Height: h}, conf)
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name     string
		a, b     model.Rect
		expected float64
	}{
		{"identical", model.Rect{X: 0, Y: 0, Width: 10, Height: 10}, model.Rect{X: 0, Y: 0, Width: 10, Height: 10}, 1},
		{"disjoint", model.Rect{X: 0, Y: 0, Width: 10, Height: 10}, model.Rect{X: 20, Y: 20, Width: 10, Height: 10}, 0},
		{"half overlap", model.Rect{X: 0, Y: 0, Width: 10, Height: 10}, model.Rect{X: 5, Y: 0, Width: 10, Height: 10}, 50.0 / 150.0},
		{"empty", model.Rect{}, model.Rect{X: 0, Y: 0, Width: 10, Height: 10}, 0},
	}

	for _, tt := range tests {
		if got := IoU(tt.a, tt.b); math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("%s: IoU() = %v, expected %v", tt.name, got, tt.expected)
		}
	}
}

func TestNMSKeepsHigherConfidenceOnOverlap(t *testing.T) {
	// IoU of these two boxes is 81/119 ~ 0.68.
	low := det(1, 1, 10, 10, 0.6)
	high := det(0, 0, 10, 10, 0.9)

	kept := NMS([]model.Detection{low, high}, 0.4)
	if len(kept) != 1 {
		t.Fatalf("NMS() kept %d detections, expected 1", len(kept))
	}
	if kept[0].Confidence != 0.9 {
		t.Errorf("NMS() kept confidence %v, expected 0.9", kept[0].Confidence)
	}
}

func TestNMSKeepsBothBelowThreshold(t *testing.T) {
	a := det(0, 0, 10, 10, 0.9)
	b := det(8, 8, 10, 10, 0.6)

	kept := NMS([]model.Detection{a, b}, 0.4)
	if len(kept) != 2 {
		t.Fatalf("NMS() kept %d detections, expected 2", len(kept))
	}
	if kept[0].Confidence != 0.9 || kept[1].Confidence != 0.6 {
		t.Errorf("NMS() order = %v, %v; expected descending confidence", kept[0].Confidence, kept[1].Confidence)
	}
}

func TestNMSIdempotent(t *testing.T) {
	input := []model.Detection{
		det(0, 0, 50, 50, 0.8),
		det(5, 5, 50, 50, 0.95),
		det(200, 200, 40, 40, 0.7),
		det(202, 198, 40, 40, 0.7),
		det(400, 10, 30, 30, 0.5),
	}

	once := NMS(input, 0.4)
	twice := NMS(once, 0.4)

	if len(once) != len(twice) {
		t.Fatalf("second NMS pass changed size: %d -> %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Box != twice[i].Box || once[i].Confidence != twice[i].Confidence {
			t.Errorf("index %d changed: %+v -> %+v", i, once[i], twice[i])
		}
	}
}

func TestNMSTiesKeepInputOrder(t *testing.T) {
	first := det(0, 0, 10, 10, 0.7)
	second := det(1, 0, 10, 10, 0.7)

	kept := NMS([]model.Detection{first, second}, 0.4)
	if len(kept) != 1 || kept[0].Box != first.Box {
		t.Errorf("NMS() = %+v, expected only the first of two tied boxes", kept)
	}
}

func TestFilterConfidence(t *testing.T) {
	dets := []model.Detection{det(0, 0, 1, 1, 0.2), det(0, 0, 1, 1, 0.5), det(0, 0, 1, 1, 0.9)}
	kept := FilterConfidence(dets, 0.5)
	if len(kept) != 2 {
		t.Fatalf("FilterConfidence() kept %d, expected 2", len(kept))
	}
	if kept[0].Confidence != 0.5 {
		t.Errorf("threshold itself should be kept, got %v", kept[0].Confidence)
	}
}
