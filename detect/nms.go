package detect

import (
	"sort"

	"github.com/khaledhikmat/vs-detect/model"
)

// IoU is the intersection-over-union of two boxes, 0 when either is empty.
func IoU(a, b model.Rect) float64 {
	inter := a.Intersect(b).Area()
	if inter == 0 {
		return 0
	}
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// FilterConfidence keeps detections whose confidence is at least threshold.
// The input slice is reused.
func FilterConfidence(dets []model.Detection, threshold float32) []model.Detection {
	kept := dets[:0]
	for _, d := range dets {
		if d.Confidence >= threshold {
			kept = append(kept, d)
		}
	}
	return kept
}

// NMS runs greedy non-maximum suppression: candidates are visited by
// descending confidence (ties keep input order) and any later candidate
// whose IoU with a kept one exceeds threshold is dropped.
func NMS(dets []model.Detection, threshold float32) []model.Detection {
	if len(dets) < 2 {
		return dets
	}

	sorted := append([]model.Detection(nil), dets...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	suppressed := make([]bool, len(sorted))
	kept := make([]model.Detection, 0, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] {
				continue
			}
			if IoU(sorted[i].Box, sorted[j].Box) > float64(threshold) {
				suppressed[j] = true
			}
		}
	}
	return kept
}
