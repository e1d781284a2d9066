package detect

import (
	"github.com/khaledhikmat/vs-detect/model"
)

// fallbackAlgorithm is returned when there is nothing to choose from.
const fallbackAlgorithm = model.YoloV5

// Recommend picks an algorithm from profile data alone:
//   - high accuracy wins over everything: best accuracy rating
//   - real time: best speed rating, then the smallest memory footprint
//   - otherwise the best min(speed, accuracy), then the best memory rating
//
// Remaining ties go to the earlier profile. The image size does not affect
// the choice.
func Recommend(profiles []model.AlgorithmProfile, _ model.Size, realTime, highAccuracy bool) model.AlgorithmKind {
	var best *model.AlgorithmProfile
	for i := range profiles {
		p := &profiles[i]
		if p.Empty() {
			continue
		}
		if _, ok := StrategyFor(p.Kind); !ok {
			continue
		}
		if best == nil || better(p, best, realTime, highAccuracy) {
			best = p
		}
	}
	if best == nil {
		return fallbackAlgorithm
	}
	return best.Kind
}

func better(p, best *model.AlgorithmProfile, realTime, highAccuracy bool) bool {
	switch {
	case highAccuracy:
		return p.AccuracyRating > best.AccuracyRating
	case realTime:
		if p.SpeedRating != best.SpeedRating {
			return p.SpeedRating > best.SpeedRating
		}
		return p.MinMemoryMB < best.MinMemoryMB
	default:
		a, b := min(p.SpeedRating, p.AccuracyRating), min(best.SpeedRating, best.AccuracyRating)
		if a != b {
			return a > b
		}
		return p.MemoryRating > best.MemoryRating
	}
}
