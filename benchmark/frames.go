package benchmark

import (
	"strconv"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-detect/detect"
	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/service/capture"
)

// LoadFrames resolves a frame source: a positive number means that many
// synthetic frames of the given size, anything else is an image directory.
func LoadFrames(source string, size model.Size) ([]*model.ImageBuffer, error) {
	if n, err := strconv.Atoi(source); err == nil {
		if n <= 0 {
			return nil, xerrors.Errorf("frame count must be positive, got %d", n)
		}
		return capture.Synthetic(n, size.Width, size.Height), nil
	}

	return capture.LoadDir(source)
}

// Kinds maps names to algorithm kinds. An empty list selects every kind in
// the catalog. Unrecognised names are returned separately.
func Kinds(names []string, catalog *detect.Catalog) (kinds []model.AlgorithmKind, unknown []string) {
	if len(names) == 0 {
		return catalog.Kinds(), nil
	}

	seen := map[model.AlgorithmKind]bool{}
	for _, name := range names {
		kind, ok := model.ParseAlgorithm(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	return kinds, unknown
}
