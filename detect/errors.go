package detect

import (
	"fmt"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-detect/model"
)

var (
	ErrModelLoad            = xerrors.New("model load failed")
	ErrNotInitialized       = xerrors.New("detection engine not initialized")
	ErrInvalidInput         = xerrors.New("invalid input frame")
	ErrInferenceRuntime     = xerrors.New("inference runtime error")
	ErrUnsupportedAlgorithm = xerrors.New("unsupported algorithm")
)

// ModelLoadError reports why an algorithm could not be loaded. It matches
// ErrModelLoad with errors.Is.
type ModelLoadError struct {
	Kind model.AlgorithmKind
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("load %s from %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

func (e *ModelLoadError) Is(target error) bool {
	return target == ErrModelLoad
}
