package capture

import (
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-detect/model"
)

// ErrNoFrame is the transient "nothing ready yet" condition. Callers retry.
var ErrNoFrame = xerrors.New("no frame available")

// ErrClosed is returned by sources that have been closed or exhausted.
var ErrClosed = xerrors.New("capture source closed")

// IService yields frames on demand. TryGetFrame must not block for long; a
// source that has nothing ready returns ErrNoFrame.
type IService interface {
	TryGetFrame() (*model.ImageBuffer, error)
	Name() string
	Close() error
}
