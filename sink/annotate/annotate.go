// Package annotate draws detections onto frames with OpenCV and writes
// periodic snapshots.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/service/capture/gocvcap"
	"github.com/khaledhikmat/vs-detect/sink"
)

var (
	boxColor      = color.RGBA{0, 255, 0, 0}
	landmarkColor = color.RGBA{0, 0, 255, 0}
)

// Draw renders boxes, confidence labels and landmarks in place.
func Draw(img *gocv.Mat, dets []model.Detection) error {
	for _, d := range dets {
		rect := image.Rect(d.Box.X, d.Box.Y, d.Box.X+d.Box.Width, d.Box.Y+d.Box.Height)
		if err := gocv.Rectangle(img, rect, boxColor, 2); err != nil {
			return err
		}

		label := fmt.Sprintf("%s %.2f", d.Algorithm.Key(), d.Confidence)
		pt := image.Pt(d.Box.X, max(d.Box.Y-5, 10))
		if err := gocv.PutText(img, label, pt, gocv.FontHersheySimplex, 0.5, boxColor, 1); err != nil {
			return err
		}

		for _, p := range d.Landmarks {
			if err := gocv.Circle(img, image.Pt(int(p.X), int(p.Y)), 2, landmarkColor, -1); err != nil {
				return err
			}
		}
	}
	return nil
}

type snapshotSink struct {
	dir   string
	every int

	mu    sync.Mutex
	count int
}

// NewSnapshots writes an annotated JPEG of every nth result that has at least
// one detection.
func NewSnapshots(dir string, every int) (sink.Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, xerrors.Errorf("create snapshot dir: %w", err)
	}
	return &snapshotSink{dir: dir, every: max(every, 1)}, nil
}

func (s *snapshotSink) Name() string {
	return "snapshots"
}

func (s *snapshotSink) Consume(res model.Result) error {
	if len(res.Detections) == 0 || res.Frame.Empty() {
		return nil
	}

	s.mu.Lock()
	s.count++
	take := (s.count-1)%s.every == 0
	s.mu.Unlock()
	if !take {
		return nil
	}

	mat, err := gocvcap.ToMat(res.Frame)
	if err != nil {
		return err
	}
	defer mat.Close()

	if err := Draw(&mat, res.Detections); err != nil {
		return xerrors.Errorf("annotate frame %d: %w", res.Seq, err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("frame_%s_%08d.jpg", res.Algorithm.Key(), res.Seq))
	if ok := gocv.IMWrite(path, mat); !ok {
		return xerrors.Errorf("write snapshot %s", path)
	}
	return nil
}

func (s *snapshotSink) Close() error {
	return nil
}
