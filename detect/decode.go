package detect

import (
	"math"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/service/inference"
)

var errNoOutput = xerrors.New("backend returned no output tensors")

// cornerRect converts corner coordinates to a pixel box, rounding each
// corner independently so that width and height stay consistent with them.
func cornerRect(x1, y1, x2, y2 float64) model.Rect {
	return model.RectFromCorners(
		int(math.Round(x1)), int(math.Round(y1)),
		int(math.Round(x2)), int(math.Round(y2)),
	)
}

// rowsOf validates the first output and its row width.
func rowsOf(outputs []inference.Tensor, minCols int) (inference.Tensor, error) {
	if len(outputs) == 0 {
		return inference.Tensor{}, errNoOutput
	}
	out := outputs[0]
	if out.Rows() == 0 {
		return out, nil
	}
	if out.Cols() < minCols {
		return out, xerrors.Errorf("output rows have %d columns, need at least %d", out.Cols(), minCols)
	}
	return out, nil
}

// cornerRows decodes the (x1, y1, x2, y2) + confidence layout shared by the
// SSD, RetinaNet, MTCNN and LFFD families; sx and sy map output units to
// source pixels.
func cornerRows(out inference.Tensor, p model.AlgorithmProfile, frame model.Size, sx, sy float64, each func(i int, d *model.Detection) bool) []model.Detection {
	th := p.Thresholds.Confidence
	var dets []model.Detection
	for i := 0; i < out.Rows(); i++ {
		row := out.Row(i)
		conf := float32(1)
		if p.Layout.ConfidenceIndex >= 0 {
			conf = row[p.Layout.ConfidenceIndex]
		}
		if conf < th {
			continue
		}
		b := p.Layout.BoxIndex
		box := cornerRect(
			float64(row[b])*sx, float64(row[b+1])*sy,
			float64(row[b+2])*sx, float64(row[b+3])*sy,
		)
		if !box.Within(frame) {
			continue
		}
		d := model.NewDetection(box, conf)
		if each != nil && !each(i, &d) {
			continue
		}
		dets = append(dets, d)
	}
	return dets
}

func minColsFor(l model.Layout) int {
	return max(l.BoxIndex+4, l.ConfidenceIndex+1)
}

type yoloStrategy struct{}

func (yoloStrategy) DefaultThresholds() model.Thresholds {
	return model.Thresholds{Confidence: 0.5, NMS: defaultNMS}
}

func (yoloStrategy) Preprocess(frame *model.ImageBuffer, p model.AlgorithmProfile) (inference.Input, error) {
	return tensorInput(frame, p)
}

// Decode reads (cx, cy, w, h) as fractions of the input plus class scores.
// Confidence is the best class score; a row with no score columns uses its
// confidence column instead.
func (yoloStrategy) Decode(outputs []inference.Tensor, p model.AlgorithmProfile, frame model.Size) ([]model.Detection, error) {
	out, err := rowsOf(outputs, p.Layout.BoxIndex+4)
	if err != nil {
		return nil, err
	}

	W, H := float64(frame.Width), float64(frame.Height)
	b := p.Layout.BoxIndex
	var dets []model.Detection
	for _, o := range outputs {
		if o.Cols() != out.Cols() {
			continue
		}
		for i := 0; i < o.Rows(); i++ {
			row := o.Row(i)

			var conf float32
			switch {
			case p.Layout.ScoreIndex >= 0 && len(row) > p.Layout.ScoreIndex:
				for _, s := range row[p.Layout.ScoreIndex:] {
					conf = max(conf, s)
				}
			case p.Layout.ConfidenceIndex >= 0 && len(row) > p.Layout.ConfidenceIndex:
				conf = row[p.Layout.ConfidenceIndex]
			default:
				continue
			}
			if conf < p.Thresholds.Confidence {
				continue
			}

			cx, cy := float64(row[b]), float64(row[b+1])
			w, h := float64(row[b+2]), float64(row[b+3])
			box := cornerRect((cx-w/2)*W, (cy-h/2)*H, (cx+w/2)*W, (cy+h/2)*H)
			if !box.Within(frame) {
				continue
			}
			dets = append(dets, model.NewDetection(box, conf))
		}
	}
	return dets, nil
}

type ssdStrategy struct{}

func (ssdStrategy) DefaultThresholds() model.Thresholds {
	return model.Thresholds{Confidence: 0.7, NMS: defaultNMS}
}

func (ssdStrategy) Preprocess(frame *model.ImageBuffer, p model.AlgorithmProfile) (inference.Input, error) {
	return tensorInput(frame, p)
}

// Decode reads corner boxes as fractions of the frame.
func (ssdStrategy) Decode(outputs []inference.Tensor, p model.AlgorithmProfile, frame model.Size) ([]model.Detection, error) {
	out, err := rowsOf(outputs, minColsFor(p.Layout))
	if err != nil {
		return nil, err
	}
	return cornerRows(out, p, frame, float64(frame.Width), float64(frame.Height), nil), nil
}

type retinaStrategy struct{}

func (retinaStrategy) DefaultThresholds() model.Thresholds {
	return model.Thresholds{Confidence: 0.7, NMS: defaultNMS}
}

func (retinaStrategy) Preprocess(frame *model.ImageBuffer, p model.AlgorithmProfile) (inference.Input, error) {
	return tensorInput(frame, p)
}

// Decode reads corner boxes already in source pixels.
func (retinaStrategy) Decode(outputs []inference.Tensor, p model.AlgorithmProfile, frame model.Size) ([]model.Detection, error) {
	out, err := rowsOf(outputs, minColsFor(p.Layout))
	if err != nil {
		return nil, err
	}
	return cornerRows(out, p, frame, 1, 1, nil), nil
}

const mtcnnLandmarks = 5

type mtcnnStrategy struct{}

func (mtcnnStrategy) DefaultThresholds() model.Thresholds {
	return model.Thresholds{Confidence: 0.6, NMS: defaultNMS}
}

func (mtcnnStrategy) Preprocess(frame *model.ImageBuffer, p model.AlgorithmProfile) (inference.Input, error) {
	return tensorInput(frame, p)
}

// Decode reads fractional corner boxes; a second output, when present,
// carries interleaved (x, y) landmark fractions for the same row.
func (mtcnnStrategy) Decode(outputs []inference.Tensor, p model.AlgorithmProfile, frame model.Size) ([]model.Detection, error) {
	out, err := rowsOf(outputs, minColsFor(p.Layout))
	if err != nil {
		return nil, err
	}

	var marks *inference.Tensor
	if len(outputs) > 1 && outputs[1].Cols() >= 2 {
		marks = &outputs[1]
	}

	W, H := float64(frame.Width), float64(frame.Height)
	return cornerRows(out, p, frame, W, H, func(i int, d *model.Detection) bool {
		if d.Box.Width < p.MinFaceSize || d.Box.Height < p.MinFaceSize {
			return false
		}
		if marks == nil || i >= marks.Rows() {
			return true
		}
		row := marks.Row(i)
		n := min(mtcnnLandmarks, len(row)/2)
		d.Landmarks = make([]model.Point, 0, n)
		for j := 0; j < n; j++ {
			d.Landmarks = append(d.Landmarks, model.Point{
				X: float32(float64(row[2*j]) * W),
				Y: float32(float64(row[2*j+1]) * H),
			})
		}
		return true
	}), nil
}

type lffdStrategy struct{}

func (lffdStrategy) DefaultThresholds() model.Thresholds {
	return model.Thresholds{Confidence: 0.7, NMS: defaultNMS}
}

func (lffdStrategy) Preprocess(frame *model.ImageBuffer, p model.AlgorithmProfile) (inference.Input, error) {
	return tensorInput(frame, p)
}

// Decode reads corner boxes in network input pixels and rescales them to the
// source frame.
func (lffdStrategy) Decode(outputs []inference.Tensor, p model.AlgorithmProfile, frame model.Size) ([]model.Detection, error) {
	out, err := rowsOf(outputs, minColsFor(p.Layout))
	if err != nil {
		return nil, err
	}
	in := inputSize(p, frame)
	sx := float64(frame.Width) / float64(in.Width)
	sy := float64(frame.Height) / float64(in.Height)
	return cornerRows(out, p, frame, sx, sy, nil), nil
}

type cascadeStrategy struct{}

// Cascade hits carry no score; every hit is reported at 1.0.
func (cascadeStrategy) DefaultThresholds() model.Thresholds {
	return model.Thresholds{Confidence: 1.0, NMS: defaultNMS}
}

func (cascadeStrategy) Preprocess(frame *model.ImageBuffer, _ model.AlgorithmProfile) (inference.Input, error) {
	if frame.Empty() {
		return inference.Input{}, xerrors.New("empty frame")
	}
	return inference.Input{Frame: grayscale(frame)}, nil
}

// Decode reads (x, y, w, h) rows in source pixels.
func (cascadeStrategy) Decode(outputs []inference.Tensor, p model.AlgorithmProfile, frame model.Size) ([]model.Detection, error) {
	if len(outputs) == 0 {
		return nil, nil
	}
	out, err := rowsOf(outputs, 4)
	if err != nil {
		return nil, err
	}

	var dets []model.Detection
	for i := 0; i < out.Rows(); i++ {
		row := out.Row(i)
		box := model.Rect{X: int(row[0]), Y: int(row[1]), Width: int(row[2]), Height: int(row[3])}
		if !box.Within(frame) {
			continue
		}
		dets = append(dets, model.NewDetection(box, 1.0))
	}
	return dets, nil
}
