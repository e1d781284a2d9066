package detect

import (
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/service/inference"
)

// Strategy holds everything that differs between detector families.
// Decode returns candidates that already passed the confidence threshold and
// the frame bounds check; NMS and tagging are left to the engine.
type Strategy interface {
	Preprocess(frame *model.ImageBuffer, p model.AlgorithmProfile) (inference.Input, error)
	Decode(outputs []inference.Tensor, p model.AlgorithmProfile, frame model.Size) ([]model.Detection, error)
	DefaultThresholds() model.Thresholds
}

var strategies = map[model.Family]Strategy{
	model.FamilyCascade:   cascadeStrategy{},
	model.FamilyYOLO:      yoloStrategy{},
	model.FamilySSD:       ssdStrategy{},
	model.FamilyRetinaNet: retinaStrategy{},
	model.FamilyMTCNN:     mtcnnStrategy{},
	model.FamilyLFFD:      lffdStrategy{},
}

// StrategyFor returns the strategy for kind's family.
func StrategyFor(kind model.AlgorithmKind) (Strategy, bool) {
	s, ok := strategies[kind.Family()]
	return s, ok
}

// effectiveThresholds fills zero thresholds from the family defaults.
func effectiveThresholds(s Strategy, p model.AlgorithmProfile) model.Thresholds {
	th := p.Thresholds
	def := s.DefaultThresholds()
	if th.Confidence <= 0 {
		th.Confidence = def.Confidence
	}
	if th.NMS <= 0 {
		th.NMS = def.NMS
	}
	return th
}

// inputSize is the network resolution, or the source size when the profile
// does not fix one.
func inputSize(p model.AlgorithmProfile, frame model.Size) model.Size {
	if p.InputSize.IsZero() {
		return frame
	}
	return p.InputSize
}

// BlobFromImage resizes frame to the profile's input size and packs it into
// a 1x3xHxW tensor, applying (pixel - mean) * scale per channel. Channels are
// BGR unless the profile asks for SwapRB.
func BlobFromImage(frame *model.ImageBuffer, p model.AlgorithmProfile) (inference.Tensor, error) {
	if frame.Empty() {
		return inference.Tensor{}, xerrors.New("empty frame")
	}

	size := inputSize(p, frame.Size())
	var src image.Image = frame.Image()
	if size != frame.Size() {
		src = imaging.Resize(src, size.Width, size.Height, imaging.Linear)
	}
	nrgba := imaging.Clone(src)

	scale := p.Scale
	if scale == 0 {
		scale = 1
	}

	plane := size.Width * size.Height
	data := make([]float32, 3*plane)
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			o := y*nrgba.Stride + x*4
			r, g, b := float32(nrgba.Pix[o]), float32(nrgba.Pix[o+1]), float32(nrgba.Pix[o+2])
			c0, c2 := b, r
			if p.SwapRB {
				c0, c2 = r, b
			}
			i := y*size.Width + x
			data[i] = (c0 - p.Mean[0]) * scale
			data[plane+i] = (g - p.Mean[1]) * scale
			data[2*plane+i] = (c2 - p.Mean[2]) * scale
		}
	}

	return inference.NewTensor([]int{1, 3, size.Height, size.Width}, data), nil
}

// tensorInput is the Preprocess shared by every DNN family.
func tensorInput(frame *model.ImageBuffer, p model.AlgorithmProfile) (inference.Input, error) {
	blob, err := BlobFromImage(frame, p)
	if err != nil {
		return inference.Input{}, err
	}
	return inference.Input{Tensor: blob, Frame: frame}, nil
}

// grayscale converts a frame to a single-channel buffer of the same size.
func grayscale(frame *model.ImageBuffer) *model.ImageBuffer {
	if frame.Format == model.PixelFormatGray {
		return frame
	}
	gray := imaging.Grayscale(frame.Image())
	out := model.NewImageBuffer(frame.Width, frame.Height, model.PixelFormatGray)
	out.Seq = frame.Seq
	out.Timestamp = frame.Timestamp
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			out.Pix[y*frame.Width+x] = gray.Pix[y*gray.Stride+x*4]
		}
	}
	return out
}
