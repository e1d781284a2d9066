// Package gocvcap reads frames from cameras, RTSP streams and video files
// through OpenCV.
package gocvcap

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/service/capture"
	"github.com/khaledhikmat/vs-detect/service/lgr"
)

type videoService struct {
	mu     sync.Mutex
	source string
	cap    *gocv.VideoCapture
	img    gocv.Mat
	closed bool
}

// New opens source, which is a device index ("0") or anything OpenCV can
// open (RTSP URL, file path, GStreamer pipeline). A zero width or height
// keeps the device default.
func New(source string, width, height int) (capture.IService, error) {
	var device interface{} = source
	if idx, err := strconv.Atoi(source); err == nil {
		device = idx
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, xerrors.Errorf("open capture %s: %w", source, err)
	}
	if width > 0 && height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}

	lgr.Logger.Info("capture opened",
		slog.String("source", source),
		slog.String("openCV", gocv.Version()),
		slog.Float64("width", vc.Get(gocv.VideoCaptureFrameWidth)),
		slog.Float64("height", vc.Get(gocv.VideoCaptureFrameHeight)),
	)

	return &videoService{
		source: source,
		cap:    vc,
		img:    gocv.NewMat(),
	}, nil
}

func (svc *videoService) Name() string {
	return svc.source
}

func (svc *videoService) TryGetFrame() (*model.ImageBuffer, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.closed {
		return nil, capture.ErrClosed
	}
	if ok := svc.cap.Read(&svc.img); !ok || svc.img.Empty() {
		return nil, capture.ErrNoFrame
	}
	return FromMat(svc.img, time.Now())
}

func (svc *videoService) Close() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.closed {
		return nil
	}
	svc.closed = true
	svc.img.Close()
	return svc.cap.Close()
}

// FromMat copies an 8-bit BGR or gray Mat into a new buffer.
func FromMat(m gocv.Mat, ts time.Time) (*model.ImageBuffer, error) {
	var format model.PixelFormat
	switch m.Type() {
	case gocv.MatTypeCV8UC3:
		format = model.PixelFormatBGR
	case gocv.MatTypeCV8UC1:
		format = model.PixelFormatGray
	default:
		return nil, xerrors.Errorf("unsupported mat type %v", m.Type())
	}

	return &model.ImageBuffer{
		Width:     m.Cols(),
		Height:    m.Rows(),
		Format:    format,
		Pix:       m.ToBytes(),
		Timestamp: ts,
	}, nil
}

// ToMat copies a buffer into a new Mat; RGB buffers are converted to BGR.
// The caller closes the Mat.
func ToMat(buf *model.ImageBuffer) (gocv.Mat, error) {
	if buf.Empty() {
		return gocv.NewMat(), xerrors.New("empty frame")
	}

	mt := gocv.MatTypeCV8UC3
	if buf.Format == model.PixelFormatGray {
		mt = gocv.MatTypeCV8UC1
	}
	view, err := gocv.NewMatFromBytes(buf.Height, buf.Width, mt, buf.Pix)
	if err != nil {
		return view, xerrors.Errorf("mat from frame: %w", err)
	}
	// The view aliases buf.Pix; detach it so drawing never touches the frame.
	m := view.Clone()
	view.Close()

	if buf.Format == model.PixelFormatRGB {
		gocv.CvtColor(m, &m, gocv.ColorRGBToBGR)
	}
	return m, nil
}
