package capture

import (
	"math/rand"
	"sync"
	"time"

	"github.com/khaledhikmat/vs-detect/model"
)

type randomService struct {
	mu        sync.Mutex
	width     int
	height    int
	failEvery int
	calls     int
	rng       *rand.Rand
	closed    bool
}

// NewRandom returns a synthetic source of noise frames. When failEvery is
// positive every failEvery-th call reports ErrNoFrame.
func NewRandom(width, height, failEvery int) IService {
	return &randomService{
		width:     width,
		height:    height,
		failEvery: failEvery,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (svc *randomService) Name() string {
	return "random"
}

func (svc *randomService) TryGetFrame() (*model.ImageBuffer, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.closed {
		return nil, ErrClosed
	}

	svc.calls++
	if svc.failEvery > 0 && svc.calls%svc.failEvery == 0 {
		return nil, ErrNoFrame
	}

	frame := model.NewImageBuffer(svc.width, svc.height, model.PixelFormatBGR)
	svc.rng.Read(frame.Pix)
	return frame, nil
}

func (svc *randomService) Close() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.closed = true
	return nil
}
