package capture

import (
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-detect/model"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".gif":  true,
	".tif":  true,
	".tiff": true,
}

type replayService struct {
	mu     sync.Mutex
	frames []*model.ImageBuffer
	next   int
	loop   bool
	closed bool
}

// NewReplay serves frames in order, starting over when loop is set.
// Every call returns a copy so callers own what they get.
func NewReplay(frames []*model.ImageBuffer, loop bool) IService {
	return &replayService{frames: frames, loop: loop}
}

func (svc *replayService) Name() string {
	return "replay"
}

func (svc *replayService) TryGetFrame() (*model.ImageBuffer, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.closed || len(svc.frames) == 0 {
		return nil, ErrClosed
	}
	if svc.next >= len(svc.frames) {
		if !svc.loop {
			return nil, ErrClosed
		}
		svc.next = 0
	}

	src := svc.frames[svc.next]
	svc.next++

	frame := *src
	frame.Pix = append([]byte(nil), src.Pix...)
	frame.Timestamp = time.Now()
	return &frame, nil
}

func (svc *replayService) Close() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.closed = true
	return nil
}

// LoadDir decodes every image file in dir, sorted by name. Files that fail
// to decode are skipped; an empty result is an error.
func LoadDir(dir string) ([]*model.ImageBuffer, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, xerrors.Errorf("read frame dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	frames := make([]*model.ImageBuffer, 0, len(names))
	for i, name := range names {
		img, err := imaging.Open(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		frames = append(frames, model.FromImage(img, uint64(i+1), time.Now()))
	}

	if len(frames) == 0 {
		return nil, xerrors.Errorf("no decodable images in %s", dir)
	}
	return frames, nil
}

// Synthetic builds n noise frames of the given size from a fixed seed.
func Synthetic(n, width, height int) []*model.ImageBuffer {
	src := &randomService{
		width:  width,
		height: height,
		rng:    rand.New(rand.NewSource(int64(n*width + height))),
	}

	frames := make([]*model.ImageBuffer, 0, n)
	for i := 0; i < n; i++ {
		f, _ := src.TryGetFrame()
		f.Seq = uint64(i + 1)
		frames = append(frames, f)
	}
	return frames
}
