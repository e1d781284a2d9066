package capture

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/khaledhikmat/vs-detect/model"
)

func TestRandomFailEvery(t *testing.T) {
	src := NewRandom(32, 24, 3)
	defer src.Close()

	var frames, misses int
	for i := 0; i < 9; i++ {
		f, err := src.TryGetFrame()
		switch {
		case errors.Is(err, ErrNoFrame):
			misses++
		case err != nil:
			t.Fatalf("TryGetFrame() error = %v", err)
		default:
			frames++
			if f.Width != 32 || f.Height != 24 || f.Empty() {
				t.Errorf("frame = %dx%d empty=%v", f.Width, f.Height, f.Empty())
			}
		}
	}
	if frames != 6 || misses != 3 {
		t.Errorf("frames=%d misses=%d, expected 6 and 3", frames, misses)
	}

	_ = src.Close()
	if _, err := src.TryGetFrame(); !errors.Is(err, ErrClosed) {
		t.Errorf("TryGetFrame() after Close error = %v", err)
	}
}

func TestReplayCopiesAndLoops(t *testing.T) {
	frames := Synthetic(2, 8, 8)
	src := NewReplay(frames, true)

	first, err := src.TryGetFrame()
	if err != nil {
		t.Fatalf("TryGetFrame() error = %v", err)
	}
	first.Pix[0] ^= 0xff
	if frames[0].Pix[0] == first.Pix[0] {
		t.Error("replay handed out the shared buffer")
	}

	if _, err := src.TryGetFrame(); err != nil {
		t.Fatalf("second TryGetFrame() error = %v", err)
	}
	third, err := src.TryGetFrame()
	if err != nil || third.Seq != frames[0].Seq {
		t.Errorf("loop did not restart: seq=%v err=%v", third, err)
	}

	once := NewReplay(frames[:1], false)
	_, _ = once.TryGetFrame()
	if _, err := once.TryGetFrame(); !errors.Is(err, ErrClosed) {
		t.Errorf("exhausted replay error = %v, expected ErrClosed", err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	for _, name := range []string{"b.png", "a.png"} {
		if err := imaging.Save(img, filepath.Join(dir, name)); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatal(err)
	}

	frames, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("LoadDir() = %d frames, expected 2", len(frames))
	}
	if frames[0].Width != 4 || frames[0].Height != 3 || frames[0].Format != model.PixelFormatBGR {
		t.Errorf("frame = %dx%d %v", frames[0].Width, frames[0].Height, frames[0].Format)
	}
	if r, _, _ := frames[0].At(0, 0); r != 255 {
		t.Errorf("pixel (0,0) red = %d, expected 255", r)
	}

	if _, err := LoadDir(t.TempDir()); err == nil {
		t.Error("LoadDir() on an empty dir should fail")
	}
}

func TestSyntheticIsDeterministic(t *testing.T) {
	a := Synthetic(3, 16, 16)
	b := Synthetic(3, 16, 16)
	for i := range a {
		if string(a[i].Pix) != string(b[i].Pix) || a[i].Seq != uint64(i+1) {
			t.Fatalf("frame %d differs between runs", i)
		}
	}
}
