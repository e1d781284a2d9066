package model

import (
	"image"
	"image/color"
	"testing"
	"time"
)

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		input    string
		expected AlgorithmKind
		ok       bool
	}{
		{"yolov5", YoloV5, true},
		{"YOLO v3", YoloV3, true},
		{"yolo_v4", YoloV4, true},
		{"yolo-face", YoloFace, true},
		{"yolo", YoloV5, true},
		{"SSD MobileNet", SSDMobileNet, true},
		{"ssd_resnet", SSDResNet, true},
		{"ssd", SSDMobileNet, true},
		{"RetinaNet", RetinaNet, true},
		{"mtcnn", MTCNN, true},
		{"LFFD", LFFD, true},
		{"haar", HaarCascade, true},
		{"Haar Cascade", HaarCascade, true},
		{"scrfd", SCRFD, true},
		{"", AlgorithmUnknown, false},
		{"resnet50", AlgorithmUnknown, false},
	}

	for _, tt := range tests {
		got, ok := ParseAlgorithm(tt.input)
		if got != tt.expected || ok != tt.ok {
			t.Errorf("ParseAlgorithm(%q) = (%v, %v), expected (%v, %v)", tt.input, got, ok, tt.expected, tt.ok)
		}
	}
}

func TestAlgorithmKeyRoundTrip(t *testing.T) {
	for kind := HaarCascade; kind <= SCRFD; kind++ {
		got, ok := ParseAlgorithm(kind.Key())
		if !ok || got != kind {
			t.Errorf("ParseAlgorithm(%q) = (%v, %v), expected %v", kind.Key(), got, ok, kind)
		}
	}
}

func TestFamily(t *testing.T) {
	tests := []struct {
		kind     AlgorithmKind
		expected Family
	}{
		{HaarCascade, FamilyCascade},
		{YoloV3, FamilyYOLO},
		{YoloFace, FamilyYOLO},
		{SSDResNet, FamilySSD},
		{RetinaNet, FamilyRetinaNet},
		{MTCNN, FamilyMTCNN},
		{LFFD, FamilyLFFD},
		{SCRFD, FamilyUnknown},
	}

	for _, tt := range tests {
		if got := tt.kind.Family(); got != tt.expected {
			t.Errorf("%v.Family() = %v, expected %v", tt.kind, got, tt.expected)
		}
	}
}

func TestRectWithin(t *testing.T) {
	frame := Size{Width: 640, Height: 480}
	tests := []struct {
		name     string
		rect     Rect
		expected bool
	}{
		{"inside", Rect{X: 10, Y: 10, Width: 100, Height: 100}, true},
		{"touching right and bottom edge", Rect{X: 540, Y: 380, Width: 100, Height: 100}, true},
		{"negative origin", Rect{X: -1, Y: 10, Width: 100, Height: 100}, false},
		{"past right edge", Rect{X: 600, Y: 10, Width: 41, Height: 10}, false},
		{"zero width", Rect{X: 10, Y: 10, Width: 0, Height: 10}, false},
		{"inverted", Rect{X: 10, Y: 10, Width: -5, Height: 10}, false},
	}

	for _, tt := range tests {
		if got := tt.rect.Within(frame); got != tt.expected {
			t.Errorf("%s: Within() = %v, expected %v", tt.name, got, tt.expected)
		}
	}
}

func TestRectIntersect(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	b := Rect{X: 5, Y: 5, Width: 10, Height: 10}

	got := a.Intersect(b)
	expected := Rect{X: 5, Y: 5, Width: 5, Height: 5}
	if got != expected {
		t.Errorf("Intersect() = %+v, expected %+v", got, expected)
	}

	if a.Intersect(Rect{X: 20, Y: 20, Width: 5, Height: 5}).Area() != 0 {
		t.Error("disjoint rects should not intersect")
	}
}

func TestImageBufferEmpty(t *testing.T) {
	var nilBuf *ImageBuffer
	if !nilBuf.Empty() {
		t.Error("nil buffer should be empty")
	}
	if !(&ImageBuffer{Width: 10, Height: 10}).Empty() {
		t.Error("buffer without pixels should be empty")
	}
	if NewImageBuffer(4, 3, PixelFormatBGR).Empty() {
		t.Error("allocated buffer should not be empty")
	}
}

func TestImageBufferChannelOrder(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img.Set(1, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	buf := FromImage(img, 7, time.Unix(0, 0))
	if buf.Seq != 7 {
		t.Errorf("Seq = %d, expected 7", buf.Seq)
	}
	if buf.Pix[0] != 30 || buf.Pix[1] != 20 || buf.Pix[2] != 10 {
		t.Errorf("expected BGR storage, got %v", buf.Pix[:3])
	}

	r, g, b := buf.At(1, 0)
	if r != 200 || g != 100 || b != 50 {
		t.Errorf("At(1,0) = (%d,%d,%d), expected (200,100,50)", r, g, b)
	}

	back := buf.Image().(*image.NRGBA)
	if c := back.NRGBAAt(0, 0); c.R != 10 || c.G != 20 || c.B != 30 {
		t.Errorf("Image() round trip = %+v", c)
	}
}

func TestProfileCloneDoesNotAlias(t *testing.T) {
	p := AlgorithmProfile{Kind: YoloV5, Name: "YOLO v5", UseCases: []string{"real-time"}}
	c := p.Clone()
	c.UseCases[0] = "changed"

	if p.UseCases[0] != "real-time" {
		t.Error("Clone() aliased UseCases")
	}
	if (AlgorithmProfile{}).Empty() != true {
		t.Error("zero profile should be empty")
	}
}
