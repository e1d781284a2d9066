package model

import "time"

type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

func (s Size) Area() int {
	return s.Width * s.Height
}

func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Rect is an axis-aligned box in source-frame pixels.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func RectFromCorners(x1, y1, x2, y2 int) Rect {
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

func (r Rect) Area() int {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

func (r Rect) Center() Point {
	return Point{
		X: float32(r.X) + float32(r.Width)/2,
		Y: float32(r.Y) + float32(r.Height)/2,
	}
}

// Within reports whether r is non-degenerate and lies entirely inside a
// frame of the given size.
func (r Rect) Within(frame Size) bool {
	return r.Width > 0 && r.Height > 0 &&
		r.X >= 0 && r.Y >= 0 &&
		r.X+r.Width <= frame.Width &&
		r.Y+r.Height <= frame.Height
}

func (r Rect) Intersect(o Rect) Rect {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.X+r.Width, o.X+o.Width)
	y2 := min(r.Y+r.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}
	return RectFromCorners(x1, y1, x2, y2)
}

type Pose struct {
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
	Roll  float32 `json:"roll"`
}

type Quality struct {
	Blur       float32 `json:"blur"`
	Brightness float32 `json:"brightness"`
	Overall    float32 `json:"overall"`
}

// Detection is one localized object found in one frame. Detections carry no
// identity across frames.
type Detection struct {
	Box        Rect          `json:"box"`
	Confidence float32       `json:"confidence"`
	Center     Point         `json:"center"`
	Algorithm  AlgorithmKind `json:"algorithm"`
	Latency    time.Duration `json:"latency"`
	Landmarks  []Point       `json:"landmarks,omitempty"`
	Pose       *Pose         `json:"pose,omitempty"`
	Quality    *Quality      `json:"quality,omitempty"`
}

func NewDetection(box Rect, confidence float32) Detection {
	return Detection{
		Box:        box,
		Confidence: confidence,
		Center:     box.Center(),
	}
}
