package model

import (
	"image"
	"image/color"
	"time"
)

type PixelFormat int

const (
	PixelFormatBGR PixelFormat = iota
	PixelFormatRGB
	PixelFormatGray
)

func (f PixelFormat) Channels() int {
	if f == PixelFormatGray {
		return 1
	}
	return 3
}

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatBGR:
		return "bgr"
	case PixelFormatRGB:
		return "rgb"
	case PixelFormatGray:
		return "gray"
	default:
		return "unknown"
	}
}

// ImageBuffer is a packed, row-major 8-bit frame. A buffer is owned by exactly
// one stage at a time: whoever hands it to a queue must not touch it afterwards.
type ImageBuffer struct {
	Width     int
	Height    int
	Format    PixelFormat
	Pix       []byte
	Seq       uint64
	Timestamp time.Time
}

func NewImageBuffer(width, height int, format PixelFormat) *ImageBuffer {
	return &ImageBuffer{
		Width:     width,
		Height:    height,
		Format:    format,
		Pix:       make([]byte, width*height*format.Channels()),
		Timestamp: time.Now(),
	}
}

// Empty reports whether the buffer holds no usable pixels.
func (b *ImageBuffer) Empty() bool {
	if b == nil || b.Width <= 0 || b.Height <= 0 {
		return true
	}
	return len(b.Pix) < b.Width*b.Height*b.Format.Channels()
}

func (b *ImageBuffer) Stride() int {
	return b.Width * b.Format.Channels()
}

func (b *ImageBuffer) Size() Size {
	return Size{Width: b.Width, Height: b.Height}
}

// At returns the pixel at (x, y) as r, g, b regardless of the buffer's channel order.
func (b *ImageBuffer) At(x, y int) (uint8, uint8, uint8) {
	i := y*b.Stride() + x*b.Format.Channels()
	switch b.Format {
	case PixelFormatGray:
		v := b.Pix[i]
		return v, v, v
	case PixelFormatRGB:
		return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
	default:
		return b.Pix[i+2], b.Pix[i+1], b.Pix[i]
	}
}

// Image converts the buffer to an image.Image (NRGBA, or Gray for gray buffers).
func (b *ImageBuffer) Image() image.Image {
	if b.Format == PixelFormatGray {
		img := image.NewGray(image.Rect(0, 0, b.Width, b.Height))
		for y := 0; y < b.Height; y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+b.Width], b.Pix[y*b.Stride():])
		}
		return img
	}

	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			r, g, bb := b.At(x, y)
			o := y*img.Stride + x*4
			img.Pix[o] = r
			img.Pix[o+1] = g
			img.Pix[o+2] = bb
			img.Pix[o+3] = 0xff
		}
	}
	return img
}

// FromImage copies img into a new BGR buffer.
func FromImage(img image.Image, seq uint64, ts time.Time) *ImageBuffer {
	bounds := img.Bounds()
	buf := NewImageBuffer(bounds.Dx(), bounds.Dy(), PixelFormatBGR)
	buf.Seq = seq
	buf.Timestamp = ts

	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			i := y*buf.Stride() + x*3
			buf.Pix[i] = c.B
			buf.Pix[i+1] = c.G
			buf.Pix[i+2] = c.R
		}
	}
	return buf
}
