package env

import (
	"go.uber.org/zap/zapcore"
)

// Rect is a pixel rectangle. Max coordinates are exclusive.
type Rect struct {
	XMin, YMin int
	XMax, YMax int
}

// Width of the rectangle, never negative.
func (r Rect) Width() int {
	if r.XMax < r.XMin {
		return 0
	}
	return r.XMax - r.XMin
}

// Height of the rectangle, never negative.
func (r Rect) Height() int {
	if r.YMax < r.YMin {
		return 0
	}
	return r.YMax - r.YMin
}

func (r Rect) Empty() bool {
	return r.Width() == 0 || r.Height() == 0
}

func (r *Rect) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("XMin", r.XMin)
	enc.AddInt("YMin", r.YMin)
	enc.AddInt("XMax", r.XMax)
	enc.AddInt("YMax", r.YMax)
	return nil
}

// PixelMap is a packed row-major pixel buffer as returned by a page decoder.
// Rows are stored bottom-up: row 0 is the bottom of the image.
type PixelMap struct {
	Data   []byte
	Width  int
	Height int

	// BytesPerPixel is the distance between two pixels. Zero means 3.
	BytesPerPixel int

	// Channel offsets within a pixel.
	RedOffset   int
	GreenOffset int
	BlueOffset  int
}

// Stride returns the distance between two pixels in Data.
func (m *PixelMap) Stride() int {
	if m.BytesPerPixel <= 0 {
		return 3
	}
	return m.BytesPerPixel
}
