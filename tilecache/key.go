package tilecache

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap/zapcore"

	"github.com/djvu-html5/djvustream/env"
)

const (
	MinSubsample = 0
	MaxSubsample = 12
)

// Key identifies a tile: a page, the subsampling applied to it and the
// tile's column and row in the subsampled page's tile grid. Row 0 is the
// bottom-most row.
//
// Key is a comparable value; equality is structural over all fields.
type Key struct {
	Page      int
	Subsample int
	X         int
	Y         int
}

// Hash returns a stable digest of the key.
func (k Key) Hash() uint64 {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(k.Page))
	binary.LittleEndian.PutUint64(buf[8:], uint64(k.Subsample))
	binary.LittleEndian.PutUint64(buf[16:], uint64(k.X))
	binary.LittleEndian.PutUint64(buf[24:], uint64(k.Y))
	return xxhash.Sum64(buf[:])
}

func (k Key) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("Page", k.Page)
	enc.AddInt("Subsample", k.Subsample)
	enc.AddInt("X", k.X)
	enc.AddInt("Y", k.Y)
	return nil
}

// Rect returns the pixel rectangle covered by the tile in the subsampled
// page of the given full resolution size. Y grows upwards from the bottom of
// the page. A subsample of 0 means full resolution.
func (k Key) Rect(tileSize, pageWidth, pageHeight int) env.Rect {
	subsample := k.Subsample
	if subsample < 1 {
		subsample = 1
	}

	pw := (pageWidth + subsample - 1) / subsample
	ph := (pageHeight + subsample - 1) / subsample

	return env.Rect{
		XMin: min(k.X*tileSize, pw),
		XMax: min((k.X+1)*tileSize, pw),
		YMin: max(ph-(k.Y+1)*tileSize, 0),
		YMax: max(ph-k.Y*tileSize, 0),
	}
}

// SubsampleForZoom returns the subsampling to use for a zoom factor,
// clamped to [MinSubsample, MaxSubsample].
// A zoom that is not positive gets MaxSubsample.
func SubsampleForZoom(zoom float64) int {
	if !(zoom > 0) {
		return MaxSubsample
	}
	subsample := math.Ceil(1 / zoom)
	return int(max(MinSubsample, min(MaxSubsample, subsample)))
}

// ScaleForZoom returns the scale that has to be applied to tiles rendered
// at SubsampleForZoom(zoom) to display them at zoom.
// It is 0 for a zoom that is not positive.
func ScaleForZoom(zoom float64) float64 {
	if !(zoom > 0) {
		return 0
	}
	subsample := SubsampleForZoom(zoom)
	if subsample < 1 {
		subsample = 1
	}
	return 1 / float64(subsample) / zoom
}
