package tilecache

import (
	"fmt"
	"image"
	"image/color"

	"github.com/djvu-html5/djvustream/env"
)

var _ env.Surface = RGBASurface{}

// RGBASurface is a Surface producing opaque *image.RGBA images.
type RGBASurface struct{}

func (RGBASurface) NewImage(rgb []byte, width, height int) (image.Image, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if len(rgb) < 3*width*height {
		return nil, fmt.Errorf("pixel buffer too short for %dx%d: %d bytes", width, height, len(rgb))
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := 3 * (y*width + x)
			img.SetRGBA(x, y, color.RGBA{R: rgb[i], G: rgb[i+1], B: rgb[i+2], A: 0xff})
		}
	}
	return img, nil
}
