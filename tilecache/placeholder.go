package tilecache

const (
	// placeholderCells is the number of checkerboard cells along each edge.
	placeholderCells = 16

	placeholderFill       = 0xaa
	placeholderBackground = 0xff
)

// placeholderPixels renders a size x size checkerboard as packed RGB.
// Cells where (column+row) is odd are filled.
func placeholderPixels(size int) []byte {
	cell := size / placeholderCells
	if cell < 1 {
		cell = 1
	}

	rgb := make([]byte, 3*size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := byte(placeholderBackground)
			cx, cy := x/cell, y/cell
			if cx < placeholderCells && cy < placeholderCells && (cx+cy)%2 == 1 {
				v = placeholderFill
			}
			i := 3 * (y*size + x)
			rgb[i], rgb[i+1], rgb[i+2] = v, v, v
		}
	}
	return rgb
}

// flipPixels converts a bottom-up pixel map region of w x h pixels into
// top-down packed RGB.
func flipPixels(data []byte, stride, r, g, b, w, h int) ([]byte, bool) {
	if w*h == 0 {
		return nil, true
	}
	if len(data) < stride*w*h || min(r, g, b) < 0 || max(r, g, b) >= stride {
		return nil, false
	}

	rgb := make([]byte, 3*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src := stride * ((h-y-1)*w + x)
			dst := 3 * (y*w + x)
			rgb[dst] = data[src+r]
			rgb[dst+1] = data[src+g]
			rgb[dst+2] = data[src+b]
		}
	}
	return rgb, true
}
