package env

import (
	"image"
	"time"
)

// BlockSource is the fetch-on-demand byte storage that cursors read from.
// Data is organized in fixed-size blocks and only ever grows.
type BlockSource interface {
	// BlockSize returns the size of every block except possibly the last one.
	BlockSize() int
	// EndOffset returns the exclusive upper bound of currently known data.
	// The value never decreases.
	EndOffset() int64
	// Block returns the raw bytes of the block with the given index.
	// It returns nil and no error if the block has not arrived yet.
	// A non-nil error signals a hard transport fault.
	//
	// Returned slices must not be modified by the caller.
	Block(index int64) ([]byte, error)
	// IsReady reports whether all of the data has arrived.
	IsReady() bool
}

// PageSource supplies decoded pages on demand.
type PageSource interface {
	// Page returns the page with the given index, or false if it is not available yet.
	Page(index int) (PageHandle, bool)
}

// PageHandle is a decoded page.
type PageHandle interface {
	// Dimensions returns the full resolution width and height of the page.
	Dimensions() (width, height int)
	// Pixels decodes the given rectangle of the page, subsampled by subsample.
	Pixels(rect Rect, subsample int) (*PixelMap, error)
}

// Surface turns raw pixel data into displayable images.
type Surface interface {
	// NewImage builds an image from packed row-major RGB triplets.
	NewImage(rgb []byte, width, height int) (image.Image, error)
}

// Scheduler drives the cooperative timeline of a tile store.
type Scheduler interface {
	// Every invokes fn each period until the scheduler stops.
	Every(period time.Duration, fn func())
	// Defer invokes fn on a later turn, never from within the caller's stack.
	Defer(fn func())
}
