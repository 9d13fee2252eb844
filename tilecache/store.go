// Package tilecache keeps decoded page tiles for display. Tiles are
// requested synchronously, rendered as placeholders until their page is
// available, and fetched in the background by a periodic tick.
package tilecache

import (
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/djvu-html5/djvustream/env"
	"github.com/djvu-html5/djvustream/options"
)

// Listener is notified when the real image of a tile has been installed.
type Listener interface {
	TileAvailable(key Key)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(key Key)

func (f ListenerFunc) TileAvailable(key Key) { f(key) }

type entry struct {
	image    image.Image
	lastUsed time.Time
	fetched  bool
}

// Entry is a snapshot of a cached tile.
type Entry struct {
	Image image.Image
	// LastUsed is updated on every GetTile. Nothing evicts entries yet.
	LastUsed time.Time
	Fetched  bool
}

// Store caches tile images by key.
//
// The store assumes a single cooperative timeline: GetTile, Tick and
// AddListener must be called from the scheduler's goroutine. Listeners are
// invoked through Scheduler.Defer on that same timeline.
type Store struct {
	pages   env.PageSource
	surface env.Surface
	sched   env.Scheduler

	tileSize int
	logger   *zap.Logger
	now      func() time.Time

	entries   map[Key]*entry
	pending   []Key
	listeners []Listener
}

// New creates a store and registers its Tick with sched.
func New(pages env.PageSource, surface env.Surface, sched env.Scheduler, opts ...options.TOption) (*Store, error) {
	if pages == nil || surface == nil || sched == nil {
		return nil, fmt.Errorf("page source, surface and scheduler are required")
	}

	var o options.TileOptions
	o.SetDefault()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	s := &Store{
		pages:    pages,
		surface:  surface,
		sched:    sched,
		tileSize: o.TileSize,
		logger:   o.Logger,
		now:      o.Now,
		entries:  make(map[Key]*entry),
	}
	sched.Every(o.TickPeriod, s.Tick)
	return s, nil
}

// TileSize returns the edge length of a full tile in pixels.
func (s *Store) TileSize() int {
	return s.tileSize
}

// GetTile returns the current image for key. Unknown keys get a
// checkerboard placeholder and are queued for fetching. GetTile never waits
// for decoding.
func (s *Store) GetTile(key Key) image.Image {
	e, ok := s.entries[key]
	if !ok {
		img, err := s.surface.NewImage(placeholderPixels(s.tileSize), s.tileSize, s.tileSize)
		if err != nil {
			s.logger.Warn("failed to render placeholder", zap.Object("key", key), zap.Error(err))
		}
		e = &entry{image: img}
		s.entries[key] = e
		s.pending = append(s.pending, key)
		s.logger.Debug("queued tile", zap.Object("key", key), zap.Uint64("hash", key.Hash()), zap.Int("pending", len(s.pending)))
	}
	e.lastUsed = s.now()
	return e.image
}

// Lookup returns a snapshot of the entry for key.
func (s *Store) Lookup(key Key) (Entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	return Entry{Image: e.image, LastUsed: e.lastUsed, Fetched: e.fetched}, true
}

// AddListener registers l. Listeners are notified in registration order.
func (s *Store) AddListener(l Listener) {
	s.listeners = append(s.listeners, l)
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// Pending returns the number of tiles waiting to be fetched.
func (s *Store) Pending() int {
	return len(s.pending)
}

// Tick fetches every pending tile whose page is available. Tiles of pages
// that are not available, and tiles that failed to decode, stay queued for
// the next tick.
func (s *Store) Tick() {
	for i := len(s.pending) - 1; i >= 0; i-- {
		key := s.pending[i]

		e, ok := s.entries[key]
		if ok && e.fetched {
			s.dequeue(i)
			continue
		}

		page, ok := s.pages.Page(key.Page)
		if !ok {
			continue
		}

		img, err := s.render(key, page)
		if err != nil {
			s.logger.Warn("failed to fetch tile, will retry", zap.Object("key", key), zap.Error(err))
			continue
		}

		if e == nil {
			e = &entry{lastUsed: s.now()}
			s.entries[key] = e
		}
		e.image = img
		e.fetched = true
		s.dequeue(i)

		s.logger.Debug("fetched tile", zap.Object("key", key), zap.Uint64("hash", key.Hash()))
		s.sched.Defer(func() { s.notify(key) })
	}
}

func (s *Store) render(key Key, page env.PageHandle) (image.Image, error) {
	width, height := page.Dimensions()
	rect := key.Rect(s.tileSize, width, height)

	pixels, err := page.Pixels(rect, key.Subsample)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %dx%d pixels: %w", rect.Width(), rect.Height(), err)
	}
	if pixels == nil {
		return nil, fmt.Errorf("no pixels returned for rect %+v", rect)
	}

	w, h := rect.Width(), rect.Height()
	if pixels.Width != w || pixels.Height != h {
		return nil, fmt.Errorf("pixel map is %dx%d, want %dx%d", pixels.Width, pixels.Height, w, h)
	}
	rgb, ok := flipPixels(pixels.Data, pixels.Stride(),
		pixels.RedOffset, pixels.GreenOffset, pixels.BlueOffset, w, h)
	if !ok {
		return nil, fmt.Errorf("pixel map of %d bytes does not cover %dx%d pixels", len(pixels.Data), w, h)
	}

	return s.surface.NewImage(rgb, w, h)
}

func (s *Store) dequeue(i int) {
	s.pending = append(s.pending[:i], s.pending[i+1:]...)
}

func (s *Store) notify(key Key) {
	for _, l := range s.listeners {
		l.TileAvailable(key)
	}
}
