// Package djvustream provides cheap, independently positioned read cursors
// over a shared block-cached byte source, together with the decoding helpers
// needed to walk DjVu IFF structures while the document is still arriving.
package djvustream

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"go.uber.org/zap"

	"github.com/djvu-html5/djvustream/env"
	"github.com/djvu-html5/djvustream/options"
)

// Signature is the octet signature found at the very start of a DjVu file.
var Signature = []byte{0x41, 0x54, 0x26, 0x54}

const noBlock = -1

var (
	_ io.Reader     = (*Cursor)(nil)
	_ io.ByteReader = (*Cursor)(nil)
	_ io.Seeker     = (*Cursor)(nil)
)

type cachedBlock struct {
	index int64
	data  []byte
}

// Cursor is a sequential read view into a BlockSource with its own offset,
// upper bound and mark. Cursors are cheap to clone; clones share the source
// but not their positions.
//
// A Cursor is meant for a single logical owner and is not safe for concurrent use.
//
// Reads never wait for data: if the block under the cursor has not arrived
// yet, the cursor jumps to its effective end and reports io.EOF. Only hard
// faults of the source are returned as errors.
type Cursor struct {
	src    env.BlockSource
	logger *zap.Logger
	name   string

	offset     int64
	endOffset  int64
	markOffset int64

	cached cachedBlock
}

// NewCursor creates an unbounded cursor positioned at the start of src.
func NewCursor(src env.BlockSource, opts ...options.COption) (*Cursor, error) {
	if src == nil {
		return nil, fmt.Errorf("nil block source")
	}
	if src.BlockSize() <= 0 {
		return nil, fmt.Errorf("invalid block size: %d", src.BlockSize())
	}

	var o options.CursorOptions
	o.SetDefault()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	return &Cursor{
		src:       src,
		logger:    o.Logger,
		name:      o.Name,
		endOffset: math.MaxInt64,
		cached:    cachedBlock{index: noBlock},
	}, nil
}

// Clone returns an independent copy of the cursor sharing the same source.
func (c *Cursor) Clone() *Cursor {
	clone := *c
	return &clone
}

// Bounded returns a clone of the cursor limited to size bytes from the
// current position. The clone's bound is never larger than the cursor's own.
func (c *Cursor) Bounded(size int64) *Cursor {
	clone := c.Clone()
	clone.SetBound(size)
	return clone
}

// SetBound limits the cursor to size bytes from the current position.
// Bounds can only be lowered: a larger size is ignored.
func (c *Cursor) SetBound(size int64) {
	if size < 0 {
		size = 0
	}
	if size > math.MaxInt64-c.offset {
		return
	}
	if end := c.offset + size; end < c.endOffset {
		c.endOffset = end
	}
}

// EndOffset returns the effective end of the cursor: the smaller of its own
// bound and the end of the data currently known to the source.
func (c *Cursor) EndOffset() int64 {
	if end := c.src.EndOffset(); end < c.endOffset {
		return end
	}
	return c.endOffset
}

// Offset returns the absolute position of the cursor in the source.
func (c *Cursor) Offset() int64 {
	return c.offset
}

// Available returns the number of bytes left before the effective end.
func (c *Cursor) Available() int64 {
	if n := c.EndOffset() - c.offset; n > 0 {
		return n
	}
	return 0
}

func (c *Cursor) IsReady() bool {
	return c.src.IsReady()
}

func (c *Cursor) Name() string {
	return c.name
}

func (c *Cursor) SetName(name string) {
	c.name = name
}

// Mark remembers the current position for a later Reset.
// There is no read limit: the source retains every fetched block.
func (c *Cursor) Mark() {
	c.markOffset = c.offset
}

// Reset moves the cursor back to the last marked position.
func (c *Cursor) Reset() {
	c.offset = c.markOffset
}

// load makes sure the block under the cursor is cached and returns it along
// with the position of the cursor within it. A nil block means the data has
// not arrived yet; the cursor is then moved to its effective end.
func (c *Cursor) load() ([]byte, int, error) {
	blockSize := int64(c.src.BlockSize())
	index := c.offset / blockSize
	if index != c.cached.index {
		data, err := c.src.Block(index)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to fetch block %d at offset %d: %w", index, c.offset, err)
		}
		c.cached = cachedBlock{index: index, data: data}
	}

	intra := int(c.offset % blockSize)
	if intra >= len(c.cached.data) {
		end := c.EndOffset()
		c.logger.Debug("block not available, forcing EOF",
			zap.String("name", c.name), zap.Int64("block", index),
			zap.Int64("offset", c.offset), zap.Int64("end", end))
		c.offset = end
		c.cached = cachedBlock{index: noBlock}
		return nil, 0, nil
	}
	return c.cached.data, intra, nil
}

// ReadByte reads the next byte. It returns io.EOF at the effective end and
// when the underlying block is not available yet.
func (c *Cursor) ReadByte() (byte, error) {
	if c.offset >= c.EndOffset() {
		return 0, io.EOF
	}

	data, intra, err := c.load()
	if err != nil {
		return 0, err
	}
	if data == nil {
		return 0, io.EOF
	}

	c.offset++
	return data[intra], nil
}

// Read copies at most one block worth of contiguous bytes into dst.
func (c *Cursor) Read(dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	end := c.EndOffset()
	if c.offset >= end {
		return 0, io.EOF
	}

	data, intra, err := c.load()
	if err != nil {
		return 0, err
	}
	if data == nil {
		return 0, io.EOF
	}

	size := int64(len(data) - intra)
	if remaining := end - c.offset; size > remaining {
		size = remaining
	}
	if size > int64(len(dst)) {
		size = int64(len(dst))
	}

	copy(dst, data[intra:intra+int(size)])
	c.offset += size
	return int(size), nil
}

// ReadFull reads until dst is full or the cursor hits EOF. It returns the
// number of bytes read and io.EOF only if no byte could be read at all.
func (c *Cursor) ReadFull(dst []byte) (int, error) {
	var n int
	for n < len(dst) {
		m, err := c.Read(dst[n:])
		n += m
		if err == io.EOF {
			if n > 0 {
				return n, nil
			}
			return 0, io.EOF
		}
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Read16 reads a big-endian unsigned 16 bit integer.
func (c *Cursor) Read16() (int, error) {
	msb, err := c.ReadByte()
	if err != nil {
		return 0, err
	}
	lsb, err := c.ReadByte()
	if err != nil {
		return 0, err
	}
	return int(msb)<<8 | int(lsb), nil
}

// Read24 reads a big-endian unsigned 24 bit integer.
func (c *Cursor) Read24() (int, error) {
	msb, err := c.Read16()
	if err != nil {
		return 0, err
	}
	lsb, err := c.ReadByte()
	if err != nil {
		return 0, err
	}
	return msb<<8 | int(lsb), nil
}

// Read32 reads a big-endian unsigned 32 bit integer.
func (c *Cursor) Read32() (int64, error) {
	msb, err := c.Read16()
	if err != nil {
		return 0, err
	}
	lsb, err := c.Read16()
	if err != nil {
		return 0, err
	}
	return int64(msb)<<16 | int64(lsb), nil
}

// Skip advances the cursor by up to n bytes without reading them and returns
// the number of bytes actually skipped.
func (c *Cursor) Skip(n int64) int64 {
	remaining := c.EndOffset() - c.offset
	if n > remaining {
		n = remaining
	}
	if n <= 0 {
		return 0
	}
	c.offset += n
	return n
}

// Seek implements io.Seeker. io.SeekEnd is relative to the effective end.
func (c *Cursor) Seek(offset int64, whence int) (int64, error) {
	newOffset := c.offset
	switch whence {
	case io.SeekCurrent:
		newOffset += offset
	case io.SeekStart:
		newOffset = offset
	case io.SeekEnd:
		newOffset = c.EndOffset() + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}

	if newOffset < 0 {
		return 0, fmt.Errorf("offset before the start of the source: %d (%d + %d)",
			newOffset, c.offset, offset)
	}

	c.offset = newOffset
	return c.offset, nil
}

// HasSignature reports whether the first bytes of the source are the DjVu
// signature. Neither the position nor the bound of the cursor are used or
// affected.
func (c *Cursor) HasSignature() bool {
	head := c.Clone()
	head.offset = 0
	head.endOffset = math.MaxInt64

	var sig [4]byte
	n, err := head.ReadFull(sig[:])
	if err != nil && err != io.EOF {
		c.logger.Debug("failed to read signature", zap.Error(err))
		return false
	}
	return bytes.Equal(sig[:n], Signature)
}
