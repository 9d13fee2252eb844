// Package pool implements an in-memory env.BlockSource that is filled
// incrementally, possibly out of order, while cursors read from it.
package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/btree"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/djvu-html5/djvustream/env"
	"github.com/djvu-html5/djvustream/options"
)

var _ env.BlockSource = (*Pool)(nil)

type block struct {
	index int64
	data  []byte
}

func lessBlock(a, b *block) bool {
	return a.index < b.index
}

// Pool is an append-only arena of immutable blocks.
// A single producer may Put blocks concurrently with any number of readers.
type Pool struct {
	blockSize int
	logger    *zap.Logger

	mu     sync.RWMutex
	blocks *btree.BTreeG[*block]
	err    error

	// size is the total length of the data, -1 until known.
	size *atomic.Int64
	// end is the end offset of the highest block received so far.
	end *atomic.Int64
	// contiguous is the end offset of the gapless prefix of received blocks.
	contiguous *atomic.Int64
}

// New creates an empty pool of unknown size.
func New(opts ...options.POption) (*Pool, error) {
	var o options.PoolOptions
	o.SetDefault()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	return &Pool{
		blockSize:  o.BlockSize,
		logger:     o.Logger,
		blocks:     btree.NewG[*block](16, lessBlock),
		size:       atomic.NewInt64(-1),
		end:        atomic.NewInt64(0),
		contiguous: atomic.NewInt64(0),
	}, nil
}

func (p *Pool) BlockSize() int {
	return p.blockSize
}

// EndOffset returns the total size once it is known and the end of the
// highest received block before that.
func (p *Pool) EndOffset() int64 {
	if size := p.size.Load(); size >= 0 {
		return size
	}
	return p.end.Load()
}

// Size returns the total length of the data or -1 if it is not known yet.
func (p *Pool) Size() int64 {
	return p.size.Load()
}

func (p *Pool) IsReady() bool {
	size := p.size.Load()
	return size >= 0 && p.contiguous.Load() >= size
}

// Block returns the block with the given index or nil if it has not arrived.
// Once Fail was called, missing blocks are reported with the recorded error.
func (p *Pool) Block(index int64) ([]byte, error) {
	if index < 0 {
		return nil, fmt.Errorf("negative block index: %d", index)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if b, ok := p.blocks.Get(&block{index: index}); ok {
		return b.data, nil
	}
	if p.err != nil {
		return nil, p.err
	}
	return nil, nil
}

// Put stores a copy of data as the block with the given index.
// Blocks are immutable: a second Put for the same index is ignored.
func (p *Pool) Put(index int64, data []byte) error {
	if index < 0 {
		return fmt.Errorf("negative block index: %d", index)
	}
	if len(data) == 0 || len(data) > p.blockSize {
		return fmt.Errorf("block %d has invalid length %d, block size is %d", index, len(data), p.blockSize)
	}

	blockEnd := index*int64(p.blockSize) + int64(len(data))
	if size := p.size.Load(); size >= 0 && blockEnd > size {
		return fmt.Errorf("block %d ends at %d past the data size %d", index, blockEnd, size)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.blocks.Has(&block{index: index}) {
		return nil
	}
	// A short block can only be the last one.
	if last, ok := p.blocks.Max(); ok {
		if last.index > index && len(data) != p.blockSize {
			return fmt.Errorf("short block %d (%d bytes) before block %d", index, len(data), last.index)
		}
		if last.index < index && len(last.data) != p.blockSize {
			return fmt.Errorf("block %d after short block %d", index, last.index)
		}
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	p.blocks.ReplaceOrInsert(&block{index: index, data: buf})

	if blockEnd > p.end.Load() {
		p.end.Store(blockEnd)
	}
	p.advanceContiguous()

	p.logger.Debug("stored block",
		zap.Int64("index", index), zap.Int("length", len(data)), zap.Int64("contiguous", p.contiguous.Load()))
	return nil
}

// advanceContiguous must be called with mu held.
func (p *Pool) advanceContiguous() {
	contiguous := p.contiguous.Load()
	p.blocks.AscendGreaterOrEqual(&block{index: contiguous / int64(p.blockSize)}, func(b *block) bool {
		start := b.index * int64(p.blockSize)
		if start != contiguous {
			return false
		}
		contiguous = start + int64(len(b.data))
		return len(b.data) == p.blockSize
	})
	p.contiguous.Store(contiguous)
}

// SetSize records the total length of the data. The size can only be set once.
func (p *Pool) SetSize(size int64) error {
	if size < 0 {
		return fmt.Errorf("negative size: %d", size)
	}
	if end := p.end.Load(); size < end {
		return fmt.Errorf("size %d is before already received data ending at %d", size, end)
	}
	if !p.size.CompareAndSwap(-1, size) {
		if current := p.size.Load(); current != size {
			return fmt.Errorf("size already set to %d", current)
		}
	}
	return nil
}

// Fail records a hard transport fault. Blocks that have not arrived yet are
// reported with err from now on.
func (p *Pool) Fail(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.err = multierr.Append(p.err, err)
	p.logger.Warn("block source failed", zap.Error(err))
}

// Err returns the recorded transport fault, if any.
func (p *Pool) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// ReadFrom fills the pool sequentially from r, starting at block 0.
// The size of the data is recorded once r is exhausted.
// Any error other than a context cancellation is also recorded with Fail.
func (p *Pool) ReadFrom(ctx context.Context, r io.Reader) (int64, error) {
	var total int64
	buf := make([]byte, p.blockSize)
	for index := int64(0); ; index++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if putErr := p.Put(index, buf[:n]); putErr != nil {
				p.Fail(putErr)
				return total, putErr
			}
			total += int64(n)
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			if err := p.SetSize(total); err != nil {
				p.Fail(err)
				return total, err
			}
			p.logger.Debug("source exhausted", zap.Int64("size", total))
			return total, nil
		default:
			err = fmt.Errorf("failed to read block %d: %w", index, err)
			p.Fail(err)
			return total, err
		}
	}
}

// Fetch streams the body of url into the pool.
func (p *Pool) Fetch(ctx context.Context, client *http.Client, url string) (n int64, err error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := client.Do(req)
	if err != nil {
		err = fmt.Errorf("failed to fetch %s: %w", url, err)
		p.Fail(err)
		return 0, err
	}
	defer func() {
		err = multierr.Append(err, resp.Body.Close())
	}()

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("unexpected status fetching %s: %s", url, resp.Status)
		p.Fail(err)
		return 0, err
	}

	return p.ReadFrom(ctx, resp.Body)
}
