package djvustream

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/djvu-html5/djvustream/env"
	"github.com/djvu-html5/djvustream/options"
	"github.com/djvu-html5/djvustream/pool"
)

func newPool(t testing.TB, blockSize int) *pool.Pool {
	p, err := pool.New(options.WithBlockSize(blockSize))
	require.NoError(t, err)
	return p
}

// loadedPool returns a pool holding all of data.
func loadedPool(t testing.TB, blockSize int, data []byte) *pool.Pool {
	p := newPool(t, blockSize)
	_, err := p.ReadFrom(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	return p
}

// putBlocks stores the given blocks of data into p.
func putBlocks(t testing.TB, p *pool.Pool, data []byte, indexes ...int64) {
	bs := int64(p.BlockSize())
	for _, i := range indexes {
		end := min((i+1)*bs, int64(len(data)))
		require.NoError(t, p.Put(i, data[i*bs:end]))
	}
}

func newTestCursor(t testing.TB, src env.BlockSource, opts ...options.COption) *Cursor {
	c, err := NewCursor(src, opts...)
	require.NoError(t, err)
	return c
}

func sequence(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

var errTransport = errors.New("connection reset")

// faultySource fails to fetch one block.
type faultySource struct {
	env.BlockSource
	bad int64
}

func (f *faultySource) Block(index int64) ([]byte, error) {
	if index == f.bad {
		return nil, errTransport
	}
	return f.BlockSource.Block(index)
}

func iffChunk(id string, body []byte) []byte {
	b := append([]byte(id), 0, 0, 0, 0)
	binary.BigEndian.PutUint32(b[4:], uint32(len(body)))
	b = append(b, body...)
	if len(body)%2 == 1 {
		b = append(b, 0)
	}
	return b
}

func iffForm(secondary string, children ...[]byte) []byte {
	body := []byte(secondary)
	for _, c := range children {
		body = append(body, c...)
	}
	return iffChunk("FORM", body)
}
