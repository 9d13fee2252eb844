package pool

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djvu-html5/djvustream/options"
)

func newTestPool(t *testing.T, blockSize int) *Pool {
	p, err := New(options.WithBlockSize(blockSize))
	require.NoError(t, err)
	return p
}

func TestNewRejectsInvalidBlockSize(t *testing.T) {
	t.Parallel()

	_, err := New(options.WithBlockSize(0))
	require.ErrorContains(t, err, "block size must be positive")

	p, err := New()
	require.NoError(t, err)
	assert.Equal(t, options.DefaultBlockSize, p.BlockSize())
}

func TestPoolOutOfOrder(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 4)
	assert.Equal(t, int64(0), p.EndOffset())
	assert.Equal(t, int64(-1), p.Size())
	assert.False(t, p.IsReady())

	require.NoError(t, p.Put(2, []byte("ij")))
	assert.Equal(t, int64(10), p.EndOffset())

	block, err := p.Block(0)
	require.NoError(t, err)
	assert.Nil(t, block)

	require.NoError(t, p.Put(0, []byte("abcd")))
	assert.Equal(t, int64(10), p.EndOffset())
	require.NoError(t, p.SetSize(10))
	assert.False(t, p.IsReady())

	require.NoError(t, p.Put(1, []byte("efgh")))
	assert.True(t, p.IsReady())

	for i, expected := range []string{"abcd", "efgh", "ij"} {
		block, err := p.Block(int64(i))
		require.NoError(t, err)
		assert.Equal(t, []byte(expected), block)
	}
}

func TestPoolBlocksAreImmutable(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 4)
	data := []byte("abcd")
	require.NoError(t, p.Put(0, data))
	data[0] = 'X'

	require.NoError(t, p.Put(0, []byte("wxyz")))

	block, err := p.Block(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), block)
}

func TestPoolRejectsInvalidBlocks(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 4)
	require.Error(t, p.Put(-1, []byte("abcd")))
	require.Error(t, p.Put(0, nil))
	require.Error(t, p.Put(0, []byte("abcde")))

	require.NoError(t, p.Put(3, []byte("ab")))
	require.ErrorContains(t, p.Put(1, []byte("ab")), "short block")
	require.ErrorContains(t, p.Put(4, []byte("abcd")), "after short block")

	require.ErrorContains(t, p.SetSize(5), "before already received data")
	require.NoError(t, p.SetSize(14))
	require.NoError(t, p.SetSize(14))
	require.ErrorContains(t, p.SetSize(20), "already set")
	require.ErrorContains(t, p.Put(4, []byte("abcd")), "past the data size")

	_, err := p.Block(-1)
	require.Error(t, err)
}

func TestPoolEndOffsetMonotonic(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 2)
	var last int64
	for _, index := range []int64{5, 1, 0, 7, 3, 2, 6, 4} {
		require.NoError(t, p.Put(index, []byte("ab")))
		end := p.EndOffset()
		assert.GreaterOrEqual(t, end, last)
		last = end
	}
	assert.Equal(t, int64(16), last)
}

func TestPoolReadFrom(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("0123456789"), 100)
	p := newTestPool(t, 64)

	// OneByteReader makes sure short reads are assembled into full blocks.
	n, err := p.ReadFrom(context.Background(), iotest.OneByteReader(bytes.NewReader(data)))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.True(t, p.IsReady())
	assert.Equal(t, int64(len(data)), p.EndOffset())

	var got []byte
	for i := int64(0); i*64 < int64(len(data)); i++ {
		block, err := p.Block(i)
		require.NoError(t, err)
		got = append(got, block...)
	}
	assert.Equal(t, data, got)
}

func TestPoolReadFromFailure(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 4)
	failure := errors.New("boom")
	r := io.MultiReader(bytes.NewReader([]byte("abcdef")), iotest.ErrReader(failure))

	n, err := p.ReadFrom(context.Background(), r)
	require.ErrorIs(t, err, failure)
	assert.Equal(t, int64(6), n)
	assert.False(t, p.IsReady())
	require.ErrorIs(t, p.Err(), failure)

	// Blocks that made it stay readable.
	block, err := p.Block(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("ef"), block)

	_, err = p.Block(2)
	require.ErrorIs(t, err, failure)
}

func TestPoolReadFromCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPool(t, 4)
	_, err := p.ReadFrom(ctx, bytes.NewReader([]byte("abcdef")))
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, p.Err())
}

func TestPoolFetch(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("AT&T"), 300)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/doc.djvu" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	p := newTestPool(t, 100)
	n, err := p.Fetch(context.Background(), srv.Client(), srv.URL+"/doc.djvu")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.True(t, p.IsReady())

	missing := newTestPool(t, 100)
	_, err = missing.Fetch(context.Background(), srv.Client(), srv.URL+"/missing.djvu")
	require.ErrorContains(t, err, "unexpected status")
	require.Error(t, missing.Err())

	_, err = missing.Block(0)
	require.Error(t, err)
}
