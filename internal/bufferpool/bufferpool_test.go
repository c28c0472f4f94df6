package bufferpool

import (
	"path/filepath"
	"testing"

	"github.com/minidb-go/minidb/internal/diskmgr"
	"github.com/minidb-go/minidb/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T) *Pool {
	dir := t.TempDir()
	disk, err := diskmgr.Open(filepath.Join(dir, "db.dat"))
	require.NoError(t, err)
	t.Cleanup(func() { disk.Close() })
	return New(disk)
}

func TestGetPageThenUnpinAllowsEviction(t *testing.T) {
	p := newTestPool(t)
	f, err := p.GetPage(1)
	require.NoError(t, err)
	f.Data[0] = 7
	p.MarkDirty(f)
	p.UnpinPage(f)

	// cycle through more pages than there are frames; should not error.
	for id := uint32(2); id < uint32(NumFrames+5); id++ {
		fr, err := p.GetPage(id)
		require.NoError(t, err)
		p.UnpinPage(fr)
	}

	f2, err := p.GetPage(1)
	require.NoError(t, err)
	assert.Equal(t, byte(7), f2.Data[0])
	p.UnpinPage(f2)
}

func TestBufferExhaustedWhenAllFramesPinned(t *testing.T) {
	p := newTestPool(t)
	pinned := make([]*Frame, 0, NumFrames)
	for id := uint32(1); id <= uint32(NumFrames); id++ {
		f, err := p.GetPage(id)
		require.NoError(t, err)
		pinned = append(pinned, f)
	}

	_, err := p.GetPage(uint32(NumFrames + 1))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.BufferExhausted))

	for _, f := range pinned {
		p.UnpinPage(f)
	}
}

func TestFlushAllWritesDirtyFrames(t *testing.T) {
	p := newTestPool(t)
	f, err := p.GetPage(5)
	require.NoError(t, err)
	f.Data[10] = 42
	p.MarkDirty(f)
	p.UnpinPage(f)

	require.NoError(t, p.FlushAll())

	buf := make([]byte, len(f.Data))
	require.NoError(t, p.disk.ReadPage(5, buf))
	assert.Equal(t, byte(42), buf[10])
}
