package diskmgr

import (
	"path/filepath"
	"testing"

	"github.com/minidb-go/minidb/internal/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrittenPageReadsAsZero(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "db.dat"))
	require.NoError(t, err)
	defer m.Close()

	buf := make([]byte, page.Size)
	require.NoError(t, m.ReadPage(42, buf))
	for _, b := range buf {
		assert.Equal(t, byte(0), b)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "db.dat"))
	require.NoError(t, err)
	defer m.Close()

	want := make([]byte, page.Size)
	for i := range want {
		want[i] = byte(i % 251)
	}
	require.NoError(t, m.WritePage(3, want))

	got := make([]byte, page.Size)
	require.NoError(t, m.ReadPage(3, got))
	assert.Equal(t, want, got)
}

func TestAllocatePageMonotonic(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "db.dat"))
	require.NoError(t, err)
	defer m.Close()

	first := m.AllocatePage()
	second := m.AllocatePage()
	assert.Less(t, first, second)
}

func TestReopenSeedsAllocatorFromFileSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.dat")
	m, err := Open(path)
	require.NoError(t, err)
	buf := make([]byte, page.Size)
	require.NoError(t, m.WritePage(9, buf))
	require.NoError(t, m.Close())

	m2, err := Open(path)
	require.NoError(t, err)
	defer m2.Close()
	id := m2.AllocatePage()
	assert.GreaterOrEqual(t, id, uint32(10))
}
