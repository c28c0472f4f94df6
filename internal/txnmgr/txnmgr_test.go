package txnmgr

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/minidb-go/minidb/internal/bufferpool"
	"github.com/minidb-go/minidb/internal/diskmgr"
	"github.com/minidb-go/minidb/internal/errs"
	"github.com/minidb-go/minidb/internal/lockmgr"
	"github.com/minidb-go/minidb/internal/page"
	"github.com/minidb-go/minidb/internal/wal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHarness(t *testing.T) (*Manager, *bufferpool.Pool, *wal.Manager) {
	dir := t.TempDir()
	disk, err := diskmgr.Open(filepath.Join(dir, "db.dat"))
	require.NoError(t, err)
	t.Cleanup(func() { disk.Close() })
	w, err := wal.Open(filepath.Join(dir, "db.wal"))
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	pool := bufferpool.New(disk)
	locks := lockmgr.New(time.Second)
	return New(w, locks, pool), pool, w
}

func TestBeginCommitLifecycle(t *testing.T) {
	m, _, _ := newHarness(t)
	id, err := m.Begin()
	require.NoError(t, err)

	st, err := m.State(id)
	require.NoError(t, err)
	assert.Equal(t, Active, st)

	require.NoError(t, m.Commit(id))
	st, err = m.State(id)
	require.NoError(t, err)
	assert.Equal(t, Committed, st)

	err = m.Commit(id)
	assert.Error(t, err)
	assert.True(t, errs.Is(err, errs.TxnNotActive))
}

func TestAbortUndoesInsert(t *testing.T) {
	m, pool, w := newHarness(t)
	id, err := m.Begin()
	require.NoError(t, err)

	f, err := pool.GetPage(10)
	require.NoError(t, err)
	page.InitDataPage(f.Bytes())
	rec := make([]byte, 8)
	rec[1] = 42
	require.True(t, page.AppendRecord(f.Bytes(), 8, rec))
	pool.MarkDirty(f)
	pool.UnpinPage(f)
	_, err = w.LogInsert(id, 10, rec)
	require.NoError(t, err)

	require.NoError(t, m.Abort(id))

	f2, err := pool.GetPage(10)
	require.NoError(t, err)
	slot := page.Slot(f2.Bytes(), 8, 0)
	assert.True(t, page.IsDeleted(slot))
	pool.UnpinPage(f2)

	st, err := m.State(id)
	require.NoError(t, err)
	assert.Equal(t, Aborted, st)
}

func TestAbortRestoresUpdateBeforeImage(t *testing.T) {
	m, pool, w := newHarness(t)
	id, err := m.Begin()
	require.NoError(t, err)

	f, err := pool.GetPage(11)
	require.NoError(t, err)
	page.InitDataPage(f.Bytes())
	before := make([]byte, 8)
	before[1] = 100
	require.True(t, page.AppendRecord(f.Bytes(), 8, before))
	after := make([]byte, 8)
	after[1] = 200
	copy(page.Slot(f.Bytes(), 8, 0), after)
	pool.MarkDirty(f)
	pool.UnpinPage(f)
	_, err = w.LogUpdate(id, 11, before, after)
	require.NoError(t, err)

	require.NoError(t, m.Abort(id))

	f2, err := pool.GetPage(11)
	require.NoError(t, err)
	slot := page.Slot(f2.Bytes(), 8, 0)
	assert.Equal(t, byte(100), slot[1])
	pool.UnpinPage(f2)
}
