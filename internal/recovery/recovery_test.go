package recovery

import (
	"path/filepath"
	"testing"

	"github.com/minidb-go/minidb/internal/bufferpool"
	"github.com/minidb-go/minidb/internal/diskmgr"
	"github.com/minidb-go/minidb/internal/page"
	"github.com/minidb-go/minidb/internal/wal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recSize = 8

func newHarness(t *testing.T) (*bufferpool.Pool, *wal.Manager, string, string) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "db.dat")
	walPath := filepath.Join(dir, "db.wal")

	disk, err := diskmgr.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { disk.Close() })
	w, err := wal.Open(walPath)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	pool := bufferpool.New(disk)
	f, err := pool.GetPage(20)
	require.NoError(t, err)
	page.InitDataPage(f.Bytes())
	pool.MarkDirty(f)
	pool.UnpinPage(f)
	require.NoError(t, pool.FlushAll())

	return pool, w, dbPath, walPath
}

func TestRecoveryRedoesCommittedInsert(t *testing.T) {
	pool, w, _, _ := newHarness(t)

	txn, err := w.LogBegin(1)
	require.NoError(t, err)
	_ = txn
	rec := make([]byte, recSize)
	rec[1] = 42
	_, err = w.LogInsert(1, 20, rec)
	require.NoError(t, err)
	_, err = w.LogCommit(1)
	require.NoError(t, err)

	report, err := Run(pool, w)
	require.NoError(t, err)
	assert.Equal(t, 1, report.PagesRedone)
	assert.Empty(t, report.TransactionsUndo)

	f, err := pool.GetPage(20)
	require.NoError(t, err)
	h := page.ReadHeader(f.Bytes())
	assert.Equal(t, uint32(1), h.RecordCount)
	assert.Equal(t, byte(42), page.Slot(f.Bytes(), recSize, 0)[1])
	pool.UnpinPage(f)
}

func TestRecoveryUndoesActiveTransaction(t *testing.T) {
	pool, w, _, _ := newHarness(t)

	_, err := w.LogBegin(5)
	require.NoError(t, err)
	rec := make([]byte, recSize)
	rec[1] = 99
	_, err = w.LogInsert(5, 20, rec)
	require.NoError(t, err)
	// No commit/abort: simulates a crash mid-transaction.

	report, err := Run(pool, w)
	require.NoError(t, err)
	assert.Equal(t, []uint32{5}, report.TransactionsUndo)

	f, err := pool.GetPage(20)
	require.NoError(t, err)
	h := page.ReadHeader(f.Bytes())
	require.Equal(t, uint32(1), h.RecordCount)
	assert.True(t, page.IsDeleted(page.Slot(f.Bytes(), recSize, 0)))
	pool.UnpinPage(f)
}

func TestRecoveryReplaysFullHistoryNotJustLastRecord(t *testing.T) {
	pool, w, _, _ := newHarness(t)

	_, err := w.LogBegin(1)
	require.NoError(t, err)
	rec1 := make([]byte, recSize)
	rec1[1] = 1
	_, err = w.LogInsert(1, 20, rec1)
	require.NoError(t, err)
	rec2 := make([]byte, recSize)
	rec2[1] = 2
	_, err = w.LogInsert(1, 20, rec2)
	require.NoError(t, err)
	_, err = w.LogCommit(1)
	require.NoError(t, err)

	_, err = Run(pool, w)
	require.NoError(t, err)

	f, err := pool.GetPage(20)
	require.NoError(t, err)
	h := page.ReadHeader(f.Bytes())
	assert.Equal(t, uint32(2), h.RecordCount)
	pool.UnpinPage(f)
}

func TestRecoveryIsIdempotent(t *testing.T) {
	pool, w, _, _ := newHarness(t)

	_, err := w.LogBegin(1)
	require.NoError(t, err)
	rec := make([]byte, recSize)
	rec[1] = 7
	_, err = w.LogInsert(1, 20, rec)
	require.NoError(t, err)
	_, err = w.LogCommit(1)
	require.NoError(t, err)

	_, err = Run(pool, w)
	require.NoError(t, err)
	_, err = Run(pool, w)
	require.NoError(t, err)

	f, err := pool.GetPage(20)
	require.NoError(t, err)
	h := page.ReadHeader(f.Bytes())
	assert.Equal(t, uint32(1), h.RecordCount)
	pool.UnpinPage(f)
}
