package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/minidb-go/minidb/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsIncreasingLSNs(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "wal.log"))
	require.NoError(t, err)
	defer m.Close()

	lsn1, err := m.LogBegin(1)
	require.NoError(t, err)
	lsn2, err := m.LogInsert(1, 10, []byte("row-bytes"))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), lsn1)
	assert.Equal(t, uint64(2), lsn2)
	assert.Equal(t, uint64(2), m.CurrentLSN())
}

func TestReadRoundTripsRecord(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "wal.log"))
	require.NoError(t, err)
	defer m.Close()

	lsn, err := m.LogUpdate(7, 42, []byte("before"), []byte("after"))
	require.NoError(t, err)

	rec, err := m.Read(lsn)
	require.NoError(t, err)
	assert.Equal(t, Update, rec.Type)
	assert.Equal(t, uint32(7), rec.TxnID)
	assert.Equal(t, int32(42), rec.PageID)
	assert.Equal(t, "before", string(trimNulls(rec.BeforeImage[:])))
	assert.Equal(t, "after", string(trimNulls(rec.AfterImage[:])))
}

func TestCorruptedRecordFailsChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")
	m, err := Open(path)
	require.NoError(t, err)
	lsn, err := m.LogCommit(3)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xFF}, int64(lsn-1)*RecordSize+10)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	m2, err := Open(path)
	require.NoError(t, err)
	defer m2.Close()
	_, err = m2.Read(lsn)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.WalCorruption))
}

func TestReopenContinuesLSNSequence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")
	m, err := Open(path)
	require.NoError(t, err)
	_, err = m.LogBegin(1)
	require.NoError(t, err)
	_, err = m.LogCommit(1)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	m2, err := Open(path)
	require.NoError(t, err)
	defer m2.Close()
	assert.Equal(t, uint64(2), m2.CurrentLSN())

	lsn, err := m2.LogBegin(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), lsn)
}

func TestCompressedImagesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "wal.log"))
	require.NoError(t, err)
	defer m.Close()
	m.SetCompressImages(true)

	before := make([]byte, 64)
	after := make([]byte, 64)
	copy(after, "updated-row-payload-with-long-runs-of-repeated-bytes")
	for i := len(after); i < len(after); i++ {
		after[i] = 0
	}

	lsn, err := m.LogUpdate(9, 11, before, after)
	require.NoError(t, err)

	rec, err := m.Read(lsn)
	require.NoError(t, err)
	assert.Equal(t, before, rec.BeforeImage[:len(before)])
	assert.Equal(t, after, rec.AfterImage[:len(after)])
}

func trimNulls(b []byte) []byte {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return b[:n]
}
