package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/minidb-go/minidb/internal/bufferpool"
	"github.com/minidb-go/minidb/internal/catalog"
	"github.com/minidb-go/minidb/internal/diskmgr"
	"github.com/minidb-go/minidb/internal/lockmgr"
	"github.com/minidb-go/minidb/internal/page"
	"github.com/minidb-go/minidb/internal/txnmgr"
	"github.com/minidb-go/minidb/internal/wal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *Engine {
	dir := t.TempDir()
	disk, err := diskmgr.Open(filepath.Join(dir, "db.dat"))
	require.NoError(t, err)
	t.Cleanup(func() { disk.Close() })
	w, err := wal.Open(filepath.Join(dir, "db.wal"))
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	pool := bufferpool.New(disk)
	cat := catalog.New(pool)
	require.NoError(t, cat.Bootstrap())
	locks := lockmgr.New(time.Second)
	txns := txnmgr.New(w, locks, pool)
	return New(disk, pool, cat, locks, txns, w)
}

func accountsColumns() []page.Column {
	return []page.Column{
		{Name: "id", Type: page.TypeInt},
		{Name: "name", Type: page.TypeVarchar, Size: 31},
		{Name: "balance", Type: page.TypeBigInt},
	}
}

func TestCreateInsertScan(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.CreateTable(ctx, 0, "accounts", accountsColumns())
	require.NoError(t, err)

	require.NoError(t, e.Insert(ctx, 0, "accounts", []page.Value{
		page.IntValue(1), page.StringValue("alice"), page.BigIntValue(1000),
	}))
	require.NoError(t, e.Insert(ctx, 0, "accounts", []page.Value{
		page.IntValue(2), page.StringValue("bob"), page.BigIntValue(500),
	}))

	rows, err := e.Scan(ctx, "accounts")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0][1].S)
	assert.Equal(t, int64(500), rows[1][2].B)
}

func TestDeleteThenScan(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.CreateTable(ctx, 0, "accounts", accountsColumns())
	require.NoError(t, err)
	require.NoError(t, e.Insert(ctx, 0, "accounts", []page.Value{
		page.IntValue(1), page.StringValue("alice"), page.BigIntValue(1000),
	}))
	require.NoError(t, e.Insert(ctx, 0, "accounts", []page.Value{
		page.IntValue(2), page.StringValue("bob"), page.BigIntValue(500),
	}))

	n, err := e.Delete(ctx, 0, "accounts", &Predicate{Column: "name", Op: OpEq, Value: page.StringValue("alice")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := e.Scan(ctx, "accounts")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "bob", rows[0][1].S)
}

func TestUpdatePredicate(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.CreateTable(ctx, 0, "accounts", accountsColumns())
	require.NoError(t, err)
	require.NoError(t, e.Insert(ctx, 0, "accounts", []page.Value{
		page.IntValue(1), page.StringValue("alice"), page.BigIntValue(1000),
	}))
	require.NoError(t, e.Insert(ctx, 0, "accounts", []page.Value{
		page.IntValue(2), page.StringValue("bob"), page.BigIntValue(500),
	}))

	n, err := e.Update(ctx, 0, "accounts", "balance", page.BigIntValue(2000),
		&Predicate{Column: "id", Op: OpEq, Value: page.IntValue(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := e.Scan(ctx, "accounts")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), rows[0][2].B)
	assert.Equal(t, int64(500), rows[1][2].B)
}

func TestPageChainGrowsAcrossInserts(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.CreateTable(ctx, 0, "accounts", accountsColumns())
	require.NoError(t, err)

	recSize := page.RecordSize(accountsColumns())
	perPage := page.MaxSlots(recSize)
	total := perPage*2 + 3

	for i := 0; i < total; i++ {
		require.NoError(t, e.Insert(ctx, 0, "accounts", []page.Value{
			page.IntValue(int32(i)), page.StringValue("row"), page.BigIntValue(int64(i)),
		}))
	}

	rows, err := e.Scan(ctx, "accounts")
	require.NoError(t, err)
	require.Len(t, rows, total)
	assert.Equal(t, int32(0), rows[0][0].I)
	assert.Equal(t, int32(total-1), rows[total-1][0].I)
}

func TestExplicitTransactionDeferCommit(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.CreateTable(ctx, 0, "accounts", accountsColumns())
	require.NoError(t, err)

	tid, err := e.Begin()
	require.NoError(t, err)
	require.NoError(t, e.Insert(ctx, tid, "accounts", []page.Value{
		page.IntValue(1), page.StringValue("alice"), page.BigIntValue(1000),
	}))

	// The insert does not commit the explicit transaction; a scan would
	// wait on its write lock, so the row is read back after Commit.
	st, err := e.txns.State(tid)
	require.NoError(t, err)
	assert.Equal(t, txnmgr.Active, st)

	require.NoError(t, e.Commit(tid))

	rows, err := e.Scan(ctx, "accounts")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCreateIndexRegistersWithCatalog(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.CreateTable(ctx, 0, "accounts", accountsColumns())
	require.NoError(t, err)

	id, err := e.CreateBTreeIndex(ctx, 0, "idx_accounts_id", "accounts", "id")
	require.NoError(t, err)
	assert.NotZero(t, id)

	require.NoError(t, e.DropIndex(ctx, 0, "idx_accounts_id"))
}
