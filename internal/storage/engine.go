// Package storage is the public record API: insert/scan/update/delete,
// page-chain traversal, and index creation, each auto-committing exactly
// once per call unless the caller supplies an already-active transaction
// id from an explicit BEGIN. Page-chain traversal and row encode/decode
// go through the page package the way a TableManager/IndexManager pair
// would, with two deliberate fixes over a naive port: WAL-before-mutate
// ordering is enforced everywhere, and exactly one commit record is
// written per statement (not one per DDL step plus one per DML step).
package storage

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/minidb-go/minidb/internal/bufferpool"
	"github.com/minidb-go/minidb/internal/catalog"
	"github.com/minidb-go/minidb/internal/diskmgr"
	"github.com/minidb-go/minidb/internal/errs"
	"github.com/minidb-go/minidb/internal/lockmgr"
	"github.com/minidb-go/minidb/internal/page"
	"github.com/minidb-go/minidb/internal/txnmgr"
	"github.com/minidb-go/minidb/internal/wal"
)

// ScanLimit caps the number of rows a single scan returns.
const ScanLimit = 1000

// systemCatalogResource is the lock-manager resource id for schema
// changes: the system catalog itself is resource id 1.
const systemCatalogResource = 1

// Row is one decoded record from a scan.
type Row []page.Value

// Engine wires the disk manager, buffer pool, catalog, lock manager, and
// transaction manager into the storage API surface.
type Engine struct {
	disk  *diskmgr.Manager
	pool  *bufferpool.Pool
	cat   *catalog.Catalog
	locks *lockmgr.Manager
	txns  *txnmgr.Manager
	wal   *wal.Manager

	pseudoTxnID uint32 // source of transient ids for read-only lock scoping
}

// New builds a storage engine over already-constructed managers.
func New(disk *diskmgr.Manager, pool *bufferpool.Pool, cat *catalog.Catalog, locks *lockmgr.Manager, txns *txnmgr.Manager, w *wal.Manager) *Engine {
	return &Engine{disk: disk, pool: pool, cat: cat, locks: locks, txns: txns, wal: w, pseudoTxnID: 1 << 31}
}

// withTxn runs fn under txnID if the caller already began one explicitly,
// otherwise begins a fresh transaction, commits it on success, and aborts
// it on failure — the auto-commit-per-statement contract.
func (e *Engine) withTxn(txnID uint32, fn func(tid uint32) error) error {
	if txnID != 0 {
		return fn(txnID)
	}
	tid, err := e.txns.Begin()
	if err != nil {
		return err
	}
	if err := fn(tid); err != nil {
		if abortErr := e.txns.Abort(tid); abortErr != nil {
			return abortErr
		}
		return err
	}
	return e.txns.Commit(tid)
}

func (e *Engine) nextPseudoID() uint32 {
	return atomic.AddUint32(&e.pseudoTxnID, 1)
}

// CreateTable registers a new table and persists its schema.
func (e *Engine) CreateTable(ctx context.Context, txnID uint32, name string, columns []page.Column) (uint32, error) {
	var id uint32
	err := e.withTxn(txnID, func(tid uint32) error {
		if err := e.locks.AcquireWrite(ctx, tid, systemCatalogResource); err != nil {
			return err
		}
		if _, err := e.wal.LogDDL(tid, fmt.Sprintf("CREATE TABLE %s", name)); err != nil {
			return err
		}
		tableID, err := e.cat.CreateTable(name, columns)
		if err != nil {
			return err
		}
		id = tableID
		return nil
	})
	return id, err
}

// DropTable removes a table's catalog entry. Its data pages are not
// reclaimed — a known limitation carried from the source design.
func (e *Engine) DropTable(ctx context.Context, txnID uint32, name string) error {
	return e.withTxn(txnID, func(tid uint32) error {
		if err := e.locks.AcquireWrite(ctx, tid, systemCatalogResource); err != nil {
			return err
		}
		if _, err := e.wal.LogDDL(tid, fmt.Sprintf("DROP TABLE %s", name)); err != nil {
			return err
		}
		return e.cat.DropTable(name)
	})
}

// Describe returns a table's column metadata.
func (e *Engine) Describe(name string) ([]page.Column, error) {
	tbl, err := e.cat.FindTableByName(name)
	if err != nil {
		return nil, err
	}
	return tbl.Columns, nil
}

// Insert serializes values against table's schema, logs an INSERT WAL
// record carrying the on-disk bytes as after-image, appends the record
// to the first data page in the chain with room (allocating and linking
// a new one if needed), and marks that page dirty.
func (e *Engine) Insert(ctx context.Context, txnID uint32, table string, values []page.Value) error {
	tbl, err := e.cat.FindTableByName(table)
	if err != nil {
		return err
	}
	return e.withTxn(txnID, func(tid uint32) error {
		if err := e.locks.AcquireWrite(ctx, tid, tbl.ID); err != nil {
			return err
		}
		recSize := page.RecordSize(tbl.Columns)
		buf := make([]byte, recSize)
		if err := page.Serialize(tbl.Columns, values, buf); err != nil {
			return err
		}

		targetPage, err := findOrAllocInsertPage(e.pool, e.disk, tbl.HeadPage, recSize)
		if err != nil {
			return err
		}
		if _, err := e.wal.LogInsert(tid, int32(targetPage), buf); err != nil {
			return err
		}

		f, err := e.pool.GetPage(targetPage)
		if err != nil {
			return err
		}
		if !page.AppendRecord(f.Bytes(), recSize, buf) {
			e.pool.UnpinPage(f)
			return errs.New(errs.SchemaMismatch, "insert target page unexpectedly full")
		}
		e.pool.MarkDirty(f)
		e.pool.UnpinPage(f)
		return nil
	})
}

// Scan walks table's page chain head to tail, returning every live
// record in insertion order, capped at ScanLimit rows.
func (e *Engine) Scan(ctx context.Context, table string) ([]Row, error) {
	tbl, err := e.cat.FindTableByName(table)
	if err != nil {
		return nil, err
	}
	readerID := e.nextPseudoID()
	if err := e.locks.AcquireRead(ctx, readerID, tbl.ID); err != nil {
		return nil, err
	}
	defer e.locks.Release(readerID)

	var rows []Row
	err = walkChain(e.pool, tbl.HeadPage, tbl.Columns, func(values []page.Value, _ liveRecordLocation) (bool, error) {
		rows = append(rows, Row(values))
		return len(rows) < ScanLimit, nil
	})
	return rows, err
}

// Update rewrites column to value on every live row matching predicate
// (nil predicate means every row), logging an UPDATE WAL record carrying
// both before- and after-images per row, and returns the affected count.
func (e *Engine) Update(ctx context.Context, txnID uint32, table, column string, value page.Value, predicate *Predicate) (int, error) {
	tbl, err := e.cat.FindTableByName(table)
	if err != nil {
		return 0, err
	}
	colIdx := columnIndex(tbl.Columns, column)
	if colIdx < 0 {
		return 0, errs.New(errs.UnknownColumn, "no such column: "+column)
	}

	var affected int
	err = e.withTxn(txnID, func(tid uint32) error {
		if err := e.locks.AcquireWrite(ctx, tid, tbl.ID); err != nil {
			return err
		}
		recSize := page.RecordSize(tbl.Columns)
		return walkChain(e.pool, tbl.HeadPage, tbl.Columns, func(values []page.Value, loc liveRecordLocation) (bool, error) {
			ok, err := matches(tbl.Columns, values, predicate)
			if err != nil {
				return false, err
			}
			if !ok {
				return true, nil
			}

			f, err := e.pool.GetPage(loc.PageID)
			if err != nil {
				return false, err
			}
			slot := page.Slot(f.Bytes(), recSize, loc.Slot)
			before := append([]byte(nil), slot...)

			updated := append([]page.Value(nil), values...)
			updated[colIdx] = value
			after := make([]byte, recSize)
			if err := page.Serialize(tbl.Columns, updated, after); err != nil {
				e.pool.UnpinPage(f)
				return false, err
			}

			if _, err := e.wal.LogUpdate(tid, int32(loc.PageID), before, after); err != nil {
				e.pool.UnpinPage(f)
				return false, err
			}
			copy(slot, after)
			e.pool.MarkDirty(f)
			e.pool.UnpinPage(f)
			affected++
			return true, nil
		})
	})
	return affected, err
}

// Delete tombstones every live row matching predicate, logging a DELETE
// WAL record carrying the before-image, and returns the affected count.
func (e *Engine) Delete(ctx context.Context, txnID uint32, table string, predicate *Predicate) (int, error) {
	tbl, err := e.cat.FindTableByName(table)
	if err != nil {
		return 0, err
	}

	var affected int
	err = e.withTxn(txnID, func(tid uint32) error {
		if err := e.locks.AcquireWrite(ctx, tid, tbl.ID); err != nil {
			return err
		}
		recSize := page.RecordSize(tbl.Columns)
		return walkChain(e.pool, tbl.HeadPage, tbl.Columns, func(values []page.Value, loc liveRecordLocation) (bool, error) {
			ok, err := matches(tbl.Columns, values, predicate)
			if err != nil {
				return false, err
			}
			if !ok {
				return true, nil
			}

			f, err := e.pool.GetPage(loc.PageID)
			if err != nil {
				return false, err
			}
			slot := page.Slot(f.Bytes(), recSize, loc.Slot)
			before := append([]byte(nil), slot...)

			if _, err := e.wal.LogDelete(tid, int32(loc.PageID), before); err != nil {
				e.pool.UnpinPage(f)
				return false, err
			}
			page.SetDeleted(slot, true)
			h := page.ReadHeader(f.Bytes())
			h.DeletedCount++
			page.WriteHeader(f.Bytes(), h)
			e.pool.MarkDirty(f)
			e.pool.UnpinPage(f)
			affected++
			return true, nil
		})
	})
	return affected, err
}

// CreateBTreeIndex allocates a fresh B-tree root page and registers the
// index with the catalog.
func (e *Engine) CreateBTreeIndex(ctx context.Context, txnID uint32, name, table, column string) (uint32, error) {
	return e.createIndex(ctx, txnID, name, table, column, catalog.BTreeIndex)
}

// CreateHashIndex allocates a fresh hash index root page and registers
// the index with the catalog.
func (e *Engine) CreateHashIndex(ctx context.Context, txnID uint32, name, table, column string) (uint32, error) {
	return e.createIndex(ctx, txnID, name, table, column, catalog.HashIndex)
}

func (e *Engine) createIndex(ctx context.Context, txnID uint32, name, table, column string, kind catalog.IndexKind) (uint32, error) {
	tbl, err := e.cat.FindTableByName(table)
	if err != nil {
		return 0, err
	}
	if columnIndex(tbl.Columns, column) < 0 {
		return 0, errs.New(errs.UnknownColumn, "no such column: "+column)
	}

	var id uint32
	err = e.withTxn(txnID, func(tid uint32) error {
		if err := e.locks.AcquireWrite(ctx, tid, systemCatalogResource); err != nil {
			return err
		}
		rootPage := e.disk.AllocatePage()
		f, err := e.pool.GetPage(rootPage)
		if err != nil {
			return err
		}
		if kind == catalog.HashIndex {
			page.InitHashPage(f.Bytes(), page.HashMaxBuckets)
		} else {
			page.InitBTreePage(f.Bytes(), true, -1)
		}
		e.pool.MarkDirty(f)
		e.pool.UnpinPage(f)

		if _, err := e.wal.LogDDL(tid, fmt.Sprintf("CREATE %s INDEX %s ON %s(%s)", kind, name, table, column)); err != nil {
			return err
		}
		indexID, err := e.cat.CreateIndex(name, tbl.ID, column, kind, rootPage)
		if err != nil {
			return err
		}
		id = indexID
		return nil
	})
	return id, err
}

// DropIndex removes an index's catalog entry.
func (e *Engine) DropIndex(ctx context.Context, txnID uint32, name string) error {
	return e.withTxn(txnID, func(tid uint32) error {
		if err := e.locks.AcquireWrite(ctx, tid, systemCatalogResource); err != nil {
			return err
		}
		if _, err := e.wal.LogDDL(tid, fmt.Sprintf("DROP INDEX %s", name)); err != nil {
			return err
		}
		return e.cat.DropIndex(name)
	})
}

// Begin starts an explicit transaction for a session that issued BEGIN;
// subsequent calls pass its id as txnID to defer auto-commit until the
// session issues COMMIT or ROLLBACK.
func (e *Engine) Begin() (uint32, error) { return e.txns.Begin() }

// Commit commits an explicitly-begun transaction.
func (e *Engine) Commit(txnID uint32) error { return e.txns.Commit(txnID) }

// Rollback aborts an explicitly-begun transaction.
func (e *Engine) Rollback(txnID uint32) error { return e.txns.Abort(txnID) }
