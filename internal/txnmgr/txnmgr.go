// Package txnmgr is the transaction manager: id allocation, the
// ACTIVE/COMMITTED/ABORTED state machine, and commit/abort flow
// including abort's in-memory undo. Atomic id allocation and a state
// enum composed with the recovery package's redo/undo, scoped down to a
// single read-committed-by-locking isolation level rather than MVCC
// read-views.
package txnmgr

import (
	"sync"

	"github.com/minidb-go/minidb/internal/bufferpool"
	"github.com/minidb-go/minidb/internal/errs"
	"github.com/minidb-go/minidb/internal/lockmgr"
	"github.com/minidb-go/minidb/internal/page"
	"github.com/minidb-go/minidb/internal/wal"
)

// State is a transaction's position in its ACTIVE -> COMMITTED|ABORTED
// state machine. The transition is monotonic and never reverts.
type State uint8

const (
	Active State = iota
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Committed:
		return "COMMITTED"
	case Aborted:
		return "ABORTED"
	default:
		return "ACTIVE"
	}
}

// Txn is one transaction's bookkeeping.
type Txn struct {
	ID       uint32
	State    State
	BeginLSN uint64
}

// Manager is the process-global transaction table.
type Manager struct {
	mu     sync.Mutex
	nextID uint32
	txns   map[uint32]*Txn

	wal   *wal.Manager
	locks *lockmgr.Manager
	pool  *bufferpool.Pool
}

// New builds a transaction manager. w, l, and p are the process-global
// WAL, lock, and buffer pool singletons.
func New(w *wal.Manager, l *lockmgr.Manager, p *bufferpool.Pool) *Manager {
	return &Manager{
		nextID: 1,
		txns:   make(map[uint32]*Txn),
		wal:    w,
		locks:  l,
		pool:   p,
	}
}

// Begin allocates the next transaction id, records ACTIVE state, and
// emits a BEGIN WAL record so recovery's analysis pass can see it — the
// storage engine's fix for the source mislaying this record.
func (m *Manager) Begin() (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++

	lsn, err := m.wal.LogBegin(id)
	if err != nil {
		return 0, err
	}
	m.txns[id] = &Txn{ID: id, State: Active, BeginLSN: lsn}
	return id, nil
}

// State reports a transaction's current state.
func (m *Manager) State(txnID uint32) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.txns[txnID]
	if !ok {
		return 0, errs.New(errs.TxnNotActive, "unknown transaction")
	}
	return txn.State, nil
}

// Commit rejects a non-ACTIVE transaction, writes a COMMIT WAL record,
// forces it to disk, transitions to COMMITTED, and releases every lock
// the transaction held.
func (m *Manager) Commit(txnID uint32) error {
	m.mu.Lock()
	txn, ok := m.txns[txnID]
	if !ok || txn.State != Active {
		m.mu.Unlock()
		return errs.New(errs.TxnNotActive, "transaction is not active")
	}
	m.mu.Unlock()

	if _, err := m.wal.LogCommit(txnID); err != nil {
		// WAL append failures abort the in-flight operation without
		// retry; the transaction stays ACTIVE for recovery to clean up.
		return err
	}
	if err := m.wal.Flush(); err != nil {
		return err
	}

	m.mu.Lock()
	txn.State = Committed
	m.mu.Unlock()

	m.locks.Release(txnID)
	return nil
}

// Abort writes an ABORT WAL record, applies in-memory undo of the
// transaction's effects to the buffer pool, transitions to ABORTED, and
// releases locks.
func (m *Manager) Abort(txnID uint32) error {
	m.mu.Lock()
	txn, ok := m.txns[txnID]
	if !ok || txn.State != Active {
		m.mu.Unlock()
		return errs.New(errs.TxnNotActive, "transaction is not active")
	}
	beginLSN := txn.BeginLSN
	m.mu.Unlock()

	if _, err := m.wal.LogAbort(txnID); err != nil {
		return err
	}

	if err := m.undo(txnID, beginLSN); err != nil {
		return err
	}

	m.mu.Lock()
	txn.State = Aborted
	m.mu.Unlock()

	m.locks.Release(txnID)
	return nil
}

// undo walks this transaction's WAL records from its most recent back to
// its BEGIN, restoring before-images for UPDATE/DELETE and tombstoning
// INSERTed rows. Records are content-addressed within their page via
// page.FindSlotByImage, since the WAL record format carries no explicit
// slot index.
func (m *Manager) undo(txnID uint32, beginLSN uint64) error {
	last := m.wal.CurrentLSN()
	for lsn := last; lsn > beginLSN; lsn-- {
		rec, err := m.wal.Read(lsn)
		if err != nil {
			return err
		}
		if rec.TxnID != txnID {
			continue
		}
		if err := ApplyUndo(m.pool, rec); err != nil {
			return err
		}
	}
	return nil
}

// ApplyUndo reverses one WAL mutation record's effect on the buffer pool.
// Exported so recovery's UNDO phase (which sits above txnmgr in the
// dependency order) can share the exact same logic for rolling back
// ACTIVE transactions found at startup.
func ApplyUndo(pool *bufferpool.Pool, rec wal.Record) error {
	switch rec.Type {
	case wal.Insert:
		return TombstoneByImage(pool, rec.PageID, int(rec.RecordSize), rec.AfterImage[:])
	case wal.Update:
		return RestoreByImage(pool, rec.PageID, int(rec.RecordSize), rec.AfterImage[:], rec.BeforeImage[:])
	case wal.Delete:
		// The deleted slot still holds the before-image, but with its
		// tombstone bit set; search for that form of it.
		deleted := rec.BeforeImage
		page.SetDeleted(deleted[:], true)
		return RestoreByImage(pool, rec.PageID, int(rec.RecordSize), deleted[:], rec.BeforeImage[:])
	default:
		return nil
	}
}

// TombstoneByImage finds the record on pageID whose bytes match image and
// marks it deleted.
func TombstoneByImage(pool *bufferpool.Pool, pageID int32, recordSize int, image []byte) error {
	if pageID <= 0 || recordSize <= 0 {
		return nil
	}
	f, err := pool.GetPage(uint32(pageID))
	if err != nil {
		return err
	}
	defer pool.UnpinPage(f)
	if slot, ok := page.FindSlotByImage(f.Bytes(), recordSize, image); ok {
		page.SetDeleted(page.Slot(f.Bytes(), recordSize, slot), true)
		pool.MarkDirty(f)
	}
	return nil
}

// RestoreByImage finds the slot matching findImage and overwrites it with
// restoreImage.
func RestoreByImage(pool *bufferpool.Pool, pageID int32, recordSize int, findImage, restoreImage []byte) error {
	if pageID <= 0 || recordSize <= 0 {
		return nil
	}
	f, err := pool.GetPage(uint32(pageID))
	if err != nil {
		return err
	}
	defer pool.UnpinPage(f)
	if slot, ok := page.FindSlotByImage(f.Bytes(), recordSize, findImage); ok {
		page.RestoreSlot(f.Bytes(), recordSize, slot, restoreImage)
		pool.MarkDirty(f)
	}
	return nil
}
