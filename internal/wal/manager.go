package wal

import (
	"io"
	"os"
	"sync"

	"github.com/minidb-go/minidb/internal/errs"
)

// Manager owns the single append-only WAL file. LSNs start at 1 and
// increment by one per record; a record's file offset is (lsn-1)*512.
type Manager struct {
	mu         sync.Mutex
	file       *os.File
	currentLSN uint64
	lastTxnLSN map[uint32]uint64
	compress   bool
}

// SetCompressImages toggles optional lz4 block-mode compression of
// before/after images (see compress.go). Off by default; callers flip
// this once at Open time from server configuration, before any Append —
// flipping it mid-lifetime would make already-written records undecodable
// under the new setting.
func (m *Manager) SetCompressImages(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compress = enabled
}

// Open opens (creating if necessary) the WAL file and seeds the LSN
// counter from how many whole 512-byte records are already present.
func Open(path string) (*Manager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errs.Wrap(errs.DiskIoError, "open WAL file", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.DiskIoError, "stat WAL file", err)
	}
	return &Manager{
		file:       f,
		currentLSN: uint64(info.Size() / RecordSize),
		lastTxnLSN: make(map[uint32]uint64),
	}, nil
}

// CurrentLSN reports the most recently assigned LSN (0 if the log is
// empty).
func (m *Manager) CurrentLSN() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLSN
}

// Append assembles a record, computes its checksum, writes the full 512
// bytes, and fsyncs before returning the LSN it was assigned. Disk
// errors here are fatal to the in-flight operation per the storage
// engine's failure semantics: the caller must not retry.
func (m *Manager) Append(typ RecordType, txnID uint32, pageID int32, before, after []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lsn := m.currentLSN + 1
	recSize := len(after)
	if recSize == 0 {
		recSize = len(before)
	}
	rec := Record{
		Type:        typ,
		TxnID:       txnID,
		LSN:         lsn,
		PrevLSN:     m.lastTxnLSN[txnID],
		PageID:      pageID,
		RecordSize:  int32(recSize),
		BeforeImage: packImage(before, m.compress),
		AfterImage:  packImage(after, m.compress),
	}

	buf := encode(rec)
	off := int64(lsn-1) * RecordSize
	if _, err := m.file.WriteAt(buf, off); err != nil {
		return 0, errs.Wrap(errs.DiskIoError, "append WAL record", err)
	}
	if err := m.file.Sync(); err != nil {
		return 0, errs.Wrap(errs.DiskIoError, "fsync WAL record", err)
	}

	m.currentLSN = lsn
	m.lastTxnLSN[txnID] = lsn
	return lsn, nil
}

// Read seeks to lsn's offset, reads its 512 bytes, and verifies the
// checksum, reporting WalCorruption on mismatch or a short read — the
// storage engine's fix for the source's ignored checksum.
func (m *Manager) Read(lsn uint64) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, RecordSize)
	off := int64(lsn-1) * RecordSize
	if _, err := m.file.ReadAt(buf, off); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Record{}, errs.New(errs.WalCorruption, "WAL ends before requested LSN")
		}
		return Record{}, errs.Wrap(errs.DiskIoError, "read WAL record", err)
	}
	rec, err := decode(buf)
	if err != nil {
		return Record{}, err
	}
	if m.compress {
		rec.BeforeImage = imageFrom(unpackImage(rec.BeforeImage, int(rec.RecordSize), true))
		rec.AfterImage = imageFrom(unpackImage(rec.AfterImage, int(rec.RecordSize), true))
	}
	return rec, nil
}

// Flush fsyncs the WAL file. Append already fsyncs each record, so this
// exists for callers (checkpointing, recovery) that want an explicit
// durability point without appending.
func (m *Manager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.file.Sync(); err != nil {
		return errs.Wrap(errs.DiskIoError, "fsync WAL", err)
	}
	return nil
}

// Close closes the WAL file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.file.Close(); err != nil {
		return errs.Wrap(errs.DiskIoError, "close WAL file", err)
	}
	return nil
}

// Convenience wrappers matching the storage API's call sites.

func (m *Manager) LogBegin(txnID uint32) (uint64, error) {
	return m.Append(Begin, txnID, 0, nil, nil)
}

func (m *Manager) LogCommit(txnID uint32) (uint64, error) {
	return m.Append(Commit, txnID, 0, nil, nil)
}

func (m *Manager) LogAbort(txnID uint32) (uint64, error) {
	return m.Append(Abort, txnID, 0, nil, nil)
}

func (m *Manager) LogInsert(txnID uint32, pageID int32, after []byte) (uint64, error) {
	return m.Append(Insert, txnID, pageID, nil, after)
}

func (m *Manager) LogUpdate(txnID uint32, pageID int32, before, after []byte) (uint64, error) {
	return m.Append(Update, txnID, pageID, before, after)
}

func (m *Manager) LogDelete(txnID uint32, pageID int32, before []byte) (uint64, error) {
	return m.Append(Delete, txnID, pageID, before, nil)
}

// LogDDL records a textual descriptor of a schema change (e.g.
// "CREATE TABLE accounts") as the after-image.
func (m *Manager) LogDDL(txnID uint32, descriptor string) (uint64, error) {
	return m.Append(DDL, txnID, 0, nil, []byte(descriptor))
}

func (m *Manager) LogCheckpoint() (uint64, error) {
	return m.Append(Checkpoint, 0, 0, nil, nil)
}
