// Package diskmgr owns the single backing file a database lives in: fixed
// 4096-byte page reads/writes, fsync-after-write durability, and a
// monotonic page allocator. Seek-by-page-number I/O against one os.File,
// scaled down from a 16KB extent size to this engine's 4096-byte page and
// using typed errors instead of log.Fatal.
package diskmgr

import (
	"io"
	"os"
	"sync"

	"github.com/minidb-go/minidb/internal/errs"
	"github.com/minidb-go/minidb/internal/page"
)

// Manager serializes all I/O against one database file behind a single
// lock — throughput is not a goal at this layer, per the storage engine's
// design.
type Manager struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	nextPageID uint32
}

// Open opens (creating if necessary) the database file at path and seeds
// the page allocator from its current size.
func Open(path string) (*Manager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errs.Wrap(errs.DiskIoError, "open database file", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.DiskIoError, "stat database file", err)
	}
	pages := (info.Size() + page.Size - 1) / page.Size
	return &Manager{
		file:       f,
		path:       path,
		nextPageID: uint32(pages) + 1,
	}, nil
}

// ReadPage reads page id into buf (which must be page.Size bytes). Pages
// past end-of-file read back as zero-filled, so a freshly allocated page
// is implicitly zeroed without a separate write.
func (m *Manager) ReadPage(id uint32, buf []byte) error {
	if len(buf) != page.Size {
		return errs.New(errs.DiskIoError, "read buffer must be page-sized")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	off := int64(id) * page.Size
	n, err := m.file.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return errs.Wrap(errs.DiskIoError, "read page", err)
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

// WritePage writes buf (page.Size bytes) to page id and fsyncs before
// returning, so the call only completes once the bytes are durable.
func (m *Manager) WritePage(id uint32, buf []byte) error {
	if len(buf) != page.Size {
		return errs.New(errs.DiskIoError, "write buffer must be page-sized")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	off := int64(id) * page.Size
	if _, err := m.file.WriteAt(buf, off); err != nil {
		return errs.Wrap(errs.DiskIoError, "write page", err)
	}
	if err := m.file.Sync(); err != nil {
		return errs.Wrap(errs.DiskIoError, "fsync page", err)
	}
	return nil
}

// AllocatePage hands out the next monotonically increasing page id. Ids
// are never recycled within a database's lifetime.
func (m *Manager) AllocatePage() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextPageID
	m.nextPageID++
	return id
}

// ReserveThrough advances the allocator so the next AllocatePage call
// returns at least id+1, without touching any page's bytes. Used once at
// bootstrap on a brand-new database to reserve the system page range
// (1-5) before the first user table claims page 10.
func (m *Manager) ReserveThrough(id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nextPageID <= id {
		m.nextPageID = id + 1
	}
}

// Close closes the underlying file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.file.Close(); err != nil {
		return errs.Wrap(errs.DiskIoError, "close database file", err)
	}
	return nil
}
