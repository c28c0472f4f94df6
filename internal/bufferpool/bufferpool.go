// Package bufferpool implements the pinned, LRU-replaced in-memory page
// cache that sits between the storage API and the disk manager. A page
// control block per frame under a package mutex with per-entry tick
// bookkeeping, simplified from a young/old segmented LRU down to a
// single monotonic-tick LRU with a fixed frame count.
package bufferpool

import (
	"sync"

	"github.com/minidb-go/minidb/internal/diskmgr"
	"github.com/minidb-go/minidb/internal/errs"
	"github.com/minidb-go/minidb/internal/page"
)

// NumFrames is the fixed size of the buffer pool's frame array.
const NumFrames = 100

// Frame is one slot of the buffer pool: a resident page plus its pin and
// dirty bookkeeping. Frame.mu is held by the caller for the duration of a
// pin, so concurrent callers of the same page serialize on it.
type Frame struct {
	mu sync.Mutex

	PageID    uint32
	Data      [page.Size]byte
	Dirty     bool
	InUse     bool
	PinCount  int
	lruTick   uint64
}

// Bytes returns the frame's page buffer.
func (f *Frame) Bytes() []byte { return f.Data[:] }

// Pool is the fixed 100-frame buffer pool. A single mutex guards the
// frame table and LRU bookkeeping; each frame additionally has its own
// lock held across a pin so only one caller mutates a given page's bytes
// at a time. Because each caller holds at most one pin for the duration
// of one storage operation, eviction cannot deadlock on itself.
type Pool struct {
	mu     sync.Mutex
	disk   *diskmgr.Manager
	frames []*Frame
	index  map[uint32]int
	tick   uint64
}

// New builds a buffer pool of NumFrames frames backed by disk.
func New(disk *diskmgr.Manager) *Pool {
	frames := make([]*Frame, NumFrames)
	for i := range frames {
		frames[i] = &Frame{}
	}
	return &Pool{
		disk:   disk,
		frames: frames,
		index:  make(map[uint32]int),
	}
}

// GetPage pins page id, loading it from disk (evicting an unpinned frame
// if necessary) if it isn't already resident, and returns the frame
// locked for exclusive access to its bytes. The caller must call UnpinPage
// when done, which also releases the frame's lock.
func (p *Pool) GetPage(id uint32) (*Frame, error) {
	p.mu.Lock()
	p.tick++
	myTick := p.tick

	if idx, ok := p.index[id]; ok {
		f := p.frames[idx]
		f.PinCount++
		f.lruTick = myTick
		p.mu.Unlock()
		f.mu.Lock()
		return f, nil
	}

	idx, victim, err := p.selectVictimLocked()
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	if victim.InUse && victim.Dirty {
		if werr := p.disk.WritePage(victim.PageID, victim.Bytes()); werr != nil {
			p.mu.Unlock()
			return nil, werr
		}
	}
	if victim.InUse {
		delete(p.index, victim.PageID)
	}

	if err := p.disk.ReadPage(id, victim.Bytes()); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	victim.PageID = id
	victim.Dirty = false
	victim.InUse = true
	victim.PinCount = 1
	victim.lruTick = myTick
	p.index[id] = idx
	p.mu.Unlock()

	victim.mu.Lock()
	return victim, nil
}

// selectVictimLocked picks the unpinned frame with the smallest LRU tick,
// preferring a never-used frame outright. Caller holds p.mu.
func (p *Pool) selectVictimLocked() (int, *Frame, error) {
	bestIdx := -1
	var bestTick uint64
	for i, f := range p.frames {
		if !f.InUse {
			return i, f, nil
		}
		if f.PinCount > 0 {
			continue
		}
		if bestIdx == -1 || f.lruTick < bestTick {
			bestIdx, bestTick = i, f.lruTick
		}
	}
	if bestIdx == -1 {
		return 0, nil, errs.New(errs.BufferExhausted, "no unpinned frame available")
	}
	return bestIdx, p.frames[bestIdx], nil
}

// UnpinPage decrements the frame's pin count and releases its lock; once
// the count reaches zero the frame becomes eligible for eviction, though
// its bytes stay valid until something overwrites them.
func (p *Pool) UnpinPage(f *Frame) {
	p.mu.Lock()
	if f.PinCount > 0 {
		f.PinCount--
	}
	p.mu.Unlock()
	f.mu.Unlock()
}

// MarkDirty marks a pinned frame dirty.
func (p *Pool) MarkDirty(f *Frame) {
	p.mu.Lock()
	f.Dirty = true
	p.mu.Unlock()
}

// Disk exposes the backing disk manager so upstream components (e.g. the
// catalog) can allocate new pages without duplicating the disk handle.
func (p *Pool) Disk() *diskmgr.Manager { return p.disk }

// FlushAll writes every dirty frame back to disk and clears the dirty bit.
func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range p.frames {
		if f.InUse && f.Dirty {
			if err := p.disk.WritePage(f.PageID, f.Bytes()); err != nil {
				return err
			}
			f.Dirty = false
		}
	}
	return nil
}
