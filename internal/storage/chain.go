package storage

import (
	"github.com/minidb-go/minidb/internal/bufferpool"
	"github.com/minidb-go/minidb/internal/diskmgr"
	"github.com/minidb-go/minidb/internal/page"
)

// findOrAllocInsertPage walks the chain from headPage looking for a page
// with a free slot of recSize, allocating and linking a new tail page
// when the whole chain is full.
func findOrAllocInsertPage(pool *bufferpool.Pool, disk *diskmgr.Manager, headPage uint32, recSize int) (uint32, error) {
	pageID := headPage
	for {
		f, err := pool.GetPage(pageID)
		if err != nil {
			return 0, err
		}
		if page.HasFreeSlot(f.Bytes(), recSize) {
			pool.UnpinPage(f)
			return pageID, nil
		}
		next := page.ReadHeader(f.Bytes()).NextPage
		if next != -1 {
			pool.UnpinPage(f)
			pageID = uint32(next)
			continue
		}

		newID := disk.AllocatePage()
		nf, err := pool.GetPage(newID)
		if err != nil {
			pool.UnpinPage(f)
			return 0, err
		}
		page.InitDataPage(nf.Bytes())
		pool.MarkDirty(nf)
		pool.UnpinPage(nf)

		h := page.ReadHeader(f.Bytes())
		h.NextPage = int32(newID)
		page.WriteHeader(f.Bytes(), h)
		pool.MarkDirty(f)
		pool.UnpinPage(f)
		return newID, nil
	}
}

// liveRecordLocation pins down one live record's page and slot, as found
// while walking a table's chain.
type liveRecordLocation struct {
	PageID uint32
	Slot   int
}

// walkChain visits every live record on the chain starting at headPage,
// calling visit with its decoded values and location. visit returns
// false to stop the walk early (used by scan's 1000-row cap).
func walkChain(pool *bufferpool.Pool, headPage uint32, cols []page.Column, visit func(values []page.Value, loc liveRecordLocation) (bool, error)) error {
	recSize := page.RecordSize(cols)
	pageID := headPage
	for {
		f, err := pool.GetPage(pageID)
		if err != nil {
			return err
		}
		h := page.ReadHeader(f.Bytes())
		for i := 0; i < int(h.RecordCount); i++ {
			slot := page.Slot(f.Bytes(), recSize, i)
			if page.IsDeleted(slot) {
				continue
			}
			values, _, err := page.Deserialize(cols, slot)
			if err != nil {
				pool.UnpinPage(f)
				return err
			}
			cont, err := visit(values, liveRecordLocation{PageID: pageID, Slot: i})
			if err != nil {
				pool.UnpinPage(f)
				return err
			}
			if !cont {
				pool.UnpinPage(f)
				return nil
			}
		}
		next := h.NextPage
		pool.UnpinPage(f)
		if next == -1 {
			return nil
		}
		pageID = uint32(next)
	}
}
