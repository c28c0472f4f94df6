package catalog

import (
	"github.com/minidb-go/minidb/internal/bufferpool"
	"github.com/minidb-go/minidb/internal/page"
)

// location pins down exactly which slot on which page a system record
// lives at, so a later drop can tombstone it without a second scan.
type location struct {
	PageID uint32
	Slot   int
}

// appendToChain walks the page chain starting at headPage looking for a
// page with a free slot of recSize, allocating and linking a new tail
// page when every page in the chain is full. It returns where the record
// landed.
func appendToChain(pool *bufferpool.Pool, headPage uint32, recSize int, record []byte) (location, error) {
	pageID := headPage
	for {
		f, err := pool.GetPage(pageID)
		if err != nil {
			return location{}, err
		}
		if page.HasFreeSlot(f.Bytes(), recSize) {
			h := page.ReadHeader(f.Bytes())
			slot := int(h.RecordCount)
			page.AppendRecord(f.Bytes(), recSize, record)
			pool.MarkDirty(f)
			pool.UnpinPage(f)
			return location{PageID: pageID, Slot: slot}, nil
		}
		next := page.ReadHeader(f.Bytes()).NextPage
		if next != -1 {
			pool.UnpinPage(f)
			pageID = uint32(next)
			continue
		}
		newID := pool.Disk().AllocatePage()
		nf, err := pool.GetPage(newID)
		if err != nil {
			pool.UnpinPage(f)
			return location{}, err
		}
		page.InitDataPage(nf.Bytes())
		page.AppendRecord(nf.Bytes(), recSize, record)
		pool.MarkDirty(nf)
		pool.UnpinPage(nf)

		h := page.ReadHeader(f.Bytes())
		h.NextPage = int32(newID)
		page.WriteHeader(f.Bytes(), h)
		pool.MarkDirty(f)
		pool.UnpinPage(f)
		return location{PageID: newID, Slot: 0}, nil
	}
}

// scanChain walks the full page chain from headPage and returns every
// live (non-tombstoned) record's bytes and location.
func scanChain(pool *bufferpool.Pool, headPage uint32, recSize int) ([][]byte, []location, error) {
	var records [][]byte
	var locs []location
	pageID := headPage
	for pageID != 0 {
		f, err := pool.GetPage(pageID)
		if err != nil {
			return nil, nil, err
		}
		h := page.ReadHeader(f.Bytes())
		for i := 0; i < int(h.RecordCount); i++ {
			slot := page.Slot(f.Bytes(), recSize, i)
			if page.IsDeleted(slot) {
				continue
			}
			cp := make([]byte, recSize)
			copy(cp, slot)
			records = append(records, cp)
			locs = append(locs, location{PageID: pageID, Slot: i})
		}
		next := h.NextPage
		pool.UnpinPage(f)
		if next == -1 {
			break
		}
		pageID = uint32(next)
	}
	return records, locs, nil
}

// tombstoneAt marks the record at loc deleted in place.
func tombstoneAt(pool *bufferpool.Pool, recSize int, loc location) error {
	f, err := pool.GetPage(loc.PageID)
	if err != nil {
		return err
	}
	slot := page.Slot(f.Bytes(), recSize, loc.Slot)
	page.SetDeleted(slot, true)
	h := page.ReadHeader(f.Bytes())
	h.DeletedCount++
	page.WriteHeader(f.Bytes(), h)
	pool.MarkDirty(f)
	pool.UnpinPage(f)
	return nil
}

// ensureInitialized initializes a system page on first use: page id 0 is
// never valid, so an untouched NextPage field of 0 means this page has
// never been formatted.
func ensureInitialized(pool *bufferpool.Pool, pageID uint32) error {
	f, err := pool.GetPage(pageID)
	if err != nil {
		return err
	}
	h := page.ReadHeader(f.Bytes())
	if h.NextPage == 0 && h.RecordCount == 0 {
		page.InitDataPage(f.Bytes())
		pool.MarkDirty(f)
	}
	pool.UnpinPage(f)
	return nil
}
