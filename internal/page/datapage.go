package page

import "encoding/binary"

// DataPage header layout: record_count(4) | next_page(4, int32, -1 = tail)
// | deleted_count(4).
const (
	HeaderSize     = 12
	BodySize       = Size - HeaderSize
	offRecordCount = 0
	offNextPage    = 4
	offDeletedCnt  = 8
)

// DataPageHeader is the decoded form of a slotted data page's header.
type DataPageHeader struct {
	RecordCount  uint32
	NextPage     int32
	DeletedCount uint32
}

// ReadHeader decodes the header of a 4096-byte data page buffer.
func ReadHeader(buf []byte) DataPageHeader {
	return DataPageHeader{
		RecordCount:  binary.LittleEndian.Uint32(buf[offRecordCount:]),
		NextPage:     int32(binary.LittleEndian.Uint32(buf[offNextPage:])),
		DeletedCount: binary.LittleEndian.Uint32(buf[offDeletedCnt:]),
	}
}

// WriteHeader encodes h into buf's header region.
func WriteHeader(buf []byte, h DataPageHeader) {
	binary.LittleEndian.PutUint32(buf[offRecordCount:], h.RecordCount)
	binary.LittleEndian.PutUint32(buf[offNextPage:], uint32(h.NextPage))
	binary.LittleEndian.PutUint32(buf[offDeletedCnt:], h.DeletedCount)
}

// InitDataPage zeroes buf and stamps a fresh, empty, un-chained data page.
func InitDataPage(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	WriteHeader(buf, DataPageHeader{NextPage: -1})
}

// MaxSlots returns how many fixed-size records of recordSize fit in a
// data page body.
func MaxSlots(recordSize int) int {
	if recordSize <= 0 {
		return 0
	}
	return BodySize / recordSize
}

// SlotOffset returns the byte offset of slot idx within the page buffer.
func SlotOffset(recordSize, idx int) int {
	return HeaderSize + idx*recordSize
}

// Slot returns the byte range of slot idx.
func Slot(buf []byte, recordSize, idx int) []byte {
	off := SlotOffset(recordSize, idx)
	return buf[off : off+recordSize]
}

// HasFreeSlot reports whether one more record of recordSize fits on this
// page given its current record_count — satisfying the invariant
// record_count * record_size <= page_body_size.
func HasFreeSlot(buf []byte, recordSize int) bool {
	h := ReadHeader(buf)
	return (int(h.RecordCount)+1)*recordSize <= BodySize
}

// AppendRecord writes record into the next free slot and bumps
// record_count, returning false without modifying buf if the page has no
// room left.
func AppendRecord(buf []byte, recordSize int, record []byte) bool {
	h := ReadHeader(buf)
	if !HasFreeSlot(buf, recordSize) {
		return false
	}
	copy(Slot(buf, recordSize, int(h.RecordCount)), record)
	h.RecordCount++
	WriteHeader(buf, h)
	return true
}
