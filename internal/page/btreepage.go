package page

import "encoding/binary"

// B-tree index page layout: key_count(4) | is_leaf(1) | parent(4) header,
// followed by up to BTreeMaxEntries (key, page_id) entries and
// BTreeMaxEntries+1 child pointers. Keys are a fixed opaque 16-byte slot;
// callers encode/decode them according to the indexed column's type, the
// same way the slotted data page treats CHAR/VARCHAR fields.
const (
	BTreeMaxEntries = 100
	BTreeKeySize    = 16

	btreeHdrSize    = 9
	btreeEntrySize  = BTreeKeySize + 4 // key + page_id
	btreeEntriesOff = btreeHdrSize
	btreeChildOff   = btreeEntriesOff + BTreeMaxEntries*btreeEntrySize
)

// BTreeHeader is the decoded header of a B-tree index page.
type BTreeHeader struct {
	KeyCount int32
	IsLeaf   bool
	Parent   int32
}

func ReadBTreeHeader(buf []byte) BTreeHeader {
	leaf := buf[4] != 0
	return BTreeHeader{
		KeyCount: int32(binary.LittleEndian.Uint32(buf[0:])),
		IsLeaf:   leaf,
		Parent:   int32(binary.LittleEndian.Uint32(buf[5:])),
	}
}

func WriteBTreeHeader(buf []byte, h BTreeHeader) {
	binary.LittleEndian.PutUint32(buf[0:], uint32(h.KeyCount))
	if h.IsLeaf {
		buf[4] = 1
	} else {
		buf[4] = 0
	}
	binary.LittleEndian.PutUint32(buf[5:], uint32(h.Parent))
}

// InitBTreePage stamps a fresh, empty B-tree page.
func InitBTreePage(buf []byte, isLeaf bool, parent int32) {
	for i := range buf {
		buf[i] = 0
	}
	WriteBTreeHeader(buf, BTreeHeader{IsLeaf: isLeaf, Parent: parent})
}

func btreeEntryOffset(i int) int { return btreeEntriesOff + i*btreeEntrySize }

// BTreeEntry returns the (key, page_id) at slot i.
func BTreeEntry(buf []byte, i int) (key []byte, pageID int32) {
	off := btreeEntryOffset(i)
	return buf[off : off+BTreeKeySize], int32(binary.LittleEndian.Uint32(buf[off+BTreeKeySize:]))
}

// SetBTreeEntry writes the (key, page_id) at slot i. key is copied and
// zero-padded/truncated to BTreeKeySize.
func SetBTreeEntry(buf []byte, i int, key []byte, pageID int32) {
	off := btreeEntryOffset(i)
	slot := buf[off : off+BTreeKeySize]
	for j := range slot {
		slot[j] = 0
	}
	copy(slot, key)
	binary.LittleEndian.PutUint32(buf[off+BTreeKeySize:], uint32(pageID))
}

func btreeChildOffset(i int) int { return btreeChildOff + i*4 }

// BTreeChild returns child pointer i (0..BTreeMaxEntries).
func BTreeChild(buf []byte, i int) int32 {
	return int32(binary.LittleEndian.Uint32(buf[btreeChildOffset(i):]))
}

// SetBTreeChild writes child pointer i.
func SetBTreeChild(buf []byte, i int, pageID int32) {
	binary.LittleEndian.PutUint32(buf[btreeChildOffset(i):], uint32(pageID))
}

// EncodeBTreeKeyInt64 packs a signed 64-bit key into a BTreeKeySize slot,
// big-endian with the sign bit flipped so byte-wise comparison matches
// numeric ordering.
func EncodeBTreeKeyInt64(v int64) []byte {
	buf := make([]byte, BTreeKeySize)
	binary.BigEndian.PutUint64(buf[:8], uint64(v)^(1<<63))
	return buf
}

// EncodeBTreeKeyString packs a string key, truncated to BTreeKeySize.
func EncodeBTreeKeyString(s string) []byte {
	buf := make([]byte, BTreeKeySize)
	copy(buf, s)
	return buf
}
