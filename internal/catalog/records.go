package catalog

import (
	"encoding/binary"

	"github.com/minidb-go/minidb/internal/page"
)

// Fixed-width byte layouts for the three system record kinds. Each begins
// with the same leading tombstone flag byte the data page format uses, so
// the generic page.IsDeleted/SetDeleted helpers work on them directly.

const (
	nameWidth   = 64
	colNameW    = 32
	indexNameW  = 32
	indexColW   = 32
)

const (
	tableRecordSize  = 1 + 4 + nameWidth + 4 + 4                   // flag, id, name, head_page, column_count
	columnRecordSize = 1 + 4 + 4 + colNameW + 1 + 4 + 1            // flag, table_id, ordinal, name, type, size, nullable
	indexRecordSize  = 1 + 4 + indexNameW + 4 + indexColW + 1 + 4  // flag, id, name, table_id, column, kind, root_page
)

func putFixedString(buf []byte, s string, width int) {
	for i := range buf[:width] {
		buf[i] = 0
	}
	n := copy(buf[:width], s)
	_ = n
}

func getFixedString(buf []byte) string {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

func encodeTableRecord(id uint32, name string, headPage uint32, columnCount int, buf []byte) {
	buf[0] = 0
	binary.LittleEndian.PutUint32(buf[1:5], id)
	putFixedString(buf[5:5+nameWidth], name, nameWidth)
	off := 5 + nameWidth
	binary.LittleEndian.PutUint32(buf[off:off+4], headPage)
	binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(columnCount))
}

func decodeTableRecord(buf []byte) (id uint32, name string, headPage uint32, columnCount int) {
	id = binary.LittleEndian.Uint32(buf[1:5])
	name = getFixedString(buf[5 : 5+nameWidth])
	off := 5 + nameWidth
	headPage = binary.LittleEndian.Uint32(buf[off : off+4])
	columnCount = int(binary.LittleEndian.Uint32(buf[off+4 : off+8]))
	return
}

func encodeColumnRecord(tableID uint32, ordinal int, col page.Column, buf []byte) {
	buf[0] = 0
	binary.LittleEndian.PutUint32(buf[1:5], tableID)
	binary.LittleEndian.PutUint32(buf[5:9], uint32(ordinal))
	putFixedString(buf[9:9+colNameW], col.Name, colNameW)
	off := 9 + colNameW
	buf[off] = byte(col.Type)
	binary.LittleEndian.PutUint32(buf[off+1:off+5], uint32(col.Size))
	if col.Nullable {
		buf[off+5] = 1
	} else {
		buf[off+5] = 0
	}
}

func decodeColumnRecord(buf []byte) (tableID uint32, ordinal int, col page.Column) {
	tableID = binary.LittleEndian.Uint32(buf[1:5])
	ordinal = int(binary.LittleEndian.Uint32(buf[5:9]))
	col.Name = getFixedString(buf[9 : 9+colNameW])
	off := 9 + colNameW
	col.Type = page.ColumnType(buf[off])
	col.Size = int(binary.LittleEndian.Uint32(buf[off+1 : off+5]))
	col.Nullable = buf[off+5] != 0
	return
}

func encodeIndexRecord(id uint32, name string, tableID uint32, column string, kind IndexKind, rootPage uint32, buf []byte) {
	buf[0] = 0
	binary.LittleEndian.PutUint32(buf[1:5], id)
	putFixedString(buf[5:5+indexNameW], name, indexNameW)
	off := 5 + indexNameW
	binary.LittleEndian.PutUint32(buf[off:off+4], tableID)
	putFixedString(buf[off+4:off+4+indexColW], column, indexColW)
	off2 := off + 4 + indexColW
	buf[off2] = byte(kind)
	binary.LittleEndian.PutUint32(buf[off2+1:off2+5], rootPage)
}

func decodeIndexRecord(buf []byte) (id uint32, name string, tableID uint32, column string, kind IndexKind, rootPage uint32) {
	id = binary.LittleEndian.Uint32(buf[1:5])
	name = getFixedString(buf[5 : 5+indexNameW])
	off := 5 + indexNameW
	tableID = binary.LittleEndian.Uint32(buf[off : off+4])
	column = getFixedString(buf[off+4 : off+4+indexColW])
	off2 := off + 4 + indexColW
	kind = IndexKind(buf[off2])
	rootPage = binary.LittleEndian.Uint32(buf[off2+1 : off2+5])
	return
}
