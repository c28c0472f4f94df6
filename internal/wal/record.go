// Package wal is the write-ahead log: fixed 512-byte records, a 32-bit
// arithmetic checksum that is actually verified on read (not merely
// computed and ignored), append-only growth, and LSN-addressed reads.
// An LSN counter with synchronous append (each record is written and
// fsynced before Append returns), the same record layout as a typical
// redo log manager's WALRecord.
package wal

import (
	"encoding/binary"

	"github.com/minidb-go/minidb/internal/errs"
)

// RecordSize is the fixed on-disk size of every WAL record.
const RecordSize = 512

// headerSize is the width of every fixed, non-image field preceding
// before_image: type(1) txn_id(4) lsn(8) prev_lsn(8) page_id(4)
// record_size(4).
const headerSize = 29

// checksumSize is the width of the trailing checksum field.
const checksumSize = 4

// imageSize is the fixed width of before_image/after_image. The source's
// own wal_types.h declares both a 512-byte WAL_RECORD_SIZE and two
// 256-byte image fields alongside this same header — fields that cannot
// simultaneously fit in a packed 512-byte record (its own sizeof(WALRecord)
// runs well past 512, a mismatch confirmed by wal_manager.c using
// WAL_RECORD_SIZE only to estimate current_lsn from file size while every
// read/write uses the larger sizeof(WALRecord)). This rewrite holds the
// 512-byte on-disk record size as the binding invariant — it is
// load-bearing throughout recovery's LSN-to-offset math — and sizes the
// images down to what the remaining header leaves room for, the same
// kind of fit-to-page adjustment as the hash index page's bucket count.
const imageSize = (RecordSize - headerSize - checksumSize) / 2

// MaxPayloadSize is the largest before/after image Append will accept.
// A row wider than this cannot be WAL-logged; callers should reject such
// schemas at CREATE TABLE time rather than let Append truncate silently.
const MaxPayloadSize = imageSize

// RecordType enumerates WAL record kinds. DDL is an addition beyond the
// source's enum, carrying a textual descriptor of a schema change.
type RecordType uint8

const (
	Begin RecordType = iota
	Commit
	Abort
	Insert
	Update
	Delete
	Checkpoint
	DDL
)

func (t RecordType) String() string {
	switch t {
	case Begin:
		return "BEGIN"
	case Commit:
		return "COMMIT"
	case Abort:
		return "ABORT"
	case Insert:
		return "INSERT"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	case Checkpoint:
		return "CHECKPOINT"
	case DDL:
		return "DDL"
	default:
		return "UNKNOWN"
	}
}

// Record is the decoded form of one 512-byte WAL entry.
type Record struct {
	Type        RecordType
	TxnID       uint32
	LSN         uint64
	PrevLSN     uint64
	PageID      int32
	RecordSize  int32
	BeforeImage [imageSize]byte
	AfterImage  [imageSize]byte
}

// field offsets within the 512-byte record.
const (
	offType     = 0
	offTxnID    = 1
	offLSN      = 5
	offPrevLSN  = 13
	offPageID   = 21
	offRecSize  = 25
	offBefore   = 29
	offAfter    = offBefore + imageSize
	offChecksum = offAfter + imageSize
)

// encode writes r into a fresh RecordSize-byte buffer with a correct
// checksum computed over every other byte.
func encode(r Record) []byte {
	buf := make([]byte, RecordSize)
	buf[offType] = byte(r.Type)
	binary.LittleEndian.PutUint32(buf[offTxnID:], r.TxnID)
	binary.LittleEndian.PutUint64(buf[offLSN:], r.LSN)
	binary.LittleEndian.PutUint64(buf[offPrevLSN:], r.PrevLSN)
	binary.LittleEndian.PutUint32(buf[offPageID:], uint32(r.PageID))
	binary.LittleEndian.PutUint32(buf[offRecSize:], uint32(r.RecordSize))
	copy(buf[offBefore:offBefore+imageSize], r.BeforeImage[:])
	copy(buf[offAfter:offAfter+imageSize], r.AfterImage[:])
	binary.LittleEndian.PutUint32(buf[offChecksum:], checksum(buf))
	return buf
}

// decode parses a RecordSize-byte buffer, verifying its checksum.
func decode(buf []byte) (Record, error) {
	if len(buf) != RecordSize {
		return Record{}, errs.New(errs.WalCorruption, "short WAL record")
	}
	want := binary.LittleEndian.Uint32(buf[offChecksum:])
	if got := checksum(buf); got != want {
		return Record{}, errs.New(errs.WalCorruption, "WAL checksum mismatch")
	}
	var r Record
	r.Type = RecordType(buf[offType])
	r.TxnID = binary.LittleEndian.Uint32(buf[offTxnID:])
	r.LSN = binary.LittleEndian.Uint64(buf[offLSN:])
	r.PrevLSN = binary.LittleEndian.Uint64(buf[offPrevLSN:])
	r.PageID = int32(binary.LittleEndian.Uint32(buf[offPageID:]))
	r.RecordSize = int32(binary.LittleEndian.Uint32(buf[offRecSize:]))
	copy(r.BeforeImage[:], buf[offBefore:offBefore+imageSize])
	copy(r.AfterImage[:], buf[offAfter:offAfter+imageSize])
	return r, nil
}

// checksum computes a 32-bit arithmetic sum of every byte in buf except
// the checksum field itself, which must be zeroed by the caller before
// calling this during encode, and is skipped by offset during decode.
func checksum(buf []byte) uint32 {
	var sum uint32
	for i, b := range buf {
		if i >= offChecksum && i < offChecksum+4 {
			continue
		}
		sum += uint32(b)
	}
	return sum
}

func imageFrom(b []byte) [imageSize]byte {
	var img [imageSize]byte
	copy(img[:], b)
	return img
}
