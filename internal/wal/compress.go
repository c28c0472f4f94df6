package wal

import (
	"encoding/binary"

	"github.com/pierrec/lz4/v4"
)

// CompressImages enables optional lz4 block-mode compression of
// before_image/after_image payloads, for schemas whose rows are mostly
// zero-padded (fixed-width CHAR columns, short VARCHARs against a wide
// declared size). It is off by default: the on-disk WAL record stays
// exactly RecordSize bytes either way, since that fixed layout is
// load-bearing for recovery's LSN-to-offset arithmetic — compression
// only changes how the bytes inside the fixed before_image/after_image
// arrays are packed.
// A 2-byte length prefix inside each image array records the compressed
// span; UncompressBlock needs the exact original length to size its
// destination buffer, which Record.RecordSize already carries, so no
// change to the wire format is needed to round-trip it.
type CompressImages bool

const lz4LenPrefix = 2

// packImage compresses raw via lz4 block mode when compress is set and
// the result (plus its 2-byte length prefix) fits the fixed image width;
// otherwise it falls back to the uncompressed, zero-padded encoding so a
// payload that doesn't compress usefully is never silently corrupted.
func packImage(raw []byte, compress bool) [imageSize]byte {
	if !compress || len(raw) == 0 {
		return imageFrom(raw)
	}
	bound := lz4.CompressBlockBound(len(raw))
	scratch := make([]byte, bound)
	var ht [1 << 16]int
	n, err := lz4.CompressBlock(raw, scratch, ht[:])
	if err != nil || n == 0 || n+lz4LenPrefix > imageSize {
		return imageFrom(raw)
	}
	var img [imageSize]byte
	binary.BigEndian.PutUint16(img[:lz4LenPrefix], uint16(n))
	copy(img[lz4LenPrefix:], scratch[:n])
	return img
}

// unpackImage reverses packImage given the original payload length
// (Record.RecordSize). When compress is false this is just a slice of
// the zero-padded image; decompression failure (e.g. a record written
// before compression was enabled) falls back to treating the bytes as
// literal, matching packImage's own fallback.
func unpackImage(img [imageSize]byte, originalLen int, compress bool) []byte {
	if !compress || originalLen <= 0 {
		return append([]byte(nil), img[:originalLen]...)
	}
	n := int(binary.BigEndian.Uint16(img[:lz4LenPrefix]))
	if n <= 0 || n+lz4LenPrefix > imageSize {
		return append([]byte(nil), img[:originalLen]...)
	}
	dst := make([]byte, originalLen)
	nw, err := lz4.UncompressBlock(img[lz4LenPrefix:lz4LenPrefix+n], dst)
	if err != nil || nw != originalLen {
		return append([]byte(nil), img[:originalLen]...)
	}
	return dst
}
