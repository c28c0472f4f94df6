package page

import (
	"encoding/binary"

	"github.com/OneOfOne/xxhash"
)

// Hash index page layout: bucket_count(4) header, followed by up to
// HashMaxBuckets buckets of (key[8], record_id(8), next_bucket(4),
// deleted(1)). The bucket count is capped below a nominal round number of
// 200 so the page fits in 4096 bytes with this engine's 8-byte key slot.
const (
	HashMaxBuckets = 190
	hashHdrSize    = 4
	hashBucketSize = 8 + 8 + 4 + 1
)

// HashHeader is the decoded header of a hash index page.
type HashHeader struct {
	BucketCount int32
}

func ReadHashHeader(buf []byte) HashHeader {
	return HashHeader{BucketCount: int32(binary.LittleEndian.Uint32(buf[0:]))}
}

func WriteHashHeader(buf []byte, h HashHeader) {
	binary.LittleEndian.PutUint32(buf[0:], uint32(h.BucketCount))
}

// InitHashPage stamps a fresh hash index page with bucketCount empty,
// unchained buckets.
func InitHashPage(buf []byte, bucketCount int) {
	for i := range buf {
		buf[i] = 0
	}
	if bucketCount > HashMaxBuckets {
		bucketCount = HashMaxBuckets
	}
	WriteHashHeader(buf, HashHeader{BucketCount: int32(bucketCount)})
	for i := 0; i < bucketCount; i++ {
		SetHashBucket(buf, i, HashBucket{NextBucket: -1})
	}
}

// HashBucket is one slot of a hash index page.
type HashBucket struct {
	Key        uint64
	RecordID   int64
	NextBucket int32
	Deleted    bool
}

func hashBucketOffset(i int) int { return hashHdrSize + i*hashBucketSize }

func HashBucketAt(buf []byte, i int) HashBucket {
	off := hashBucketOffset(i)
	return HashBucket{
		Key:        binary.LittleEndian.Uint64(buf[off:]),
		RecordID:   int64(binary.LittleEndian.Uint64(buf[off+8:])),
		NextBucket: int32(binary.LittleEndian.Uint32(buf[off+16:])),
		Deleted:    buf[off+20] != 0,
	}
}

func SetHashBucket(buf []byte, i int, b HashBucket) {
	off := hashBucketOffset(i)
	binary.LittleEndian.PutUint64(buf[off:], b.Key)
	binary.LittleEndian.PutUint64(buf[off+8:], uint64(b.RecordID))
	binary.LittleEndian.PutUint32(buf[off+16:], uint32(b.NextBucket))
	if b.Deleted {
		buf[off+20] = 1
	} else {
		buf[off+20] = 0
	}
}

// HashKey hashes an arbitrary key's byte encoding to a bucket selector
// using xxhash.
func HashKey(keyBytes []byte) uint64 {
	h := xxhash.New64()
	h.Write(keyBytes)
	return h.Sum64()
}

// BucketIndex selects the bucket for a hashed key within a page holding
// bucketCount buckets.
func BucketIndex(hash uint64, bucketCount int) int {
	if bucketCount <= 0 {
		return 0
	}
	return int(hash % uint64(bucketCount))
}
