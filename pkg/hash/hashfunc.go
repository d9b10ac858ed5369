package hash

import (
	"github.com/cespare/xxhash"
	"github.com/spaolacci/murmur3"
)

// HashFunc computes a 64-bit hash of a key. The coordinator downcasts the
// result to 32 bits (and masks it further) when indexing the directory,
// the same way the original source downcasts MurmurHash's 64-bit output.
type HashFunc[K any] func(key K) uint64

// Comparator is a total order over keys, with cmp(a,b) == 0 iff a == b.
type Comparator[K any] func(a, b K) int

// XxHasher builds a HashFunc for key type K using xxHash over its codec encoding.
func XxHasher[K any](codec Codec[K]) HashFunc[K] {
	return func(key K) uint64 {
		return xxhash.Sum64(codec.Encode(key))
	}
}

// MurmurHasher builds a HashFunc for key type K using MurmurHash3 over its codec encoding.
func MurmurHasher[K any](codec Codec[K]) HashFunc[K] {
	return func(key K) uint64 {
		return murmur3.Sum64(codec.Encode(key))
	}
}

// Int64Comparator is the natural ordering over int64 keys.
func Int64Comparator(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// StringComparator is the natural (byte-wise) ordering over string keys.
func StringComparator(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
