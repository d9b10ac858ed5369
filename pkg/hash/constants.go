package hash

import "extendhash/pkg/pager"

// MaxDepth bounds both the global depth and every local depth. It is chosen,
// as in the original source, so that the directory body (local depths plus
// bucket page ids) fits in a single page: 2^9 = 512 slots.
const MaxDepth uint32 = 9

// DirectoryArraySize is the fixed capacity of the directory's slot arrays,
// 2^MaxDepth. Only the first 2^global_depth slots are ever live.
const DirectoryArraySize = 1 << MaxDepth

// PageSize is the size, in bytes, of every directory and bucket page.
const PageSize = pager.Pagesize

const wordBits = 64

// bitmapWords returns the number of 64-bit words needed to hold capacity bits.
func bitmapWords(capacity int) int {
	return (capacity + wordBits - 1) / wordBits
}

// bitmapBytes returns the number of bytes needed to hold capacity bits,
// rounded up to a whole number of 64-bit words (the native granularity of
// the bitset library backing the occupied/readable bitmaps).
func bitmapBytes(capacity int) int {
	return bitmapWords(capacity) * 8
}
