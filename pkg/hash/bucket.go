package hash

import (
	"bytes"
	"encoding/binary"

	"extendhash/pkg/pager"

	"github.com/bits-and-blooms/bitset"
)

// bucketLayout describes how a bucket page's PageSize bytes are carved up:
// an occupied bitmap, a readable bitmap (both word-aligned for the bitset
// library), then capacity fixed-width (key, value) slots.
type bucketLayout struct {
	capacity                int
	occupiedOffset          int
	occupiedSize            int
	readableOffset          int
	readableSize            int
	slotsOffset             int
	slotSize                int
}

func newBucketLayout(keySize, valSize int) bucketLayout {
	slotSize := keySize + valSize
	capacity := int(PageSize) / slotSize
	for capacity > 0 {
		bitmapSize := bitmapBytes(capacity)
		if 2*bitmapSize+capacity*slotSize <= int(PageSize) {
			break
		}
		capacity--
	}
	occupiedSize := bitmapBytes(capacity)
	return bucketLayout{
		capacity:       capacity,
		occupiedOffset: 0,
		occupiedSize:   occupiedSize,
		readableOffset: occupiedSize,
		readableSize:   occupiedSize,
		slotsOffset:    2 * occupiedSize,
		slotSize:       slotSize,
	}
}

// BucketPage is a single fixed-size page holding an unordered array of
// (key, value) slots, each with an occupied bit and a readable bit. A slot
// with occupied set but readable clear is a tombstone: a previously-removed
// entry whose space has not been reclaimed.
type BucketPage[K comparable, V any] struct {
	page     *pager.Page
	keyCodec Codec[K]
	valCodec Codec[V]
	layout   bucketLayout
}

// newBucketPage allocates a fresh page from pgr and initializes it as an
// empty bucket. The caller owns the returned page's pin.
func newBucketPage[K comparable, V any](pgr *pager.Pager, keyCodec Codec[K], valCodec Codec[V]) (*BucketPage[K, V], error) {
	page, err := pgr.NewPage()
	if err != nil {
		return nil, err
	}
	bucket := &BucketPage[K, V]{
		page:     page,
		keyCodec: keyCodec,
		valCodec: valCodec,
		layout:   newBucketLayout(keyCodec.Size(), valCodec.Size()),
	}
	zeros := make([]byte, bucket.layout.readableOffset+bucket.layout.readableSize)
	page.Update(zeros, 0, int64(len(zeros)))
	return bucket, nil
}

// loadBucketPage wraps an already-fetched page as a BucketPage.
func loadBucketPage[K comparable, V any](page *pager.Page, keyCodec Codec[K], valCodec Codec[V]) *BucketPage[K, V] {
	return &BucketPage[K, V]{
		page:     page,
		keyCodec: keyCodec,
		valCodec: valCodec,
		layout:   newBucketLayout(keyCodec.Size(), valCodec.Size()),
	}
}

// GetPage returns the bucket's underlying page.
func (b *BucketPage[K, V]) GetPage() *pager.Page {
	return b.page
}

// Capacity returns B, the maximum number of readable slots this bucket can hold.
func (b *BucketPage[K, V]) Capacity() int {
	return b.layout.capacity
}

// WLock acquires a writer's latch on the bucket's page.
func (b *BucketPage[K, V]) WLock() { b.page.WLock() }

// WUnlock releases a writer's latch on the bucket's page.
func (b *BucketPage[K, V]) WUnlock() { b.page.WUnlock() }

// RLock acquires a reader's latch on the bucket's page.
func (b *BucketPage[K, V]) RLock() { b.page.RLock() }

// RUnlock releases a reader's latch on the bucket's page.
func (b *BucketPage[K, V]) RUnlock() { b.page.RUnlock() }

// GetValue appends every value whose slot is readable and whose key equals
// key under cmp. Returns true iff at least one was appended.
func (b *BucketPage[K, V]) GetValue(key K, cmp Comparator[K]) ([]V, bool) {
	var values []V
	for i := 0; i < b.layout.capacity; i++ {
		if !b.testReadable(i) {
			continue
		}
		if cmp(b.getKeyAt(i), key) == 0 {
			values = append(values, b.getValueAt(i))
		}
	}
	return values, len(values) > 0
}

// Insert writes (key, value) into the first free slot, unless that exact
// pair is already present as a readable entry (duplicate rejection) or the
// bucket has no free slot (fullness). Returns whether the pair was written.
func (b *BucketPage[K, V]) Insert(key K, value V, cmp Comparator[K]) bool {
	if b.CheckKeyValueExist(key, value, cmp) {
		return false
	}
	for i := 0; i < b.layout.capacity; i++ {
		if !b.testOccupied(i) || !b.testReadable(i) {
			b.writeSlot(i, key, value)
			b.setOccupied(i)
			b.setReadable(i)
			return true
		}
	}
	return false
}

// Remove clears the readable bit of the first slot matching both key and
// value, leaving its occupied bit set as a tombstone. Returns true iff a
// slot was cleared.
func (b *BucketPage[K, V]) Remove(key K, value V, cmp Comparator[K]) bool {
	for i := 0; i < b.layout.capacity; i++ {
		if !b.testReadable(i) {
			continue
		}
		if cmp(b.getKeyAt(i), key) == 0 && b.valuesEqual(b.getValueAt(i), value) {
			b.clearReadable(i)
			return true
		}
	}
	return false
}

// IsFull reports whether every slot holds a readable entry.
func (b *BucketPage[K, V]) IsFull() bool {
	return b.numReadable() >= b.layout.capacity
}

// IsEmpty reports whether no slot holds a readable entry. A bucket full of
// tombstones (occupied but not readable) is considered empty.
func (b *BucketPage[K, V]) IsEmpty() bool {
	return b.numReadable() == 0
}

// CheckKeyValueExist reports whether the exact (key, value) pair is present
// as a readable slot.
func (b *BucketPage[K, V]) CheckKeyValueExist(key K, value V, cmp Comparator[K]) bool {
	for i := 0; i < b.layout.capacity; i++ {
		if !b.testReadable(i) {
			continue
		}
		if cmp(b.getKeyAt(i), key) == 0 && b.valuesEqual(b.getValueAt(i), value) {
			return true
		}
	}
	return false
}

// EmptyArray drains every readable (key, value) pair out of the bucket,
// clearing both bits on every slot, and returns the drained pairs.
func (b *BucketPage[K, V]) EmptyArray() (keys []K, values []V) {
	for i := 0; i < b.layout.capacity; i++ {
		if b.testReadable(i) {
			keys = append(keys, b.getKeyAt(i))
			values = append(values, b.getValueAt(i))
		}
		b.clearOccupied(i)
		b.clearReadable(i)
	}
	return keys, values
}

// valuesEqual compares two values bit-wise, via their codec encoding.
func (b *BucketPage[K, V]) valuesEqual(a, v V) bool {
	return bytes.Equal(b.valCodec.Encode(a), b.valCodec.Encode(v))
}

func (b *BucketPage[K, V]) numReadable() int {
	bs := b.readableBitset()
	return int(bs.Count())
}

func (b *BucketPage[K, V]) slotOffset(i int) int64 {
	return int64(b.layout.slotsOffset + i*b.layout.slotSize)
}

func (b *BucketPage[K, V]) getKeyAt(i int) K {
	off := b.slotOffset(i)
	size := int64(b.keyCodec.Size())
	return b.keyCodec.Decode(b.page.GetData()[off : off+size])
}

func (b *BucketPage[K, V]) getValueAt(i int) V {
	off := b.slotOffset(i) + int64(b.keyCodec.Size())
	size := int64(b.valCodec.Size())
	return b.valCodec.Decode(b.page.GetData()[off : off+size])
}

func (b *BucketPage[K, V]) writeSlot(i int, key K, value V) {
	buf := make([]byte, b.layout.slotSize)
	copy(buf, b.keyCodec.Encode(key))
	copy(buf[b.keyCodec.Size():], b.valCodec.Encode(value))
	b.page.Update(buf, b.slotOffset(i), int64(b.layout.slotSize))
}

func (b *BucketPage[K, V]) occupiedBitset() *bitset.BitSet {
	region := b.page.GetData()[b.layout.occupiedOffset : b.layout.occupiedOffset+b.layout.occupiedSize]
	return loadBitset(region, b.layout.capacity)
}

func (b *BucketPage[K, V]) readableBitset() *bitset.BitSet {
	region := b.page.GetData()[b.layout.readableOffset : b.layout.readableOffset+b.layout.readableSize]
	return loadBitset(region, b.layout.capacity)
}

func (b *BucketPage[K, V]) testOccupied(i int) bool {
	return b.occupiedBitset().Test(uint(i))
}

func (b *BucketPage[K, V]) testReadable(i int) bool {
	return b.readableBitset().Test(uint(i))
}

func (b *BucketPage[K, V]) setOccupied(i int) {
	bs := b.occupiedBitset()
	bs.Set(uint(i))
	region := make([]byte, b.layout.occupiedSize)
	storeBitset(region, bs)
	b.page.Update(region, int64(b.layout.occupiedOffset), int64(b.layout.occupiedSize))
}

func (b *BucketPage[K, V]) clearOccupied(i int) {
	bs := b.occupiedBitset()
	bs.Clear(uint(i))
	region := make([]byte, b.layout.occupiedSize)
	storeBitset(region, bs)
	b.page.Update(region, int64(b.layout.occupiedOffset), int64(b.layout.occupiedSize))
}

func (b *BucketPage[K, V]) setReadable(i int) {
	bs := b.readableBitset()
	bs.Set(uint(i))
	region := make([]byte, b.layout.readableSize)
	storeBitset(region, bs)
	b.page.Update(region, int64(b.layout.readableOffset), int64(b.layout.readableSize))
}

func (b *BucketPage[K, V]) clearReadable(i int) {
	bs := b.readableBitset()
	bs.Clear(uint(i))
	region := make([]byte, b.layout.readableSize)
	storeBitset(region, bs)
	b.page.Update(region, int64(b.layout.readableOffset), int64(b.layout.readableSize))
}

// loadBitset reconstructs a *bitset.BitSet from a word-aligned byte region.
func loadBitset(region []byte, capacity int) *bitset.BitSet {
	words := make([]uint64, bitmapWords(capacity))
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(region[i*8:])
	}
	return bitset.From(words)
}

// storeBitset serializes a *bitset.BitSet's words back into a byte buffer.
func storeBitset(buf []byte, bs *bitset.BitSet) {
	words := bs.Bytes()
	for i, w := range words {
		if (i+1)*8 > len(buf) {
			break
		}
		binary.LittleEndian.PutUint64(buf[i*8:], w)
	}
}
