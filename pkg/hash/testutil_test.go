package hash

import (
	"os"
	"testing"

	"extendhash/pkg/pager"
)

// tempDBFile creates a fresh backing file for a pager, removing it once the
// test completes.
func tempDBFile(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp("", "*.hashdb")
	if err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	name := f.Name()
	t.Cleanup(func() { _ = os.Remove(name) })
	return name
}

// newTestPager opens a pager over a fresh temp file, closing it on cleanup.
func newTestPager(t *testing.T) *pager.Pager {
	t.Helper()
	pgr, err := pager.New(tempDBFile(t))
	if err != nil {
		t.Fatal("failed to create pager:", err)
	}
	t.Cleanup(func() { _ = pgr.Close() })
	return pgr
}

// newInt64Coordinator builds an IndexCoordinator[int64, int64] over a fresh
// pager, using xxHash and the natural int64 order.
func newInt64Coordinator(t *testing.T) *IndexCoordinator[int64, int64] {
	t.Helper()
	pgr := newTestPager(t)
	c, err := NewIndexCoordinator[int64, int64](pgr, Int64Codec, Int64Codec, XxHasher[int64](Int64Codec), Int64Comparator)
	if err != nil {
		t.Fatal("failed to create index:", err)
	}
	return c
}

// identityHash64 is hash = identity over int64 keys, matching spec.md §8's
// concrete scenarios ("hash = identity").
func identityHash64(key int64) uint64 {
	return uint64(key)
}

// paddedInt64Codec pads an int64 value out to a fixed width, so a test can
// shrink a bucket's capacity (B) to a small, deterministic number.
type paddedInt64Codec struct {
	width int
}

func (c paddedInt64Codec) Size() int { return c.width }

func (c paddedInt64Codec) Encode(v int64) []byte {
	buf := make([]byte, c.width)
	copy(buf, Int64Codec.Encode(v))
	return buf
}

func (c paddedInt64Codec) Decode(b []byte) int64 {
	return Int64Codec.Decode(b[:8])
}

// newSmallBucketCoordinator builds an IndexCoordinator[int64, int64] whose
// bucket capacity is exactly 4, using identity hashing, so scenarios that
// need to force a predictable split/merge at a small B can do so directly.
func newSmallBucketCoordinator(t *testing.T) *IndexCoordinator[int64, int64] {
	t.Helper()
	pgr := newTestPager(t)
	valCodec := paddedInt64Codec{width: 1000}
	c, err := NewIndexCoordinator[int64, int64](pgr, Int64Codec, valCodec, identityHash64, Int64Comparator)
	if err != nil {
		t.Fatal("failed to create index:", err)
	}
	return c
}

// containsValue reports whether want appears in got.
func containsValue(got []int64, want int64) bool {
	for _, v := range got {
		if v == want {
			return true
		}
	}
	return false
}
