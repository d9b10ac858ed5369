package hash

import "testing"

func newTestDirectory(t *testing.T) *DirectoryPage {
	t.Helper()
	pgr := newTestPager(t)
	dir, err := newDirectoryPage(pgr)
	if err != nil {
		t.Fatal("failed to allocate directory page:", err)
	}
	dir.InitTable()
	return dir
}

func TestDirectoryInitTable(t *testing.T) {
	t.Parallel()
	dir := newTestDirectory(t)

	if gd := dir.GetGlobalDepth(); gd != 0 {
		t.Fatalf("GetGlobalDepth() = %d, want 0", gd)
	}
	if ld := dir.GetLocalDepth(0); ld != 0 {
		t.Fatalf("GetLocalDepth(0) = %d, want 0", ld)
	}
}

func TestDirectoryIncrGlobalDepthCopiesSlots(t *testing.T) {
	t.Parallel()
	dir := newTestDirectory(t)

	dir.SetBucketPageId(0, 7)
	dir.SetLocalDepth(0, 0)

	if !dir.IncrGlobalDepth() {
		t.Fatal("IncrGlobalDepth() = false, want true")
	}
	if gd := dir.GetGlobalDepth(); gd != 1 {
		t.Fatalf("GetGlobalDepth() = %d, want 1", gd)
	}
	if pid := dir.GetBucketPageId(1); pid != 7 {
		t.Fatalf("GetBucketPageId(1) = %d, want 7 (copied from slot 0)", pid)
	}
	if ld := dir.GetLocalDepth(1); ld != 0 {
		t.Fatalf("GetLocalDepth(1) = %d, want 0 (copied from slot 0)", ld)
	}
}

func TestDirectoryIncrGlobalDepthStopsAtMaxDepth(t *testing.T) {
	t.Parallel()
	dir := newTestDirectory(t)

	for i := uint32(0); i < MaxDepth; i++ {
		if !dir.IncrGlobalDepth() {
			t.Fatalf("IncrGlobalDepth() = false at depth %d, want true until MaxDepth", i)
		}
	}
	if dir.IncrGlobalDepth() {
		t.Fatal("IncrGlobalDepth() = true past MaxDepth, want false")
	}
	if gd := dir.GetGlobalDepth(); gd != MaxDepth {
		t.Fatalf("GetGlobalDepth() = %d, want %d", gd, MaxDepth)
	}
}

// TestSeparatePageIdSmallGroup covers the BusTub-original case: a pre-split
// group of exactly two slots (global depth already equal to the bucket's
// local depth, having just been doubled by IncrGlobalDepth).
func TestSeparatePageIdSmallGroup(t *testing.T) {
	t.Parallel()
	dir := newTestDirectory(t)

	// gd=1: slot 0 and slot 1 both point at bucket O, local depth 0.
	dir.IncrGlobalDepth()
	dir.SetBucketPageId(0, 100)
	dir.SetBucketPageId(1, 100)
	dir.SetLocalDepth(0, 0)
	dir.SetLocalDepth(1, 0)

	// Split slot 0: bump its depth to 1, then separate slot 1 (the sibling
	// bit pattern) off into a fresh bucket N.
	dir.IncrLocalDepth(0)
	dir.SeparatePageId(0, 1, 200)

	if pid := dir.GetBucketPageId(0); pid != 100 {
		t.Fatalf("slot 0 bucket = %d, want 100 (unchanged)", pid)
	}
	if pid := dir.GetBucketPageId(1); pid != 200 {
		t.Fatalf("slot 1 bucket = %d, want 200 (separated)", pid)
	}
	if ld := dir.GetLocalDepth(0); ld != 1 {
		t.Fatalf("slot 0 local depth = %d, want 1", ld)
	}
	if ld := dir.GetLocalDepth(1); ld != 1 {
		t.Fatalf("slot 1 local depth = %d, want 1", ld)
	}
}

// TestSeparatePageIdLargeGroup is the regression test for the
// iterated-splitting case a literal BusTub-style port gets wrong: a
// pre-split group wider than two slots, produced here by growing global
// depth to 3 while a bucket's local depth stays at 1 (so its group spans
// all four slots agreeing on the low bit). Splitting it must raise every
// slot in the group to the new local depth, not just the two slots a
// naive single-pair repoint would touch.
func TestSeparatePageIdLargeGroup(t *testing.T) {
	t.Parallel()
	dir := newTestDirectory(t)

	for i := 0; i < 3; i++ {
		dir.IncrGlobalDepth()
	}
	// gd=3, 8 slots. Bucket O at local depth 1 spans every slot with bit0==0:
	// {0, 2, 4, 6}. Bucket N at local depth 1 spans the rest: {1, 3, 5, 7}.
	for i := 0; i < 8; i++ {
		if i%2 == 0 {
			dir.SetBucketPageId(i, 100)
		} else {
			dir.SetBucketPageId(i, 900)
		}
		dir.SetLocalDepth(i, 1)
	}

	// Split bucket O on its low two bits: slot 0 is the from-index, slot 2
	// is the sibling pattern (low 2 bits == 10) that separates into bucket P.
	dir.IncrLocalDepth(0)
	dir.SeparatePageId(0, 2, 777)

	want := map[int]int64{0: 100, 2: 777, 4: 100, 6: 777}
	for slot, pid := range want {
		if got := dir.GetBucketPageId(slot); got != pid {
			t.Errorf("slot %d bucket = %d, want %d", slot, got, pid)
		}
	}
	for _, slot := range []int{0, 2, 4, 6} {
		if ld := dir.GetLocalDepth(slot); ld != 2 {
			t.Errorf("slot %d local depth = %d, want 2", slot, ld)
		}
	}
	// Bucket N's slots were untouched by this split.
	for _, slot := range []int{1, 3, 5, 7} {
		if pid := dir.GetBucketPageId(slot); pid != 900 {
			t.Errorf("slot %d bucket = %d, want 900 (untouched)", slot, pid)
		}
		if ld := dir.GetLocalDepth(slot); ld != 1 {
			t.Errorf("slot %d local depth = %d, want 1 (untouched)", slot, ld)
		}
	}
}

// TestMergePageIdLargeGroup is the mirror-image regression test: merging
// two sibling groups wider than a single slot pair must retarget and
// decrement every slot in the combined group.
func TestMergePageIdLargeGroup(t *testing.T) {
	t.Parallel()
	dir := newTestDirectory(t)

	for i := 0; i < 3; i++ {
		dir.IncrGlobalDepth()
	}
	// gd=3. Bucket O at local depth 2 spans {0, 4} (low 2 bits == 00).
	// Bucket P, its sibling at local depth 2, spans {2, 6} (low 2 bits == 10).
	for _, slot := range []int{0, 4} {
		dir.SetBucketPageId(slot, 100)
		dir.SetLocalDepth(slot, 2)
	}
	for _, slot := range []int{2, 6} {
		dir.SetBucketPageId(slot, 777)
		dir.SetLocalDepth(slot, 2)
	}
	for _, slot := range []int{1, 3, 5, 7} {
		dir.SetBucketPageId(slot, 900)
		dir.SetLocalDepth(slot, 1)
	}

	mask := ((uint32(1) << 2) - 1) >> 1 // combined group mask: low 1 bit
	dir.MergePageId(0, mask, 100)

	for _, slot := range []int{0, 2, 4, 6} {
		if pid := dir.GetBucketPageId(slot); pid != 100 {
			t.Errorf("slot %d bucket = %d, want 100 (merged)", slot, pid)
		}
		if ld := dir.GetLocalDepth(slot); ld != 1 {
			t.Errorf("slot %d local depth = %d, want 1 (decremented)", slot, ld)
		}
	}
	for _, slot := range []int{1, 3, 5, 7} {
		if pid := dir.GetBucketPageId(slot); pid != 900 {
			t.Errorf("slot %d bucket = %d, want 900 (untouched)", slot, pid)
		}
		if ld := dir.GetLocalDepth(slot); ld != 1 {
			t.Errorf("slot %d local depth = %d, want 1 (untouched)", slot, ld)
		}
	}
}

func TestDirectoryVerifyIntegrityPanicsOnDepthMismatch(t *testing.T) {
	t.Parallel()
	dir := newTestDirectory(t)
	dir.IncrGlobalDepth()

	dir.SetBucketPageId(0, 100)
	dir.SetBucketPageId(1, 100)
	dir.SetLocalDepth(0, 1)
	dir.SetLocalDepth(1, 0) // inconsistent: same bucket, disagreeing depth

	defer func() {
		if recover() == nil {
			t.Fatal("VerifyIntegrity did not panic on a depth/pointer-count violation")
		}
	}()
	dir.VerifyIntegrity()
}

func TestDirectoryVerifyIntegrityPassesOnConsistentState(t *testing.T) {
	t.Parallel()
	dir := newTestDirectory(t)
	dir.IncrGlobalDepth()
	dir.SetBucketPageId(0, 100)
	dir.SetBucketPageId(1, 200)
	dir.SetLocalDepth(0, 1)
	dir.SetLocalDepth(1, 1)

	dir.VerifyIntegrity() // must not panic
}
