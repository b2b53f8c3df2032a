package trail

import (
	"testing"

	"marswalk/internal/sim/grid"
)

func TestBucketFor_Boundaries(t *testing.T) {
	cases := []struct {
		age  uint64
		want Bucket
	}{
		{0, Fresh}, {5, Fresh},
		{6, Recent}, {10, Recent},
		{11, Warm}, {15, Warm},
		{16, Fading}, {25, Fading},
		{26, Cool}, {35, Cool},
		{36, Cold}, {50, Cold},
		{51, Stale}, {1 << 40, Stale},
	}
	for _, c := range cases {
		if got := BucketFor(c.age); got != c.want {
			t.Fatalf("BucketFor(%d)=%v want %v", c.age, got, c.want)
		}
	}
}

func TestBucketFor_Monotonic(t *testing.T) {
	prev := BucketFor(0)
	for age := uint64(1); age < 200; age++ {
		b := BucketFor(age)
		if b < prev {
			t.Fatalf("bucket decreased at age %d: %v -> %v", age, prev, b)
		}
		prev = b
	}
}

func TestBuckets_RangesAreContiguous(t *testing.T) {
	all := Buckets()
	if len(all) != 7 {
		t.Fatalf("want 7 buckets, got %d", len(all))
	}
	_, prevMax := all[0].Range()
	for _, b := range all[1:] {
		lo, hi := b.Range()
		if lo != prevMax+1 {
			t.Fatalf("bucket %v starts at %d, previous ended at %d", b, lo, prevMax)
		}
		if b.Color() == "" || b.String() == "unknown" {
			t.Fatalf("bucket %v missing presentation", b)
		}
		prevMax = hi
	}
}

func TestHistory_StampKeepsLatestTick(t *testing.T) {
	h := NewHistory()
	a := grid.Position{X: 1, Y: 2}
	b := grid.Position{X: 3, Y: 4}
	h.Stamp(0, a, b)
	h.Stamp(7, a)

	if got, _ := h.LastSeen(a); got != 7 {
		t.Fatalf("a last seen %d want 7", got)
	}
	if got, _ := h.LastSeen(b); got != 0 {
		t.Fatalf("b last seen %d want 0", got)
	}
	if h.Len() != 2 {
		t.Fatalf("len=%d want 2", h.Len())
	}
}

func TestHistory_NeverEvicts(t *testing.T) {
	h := NewHistory()
	for tick := uint64(0); tick < 100; tick++ {
		h.Stamp(tick, grid.Position{X: int(tick % 10), Y: 0})
	}
	if h.Len() != 10 {
		t.Fatalf("len=%d want 10", h.Len())
	}
	snap := h.Snapshot(1000)
	for _, m := range snap {
		if m.Bucket != Stale {
			t.Fatalf("old cell %v not stale: %+v", m.Pos, m)
		}
	}
}

func TestHistory_SnapshotOrderAndAge(t *testing.T) {
	h := NewHistory()
	h.Stamp(3, grid.Position{X: 5, Y: 1})
	h.Stamp(9, grid.Position{X: 0, Y: 1})
	h.Stamp(1, grid.Position{X: 2, Y: 0})

	snap := h.Snapshot(10)
	if len(snap) != 3 {
		t.Fatalf("len=%d", len(snap))
	}
	want := []grid.Position{{X: 2, Y: 0}, {X: 0, Y: 1}, {X: 5, Y: 1}}
	for i, p := range want {
		if snap[i].Pos != p {
			t.Fatalf("snap[%d]=%v want %v", i, snap[i].Pos, p)
		}
	}
	if snap[1].Age != 1 || snap[1].Bucket != Fresh {
		t.Fatalf("unexpected mark %+v", snap[1])
	}
	if snap[0].Age != 9 || snap[0].Bucket != Recent {
		t.Fatalf("unexpected mark %+v", snap[0])
	}
}

func TestAge_FutureStampFloorsAtZero(t *testing.T) {
	if Age(3, 5) != 0 {
		t.Fatalf("future stamp should have age 0")
	}
}
