package series

import (
	"sync"
	"testing"
)

func TestBufferKeepsMostRecentInOrder(t *testing.T) {
	b := NewBuffer[int](5)
	for i := 0; i < 13; i++ {
		b.Append(i)
	}
	got := b.Snapshot()
	want := []int{8, 9, 10, 11, 12}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestBufferBelowCapacity(t *testing.T) {
	b := NewBuffer[int](60)
	b.Append(1)
	b.Append(2)
	if b.Len() != 2 || b.Cap() != 60 {
		t.Fatalf("unexpected len/cap %d/%d", b.Len(), b.Cap())
	}
	got := b.Snapshot()
	if got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected snapshot %v", got)
	}
}

func TestBufferLengthNeverExceedsCapacity(t *testing.T) {
	for _, capacity := range []int{1, 2, 7, 60} {
		b := NewBuffer[int](capacity)
		for n := 0; n < 3*capacity+1; n++ {
			b.Append(n)
			if b.Len() > capacity {
				t.Fatalf("cap %d: len %d after %d appends", capacity, b.Len(), n+1)
			}
			snap := b.Snapshot()
			last := snap[len(snap)-1]
			if last != n {
				t.Fatalf("cap %d: newest record %d, expected %d", capacity, last, n)
			}
			for i := 1; i < len(snap); i++ {
				if snap[i] != snap[i-1]+1 {
					t.Fatalf("cap %d: snapshot out of order %v", capacity, snap)
				}
			}
		}
	}
}

func TestBufferSnapshotIsCopy(t *testing.T) {
	b := NewBuffer[int](3)
	b.Append(1)
	snap := b.Snapshot()
	snap[0] = 42
	if b.Snapshot()[0] != 1 {
		t.Fatalf("snapshot mutation leaked into buffer")
	}
}

func TestBufferZeroCapacityCoerced(t *testing.T) {
	b := NewBuffer[string](0)
	b.Append("a")
	b.Append("b")
	if got := b.Snapshot(); len(got) != 1 || got[0] != "b" {
		t.Fatalf("unexpected snapshot %v", got)
	}
}

func TestBufferConcurrentAppendAndSnapshot(t *testing.T) {
	b := NewBuffer[int](16)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 5000; i++ {
			b.Append(i)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := b.Snapshot()
			for k := 1; k < len(snap); k++ {
				if snap[k] != snap[k-1]+1 {
					t.Errorf("inconsistent snapshot %v", snap)
					return
				}
			}
		}
	}()
	wg.Wait()
}
