package voicecall

import (
	"fmt"
	"slices"
	"testing"
)

// interleavings returns every order of n items and n marks, as strings of
// 'i' and 'm'.
func interleavings(items, marks int) []string {
	if items == 0 && marks == 0 {
		return []string{""}
	}
	var out []string
	if items > 0 {
		for _, rest := range interleavings(items-1, marks) {
			out = append(out, "i"+rest)
		}
	}
	if marks > 0 {
		for _, rest := range interleavings(items, marks-1) {
			out = append(out, "m"+rest)
		}
	}
	return out
}

func TestMarkQueueEveryInterleaving(t *testing.T) {
	const n = 4
	for _, order := range interleavings(n, n) {
		t.Run(order, func(t *testing.T) {
			q := NewMarkQueue()
			var id uint64
			var mark int
			for _, c := range order {
				if c == 'i' {
					id++
					q.AddItem(id)
				} else {
					mark++
					q.AddMark(fmt.Sprintf("m%d", mark))
				}
			}
			var acks []string
			for i := uint64(1); i <= n; i++ {
				if m, ok := q.Complete(i); ok {
					acks = append(acks, m)
				}
				if _, ok := q.Complete(i); ok {
					t.Fatalf("item %d acknowledged twice", i)
				}
			}
			want := []string{"m1", "m2", "m3", "m4"}
			if !slices.Equal(acks, want) {
				t.Fatalf("acks = %v, want %v", acks, want)
			}
			if q.PendingAudio() != 0 || q.PendingMarks() != 0 || q.Paired() != 0 {
				t.Fatalf("queues not empty: %d/%d/%d", q.PendingAudio(), q.PendingMarks(), q.Paired())
			}
		})
	}
}

func TestMarkQueueMarkBeforeItems(t *testing.T) {
	// [m1, A, B, m2]: m1 goes with A and m2 with B.
	q := NewMarkQueue()
	q.AddMark("m1")
	if m, ok := q.AddItem(1); !ok || m != "m1" {
		t.Fatalf("A paired with %q, %v", m, ok)
	}
	if _, ok := q.AddItem(2); ok {
		t.Fatal("B paired before m2 arrived")
	}
	if id, ok := q.AddMark("m2"); !ok || id != 2 {
		t.Fatalf("m2 paired with %d, %v", id, ok)
	}
	if m, ok := q.Complete(1); !ok || m != "m1" {
		t.Fatalf("A completed with %q, %v", m, ok)
	}
	if m, ok := q.Complete(2); !ok || m != "m2" {
		t.Fatalf("B completed with %q, %v", m, ok)
	}
}

func TestMarkQueueUnpairedItemLeaves(t *testing.T) {
	q := NewMarkQueue()
	q.AddItem(1)
	q.AddItem(2)
	if _, ok := q.Complete(1); ok {
		t.Fatal("unpaired item produced a mark")
	}
	if id, ok := q.AddMark("m1"); !ok || id != 2 {
		t.Fatalf("m1 paired with %d, %v; want item 2", id, ok)
	}
}

func TestMarkQueueClear(t *testing.T) {
	q := NewMarkQueue()
	q.AddMark("m1")
	q.AddItem(1) // paired with m1
	q.AddItem(2)
	q.AddMark("m2") // paired with 2
	q.AddMark("m3") // pending
	q.AddMark("m4") // pending

	got := q.Clear()
	if want := []string{"m1", "m2", "m3", "m4"}; !slices.Equal(got, want) {
		t.Fatalf("Clear = %v, want %v", got, want)
	}
	if q.PendingAudio() != 0 || q.PendingMarks() != 0 || q.Paired() != 0 {
		t.Fatal("queues not empty after Clear")
	}
	if _, ok := q.Complete(1); ok {
		t.Fatal("cleared item acknowledged again")
	}
}
