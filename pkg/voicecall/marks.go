package voicecall

import "slices"

// MarkQueue pairs mark tokens with audio items in arrival order.
//
// An item arriving while a mark waits takes the oldest mark; a mark arriving
// while an unpaired item waits goes to the oldest such item. Otherwise each
// waits in its own FIFO. Pairing is by position only, so a lost or reordered
// message shifts every later pair.
//
// MarkQueue is not safe for concurrent use.
type MarkQueue struct {
	items  []uint64
	marks  []queuedMark
	paired map[uint64]queuedMark
	seq    uint64
}

type queuedMark struct {
	name string
	seq  uint64
}

// NewMarkQueue creates an empty MarkQueue.
func NewMarkQueue() *MarkQueue {
	return &MarkQueue{paired: make(map[uint64]queuedMark)}
}

// AddItem enqueues an audio item. It reports the mark it was paired with.
func (q *MarkQueue) AddItem(id uint64) (mark string, paired bool) {
	if len(q.marks) > 0 {
		m := q.marks[0]
		q.marks = q.marks[1:]
		q.paired[id] = m
		return m.name, true
	}
	q.items = append(q.items, id)
	return "", false
}

// AddMark enqueues a mark. It reports the item it was paired with.
func (q *MarkQueue) AddMark(name string) (id uint64, paired bool) {
	q.seq++
	m := queuedMark{name: name, seq: q.seq}
	if len(q.items) > 0 {
		id = q.items[0]
		q.items = q.items[1:]
		q.paired[id] = m
		return id, true
	}
	q.marks = append(q.marks, m)
	return 0, false
}

// Complete records that item id finished playing and returns the mark to
// acknowledge, if it had one. An unpaired item leaves the queue.
func (q *MarkQueue) Complete(id uint64) (mark string, ok bool) {
	if m, ok := q.paired[id]; ok {
		delete(q.paired, id)
		return m.name, true
	}
	if i := slices.Index(q.items, id); i >= 0 {
		q.items = slices.Delete(q.items, i, i+1)
	}
	return "", false
}

// Clear empties both queues and returns every mark not yet acknowledged,
// paired or not, in arrival order.
func (q *MarkQueue) Clear() []string {
	all := make([]queuedMark, 0, len(q.paired)+len(q.marks))
	for _, m := range q.paired {
		all = append(all, m)
	}
	all = append(all, q.marks...)
	slices.SortFunc(all, func(a, b queuedMark) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	names := make([]string, len(all))
	for i, m := range all {
		names[i] = m.name
	}
	q.Reset()
	return names
}

// Reset empties both queues without returning anything.
func (q *MarkQueue) Reset() {
	q.items = nil
	q.marks = nil
	clear(q.paired)
}

// PendingAudio returns the number of items waiting for a mark.
func (q *MarkQueue) PendingAudio() int {
	return len(q.items)
}

// PendingMarks returns the number of marks waiting for an item.
func (q *MarkQueue) PendingMarks() int {
	return len(q.marks)
}

// Paired returns the number of paired items not yet completed.
func (q *MarkQueue) Paired() int {
	return len(q.paired)
}
