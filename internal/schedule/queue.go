package schedule

import (
	"container/heap"
	"time"
)

// Func is invoked when a timer fires. at is the timer's deadline, not the
// instant passed to Advance, so chained timers stay phase-locked.
type Func func(at time.Time)

// entry is a single pending timer.
type entry struct {
	key   string
	at    time.Time
	seq   uint64
	fn    Func
	index int
}

// entryHeap orders entries by deadline, then by scheduling order.
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Queue is a keyed logical timer queue.
type Queue struct {
	heap    entryHeap
	pending map[string]*entry
	seq     uint64

	fired     uint64
	cancelled uint64
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		pending: make(map[string]*entry),
	}
}

// Schedule arms the timer for key to fire at the given deadline.
// An existing timer for the same key is replaced.
func (q *Queue) Schedule(key string, at time.Time, fn Func) {
	if old, ok := q.pending[key]; ok {
		q.remove(old)
	}
	q.seq++
	e := &entry{key: key, at: at, seq: q.seq, fn: fn}
	heap.Push(&q.heap, e)
	q.pending[key] = e
}

// Cancel disarms the timer for key. It reports whether a timer was pending.
func (q *Queue) Cancel(key string) bool {
	e, ok := q.pending[key]
	if !ok {
		return false
	}
	q.remove(e)
	q.cancelled++
	return true
}

// CancelAll disarms every pending timer.
func (q *Queue) CancelAll() int {
	n := len(q.pending)
	q.heap = q.heap[:0]
	q.pending = make(map[string]*entry)
	q.cancelled += uint64(n)
	return n
}

// Pending reports whether a timer is armed for key.
func (q *Queue) Pending(key string) bool {
	_, ok := q.pending[key]
	return ok
}

// Deadline returns the deadline of the timer armed for key.
func (q *Queue) Deadline(key string) (time.Time, bool) {
	e, ok := q.pending[key]
	if !ok {
		return time.Time{}, false
	}
	return e.at, true
}

// Next returns the earliest pending deadline.
func (q *Queue) Next() (time.Time, bool) {
	if len(q.heap) == 0 {
		return time.Time{}, false
	}
	return q.heap[0].at, true
}

// Len returns the number of pending timers.
func (q *Queue) Len() int {
	return len(q.pending)
}

// Advance fires, in deadline order, every timer due at or before now.
// Timers scheduled by a callback are eligible in the same call when their
// deadline is also due. It returns the number of timers fired.
func (q *Queue) Advance(now time.Time) int {
	n := 0
	for len(q.heap) > 0 {
		top := q.heap[0]
		if top.at.After(now) {
			break
		}
		heap.Pop(&q.heap)
		delete(q.pending, top.key)
		q.fired++
		n++
		top.fn(top.at)
	}
	return n
}

// Stats reports lifetime counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Pending:   len(q.pending),
		Fired:     q.fired,
		Cancelled: q.cancelled,
	}
}

// Stats contains queue counters.
type Stats struct {
	Pending   int
	Fired     uint64
	Cancelled uint64
}

// remove takes e out of the heap and the key index.
func (q *Queue) remove(e *entry) {
	if e.index >= 0 && e.index < len(q.heap) && q.heap[e.index] == e {
		heap.Remove(&q.heap, e.index)
	}
	if cur, ok := q.pending[e.key]; ok && cur == e {
		delete(q.pending, e.key)
	}
}
