package taskqueue

import "container/heap"

// delayedHeap is a min-heap of delayed Tasks ordered by (When, Sequence), a
// container/heap.Interface implementation over a slice with a natural
// (non-inverted) Less.
type delayedHeap []Task

func (h delayedHeap) Len() int { return len(h) }

func (h delayedHeap) Less(i, j int) bool { return less(h[i], h[j]) }

func (h delayedHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *delayedHeap) Push(x any) {
	*h = append(*h, x.(Task))
}

func (h *delayedHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// peek returns the earliest-scheduled task without removing it.
func (h delayedHeap) peek() (Task, bool) {
	if len(h) == 0 {
		return Task{}, false
	}
	return h[0], true
}

// popExpired pops and returns every task whose When is <= now, in
// (When, Sequence) order. It does not fast-forward or promote unexpired
// entries; those remain on the heap until a later call finds them expired.
func popExpired(h *delayedHeap, now Tick) []Task {
	var out []Task
	for {
		t, ok := h.peek()
		if !ok || t.when > now {
			break
		}
		out = append(out, heap.Pop(h).(Task))
	}
	return out
}
