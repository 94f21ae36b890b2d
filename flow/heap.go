package flow

import (
	"container/heap"

	"loov.dev/profileview/profile"
)

// cursor is the next unconsumed flow marker of a thread.
type cursor struct {
	thread int
	next   int
	start  profile.Time
}

// cursorHeap orders threads by the start time of their next flow marker.
// Equal start times pop the lower thread index first.
type cursorHeap []cursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, k int) bool {
	if h[i].start == h[k].start {
		return h[i].thread < h[k].thread
	}
	return h[i].start < h[k].start
}

func (h cursorHeap) Swap(i, k int) { h[i], h[k] = h[k], h[i] }

func (h *cursorHeap) Push(x any) { *h = append(*h, x.(cursor)) }

func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// flowMarkerQueue merges per-thread flow marker lists by start time.
type flowMarkerQueue struct {
	threads [][]FlowMarker
	heap    cursorHeap
}

func newFlowMarkerQueue(threads [][]FlowMarker) *flowMarkerQueue {
	q := &flowMarkerQueue{threads: threads}
	for thread, markers := range threads {
		if len(markers) == 0 {
			continue
		}
		q.heap = append(q.heap, cursor{thread: thread, start: markers[0].StartTime})
	}
	heap.Init(&q.heap)
	return q
}

func (q *flowMarkerQueue) Len() int { return q.heap.Len() }

// Next returns the earliest unconsumed flow marker and advances its thread.
func (q *flowMarkerQueue) Next() FlowMarkerRef {
	top := &q.heap[0]
	ref := FlowMarkerRef{ThreadIndex: top.thread, FlowMarkerIndex: top.next}

	top.next++
	if markers := q.threads[top.thread]; top.next < len(markers) {
		top.start = markers[top.next].StartTime
		heap.Fix(&q.heap, 0)
	} else {
		heap.Remove(&q.heap, 0)
	}
	return ref
}
