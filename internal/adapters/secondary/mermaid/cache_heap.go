package mermaid

import (
	"time"
)

// heapEntry is one slot of the LRU priority queue
type heapEntry struct {
	key        string
	lastAccess time.Time
	index      int
}

// cacheHeap is a min-heap on last access time; the root is evicted first
type cacheHeap []*heapEntry

func (h cacheHeap) Len() int { return len(h) }

func (h cacheHeap) Less(i, j int) bool {
	return h[i].lastAccess.Before(h[j].lastAccess)
}

func (h cacheHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *cacheHeap) Push(x any) {
	entry := x.(*heapEntry)
	entry.index = len(*h)
	*h = append(*h, entry)
}

func (h *cacheHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*h = old[0 : n-1]
	return entry
}
