// Package ds holds the data-structure substrate used by query: an indexed
// min-heap for priority-queue searches, a
// generation-tagged vector for O(1) amortized scratch-array clearing, and a
// rank-select bit vector for compacting sparse id sets.
package ds

// heapEntry is one priority-queue slot: a dense node id, its priority, and
// an arbitrary caller payload (predecessor, hop count, ...).
type heapEntry[T any] struct {
	node    uint32
	prio    float64
	payload T
}

// IndexedMinHeap is a concrete-typed binary min-heap over dense uint32 node
// ids, generalizing the hole-sift binary heaps used for witness search and
// bidirectional Dijkstra to a generic payload with O(1) Contains and
// DecreaseKey via a side-table position index. Avoids interface boxing:
// satisfies the same performance goal as the concrete (node, dist) heaps it
// replaces, while supporting arbitrary per-entry payloads generically.
type IndexedMinHeap[T any] struct {
	entries []heapEntry[T]
	pos     []int32 // pos[node] = index into entries, or -1 if not present
	touched []uint32
}

// NewIndexedMinHeap allocates a heap over node ids in [0, capacity).
func NewIndexedMinHeap[T any](capacity uint32) *IndexedMinHeap[T] {
	pos := make([]int32, capacity)
	for i := range pos {
		pos[i] = -1
	}
	return &IndexedMinHeap[T]{
		entries: make([]heapEntry[T], 0, 256),
		pos:     pos,
	}
}

// Len reports the number of entries currently queued.
func (h *IndexedMinHeap[T]) Len() int { return len(h.entries) }

// Contains reports whether node is currently queued.
func (h *IndexedMinHeap[T]) Contains(node uint32) bool {
	return h.pos[node] >= 0
}

// Push inserts node with the given priority and payload. If node is already
// queued, behaves as DecreaseKey (the lower priority wins; payload is
// updated only when the priority actually improves).
func (h *IndexedMinHeap[T]) Push(node uint32, prio float64, payload T) {
	if i := h.pos[node]; i >= 0 {
		if prio < h.entries[i].prio {
			h.entries[i].prio = prio
			h.entries[i].payload = payload
			h.siftUp(int(i))
		}
		return
	}
	h.entries = append(h.entries, heapEntry[T]{node: node, prio: prio, payload: payload})
	i := len(h.entries) - 1
	h.pos[node] = int32(i)
	h.touched = append(h.touched, node)
	h.siftUp(i)
}

// Peek returns the minimum entry without removing it.
func (h *IndexedMinHeap[T]) Peek() (node uint32, prio float64, payload T, ok bool) {
	if len(h.entries) == 0 {
		return 0, 0, payload, false
	}
	e := h.entries[0]
	return e.node, e.prio, e.payload, true
}

// Pop removes and returns the minimum entry.
func (h *IndexedMinHeap[T]) Pop() (node uint32, prio float64, payload T, ok bool) {
	if len(h.entries) == 0 {
		return 0, 0, payload, false
	}
	top := h.entries[0]
	n := len(h.entries) - 1
	h.pos[top.node] = -1
	if n > 0 {
		h.entries[0] = h.entries[n]
		h.pos[h.entries[0].node] = 0
	}
	h.entries = h.entries[:n]
	if n > 0 {
		h.siftDown(0)
	}
	return top.node, top.prio, top.payload, true
}

// Reset clears the heap in O(touched), not O(capacity), mirroring the
// touched-list reuse pattern the pool-allocated per-query state relies on.
func (h *IndexedMinHeap[T]) Reset() {
	for _, n := range h.touched {
		h.pos[n] = -1
	}
	h.touched = h.touched[:0]
	h.entries = h.entries[:0]
}

func (h *IndexedMinHeap[T]) siftUp(i int) {
	item := h.entries[i]
	for i > 0 {
		parent := (i - 1) / 2
		if item.prio >= h.entries[parent].prio {
			break
		}
		h.entries[i] = h.entries[parent]
		h.pos[h.entries[i].node] = int32(i)
		i = parent
	}
	h.entries[i] = item
	h.pos[item.node] = int32(i)
}

func (h *IndexedMinHeap[T]) siftDown(i int) {
	n := len(h.entries)
	item := h.entries[i]
	for {
		child := 2*i + 1
		if child >= n {
			break
		}
		if right := child + 1; right < n && h.entries[right].prio < h.entries[child].prio {
			child = right
		}
		if item.prio <= h.entries[child].prio {
			break
		}
		h.entries[i] = h.entries[child]
		h.pos[h.entries[i].node] = int32(i)
		i = child
	}
	h.entries[i] = item
	h.pos[item.node] = int32(i)
}
