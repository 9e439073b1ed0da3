package ds

import (
	"math/bits"
	"sort"
)

const wordSize = 64

// RankSelectMap is a fixed-size bit vector with an O(1) rank query, a
// building block for remapping ids when a sparse subset survives: after
// marking the surviving ids, Rank(i) gives the compacted index of id i
// directly, without a full id-to-index map. No other package in this module
// calls it.
type RankSelectMap struct {
	bits    []uint64
	prefix  []uint32 // prefix[w] = popcount of all words before word w
	n       int
	built   bool
	onCount int
}

// NewRankSelectMap allocates a map over ids in [0, n).
func NewRankSelectMap(n int) *RankSelectMap {
	return &RankSelectMap{
		bits: make([]uint64, (n+wordSize-1)/wordSize),
		n:    n,
	}
}

// Set marks id i as present. Must be called before Build.
func (m *RankSelectMap) Set(i int) {
	m.bits[i/wordSize] |= 1 << uint(i%wordSize)
	m.built = false
}

// Get reports whether id i is present.
func (m *RankSelectMap) Get(i int) bool {
	return m.bits[i/wordSize]&(1<<uint(i%wordSize)) != 0
}

// Build computes the word-prefix popcount table. Call once after all Set
// calls and before any Rank or Compact query.
func (m *RankSelectMap) Build() {
	m.prefix = make([]uint32, len(m.bits)+1)
	var total uint32
	for w, word := range m.bits {
		m.prefix[w] = total
		total += uint32(bits.OnesCount64(word))
	}
	m.prefix[len(m.bits)] = total
	m.onCount = int(total)
	m.built = true
}

// Rank returns the number of set ids strictly below i: the compacted index
// that id i would occupy if it is present.
func (m *RankSelectMap) Rank(i int) int {
	w := i / wordSize
	bit := uint(i % wordSize)
	r := int(m.prefix[w])
	if bit > 0 {
		r += bits.OnesCount64(m.bits[w] & (1<<bit - 1))
	}
	return r
}

// Compact returns the compacted index for id i and whether i is present at
// all. Panics if Build has not been called since the last Set.
func (m *RankSelectMap) Compact(i int) (int, bool) {
	if !m.built {
		panic("ds: RankSelectMap.Compact called before Build")
	}
	if !m.Get(i) {
		return 0, false
	}
	return m.Rank(i), true
}

// Count returns the number of set ids (the compacted size).
func (m *RankSelectMap) Count() int {
	return m.onCount
}

// Select returns the original id of the k-th set bit (0-indexed), the
// inverse of Rank/Compact — recovers an original id from a compacted index.
// Panics if Build has not been called since the last Set, or if k is out of
// [0, Count()).
func (m *RankSelectMap) Select(k int) int {
	if !m.built {
		panic("ds: RankSelectMap.Select called before Build")
	}
	if k < 0 || k >= m.onCount {
		panic("ds: RankSelectMap.Select: index out of range")
	}
	w := sort.Search(len(m.bits), func(w int) bool { return int(m.prefix[w+1]) > k })
	remaining := k - int(m.prefix[w])
	word := m.bits[w]
	for bit := 0; bit < wordSize; bit++ {
		if word&(1<<uint(bit)) != 0 {
			if remaining == 0 {
				return w*wordSize + bit
			}
			remaining--
		}
	}
	panic("ds: RankSelectMap.Select: inconsistent state")
}
