package xindex

import "container/heap"

// mergedIterator OR-merges k sorted IterablePostings into one, summing tf
// (and per-field frequencies, if every input carries them) whenever two or
// more inputs are positioned on the same id. Grounded on the galloping
// intersect routine in dgryski-go-postings, generalized from AND to OR per
// spec.md §4.2 and the tf-summation requirement of §8 invariant 7.
type mergedIterator struct {
	inputs     []IterablePosting
	heap       *postingHeap
	fieldCount int
	id         uint32
	tf         uint32
	ff         []uint32
	started    bool
}

type heapItem struct {
	id   uint32
	idx  int // index into mergedIterator.inputs, used for deterministic tie order
}

type postingHeap []heapItem

func (h postingHeap) Len() int { return len(h) }
func (h postingHeap) Less(i, j int) bool {
	if h[i].id != h[j].id {
		return h[i].id < h[j].id
	}
	return h[i].idx < h[j].idx
}
func (h postingHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *postingHeap) Push(x any)        { *h = append(*h, x.(heapItem)) }
func (h *postingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// NewMergedIterator returns an OR-merge over inputs. fieldCount must equal
// the field width shared by every input that reports FieldFrequencies, or 0
// if none do.
func NewMergedIterator(inputs []IterablePosting, fieldCount int) IterablePosting {
	m := &mergedIterator{inputs: inputs, fieldCount: fieldCount}
	h := make(postingHeap, 0, len(inputs))
	for i, in := range inputs {
		id := in.Next()
		if id != EOL {
			h = append(h, heapItem{id: id, idx: i})
		}
	}
	heap.Init(&h)
	m.heap = &h
	return m
}

func (m *mergedIterator) Next() uint32 {
	if m.heap.Len() == 0 {
		return EOL
	}
	top := (*m.heap)[0].id
	m.id = top
	m.tf = 0
	if m.fieldCount > 0 {
		m.ff = make([]uint32, m.fieldCount)
	} else {
		m.ff = nil
	}
	for m.heap.Len() > 0 && (*m.heap)[0].id == top {
		item := heap.Pop(m.heap).(heapItem)
		in := m.inputs[item.idx]
		m.tf += in.Frequency()
		if m.fieldCount > 0 {
			ff := in.FieldFrequencies()
			for i := 0; i < m.fieldCount && i < len(ff); i++ {
				m.ff[i] += ff[i]
			}
		}
		next := in.Next()
		if next != EOL {
			heap.Push(m.heap, heapItem{id: next, idx: item.idx})
		}
	}
	m.started = true
	return m.id
}

func (m *mergedIterator) NextAfter(target uint32) uint32 {
	if m.started && m.id >= target {
		return m.id
	}
	for {
		id := m.Next()
		if id == EOL || id >= target {
			return id
		}
	}
}

func (m *mergedIterator) ID() uint32                 { return m.id }
func (m *mergedIterator) Frequency() uint32           { return m.tf }
func (m *mergedIterator) FieldFrequencies() []uint32 { return m.ff }

func (m *mergedIterator) Close() error {
	var first error
	for _, in := range m.inputs {
		if err := in.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
