package vector

import (
	"container/heap"
	"sort"
)

// TopK keeps the k highest-scoring results seen so far in O(k) memory.
type TopK struct {
	k int
	h resultHeap
}

// NewTopK returns a collector for the k best results. k <= 0 collects nothing.
func NewTopK(k int) *TopK {
	if k < 0 {
		k = 0
	}
	return &TopK{k: k, h: make(resultHeap, 0, k)}
}

// Push offers a candidate.
func (t *TopK) Push(id string, score float64) {
	if t.k == 0 {
		return
	}
	if len(t.h) < t.k {
		heap.Push(&t.h, &Result{ID: id, Score: score})
		return
	}
	if score > t.h[0].Score {
		t.h[0] = &Result{ID: id, Score: score}
		heap.Fix(&t.h, 0)
	}
}

// Results returns the collected results sorted by descending score, ties by ID.
func (t *TopK) Results() []*Result {
	out := append([]*Result(nil), t.h...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// resultHeap is a min-heap on Score.
type resultHeap []*Result

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)        { *h = append(*h, x.(*Result)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
