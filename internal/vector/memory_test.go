package vector

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	ids := []string{"a", "b", "c"}
	if err := idx.Add(ctx, ids, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{2, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("unexpected order: %s, %s", results[0].ID, results[1].ID)
	}
	if results[0].Score < 0.999 {
		t.Errorf("cosine of parallel vectors should be 1, got %f", results[0].Score)
	}
}

func TestMemoryIndex_InfersDimensions(t *testing.T) {
	idx, _ := NewMemoryIndex(0)
	ctx := context.Background()
	if err := idx.Add(ctx, []string{"x"}, [][]float32{{1, 2}}); err != nil {
		t.Fatal(err)
	}
	if idx.Dimensions() != 2 {
		t.Errorf("Dimensions=%d", idx.Dimensions())
	}
	err := idx.Add(ctx, []string{"y"}, [][]float32{{1, 2, 3}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch on search, got %v", err)
	}
}

func TestMemoryIndex_AddReplacesExistingID(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x"}, [][]float32{{1, 0}})
	_ = idx.Add(ctx, []string{"x"}, [][]float32{{0, 1}})
	if idx.Size() != 1 {
		t.Fatalf("expected size 1, got %d", idx.Size())
	}
	res, _ := idx.Search(ctx, []float32{0, 1}, 1)
	if len(res) != 1 || res[0].Score < 0.999 {
		t.Errorf("vector was not replaced: %+v", res)
	}
}

func TestMemoryIndex_Remove(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x", "y"}, [][]float32{{1, 0}, {0, 1}})
	if err := idx.Remove(ctx, []string{"x"}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 {
		t.Errorf("expected size 1, got %d", idx.Size())
	}
	_ = idx.Add(ctx, []string{"y"}, [][]float32{{1, 0}})
	if idx.Size() != 1 {
		t.Errorf("re-adding a kept ID should replace it, size=%d", idx.Size())
	}
}

func TestMemoryIndex_SearchEmpty(t *testing.T) {
	idx, _ := NewMemoryIndex(0)
	res, err := idx.Search(context.Background(), []float32{1, 2, 3}, 5)
	if err != nil || res != nil {
		t.Errorf("got %v, %v", res, err)
	}
}
