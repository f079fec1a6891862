package embedding

import (
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Get("a")               // a is now most recent
	c.Set("c", []float32{6}) // evicts b
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestEmbeddingCache_returnsCopies(t *testing.T) {
	c := NewEmbeddingCache(1)
	in := []float32{1, 2}
	c.Set("k", in)
	in[0] = 9
	got, _ := c.Get("k")
	got[1] = 9
	again, _ := c.Get("k")
	if again[0] != 1 || again[1] != 2 {
		t.Errorf("cached value was mutated: %v", again)
	}
}

func TestEmbeddingCache_skipsEmptyAndDisabled(t *testing.T) {
	c := NewEmbeddingCache(2)
	c.Set("empty", nil)
	if _, ok := c.Get("empty"); ok {
		t.Error("empty embeddings should not be cached")
	}
	off := NewEmbeddingCache(0)
	off.Set("k", []float32{1})
	if off.Len() != 0 {
		t.Error("zero capacity cache should stay empty")
	}
}
