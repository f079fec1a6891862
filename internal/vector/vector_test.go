package vector

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 0}, []float32{5, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		if got := CosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: got %f, want %f", tt.name, got, tt.want)
		}
	}
}

func TestDecode_rejectsPartialFloat(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for 3-byte payload")
	}
	v, err := Decode(Encode([]float32{1.5, -2}))
	if err != nil || len(v) != 2 || v[0] != 1.5 || v[1] != -2 {
		t.Errorf("got %v, %v", v, err)
	}
}

func TestTopK(t *testing.T) {
	top := NewTopK(3)
	for i, s := range []float64{0.1, 0.9, 0.5, 0.7, 0.3} {
		top.Push(string(rune('a'+i)), s)
	}
	res := top.Results()
	if len(res) != 3 {
		t.Fatalf("len=%d", len(res))
	}
	want := []string{"b", "d", "c"}
	for i, r := range res {
		if r.ID != want[i] {
			t.Errorf("res[%d]=%s, want %s", i, r.ID, want[i])
		}
	}
	if len(NewTopK(0).Results()) != 0 {
		t.Error("k=0 should collect nothing")
	}
}
