package sparse

import (
	"reflect"
	"testing"
)

func TestBinaryRow(t *testing.T) {
	r := NewBinaryRow(6)
	r.Set(4)
	r.Set(0)
	r.Set(4) // duplicate

	if got := r.NNZ(); got != 2 {
		t.Errorf("NNZ = %d, want 2", got)
	}
	if !r.Has(0) || !r.Has(4) || r.Has(1) {
		t.Errorf("Has gave wrong membership for %v", r.Indices)
	}
	if got := r.Sorted(); !reflect.DeepEqual(got, []int{0, 4}) {
		t.Errorf("Sorted = %v, want [0 4]", got)
	}
	if got := r.ToDense(); !reflect.DeepEqual(got, []float64{1, 0, 0, 0, 1, 0}) {
		t.Errorf("ToDense = %v", got)
	}
}

func TestBinaryRowEqual(t *testing.T) {
	a := NewBinaryRow(4)
	a.Set(1)
	a.Set(3)
	b := NewBinaryRow(4)
	b.Set(3)
	b.Set(1)
	if !a.Equal(b) {
		t.Error("rows with the same indices in different order should be equal")
	}
	b.Set(0)
	if a.Equal(b) {
		t.Error("rows with different indices should not be equal")
	}
}

func TestMatrixDense(t *testing.T) {
	m := Matrix{
		Rows: 2,
		Cols: 3,
		I:    []int{0, 1, 1, 5},
		J:    []int{0, 1, 2, 0},
		V:    []int{1, 2, 1, 9},
	}
	got := m.Dense()
	want := [][]int{
		{1, 0, 0},
		{0, 2, 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dense = %v, want %v", got, want)
	}
}
