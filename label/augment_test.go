package label

import (
	"reflect"
	"testing"
)

func TestMomentMatrixNoDependencies(t *testing.T) {
	L := [][]int{
		{1, 2, 1},
		{1, 2, 1},
		{2, 1, 1},
		{1, 2, 2},
	}
	lm := buildStages(t, 2, L, nil, []float64{0.5, 0.5})

	if lm.D() != 6 {
		t.Fatalf("D = %d, want 6", lm.D())
	}
	want := [][]float64{
		{0.75, 0, 0, 0.75, 0.5, 0.25},
		{0, 0.25, 0.25, 0, 0.25, 0},
		{0, 0.25, 0.25, 0, 0.25, 0},
		{0.75, 0, 0, 0.75, 0.5, 0.25},
		{0.5, 0.25, 0.25, 0.5, 0.75, 0},
		{0.25, 0, 0, 0.25, 0, 0.25},
	}
	o, err := lm.O()
	if err != nil {
		t.Fatalf("O: %v", err)
	}
	for i := range want {
		for j := range want[i] {
			if !approx(o.At(i, j), want[i][j], 1e-12) {
				t.Errorf("O[%d][%d] = %v, want %v", i, j, o.At(i, j), want[i][j])
			}
		}
	}
}

func TestAugmentWithDependencies(t *testing.T) {
	deps := [][2]int{{0, 1}, {1, 2}, {2, 0}, {0, 3}}
	L := [][]int{
		{1, 1, 1, 2, 1},
		{1, 2, 2, 1, 0},
		{1, 1, 1, 1, 0},
	}
	lm := buildStages(t, 2, L, deps, []float64{0.5, 0.5})

	// 10 singleton columns, 2^3 for the triangle clique, 2^2 for {0,3}.
	if lm.D() != 22 {
		t.Fatalf("D = %d, want 22", lm.D())
	}

	nnz := 0
	for _, row := range lm.aug {
		nnz += row.NNZ()
	}
	if nnz != 19 {
		t.Errorf("total nonzeros = %d, want 19", nnz)
	}

	wantRows := [][]int{
		{0, 2, 4, 7, 8, 10, 19},
		{0, 3, 5, 6, 13, 18},
		{0, 2, 4, 6, 10, 18},
	}
	for i, want := range wantRows {
		if got := lm.aug[i].Sorted(); !reflect.DeepEqual(got, want) {
			t.Errorf("row %d indices = %v, want %v", i, got, want)
		}
	}
}

func TestAugmentAbstainSkipsJointColumn(t *testing.T) {
	// One abstaining member keeps the whole joint block unset.
	lm := buildStages(t, 2, [][]int{{1, 0}}, [][2]int{{0, 1}}, []float64{0.5, 0.5})
	if lm.D() != 8 {
		t.Fatalf("D = %d, want 8", lm.D())
	}
	if got := lm.aug[0].Sorted(); !reflect.DeepEqual(got, []int{0}) {
		t.Errorf("row indices = %v, want [0]", got)
	}
}

func TestMaskNoDependencies(t *testing.T) {
	L := [][]int{
		{1, 2, 1},
		{1, 0, 1},
	}
	lm := buildStages(t, 2, L, nil, []float64{0.5, 0.5})
	mask, err := lm.Mask()
	if err != nil {
		t.Fatalf("Mask: %v", err)
	}
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			want := i/2 != j/2 // only cross-LF entries stay free
			if mask[i][j] != want {
				t.Errorf("mask[%d][%d] = %v, want %v", i, j, mask[i][j], want)
			}
		}
	}
}

func TestMaskWithDependencies(t *testing.T) {
	deps := [][2]int{{0, 1}, {1, 2}, {2, 0}, {0, 3}}
	L := [][]int{
		{1, 1, 1, 2, 1},
		{1, 2, 2, 1, 0},
		{1, 1, 1, 1, 0},
	}
	lm := buildStages(t, 2, L, deps, []float64{0.5, 0.5})
	mask, err := lm.Mask()
	if err != nil {
		t.Fatalf("Mask: %v", err)
	}

	tests := []struct {
		name string
		i, j int
		want bool
	}{
		// LF1 and LF2 share the triangle clique.
		{"lf1 vs lf2", 2, 4, false},
		// LF0 and LF4 share no clique.
		{"lf0 vs lf4", 0, 8, true},
		// Triangle joint block against one of its members.
		{"joint vs lf1", 10, 2, false},
		// Triangle joint block against an LF outside the clique but inside
		// another clique of a shared member.
		{"joint vs lf3", 10, 6, true},
		// {0,3} joint block against LF3.
		{"pair joint vs lf3", 18, 6, false},
		// The two joint blocks live in different tree nodes.
		{"joint vs joint", 10, 18, true},
		{"diagonal", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if mask[tt.i][tt.j] != tt.want {
				t.Errorf("mask[%d][%d] = %v, want %v", tt.i, tt.j, mask[tt.i][tt.j], tt.want)
			}
		})
	}
}
