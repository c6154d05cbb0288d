// Package sparse provides sparse representations of binary indicator rows
// and integer label matrices.
package sparse

import "sort"

// BinaryRow is a sparse binary vector: the listed indices hold 1, all other
// positions hold 0.
type BinaryRow struct {
	Indices []int
	Dim     int
}

// NewBinaryRow creates an empty row with the given dimension.
func NewBinaryRow(dim int) BinaryRow {
	return BinaryRow{Dim: dim}
}

// Set marks the given index as active. Duplicate sets are ignored.
func (r *BinaryRow) Set(idx int) {
	for _, existing := range r.Indices {
		if existing == idx {
			return
		}
	}
	r.Indices = append(r.Indices, idx)
}

// Has reports whether the given index is active.
func (r BinaryRow) Has(idx int) bool {
	for _, existing := range r.Indices {
		if existing == idx {
			return true
		}
	}
	return false
}

// NNZ returns the number of active indices.
func (r BinaryRow) NNZ() int {
	return len(r.Indices)
}

// Sorted returns the active indices in ascending order without mutating r.
func (r BinaryRow) Sorted() []int {
	out := make([]int, len(r.Indices))
	copy(out, r.Indices)
	sort.Ints(out)
	return out
}

// ToDense converts to a dense float64 slice.
func (r BinaryRow) ToDense() []float64 {
	dense := make([]float64, r.Dim)
	for _, idx := range r.Indices {
		if idx < r.Dim {
			dense[idx] = 1
		}
	}
	return dense
}

// Equal reports whether two rows describe the same vector.
func (r BinaryRow) Equal(other BinaryRow) bool {
	if r.Dim != other.Dim || len(r.Indices) != len(other.Indices) {
		return false
	}
	a, b := r.Sorted(), other.Sorted()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Matrix is a sparse integer matrix in coordinate form. Entries not listed
// are zero. It exists so that callers holding sparse label data must densify
// explicitly before handing the matrix to the label model.
type Matrix struct {
	Rows int   `json:"rows"`
	Cols int   `json:"cols"`
	I    []int `json:"i"`
	J    []int `json:"j"`
	V    []int `json:"v"`
}

// Dense expands the matrix into row-major [][]int. Out-of-range coordinates
// are ignored.
func (m Matrix) Dense() [][]int {
	dense := make([][]int, m.Rows)
	for i := 0; i < m.Rows; i++ {
		dense[i] = make([]int, m.Cols)
	}
	for idx := range m.I {
		i, j := m.I[idx], m.J[idx]
		if i >= 0 && i < m.Rows && j >= 0 && j < m.Cols {
			dense[i][j] = m.V[idx]
		}
	}
	return dense
}
