// Package label implements a generative label model that aggregates noisy,
// conflicting, and correlated labeling-function (LF) votes into one
// probabilistic label per data point, without observing ground truth.
//
// The matrix L holds one row per data point and one column per LF. Entry
// values are 0 for abstain and 1..k for a class vote. Declared dependencies
// between LFs are modeled jointly through a junction tree over the LF
// dependency graph; LF accuracies are estimated by matching the model's
// second moments against the observed co-occurrence matrix.
//
//	m, _ := label.New(2)
//	err := m.Train(L, &label.TrainOptions{ClassBalance: []float64{0.5, 0.5}})
//	probs, _ := m.PredictProba(L)
package label

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/HazyResearch/ddlite/internal/sparse"
)

// stage tracks training pipeline progress. Stages must run in order; the
// guards below return ErrState otherwise.
type stage int

const (
	stageNew stage = iota
	stageConstants
	stageDependencies
	stageAugmented
	stageMask
	stageParams
	stageTrained
)

// blockInfo describes one column block of the augmented matrix and the
// junction tree nodes it belongs to. Two blocks sharing a node have
// structurally determined co-occurrence, so the mask excludes their entries
// from the moment-matching loss.
type blockInfo struct {
	start, end int
	nodes      []int
}

// Model is a generative label model over k classes. A Model is built for one
// training session at a time; it is not safe for concurrent use.
type Model struct {
	k int // number of classes
	n int // data points
	m int // labeling functions
	d int // augmented matrix columns

	deps  [][2]int
	tree  *cliqueTree
	cData []blockInfo

	p []float64 // class balance, length k

	aug  []sparse.BinaryRow
	o    *mat.Dense
	oInv *mat.Dense
	mask [][]bool

	precInit []float64 // resolved per-LF
	muInit   *mat.Dense
	mu       *mat.Dense
	z        *mat.Dense
	q        *mat.Dense
	invForm  bool

	stage stage
	rng   *rand.Rand
}

// New creates an untrained model for k classes (k >= 2).
func New(k int) (*Model, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: need at least 2 classes, got %d", ErrConfig, k)
	}
	return &Model{k: k}, nil
}

// K returns the number of classes.
func (lm *Model) K() int { return lm.k }

// N returns the number of data points of the last training matrix.
func (lm *Model) N() int { return lm.n }

// M returns the number of labeling functions.
func (lm *Model) M() int { return lm.m }

// D returns the augmented matrix width.
func (lm *Model) D() int { return lm.d }

// checkMatrix validates the label matrix shape and value range.
func (lm *Model) checkMatrix(L [][]int) error {
	if len(L) == 0 || len(L[0]) == 0 {
		return fmt.Errorf("%w: empty matrix", ErrInvalidInput)
	}
	width := len(L[0])
	for i, row := range L {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d entries, want %d", ErrInvalidInput, i, len(row), width)
		}
		for j, v := range row {
			if v < 0 || v > lm.k {
				return fmt.Errorf("%w: L[%d][%d] = %d outside [0,%d]", ErrInvalidInput, i, j, v, lm.k)
			}
		}
	}
	return nil
}

// setConstants derives n and m from the matrix shape.
func (lm *Model) setConstants(L [][]int) error {
	if err := lm.checkMatrix(L); err != nil {
		return err
	}
	lm.n = len(L)
	lm.m = len(L[0])
	if lm.stage < stageConstants {
		lm.stage = stageConstants
	}
	return nil
}

// setDependencies builds the junction tree from dependency edges and lays
// out the augmented column blocks. Must follow setConstants.
func (lm *Model) setDependencies(deps [][2]int) error {
	if lm.stage < stageConstants {
		return fmt.Errorf("%w: dependencies set before constants", ErrState)
	}
	tree, err := buildCliqueTree(lm.m, deps)
	if err != nil {
		return err
	}
	lm.deps = deps
	lm.tree = tree
	lm.invForm = len(deps) > 0
	lm.layoutBlocks()
	lm.stage = stageDependencies
	return nil
}

// setClassBalance sets p from an explicit vector, estimates it from dev
// labels by relative frequency, or falls back to uniform.
func (lm *Model) setClassBalance(balance []float64, devLabels []int) error {
	switch {
	case balance != nil:
		if len(balance) != lm.k {
			return fmt.Errorf("%w: class balance has length %d, want %d", ErrConfig, len(balance), lm.k)
		}
		sum := 0.0
		for _, v := range balance {
			if v < 0 {
				return fmt.Errorf("%w: negative class balance entry %v", ErrConfig, v)
			}
			sum += v
		}
		if sum < 1-1e-6 || sum > 1+1e-6 {
			return fmt.Errorf("%w: class balance sums to %v, want 1", ErrConfig, sum)
		}
		lm.p = append([]float64(nil), balance...)
	case devLabels != nil:
		counts := make([]int, lm.k)
		for _, y := range devLabels {
			if y < 1 || y > lm.k {
				return fmt.Errorf("%w: dev label %d outside [1,%d]", ErrConfig, y, lm.k)
			}
			counts[y-1]++
		}
		lm.p = make([]float64, lm.k)
		for c, cnt := range counts {
			lm.p[c] = float64(cnt) / float64(len(devLabels))
		}
	default:
		lm.p = make([]float64, lm.k)
		for c := range lm.p {
			lm.p[c] = 1 / float64(lm.k)
		}
	}
	return nil
}

// ClassBalance returns the class prior in use.
func (lm *Model) ClassBalance() []float64 {
	return append([]float64(nil), lm.p...)
}

// Mu returns a copy of the learned parameter matrix (d rows, k columns), or
// an error when called before training.
func (lm *Model) Mu() (*mat.Dense, error) {
	if lm.mu == nil {
		return nil, fmt.Errorf("%w: parameters not learned yet", ErrState)
	}
	return mat.DenseCopyOf(lm.mu), nil
}

// Z returns a copy of the learned inverse-form parameters, or an error when
// the model was trained without dependencies.
func (lm *Model) Z() (*mat.Dense, error) {
	if lm.z == nil {
		return nil, fmt.Errorf("%w: no inverse-form parameters", ErrState)
	}
	return mat.DenseCopyOf(lm.z), nil
}

// modelJSON is the serialized form of a trained model. The clique tree and
// augmented layout are rebuilt deterministically from k and deps on load.
type modelJSON struct {
	K    int         `json:"k"`
	M    int         `json:"m"`
	D    int         `json:"d"`
	Deps [][2]int    `json:"deps,omitempty"`
	P    []float64   `json:"class_balance"`
	Mu   [][]float64 `json:"mu"`
	Z    [][]float64 `json:"z,omitempty"`
}

// MarshalModel serializes a trained model to JSON.
func MarshalModel(lm *Model) ([]byte, error) {
	if lm.stage < stageTrained {
		return nil, fmt.Errorf("%w: cannot serialize an untrained model", ErrState)
	}
	mj := modelJSON{
		K:    lm.k,
		M:    lm.m,
		D:    lm.d,
		Deps: lm.deps,
		P:    lm.p,
		Mu:   denseToRows(lm.mu),
	}
	if lm.z != nil {
		mj.Z = denseToRows(lm.z)
	}
	return json.MarshalIndent(mj, "", "  ")
}

// UnmarshalModel reconstructs a trained model from JSON.
func UnmarshalModel(data []byte) (*Model, error) {
	var mj modelJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return nil, fmt.Errorf("label: decode model: %w", err)
	}
	lm, err := New(mj.K)
	if err != nil {
		return nil, err
	}
	lm.n = 0
	lm.m = mj.M
	lm.stage = stageConstants
	if err := lm.setDependencies(mj.Deps); err != nil {
		return nil, err
	}
	if mj.D != lm.d {
		return nil, fmt.Errorf("%w: model dimension %d does not match layout %d", ErrInvalidInput, mj.D, lm.d)
	}
	if err := lm.setClassBalance(mj.P, nil); err != nil {
		return nil, err
	}
	lm.mu, err = rowsToDense(mj.Mu, lm.d, lm.k)
	if err != nil {
		return nil, err
	}
	if mj.Z != nil {
		lm.z, err = rowsToDense(mj.Z, lm.d, lm.k)
		if err != nil {
			return nil, err
		}
	}
	lm.stage = stageTrained
	return lm, nil
}

func denseToRows(d *mat.Dense) [][]float64 {
	r, c := d.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = make([]float64, c)
		for j := 0; j < c; j++ {
			out[i][j] = d.At(i, j)
		}
	}
	return out
}

func rowsToDense(rows [][]float64, r, c int) (*mat.Dense, error) {
	if len(rows) != r {
		return nil, fmt.Errorf("%w: matrix has %d rows, want %d", ErrInvalidInput, len(rows), r)
	}
	out := mat.NewDense(r, c, nil)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("%w: row %d has %d entries, want %d", ErrInvalidInput, i, len(row), c)
		}
		out.SetRow(i, row)
	}
	return out, nil
}
