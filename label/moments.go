package label

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"
)

// generateO computes the empirical second-moment matrix
// O = L_aug^T L_aug / n over the stored augmented matrix. O is symmetric
// with entries in [0,1]: O[i][j] is the fraction of rows where augmented
// columns i and j are both set.
func (lm *Model) generateO() error {
	if lm.stage < stageAugmented {
		return fmt.Errorf("%w: moment matrix before augmentation", ErrState)
	}
	laug := mat.NewDense(lm.n, lm.d, nil)
	for i, row := range lm.aug {
		laug.SetRow(i, row.ToDense())
	}
	o := mat.NewDense(lm.d, lm.d, nil)
	o.Mul(laug.T(), laug)
	o.Scale(1/float64(lm.n), o)
	lm.o = o
	lm.oInv = nil
	return nil
}

// buildMask marks which entries of O are free parameters of the moment-
// matching loss. Entries whose column blocks share a junction tree node are
// structurally determined and excluded, including the full diagonal.
func (lm *Model) buildMask() error {
	if lm.o == nil {
		return fmt.Errorf("%w: mask before moment matrix", ErrState)
	}
	lm.mask = make([][]bool, lm.d)
	for i := 0; i < lm.d; i++ {
		lm.mask[i] = make([]bool, lm.d)
		for j := 0; j < lm.d; j++ {
			lm.mask[i][j] = true
		}
	}
	for _, bi := range lm.cData {
		for _, bj := range lm.cData {
			if !sharesNode(bi.nodes, bj.nodes) {
				continue
			}
			for i := bi.start; i < bi.end; i++ {
				for j := bj.start; j < bj.end; j++ {
					lm.mask[i][j] = false
					lm.mask[j][i] = false
				}
			}
		}
	}
	lm.stage = stageMask
	return nil
}

func sharesNode(a, b []int) bool {
	for _, x := range a {
		if containsInt(b, x) {
			return true
		}
	}
	return false
}

// generateOInv inverts O for the inverse-covariance parameterization. A
// rank-deficient O is surfaced as a warning and retried with a small ridge
// on the diagonal.
func (lm *Model) generateOInv() error {
	if lm.o == nil {
		return fmt.Errorf("%w: inverse before moment matrix", ErrState)
	}
	inv := mat.NewDense(lm.d, lm.d, nil)
	if err := inv.Inverse(lm.o); err != nil {
		slog.Warn("moment matrix is rank deficient, adding ridge", "d", lm.d, "err", err)
		ridged := mat.DenseCopyOf(lm.o)
		for i := 0; i < lm.d; i++ {
			ridged.Set(i, i, ridged.At(i, i)+ridgeEps)
		}
		if err := inv.Inverse(ridged); err != nil {
			return fmt.Errorf("label: invert moment matrix: %w", err)
		}
	}
	lm.oInv = inv
	return nil
}

// ridgeEps is the diagonal boost applied when O cannot be inverted as is.
const ridgeEps = 1e-6

// O returns a copy of the empirical second-moment matrix.
func (lm *Model) O() (*mat.Dense, error) {
	if lm.o == nil {
		return nil, fmt.Errorf("%w: moment matrix not computed", ErrState)
	}
	return mat.DenseCopyOf(lm.o), nil
}

// Mask returns a copy of the structural mask over O.
func (lm *Model) Mask() ([][]bool, error) {
	if lm.mask == nil {
		return nil, fmt.Errorf("%w: mask not built", ErrState)
	}
	out := make([][]bool, len(lm.mask))
	for i, row := range lm.mask {
		out[i] = append([]bool(nil), row...)
	}
	return out, nil
}
