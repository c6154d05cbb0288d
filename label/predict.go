package label

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	probFloor = 0.01
	probCeil  = 0.99
)

// conditionalProbs expands the learned parameters into the full table of
// conditional vote probabilities P(lf output | Y). The table has m*(k+1)
// rows: for each LF a block of k+1 rows, row 0 holding the abstain
// probabilities and rows 1..k the vote probabilities, clipped away from
// 0 and 1.
func (lm *Model) conditionalProbs(mu *mat.Dense) [][]float64 {
	cps := make([][]float64, lm.m*(lm.k+1))
	for i := range cps {
		cps[i] = make([]float64, lm.k)
	}
	for j := 0; j < lm.m; j++ {
		for v := 0; v < lm.k; v++ {
			for y := 0; y < lm.k; y++ {
				cps[j*(lm.k+1)+v+1][y] = clip(mu.At(j*lm.k+v, y))
			}
		}
		for y := 0; y < lm.k; y++ {
			sum := 0.0
			for v := 0; v < lm.k; v++ {
				sum += cps[j*(lm.k+1)+v+1][y]
			}
			cps[j*(lm.k+1)][y] = 1 - sum
		}
	}
	return cps
}

// ConditionalProbs returns the learned conditional probability table.
func (lm *Model) ConditionalProbs() ([][]float64, error) {
	if lm.stage < stageTrained {
		return nil, fmt.Errorf("%w: model has not been trained", ErrState)
	}
	return lm.conditionalProbs(lm.mu), nil
}

// Accuracies returns the estimated accuracy of each labeling function,
// marginalized over the class balance.
func (lm *Model) Accuracies() ([]float64, error) {
	if lm.stage < stageTrained {
		return nil, fmt.Errorf("%w: model has not been trained", ErrState)
	}
	return lm.accuraciesFromProbs(lm.conditionalProbs(lm.mu))
}

// AccuraciesFromProbs computes per-LF accuracies from an explicit
// conditional probability table laid out as in ConditionalProbs. Rows
// beyond the m*(k+1) prefix are ignored.
func (lm *Model) AccuraciesFromProbs(probs [][]float64) ([]float64, error) {
	if lm.stage < stageConstants {
		return nil, fmt.Errorf("%w: no label matrix registered", ErrState)
	}
	if lm.p == nil {
		return nil, fmt.Errorf("%w: class balance not set", ErrState)
	}
	return lm.accuraciesFromProbs(probs)
}

func (lm *Model) accuraciesFromProbs(probs [][]float64) ([]float64, error) {
	if len(probs) < lm.m*(lm.k+1) {
		return nil, fmt.Errorf("%w: probability table has %d rows, want at least %d",
			ErrInvalidInput, len(probs), lm.m*(lm.k+1))
	}
	accs := make([]float64, lm.m)
	for j := 0; j < lm.m; j++ {
		for y := 0; y < lm.k; y++ {
			row := probs[j*(lm.k+1)+y+1]
			if len(row) != lm.k {
				return nil, fmt.Errorf("%w: probability row has %d columns, want %d",
					ErrInvalidInput, len(row), lm.k)
			}
			accs[j] += row[y] * lm.p[y]
		}
	}
	return accs, nil
}

// PredictProba returns the posterior P(Y | lf outputs) for every row of L,
// as an n x k matrix of probabilities. L may be a matrix the model was not
// trained on, as long as it has the same number of columns.
func (lm *Model) PredictProba(L [][]int) ([][]float64, error) {
	if lm.stage < stageTrained {
		return nil, fmt.Errorf("%w: model has not been trained", ErrState)
	}
	if err := lm.checkMatrix(L); err != nil {
		return nil, err
	}
	if len(L[0]) != lm.m {
		return nil, fmt.Errorf("%w: matrix has %d columns, model was trained on %d",
			ErrInvalidInput, len(L[0]), lm.m)
	}

	jtm := lm.junctionWeights()
	logMu := mat.NewDense(lm.d, lm.k, nil)
	for i := 0; i < lm.d; i++ {
		for y := 0; y < lm.k; y++ {
			logMu.Set(i, y, math.Log(clip(lm.mu.At(i, y))))
		}
	}
	logP := make([]float64, lm.k)
	for y := 0; y < lm.k; y++ {
		logP[y] = math.Log(lm.p[y])
	}

	rows := lm.augmentRows(L)
	out := make([][]float64, len(rows))
	for i, row := range rows {
		probs := make([]float64, lm.k)
		for y := 0; y < lm.k; y++ {
			acc := logP[y]
			for _, col := range row.Indices {
				if jtm[col] {
					acc += logMu.At(col, y)
				}
			}
			probs[y] = math.Exp(acc)
		}
		normalize(probs)
		out[i] = probs
	}
	return out, nil
}

// Predict returns the most likely class label in 1..k for every row of L.
// Ties break toward the lower label.
func (lm *Model) Predict(L [][]int) ([]int, error) {
	probs, err := lm.PredictProba(L)
	if err != nil {
		return nil, err
	}
	preds := make([]int, len(probs))
	for i, row := range probs {
		best := 0
		for y := 1; y < lm.k; y++ {
			if row[y] > row[best] {
				best = y
			}
		}
		preds[i] = best + 1
	}
	return preds, nil
}

// junctionWeights marks the augmented columns that participate in the
// posterior product. Without dependencies every column counts once. With a
// junction tree only the maximal clique and separator blocks count, so the
// singleton block of an LF absorbed into a larger clique is skipped unless
// it reappears as a separator.
func (lm *Model) junctionWeights() []bool {
	jtm := make([]bool, lm.d)
	if len(lm.deps) == 0 {
		for i := range jtm {
			jtm[i] = true
		}
		return jtm
	}
	for _, node := range lm.tree.nodes {
		for i := node.startIndex; i < node.endIndex; i++ {
			jtm[i] = true
		}
	}
	for _, edge := range lm.tree.edges {
		for i := edge.startIndex; i < edge.endIndex; i++ {
			jtm[i] = true
		}
	}
	return jtm
}

func clip(v float64) float64 {
	return math.Min(math.Max(v, probFloor), probCeil)
}

func normalize(v []float64) {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	if sum == 0 {
		for i := range v {
			v[i] = 1 / float64(len(v))
		}
		return
	}
	for i := range v {
		v[i] /= sum
	}
}
