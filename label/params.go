package label

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// resolvePrecInit expands the configured precision prior to one value per
// LF. A single value broadcasts; a vector must have length m.
func (lm *Model) resolvePrecInit(precInit []float64) ([]float64, error) {
	out := make([]float64, lm.m)
	switch len(precInit) {
	case 0:
		for j := range out {
			out[j] = defaultPrecInit
		}
	case 1:
		for j := range out {
			out[j] = precInit[0]
		}
	case lm.m:
		copy(out, precInit)
	default:
		return nil, fmt.Errorf("%w: prec_init has length %d, want 1 or %d", ErrConfig, len(precInit), lm.m)
	}
	return out, nil
}

const defaultPrecInit = 0.7

// initParams seeds mu from the class balance, the per-column labeling
// propensities (the diagonal of O), and the precision prior:
//
//	mu_init[j*k+y, y] = clamp(O[j*k+y, j*k+y] * prec[j] / p[y], 0, 1)
//
// Joint block columns use the same form with the mean precision and the
// class voted by the block's first member. mu starts at mu_init scaled by a
// single seeded uniform draw to break reflective symmetry.
func (lm *Model) initParams(precInit []float64, seed int64) error {
	if lm.stage < stageMask {
		return fmt.Errorf("%w: parameter init before mask", ErrState)
	}
	prec, err := lm.resolvePrecInit(precInit)
	if err != nil {
		return err
	}
	lm.precInit = prec

	lps := make([]float64, lm.d)
	for i := 0; i < lm.d; i++ {
		lps[i] = lm.o.At(i, i)
	}

	muInit := mat.NewDense(lm.d, lm.k, nil)
	for j := 0; j < lm.m; j++ {
		for y := 0; y < lm.k; y++ {
			idx := j*lm.k + y
			muInit.Set(idx, y, clamp01(lps[idx]*prec[j]/lm.p[y]))
		}
	}
	precMean := mean(prec)
	for _, node := range lm.tree.nodes {
		lm.initJointBlock(muInit, lps, precMean, node.members, node.startIndex)
	}
	for _, edge := range lm.tree.edges {
		lm.initJointBlock(muInit, lps, precMean, edge.members, edge.startIndex)
	}
	lm.muInit = muInit

	lm.rng = rand.New(rand.NewSource(seed))
	scale := lm.rng.Float64()
	mu := mat.DenseCopyOf(muInit)
	mu.Scale(scale, mu)
	lm.mu = mu
	lm.stage = stageParams
	return nil
}

func (lm *Model) initJointBlock(muInit *mat.Dense, lps []float64, prec float64, members []int, start int) {
	if len(members) < 2 {
		return
	}
	size := intPow(lm.k, len(members))
	msd := intPow(lm.k, len(members)-1)
	for offset := 0; offset < size; offset++ {
		y := offset / msd // class voted by the first member
		idx := start + offset
		muInit.Set(idx, y, clamp01(lps[idx]*prec/lm.p[y]))
	}
}

// resolveL2 expands the regularization weight to one value per augmented
// column.
func (lm *Model) resolveL2(l2 []float64) ([]float64, error) {
	out := make([]float64, lm.d)
	switch len(l2) {
	case 0:
	case 1:
		for i := range out {
			out[i] = l2[0]
		}
	case lm.d:
		copy(out, l2)
	default:
		return nil, fmt.Errorf("%w: l2 has length %d, want 1 or %d", ErrConfig, len(l2), lm.d)
	}
	return out, nil
}

// lossL2 is the squared Frobenius norm of diag(l2)*(mu - mu_init).
func (lm *Model) lossL2(mu *mat.Dense, l2Col []float64) float64 {
	loss := 0.0
	for i := 0; i < lm.d; i++ {
		for y := 0; y < lm.k; y++ {
			diff := l2Col[i] * (mu.At(i, y) - lm.muInit.At(i, y))
			loss += diff * diff
		}
	}
	return loss
}

func (lm *Model) addGradL2(grad, mu *mat.Dense, l2Col []float64) {
	for i := 0; i < lm.d; i++ {
		w := 2 * l2Col[i] * l2Col[i]
		for y := 0; y < lm.k; y++ {
			grad.Set(i, y, grad.At(i, y)+w*(mu.At(i, y)-lm.muInit.At(i, y)))
		}
	}
}

// muTimesP returns mu with each column scaled by p, i.e. (mu P).
func (lm *Model) muTimesP(mu *mat.Dense) *mat.Dense {
	out := mat.NewDense(lm.d, lm.k, nil)
	for i := 0; i < lm.d; i++ {
		for y := 0; y < lm.k; y++ {
			out.Set(i, y, mu.At(i, y)*lm.p[y])
		}
	}
	return out
}

// lossMu is the direct moment-matching objective: the masked squared gap
// between mu P mu^T and O, a consistency term tying mu P 1 to diag(O), and
// the L2 penalty. The returned gradient is analytic.
func (lm *Model) lossMu(mu *mat.Dense, l2Col []float64) (float64, *mat.Dense) {
	muP := lm.muTimesP(mu)
	second := mat.NewDense(lm.d, lm.d, nil)
	second.Mul(muP, mu.T())

	loss := 0.0
	masked := mat.NewDense(lm.d, lm.d, nil)
	for i := 0; i < lm.d; i++ {
		for j := 0; j < lm.d; j++ {
			if !lm.mask[i][j] {
				continue
			}
			diff := second.At(i, j) - lm.o.At(i, j)
			masked.Set(i, j, diff)
			loss += diff * diff
		}
	}

	grad := mat.NewDense(lm.d, lm.k, nil)
	grad.Mul(masked, muP)
	grad.Scale(4, grad)

	lm.addConsistency(&loss, grad, muP)
	loss += lm.lossL2(mu, l2Col)
	lm.addGradL2(grad, mu, l2Col)
	return loss, grad
}

// addConsistency accumulates the ||mu P 1 - diag(O)||^2 term and its
// gradient 2 (mu P 1 - diag O) p^T.
func (lm *Model) addConsistency(loss *float64, grad, muP *mat.Dense) {
	for i := 0; i < lm.d; i++ {
		r := -lm.o.At(i, i)
		for y := 0; y < lm.k; y++ {
			r += muP.At(i, y)
		}
		*loss += r * r
		for y := 0; y < lm.k; y++ {
			grad.Set(i, y, grad.At(i, y)+2*r*lm.p[y])
		}
	}
}

// lossInvZ is the stage-one inverse-form objective
// ||(O^-1 + Z Z^T) restricted to the mask||^2.
func (lm *Model) lossInvZ(z *mat.Dense) (float64, *mat.Dense) {
	zzT := mat.NewDense(lm.d, lm.d, nil)
	zzT.Mul(z, z.T())

	loss := 0.0
	masked := mat.NewDense(lm.d, lm.d, nil)
	for i := 0; i < lm.d; i++ {
		for j := 0; j < lm.d; j++ {
			if !lm.mask[i][j] {
				continue
			}
			v := lm.oInv.At(i, j) + zzT.At(i, j)
			masked.Set(i, j, v)
			loss += v * v
		}
	}

	grad := mat.NewDense(lm.d, lm.k, nil)
	grad.Mul(masked, z)
	grad.Scale(4, grad)
	return loss, grad
}

// computeQ returns Q = O Z (I_k + Z^T O Z)^-1 Z^T O, the model estimate of
// mu P mu^T implied by the learned precision parameters.
func (lm *Model) computeQ(z *mat.Dense) (*mat.Dense, error) {
	zTO := mat.NewDense(lm.k, lm.d, nil)
	zTO.Mul(z.T(), lm.o)

	inner := mat.NewDense(lm.k, lm.k, nil)
	inner.Mul(zTO, z)
	for y := 0; y < lm.k; y++ {
		inner.Set(y, y, inner.At(y, y)+1)
	}
	innerInv := mat.NewDense(lm.k, lm.k, nil)
	if err := innerInv.Inverse(inner); err != nil {
		return nil, fmt.Errorf("label: invert inner matrix for Q: %w", err)
	}

	oz := mat.NewDense(lm.d, lm.k, nil)
	oz.Mul(lm.o, z)
	tmp := mat.NewDense(lm.d, lm.k, nil)
	tmp.Mul(oz, innerInv)
	q := mat.NewDense(lm.d, lm.d, nil)
	q.Mul(tmp, zTO)
	return q, nil
}

// lossInvMu is the stage-two inverse-form objective: an unmasked gap
// between mu P mu^T and Q plus the usual consistency and L2 terms.
func (lm *Model) lossInvMu(mu *mat.Dense, l2Col []float64) (float64, *mat.Dense) {
	muP := lm.muTimesP(mu)
	second := mat.NewDense(lm.d, lm.d, nil)
	second.Mul(muP, mu.T())

	loss := 0.0
	diff := mat.NewDense(lm.d, lm.d, nil)
	for i := 0; i < lm.d; i++ {
		for j := 0; j < lm.d; j++ {
			v := second.At(i, j) - lm.q.At(i, j)
			diff.Set(i, j, v)
			loss += v * v
		}
	}

	grad := mat.NewDense(lm.d, lm.k, nil)
	grad.Mul(diff, muP)
	grad.Scale(4, grad)

	lm.addConsistency(&loss, grad, muP)
	loss += lm.lossL2(mu, l2Col)
	lm.addGradL2(grad, mu, l2Col)
	return loss, grad
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Sum(v) / float64(len(v))
}
