package label

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// EpochFunc observes training progress. It is called after every epoch of
// the mu optimization (at most NEpochs times) with the loss computed at the
// start of that epoch. Callbacks may read model state (e.g. to checkpoint
// mu) but must not mutate it.
type EpochFunc func(epoch int, loss float64)

// TrainOptions bundles the per-call training inputs.
type TrainOptions struct {
	// Deps lists pairs of statistically dependent LF indices.
	Deps [][2]int
	// ClassBalance is the class prior; mutually exclusive with DevLabels.
	ClassBalance []float64
	// DevLabels is a small gold-labeled set used to estimate the class
	// balance by relative frequency when ClassBalance is nil.
	DevLabels []int
	// Config holds hyperparameters; nil means DefaultTrainConfig.
	Config *TrainConfig
	// OnEpoch, when set, observes every optimization epoch.
	OnEpoch EpochFunc
}

// Train fits the model to the label matrix L. It runs the full pipeline:
// validation, junction tree construction, matrix augmentation, moment
// estimation, parameter initialization, and optimization. With declared
// dependencies the inverse-covariance parameterization is used: a precision
// parameter Z is learned first, then mu is recovered from the implied
// second moment Q.
func (lm *Model) Train(L [][]int, opts *TrainOptions) error {
	var o TrainOptions
	if opts != nil {
		o = *opts
	}
	cfg := DefaultTrainConfig()
	if o.Config != nil {
		cfg = *o.Config
	}

	if err := lm.setConstants(L); err != nil {
		return err
	}
	if err := lm.setDependencies(o.Deps); err != nil {
		return err
	}
	if err := lm.setClassBalance(o.ClassBalance, o.DevLabels); err != nil {
		return err
	}
	if err := lm.augmentMatrix(L); err != nil {
		return err
	}
	if err := lm.generateO(); err != nil {
		return err
	}
	if err := lm.buildMask(); err != nil {
		return err
	}
	if err := lm.initParams(cfg.PrecInit, cfg.Seed); err != nil {
		return err
	}
	l2Col, err := lm.resolveL2(cfg.L2)
	if err != nil {
		return err
	}

	if lm.invForm {
		if err := lm.generateOInv(); err != nil {
			return err
		}
		z := mat.NewDense(lm.d, lm.k, nil)
		for i := 0; i < lm.d; i++ {
			for y := 0; y < lm.k; y++ {
				z.Set(i, y, lm.rng.NormFloat64())
			}
		}
		// The Z phase is internal; callbacks observe the mu phase only,
		// keeping the epoch count at NEpochs in both parameterizations.
		slog.Debug("estimating Z", "d", lm.d, "k", lm.k)
		lm.optimize(z, cfg, nil, func(p *mat.Dense) (float64, *mat.Dense) {
			return lm.lossInvZ(p)
		})
		lm.z = z
		lm.q, err = lm.computeQ(z)
		if err != nil {
			return err
		}
		slog.Debug("estimating mu", "d", lm.d, "k", lm.k)
		lm.optimize(lm.mu, cfg, o.OnEpoch, func(p *mat.Dense) (float64, *mat.Dense) {
			return lm.lossInvMu(p, l2Col)
		})
	} else {
		slog.Debug("estimating mu", "d", lm.d, "k", lm.k)
		lm.optimize(lm.mu, cfg, o.OnEpoch, func(p *mat.Dense) (float64, *mat.Dense) {
			return lm.lossMu(p, l2Col)
		})
	}

	lm.stage = stageTrained
	return nil
}

// Loss evaluates the current training objective at the learned parameters.
func (lm *Model) Loss() (float64, error) {
	if lm.mu == nil {
		return 0, fmt.Errorf("%w: parameters not initialized", ErrState)
	}
	l2Col := make([]float64, lm.d)
	if lm.invForm && lm.q != nil {
		loss, _ := lm.lossInvMu(lm.mu, l2Col)
		return loss, nil
	}
	loss, _ := lm.lossMu(lm.mu, l2Col)
	return loss, nil
}

type lossGradFunc func(*mat.Dense) (float64, *mat.Dense)

func (lm *Model) optimize(param *mat.Dense, cfg TrainConfig, onEpoch EpochFunc, lossGrad lossGradFunc) {
	switch cfg.Optimizer {
	case OptimizerLBFGS:
		lm.optimizeLBFGS(param, cfg, onEpoch, lossGrad)
	default:
		lm.optimizeSGD(param, cfg, onEpoch, lossGrad)
	}
}

// optimizeSGD runs full-batch gradient descent with momentum and an
// optional exponential learning-rate decay.
func (lm *Model) optimizeSGD(param *mat.Dense, cfg TrainConfig, onEpoch EpochFunc, lossGrad lossGradFunc) {
	r, c := param.Dims()
	vel := mat.NewDense(r, c, nil)
	step := mat.NewDense(r, c, nil)
	lr := cfg.LR

	prevLoss := math.Inf(1)
	warned := false
	for epoch := 0; epoch < cfg.NEpochs; epoch++ {
		loss, grad := lossGrad(param)
		if loss > prevLoss && !warned {
			slog.Warn("training loss increased", "epoch", epoch+1, "loss", loss, "previous", prevLoss)
			warned = true
		}
		prevLoss = loss

		vel.Scale(cfg.Momentum, vel)
		step.Scale(lr, grad)
		vel.Sub(vel, step)
		param.Add(param, vel)

		if cfg.Scheduler.Kind == SchedulerExponential {
			lr *= cfg.Scheduler.Gamma
		}
		slog.Debug("epoch", "epoch", epoch+1, "loss", loss, "lr", lr)
		if onEpoch != nil {
			onEpoch(epoch, loss)
		}
		if cfg.Tol > 0 && loss < cfg.Tol {
			slog.Debug("early stop", "epoch", epoch+1, "loss", loss, "tol", cfg.Tol)
			break
		}
	}
}

// optimizeLBFGS runs L-BFGS with a backtracking line search over the
// flattened parameter vector.
func (lm *Model) optimizeLBFGS(param *mat.Dense, cfg TrainConfig, onEpoch EpochFunc, lossGrad lossGradFunc) {
	w := param.RawMatrix().Data
	n := len(w)
	opt := newLBFGS(n, lbfgsMemory)

	loss, gradDense := lossGrad(param)
	grad := append([]float64(nil), gradDense.RawMatrix().Data...)

	for epoch := 0; epoch < cfg.NEpochs; epoch++ {
		dir := opt.computeDirection(grad)

		step := backtrack(w, dir, loss, grad, func(trial []float64) float64 {
			saved := append([]float64(nil), w...)
			copy(w, trial)
			trialLoss, _ := lossGrad(param)
			copy(w, saved)
			return trialLoss
		})
		if step == 0 {
			slog.Warn("line search failed, stopping", "epoch", epoch+1, "loss", loss)
			break
		}

		prevW := append([]float64(nil), w...)
		for i := 0; i < n; i++ {
			w[i] += step * dir[i]
		}

		newLoss, newGradDense := lossGrad(param)
		newGrad := append([]float64(nil), newGradDense.RawMatrix().Data...)

		s := make([]float64, n)
		y := make([]float64, n)
		for i := 0; i < n; i++ {
			s[i] = w[i] - prevW[i]
			y[i] = newGrad[i] - grad[i]
		}
		opt.update(s, y)

		loss, grad = newLoss, newGrad
		slog.Debug("epoch", "epoch", epoch+1, "loss", loss)
		if onEpoch != nil {
			onEpoch(epoch, loss)
		}
		if cfg.Tol > 0 && loss < cfg.Tol {
			slog.Debug("early stop", "epoch", epoch+1, "loss", loss, "tol", cfg.Tol)
			break
		}
		if maxAbs(newGrad) < lbfgsEpsilon {
			slog.Debug("converged", "epoch", epoch+1, "max_gradient", maxAbs(newGrad))
			break
		}
	}
}

const (
	lbfgsMemory  = 10
	lbfgsEpsilon = 1e-8
)

// backtrack halves the step until the trial objective improves.
func backtrack(w, dir []float64, fVal float64, grad []float64, objFunc func([]float64) float64) float64 {
	if dot(dir, grad) >= 0 {
		return 0
	}
	step := 1.0
	trial := make([]float64, len(w))
	for it := 0; it < 20; it++ {
		for i := range w {
			trial[i] = w[i] + step*dir[i]
		}
		if objFunc(trial) < fVal {
			return step
		}
		step *= 0.5
	}
	return 0
}

// lbfgs implements the L-BFGS two-loop recursion.
type lbfgs struct {
	n    int // number of variables
	m    int // memory size
	s    [][]float64
	y    [][]float64
	rho  []float64
	k    int
	size int
}

func newLBFGS(n, m int) *lbfgs {
	return &lbfgs{
		n:   n,
		m:   m,
		s:   make([][]float64, m),
		y:   make([][]float64, m),
		rho: make([]float64, m),
	}
}

func (l *lbfgs) update(s, y []float64) {
	sy := dot(s, y)
	if sy <= 0 {
		return
	}
	idx := l.k % l.m
	l.s[idx] = append([]float64(nil), s...)
	l.y[idx] = append([]float64(nil), y...)
	l.rho[idx] = 1.0 / sy
	l.k++
	if l.size < l.m {
		l.size++
	}
}

func (l *lbfgs) computeDirection(grad []float64) []float64 {
	q := append([]float64(nil), grad...)

	if l.size == 0 {
		for i := range q {
			q[i] = -q[i]
		}
		return q
	}

	alpha := make([]float64, l.size)

	for i := l.size - 1; i >= 0; i-- {
		idx := (l.k - 1 - (l.size - 1 - i)) % l.m
		if idx < 0 {
			idx += l.m
		}
		alpha[i] = l.rho[idx] * dot(l.s[idx], q)
		for j := 0; j < l.n; j++ {
			q[j] -= alpha[i] * l.y[idx][j]
		}
	}

	// Scale by H_0 = (s_k^T y_k) / (y_k^T y_k)
	latestIdx := (l.k - 1) % l.m
	if latestIdx < 0 {
		latestIdx += l.m
	}
	yy := dot(l.y[latestIdx], l.y[latestIdx])
	if yy > 0 {
		gamma := dot(l.s[latestIdx], l.y[latestIdx]) / yy
		for i := range q {
			q[i] *= gamma
		}
	}

	for i := 0; i < l.size; i++ {
		idx := (l.k - l.size + i) % l.m
		if idx < 0 {
			idx += l.m
		}
		beta := l.rho[idx] * dot(l.y[idx], q)
		for j := 0; j < l.n; j++ {
			q[j] += (alpha[i] - beta) * l.s[idx][j]
		}
	}

	for i := range q {
		q[i] = -q[i]
	}
	return q
}

func dot(a, b []float64) float64 {
	return floats.Dot(a, b)
}

func maxAbs(v []float64) float64 {
	out := 0.0
	for _, x := range v {
		if math.Abs(x) > out {
			out = math.Abs(x)
		}
	}
	return out
}
