// Package metrics scores predicted labels against gold labels. Labels follow
// the label package convention: 0 means abstain, classes are 1..k. Binary
// metrics treat class 1 as positive and class 2 as negative.
package metrics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ErrInput indicates inputs a metric cannot be computed from: mismatched
// lengths, missing required inputs, or labels outside the metric's domain.
var ErrInput = errors.New("metrics: invalid input")

// Kind identifies a supported metric. The set is closed: Score rejects
// anything ParseKind does not produce.
type Kind int

const (
	Accuracy Kind = iota
	Coverage
	Precision
	Recall
	F1
	FBeta
	MatthewsCorrCoef
	ROCAUC
)

// Kinds lists every supported metric in display order.
func Kinds() []Kind {
	return []Kind{Accuracy, Coverage, Precision, Recall, F1, FBeta, MatthewsCorrCoef, ROCAUC}
}

// String returns the metric's serialized name.
func (k Kind) String() string {
	switch k {
	case Accuracy:
		return "accuracy"
	case Coverage:
		return "coverage"
	case Precision:
		return "precision"
	case Recall:
		return "recall"
	case F1:
		return "f1"
	case FBeta:
		return "fbeta"
	case MatthewsCorrCoef:
		return "matthews_corrcoef"
	case ROCAUC:
		return "roc_auc"
	}
	return "unknown"
}

// ParseKind converts a serialized name to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown metric %q", ErrInput, s)
}

// needs reports which inputs a metric requires.
func (k Kind) needs() (golds, preds, probs bool) {
	switch k {
	case Coverage:
		return false, true, false
	case ROCAUC:
		return true, false, true
	default:
		return true, true, false
	}
}

// Score computes a metric. golds, preds, and probs may each be nil when the
// metric does not require them; present inputs must have matching lengths.
// Except for Coverage, examples with gold label 0 are dropped before
// scoring. FBeta here is scored with beta=1; use ScoreFBeta for other betas.
func Score(kind Kind, golds, preds []int, probs [][]float64) (float64, error) {
	if kind == FBeta {
		return ScoreFBeta(golds, preds, 1)
	}
	needGolds, needPreds, needProbs := kind.needs()
	if needGolds && golds == nil {
		return 0, fmt.Errorf("%w: %s requires gold labels", ErrInput, kind)
	}
	if needPreds && preds == nil {
		return 0, fmt.Errorf("%w: %s requires predicted labels", ErrInput, kind)
	}
	if needProbs && probs == nil {
		return 0, fmt.Errorf("%w: %s requires predicted probabilities", ErrInput, kind)
	}

	switch kind {
	case Accuracy:
		golds, preds, _, err := filterAbstains(golds, preds, nil)
		if err != nil {
			return 0, err
		}
		return accuracy(golds, preds)
	case Coverage:
		return coverage(preds), nil
	case Precision:
		golds, preds, _, err := filterAbstains(golds, preds, nil)
		if err != nil {
			return 0, err
		}
		p, _, err := precisionRecall(golds, preds)
		return p, err
	case Recall:
		golds, preds, _, err := filterAbstains(golds, preds, nil)
		if err != nil {
			return 0, err
		}
		_, r, err := precisionRecall(golds, preds)
		return r, err
	case F1:
		return ScoreFBeta(golds, preds, 1)
	case MatthewsCorrCoef:
		golds, preds, _, err := filterAbstains(golds, preds, nil)
		if err != nil {
			return 0, err
		}
		return matthews(golds, preds)
	case ROCAUC:
		golds, _, probs, err := filterAbstains(golds, nil, probs)
		if err != nil {
			return 0, err
		}
		return rocAUC(golds, probs)
	}
	return 0, fmt.Errorf("%w: unknown metric kind %d", ErrInput, kind)
}

// ScoreFBeta computes the F-beta score for the positive class. beta weighs
// recall beta times as much as precision.
func ScoreFBeta(golds, preds []int, beta float64) (float64, error) {
	if golds == nil || preds == nil {
		return 0, fmt.Errorf("%w: fbeta requires gold and predicted labels", ErrInput)
	}
	if beta <= 0 {
		return 0, fmt.Errorf("%w: beta must be positive, got %v", ErrInput, beta)
	}
	golds, preds, _, err := filterAbstains(golds, preds, nil)
	if err != nil {
		return 0, err
	}
	p, r, err := precisionRecall(golds, preds)
	if err != nil {
		return 0, err
	}
	b2 := beta * beta
	if b2*p+r == 0 {
		return 0, nil
	}
	return (1 + b2) * p * r / (b2*p + r), nil
}

// filterAbstains drops examples whose gold label is 0 and validates that the
// supplied inputs align.
func filterAbstains(golds, preds []int, probs [][]float64) ([]int, []int, [][]float64, error) {
	if preds != nil && len(preds) != len(golds) {
		return nil, nil, nil, fmt.Errorf("%w: %d golds vs %d preds", ErrInput, len(golds), len(preds))
	}
	if probs != nil && len(probs) != len(golds) {
		return nil, nil, nil, fmt.Errorf("%w: %d golds vs %d probability rows", ErrInput, len(golds), len(probs))
	}
	outGolds := make([]int, 0, len(golds))
	var outPreds []int
	var outProbs [][]float64
	for i, g := range golds {
		if g == 0 {
			continue
		}
		outGolds = append(outGolds, g)
		if preds != nil {
			outPreds = append(outPreds, preds[i])
		}
		if probs != nil {
			outProbs = append(outProbs, probs[i])
		}
	}
	if len(outGolds) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: no non-abstain gold labels", ErrInput)
	}
	return outGolds, outPreds, outProbs, nil
}

func accuracy(golds, preds []int) (float64, error) {
	correct := 0
	for i, g := range golds {
		if preds[i] == g {
			correct++
		}
	}
	return float64(correct) / float64(len(golds)), nil
}

// coverage is the fraction of non-abstain predictions. Unlike the other
// metrics it sees the full prediction vector, abstaining golds included.
func coverage(preds []int) float64 {
	if len(preds) == 0 {
		return 0
	}
	voted := 0
	for _, p := range preds {
		if p != 0 {
			voted++
		}
	}
	return float64(voted) / float64(len(preds))
}

// confusion tallies the binary confusion matrix with class 1 positive. An
// abstaining prediction counts as a negative call.
func confusion(golds, preds []int) (tp, fp, tn, fn int, err error) {
	for i, g := range golds {
		if g != 1 && g != 2 {
			return 0, 0, 0, 0, fmt.Errorf("%w: gold label %d, binary metrics need labels in {1,2}", ErrInput, g)
		}
		pos := preds[i] == 1
		switch {
		case pos && g == 1:
			tp++
		case pos && g == 2:
			fp++
		case !pos && g == 1:
			fn++
		default:
			tn++
		}
	}
	return tp, fp, tn, fn, nil
}

func precisionRecall(golds, preds []int) (float64, float64, error) {
	tp, fp, _, fn, err := confusion(golds, preds)
	if err != nil {
		return 0, 0, err
	}
	p, r := 0.0, 0.0
	if tp+fp > 0 {
		p = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		r = float64(tp) / float64(tp+fn)
	}
	return p, r, nil
}

func matthews(golds, preds []int) (float64, error) {
	tp, fp, tn, fn, err := confusion(golds, preds)
	if err != nil {
		return 0, err
	}
	denom := float64(tp+fp) * float64(tp+fn) * float64(tn+fp) * float64(tn+fn)
	if denom == 0 {
		return 0, nil
	}
	num := float64(tp*tn - fp*fn)
	return num / math.Sqrt(denom), nil
}

// rocAUC computes the area under the ROC curve for the binary case, scoring
// each example by its class-1 probability.
func rocAUC(golds []int, probs [][]float64) (float64, error) {
	scores := make([]float64, len(golds))
	classes := make([]bool, len(golds))
	for i, g := range golds {
		if g != 1 && g != 2 {
			return 0, fmt.Errorf("%w: gold label %d, roc_auc needs labels in {1,2}", ErrInput, g)
		}
		if len(probs[i]) != 2 {
			return 0, fmt.Errorf("%w: probability row %d has %d classes, roc_auc needs 2", ErrInput, i, len(probs[i]))
		}
		scores[i] = probs[i][0]
		classes[i] = g == 1
	}
	stat.SortWeightedLabeled(scores, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}
