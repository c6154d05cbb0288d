package label

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestAccuraciesFromProbsTable(t *testing.T) {
	lm := buildStages(t, 2, [][]int{{1, 2}, {1, 0}}, nil, []float64{0.5, 0.5})

	// Two LF blocks of three rows each plus trailing rows that must be
	// ignored.
	probs := [][]float64{
		{0.3, 0.3},
		{0.6, 0.2}, // P(LF0 votes 1 | Y)
		{0.1, 0.8}, // P(LF0 votes 2 | Y)
		{0.05, 0.1},
		{0.9, 0.15}, // P(LF1 votes 1 | Y)
		{0.05, 0.75},
		{0.5, 0.5},
		{0.5, 0.5},
	}
	got, err := lm.AccuraciesFromProbs(probs)
	if err != nil {
		t.Fatalf("AccuraciesFromProbs: %v", err)
	}
	want := []float64{0.7, 0.825}
	for j := range want {
		if !approx(got[j], want[j], 1e-12) {
			t.Errorf("accs[%d] = %v, want %v", j, got[j], want[j])
		}
	}

	if _, err := lm.AccuraciesFromProbs(probs[:3]); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("short table err = %v, want ErrInvalidInput", err)
	}
}

func TestAccuraciesFromInitialParams(t *testing.T) {
	lm := buildStages(t, 2, [][]int{{1, 2}, {1, 0}}, nil, []float64{0.5, 0.5})
	if err := lm.initParams(nil, 0); err != nil {
		t.Fatalf("initParams: %v", err)
	}
	lm.mu = mat.DenseCopyOf(lm.muInit)
	lm.stage = stageTrained

	got, err := lm.Accuracies()
	if err != nil {
		t.Fatalf("Accuracies: %v", err)
	}
	// LF0 always fires class 1, so its class-2 estimate clips to 0.01.
	want := []float64{0.5, 0.355}
	for j := range want {
		if !approx(got[j], want[j], 1e-12) {
			t.Errorf("accs[%d] = %v, want %v", j, got[j], want[j])
		}
	}
}

func TestConditionalProbsColumnsSumToOne(t *testing.T) {
	lm := buildStages(t, 2, [][]int{{1, 2}, {2, 1}, {1, 0}}, nil, []float64{0.5, 0.5})
	if err := lm.initParams(nil, 0); err != nil {
		t.Fatalf("initParams: %v", err)
	}
	lm.mu = mat.DenseCopyOf(lm.muInit)
	lm.stage = stageTrained

	cps, err := lm.ConditionalProbs()
	if err != nil {
		t.Fatalf("ConditionalProbs: %v", err)
	}
	if len(cps) != lm.m*(lm.k+1) {
		t.Fatalf("table has %d rows, want %d", len(cps), lm.m*(lm.k+1))
	}
	for j := 0; j < lm.m; j++ {
		for y := 0; y < lm.k; y++ {
			sum := 0.0
			for v := 0; v < lm.k + 1; v++ {
				sum += cps[j*(lm.k+1)+v][y]
			}
			if !approx(sum, 1, 1e-12) {
				t.Errorf("LF %d column %d sums to %v, want 1", j, y, sum)
			}
		}
	}
}

func TestPredictProbaSingleLF(t *testing.T) {
	lm := buildStages(t, 2, [][]int{{1}, {2}}, nil, []float64{0.5, 0.5})
	lm.mu = mat.NewDense(2, 2, []float64{
		0.9, 0.1,
		0.1, 0.9,
	})
	lm.stage = stageTrained

	probs, err := lm.PredictProba([][]int{{1}, {2}, {0}})
	if err != nil {
		t.Fatalf("PredictProba: %v", err)
	}
	want := [][]float64{
		{0.9, 0.1},
		{0.1, 0.9},
		{0.5, 0.5}, // all abstain falls back to the prior
	}
	for i := range want {
		for y := range want[i] {
			if !approx(probs[i][y], want[i][y], 1e-9) {
				t.Errorf("probs[%d][%d] = %v, want %v", i, y, probs[i][y], want[i][y])
			}
		}
	}
}

func TestPredictProbaJunctionWeights(t *testing.T) {
	// With deps {0,1}, the singleton indicators of LFs 0 and 1 drop out of
	// the posterior in favor of their joint block.
	lm := buildStages(t, 2, [][]int{{1, 2, 1}, {2, 1, 2}}, [][2]int{{0, 1}}, []float64{0.5, 0.5})
	if lm.D() != 10 {
		t.Fatalf("D = %d, want 10", lm.D())
	}
	mu := mat.NewDense(10, 2, nil)
	for i := 0; i < 10; i++ {
		mu.Set(i, 0, 0.5)
		mu.Set(i, 1, 0.5)
	}
	// If the excluded singleton columns leaked in, this would skew the
	// posterior toward class 2.
	mu.Set(0, 0, 0.01)
	mu.Set(0, 1, 0.99)
	mu.Set(7, 0, 0.8) // joint column for votes (1,2)
	mu.Set(7, 1, 0.2)
	lm.mu = mu
	lm.stage = stageTrained

	probs, err := lm.PredictProba([][]int{{1, 2, 1}})
	if err != nil {
		t.Fatalf("PredictProba: %v", err)
	}
	if !approx(probs[0][0], 0.8, 1e-9) || !approx(probs[0][1], 0.2, 1e-9) {
		t.Errorf("probs = %v, want [0.8 0.2]", probs[0])
	}
}

func TestPredictArgmaxAndTies(t *testing.T) {
	lm := buildStages(t, 2, [][]int{{1}, {2}}, nil, []float64{0.5, 0.5})
	lm.mu = mat.NewDense(2, 2, []float64{
		0.9, 0.1,
		0.1, 0.9,
	})
	lm.stage = stageTrained

	got, err := lm.Predict([][]int{{1}, {2}, {0}})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	// The abstain row ties at the uniform prior and breaks low.
	want := []int{1, 2, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pred[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestPredictBeforeTraining(t *testing.T) {
	lm, _ := New(2)
	if _, err := lm.PredictProba([][]int{{1}}); !errors.Is(err, ErrState) {
		t.Errorf("PredictProba untrained err = %v, want ErrState", err)
	}
	if _, err := lm.Accuracies(); !errors.Is(err, ErrState) {
		t.Errorf("Accuracies untrained err = %v, want ErrState", err)
	}
}

func TestPredictProbaWidthMismatch(t *testing.T) {
	lm := buildStages(t, 2, [][]int{{1, 2}}, nil, []float64{0.5, 0.5})
	lm.mu = mat.NewDense(4, 2, nil)
	lm.stage = stageTrained
	if _, err := lm.PredictProba([][]int{{1, 2, 1}}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("width mismatch err = %v, want ErrInvalidInput", err)
	}
}
