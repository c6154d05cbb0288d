package ddlite

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/HazyResearch/ddlite/metrics"
)

// consensusData writes a data folder where the first half of the points is
// unanimously voted class 1 and the second half class 2.
func consensusData(t *testing.T) (string, [][]int) {
	t.Helper()
	var L [][]int
	var golds []int
	for i := 0; i < 6; i++ {
		L = append(L, []int{1, 1, 1})
		golds = append(golds, 1)
	}
	for i := 0; i < 6; i++ {
		L = append(L, []int{2, 2, 2})
		golds = append(golds, 2)
	}

	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, "labels.json"), map[string]any{"matrix": L})
	writeJSON(t, filepath.Join(dir, "golds.json"), map[string]any{"golds": golds})
	return dir, L
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestTrainPredictRoundTrip(t *testing.T) {
	dir, L := consensusData(t)

	l, err := Train(dir, &TrainConfig{Overrides: map[string]any{"seed": 1}})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	preds, err := l.Predict(L)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for i, p := range preds {
		want := 1
		if i >= 6 {
			want = 2
		}
		if p != want {
			t.Errorf("preds[%d] = %d, want %d", i, p, want)
		}
	}

	modelPath := filepath.Join(dir, "model.json")
	if err := l.Save(modelPath); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(modelPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want, err := l.PredictProba(L)
	if err != nil {
		t.Fatal(err)
	}
	got, err := loaded.PredictProba(L)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		for y := range want[i] {
			if got[i][y] != want[i][y] {
				t.Fatalf("probs[%d][%d] = %v after reload, want %v", i, y, got[i][y], want[i][y])
			}
		}
	}
}

func TestTrainInfersClasses(t *testing.T) {
	dir := t.TempDir()
	L := [][]int{
		{1, 2},
		{3, 0},
		{2, 3},
		{1, 1},
	}
	writeJSON(t, filepath.Join(dir, "labels.json"), map[string]any{"matrix": L})

	l, err := Train(dir, nil)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if got := l.Model().K(); got != 3 {
		t.Errorf("K() = %d, want 3", got)
	}
}

func TestEvaluate(t *testing.T) {
	dir, _ := consensusData(t)

	l, err := Train(dir, &TrainConfig{Overrides: map[string]any{"seed": 1}})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if err := l.Save(filepath.Join(dir, "model.json")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	results, err := Evaluate(dir, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	got := map[metrics.Kind]float64{}
	for _, r := range results {
		got[r.Kind] = r.Value
	}
	for _, kind := range []metrics.Kind{metrics.Accuracy, metrics.Coverage, metrics.F1} {
		value, ok := got[kind]
		if !ok {
			t.Fatalf("default metrics missing %s", kind)
		}
		if value != 1 {
			t.Errorf("%s = %v, want 1", kind, value)
		}
	}
}

func TestEvaluateMissingGolds(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, "labels.json"), map[string]any{
		"matrix": [][]int{{1, 1}, {2, 2}},
	})

	l, err := Train(dir, &TrainConfig{Overrides: map[string]any{"seed": 1}})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if err := l.Save(filepath.Join(dir, "model.json")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := Evaluate(dir, nil); err == nil {
		t.Error("Evaluate without golds.json should fail")
	}
}

func TestLabelerNotInitialized(t *testing.T) {
	var l Labeler
	if _, err := l.Predict([][]int{{1}}); err == nil {
		t.Error("Predict on zero Labeler should fail")
	}
	if _, err := l.PredictProba([][]int{{1}}); err == nil {
		t.Error("PredictProba on zero Labeler should fail")
	}
	if err := l.Save("model.json"); err == nil {
		t.Error("Save on zero Labeler should fail")
	}
}
