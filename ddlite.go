// Package ddlite aggregates the votes of noisy labeling functions into
// probabilistic training labels.
//
// A labeling function votes 0 (abstain) or a class in 1..k for each data
// point; the votes form a label matrix with one row per point and one
// column per function. A generative model estimates each function's unknown
// accuracy from the observed agreement structure, honoring declared
// dependencies between functions, and produces one posterior label
// distribution per row.
//
//	l, _ := ddlite.Train("data", nil)
//	probs, _ := l.PredictProba(L)
package ddlite

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/HazyResearch/ddlite/label"
)

// Labeler wraps a trained label model.
type Labeler struct {
	lm *label.Model
}

// New loads the labeler from "model.json", searching the current directory
// and parent directories up to the module root (where go.mod lives).
func New() (*Labeler, error) {
	path, err := findModel("model.json")
	if err != nil {
		return nil, fmt.Errorf("ddlite: %w", err)
	}
	return Load(path)
}

func findModel(name string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		// Stop at module root
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("model.json not found")
}

// Load loads a trained labeler from a model file.
func Load(path string) (*Labeler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ddlite: %w", err)
	}
	lm, err := label.UnmarshalModel(data)
	if err != nil {
		return nil, fmt.Errorf("ddlite: %w", err)
	}
	return &Labeler{lm: lm}, nil
}

// Save writes the labeler to a model file.
func (l *Labeler) Save(path string) error {
	if l.lm == nil {
		return fmt.Errorf("ddlite: labeler not initialized")
	}
	data, err := label.MarshalModel(l.lm)
	if err != nil {
		return fmt.Errorf("ddlite: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("ddlite: %w", err)
	}
	return nil
}

// Model exposes the underlying label model.
func (l *Labeler) Model() *label.Model {
	return l.lm
}

// PredictProba returns the posterior class distribution for every row of L.
func (l *Labeler) PredictProba(L [][]int) ([][]float64, error) {
	if l.lm == nil {
		return nil, fmt.Errorf("ddlite: labeler not initialized")
	}
	probs, err := l.lm.PredictProba(L)
	if err != nil {
		return nil, fmt.Errorf("ddlite: %w", err)
	}
	return probs, nil
}

// Predict returns the most likely class in 1..k for every row of L.
func (l *Labeler) Predict(L [][]int) ([]int, error) {
	if l.lm == nil {
		return nil, fmt.Errorf("ddlite: labeler not initialized")
	}
	preds, err := l.lm.Predict(L)
	if err != nil {
		return nil, fmt.Errorf("ddlite: %w", err)
	}
	return preds, nil
}

// Accuracies returns the estimated accuracy of each labeling function.
func (l *Labeler) Accuracies() ([]float64, error) {
	if l.lm == nil {
		return nil, fmt.Errorf("ddlite: labeler not initialized")
	}
	accs, err := l.lm.Accuracies()
	if err != nil {
		return nil, fmt.Errorf("ddlite: %w", err)
	}
	return accs, nil
}
