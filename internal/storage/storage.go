// Package storage reads and writes the on-disk data folder: the label
// matrix with its training settings, gold labels for evaluation, and the
// trained model.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/HazyResearch/ddlite/internal/sparse"
)

// Storage wraps the data folder.
type Storage struct {
	Folder string
}

// NewStorage creates a Storage for the given data folder.
func NewStorage(folder string) *Storage {
	return &Storage{Folder: folder}
}

const (
	labelsFile      = "labels.json"
	goldsFile       = "golds.json"
	modelFile       = "model.json"
	predictionsFile = "predictions.json"
)

// Dataset is the decoded content of labels.json.
type Dataset struct {
	L            [][]int
	Deps         [][2]int
	ClassBalance []float64
	DevLabels    []int
}

// labelsJSON is the structure of labels.json. Exactly one of matrix and
// sparse_matrix must be present; the sparse form is densified on load.
type labelsJSON struct {
	Matrix       [][]int        `json:"matrix,omitempty"`
	Sparse       *sparse.Matrix `json:"sparse_matrix,omitempty"`
	Deps         [][2]int       `json:"deps,omitempty"`
	ClassBalance []float64      `json:"class_balance,omitempty"`
	DevLabels    []int          `json:"dev_labels,omitempty"`
}

// goldsJSON is the structure of golds.json.
type goldsJSON struct {
	Golds []int `json:"golds"`
}

// predictionsJSON is the structure of predictions.json.
type predictionsJSON struct {
	Predictions   []int       `json:"predictions"`
	Probabilities [][]float64 `json:"probabilities,omitempty"`
}

// GetDataset reads the label matrix and its training settings.
func (s *Storage) GetDataset() (*Dataset, error) {
	data, err := os.ReadFile(filepath.Join(s.Folder, labelsFile))
	if err != nil {
		return nil, err
	}
	var lj labelsJSON
	if err := json.Unmarshal(data, &lj); err != nil {
		return nil, fmt.Errorf("decode %s: %w", labelsFile, err)
	}

	ds := &Dataset{
		Deps:         lj.Deps,
		ClassBalance: lj.ClassBalance,
		DevLabels:    lj.DevLabels,
	}
	switch {
	case lj.Matrix != nil && lj.Sparse != nil:
		return nil, fmt.Errorf("%s has both matrix and sparse_matrix", labelsFile)
	case lj.Matrix != nil:
		ds.L = lj.Matrix
	case lj.Sparse != nil:
		ds.L = lj.Sparse.Dense()
	default:
		return nil, fmt.Errorf("%s has neither matrix nor sparse_matrix", labelsFile)
	}
	return ds, nil
}

// GetGolds reads the gold labels used for evaluation.
func (s *Storage) GetGolds() ([]int, error) {
	data, err := os.ReadFile(filepath.Join(s.Folder, goldsFile))
	if err != nil {
		return nil, err
	}
	var gj goldsJSON
	if err := json.Unmarshal(data, &gj); err != nil {
		return nil, fmt.Errorf("decode %s: %w", goldsFile, err)
	}
	if len(gj.Golds) == 0 {
		return nil, fmt.Errorf("%s contains no gold labels", goldsFile)
	}
	return gj.Golds, nil
}

// SaveModel writes serialized model bytes to the data folder.
func (s *Storage) SaveModel(data []byte) error {
	return os.WriteFile(filepath.Join(s.Folder, modelFile), data, 0o644)
}

// GetModel reads serialized model bytes from the data folder.
func (s *Storage) GetModel() ([]byte, error) {
	return os.ReadFile(filepath.Join(s.Folder, modelFile))
}

// SavePredictions writes predicted labels and optional probabilities.
func (s *Storage) SavePredictions(preds []int, probs [][]float64) error {
	data, err := json.MarshalIndent(predictionsJSON{
		Predictions:   preds,
		Probabilities: probs,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.Folder, predictionsFile), data, 0o644)
}

// GetPredictions reads back a predictions file.
func (s *Storage) GetPredictions() ([]int, [][]float64, error) {
	data, err := os.ReadFile(filepath.Join(s.Folder, predictionsFile))
	if err != nil {
		return nil, nil, err
	}
	var pj predictionsJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", predictionsFile, err)
	}
	return pj.Predictions, pj.Probabilities, nil
}
