package ddlite

import (
	"fmt"
	"path/filepath"

	"github.com/HazyResearch/ddlite/internal/storage"
	"github.com/HazyResearch/ddlite/metrics"
)

// EvalConfig holds configuration for evaluation.
type EvalConfig struct {
	// Kinds selects the metrics to compute; nil picks a default set based
	// on the model's cardinality.
	Kinds []metrics.Kind
	// ModelPath overrides the default model location (model.json inside
	// the data folder).
	ModelPath string
}

// MetricResult is one scored metric.
type MetricResult struct {
	Kind  metrics.Kind
	Value float64
}

// Evaluate scores a trained model against the gold labels in the data
// folder's golds.json.
func Evaluate(dataDir string, config *EvalConfig) ([]MetricResult, error) {
	var c EvalConfig
	if config != nil {
		c = *config
	}

	modelPath := c.ModelPath
	if modelPath == "" {
		modelPath = filepath.Join(dataDir, "model.json")
	}
	l, err := Load(modelPath)
	if err != nil {
		return nil, err
	}

	store := storage.NewStorage(dataDir)
	ds, err := store.GetDataset()
	if err != nil {
		return nil, fmt.Errorf("ddlite: %w", err)
	}
	golds, err := store.GetGolds()
	if err != nil {
		return nil, fmt.Errorf("ddlite: %w", err)
	}
	if len(golds) != len(ds.L) {
		return nil, fmt.Errorf("ddlite: %d gold labels for %d data points", len(golds), len(ds.L))
	}

	preds, err := l.Predict(ds.L)
	if err != nil {
		return nil, err
	}
	probs, err := l.PredictProba(ds.L)
	if err != nil {
		return nil, err
	}

	kinds := c.Kinds
	if kinds == nil {
		kinds = defaultKinds(l.lm.K())
	}
	results := make([]MetricResult, 0, len(kinds))
	for _, kind := range kinds {
		value, err := metrics.Score(kind, golds, preds, probs)
		if err != nil {
			return nil, fmt.Errorf("ddlite: %w", err)
		}
		results = append(results, MetricResult{Kind: kind, Value: value})
	}
	return results, nil
}

// defaultKinds picks accuracy and coverage for any cardinality and adds the
// binary metrics when k is 2.
func defaultKinds(k int) []metrics.Kind {
	kinds := []metrics.Kind{metrics.Accuracy, metrics.Coverage}
	if k == 2 {
		kinds = append(kinds,
			metrics.Precision,
			metrics.Recall,
			metrics.F1,
			metrics.MatthewsCorrCoef,
			metrics.ROCAUC,
		)
	}
	return kinds
}
