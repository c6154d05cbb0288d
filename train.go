package ddlite

import (
	"fmt"

	"github.com/HazyResearch/ddlite/internal/storage"
	"github.com/HazyResearch/ddlite/label"
)

// TrainConfig holds configuration for training.
type TrainConfig struct {
	// Classes is the cardinality k; 0 infers it from the data.
	Classes int
	// Overrides are hyperparameter updates applied over the defaults, keyed
	// as in label.MergeConfig.
	Overrides map[string]any
	// OnEpoch, when set, observes every optimization epoch.
	OnEpoch label.EpochFunc
}

// Train fits a label model on the data folder. The folder's labels.json
// supplies the label matrix and, optionally, dependency edges, a class
// balance, and dev labels.
func Train(dataDir string, config *TrainConfig) (*Labeler, error) {
	var c TrainConfig
	if config != nil {
		c = *config
	}

	store := storage.NewStorage(dataDir)
	ds, err := store.GetDataset()
	if err != nil {
		return nil, fmt.Errorf("ddlite: %w", err)
	}

	k := c.Classes
	if k == 0 {
		k = inferClasses(ds)
	}

	cfg := label.DefaultTrainConfig()
	if len(c.Overrides) > 0 {
		cfg, err = label.MergeConfig(cfg, c.Overrides)
		if err != nil {
			return nil, fmt.Errorf("ddlite: %w", err)
		}
	}

	lm, err := label.New(k)
	if err != nil {
		return nil, fmt.Errorf("ddlite: %w", err)
	}
	err = lm.Train(ds.L, &label.TrainOptions{
		Deps:         ds.Deps,
		ClassBalance: ds.ClassBalance,
		DevLabels:    ds.DevLabels,
		Config:       &cfg,
		OnEpoch:      c.OnEpoch,
	})
	if err != nil {
		return nil, fmt.Errorf("ddlite: %w", err)
	}
	return &Labeler{lm: lm}, nil
}

// inferClasses derives k from the largest label seen anywhere in the
// dataset, with a floor of two classes.
func inferClasses(ds *storage.Dataset) int {
	k := 2
	for _, row := range ds.L {
		for _, v := range row {
			if v > k {
				k = v
			}
		}
	}
	for _, y := range ds.DevLabels {
		if y > k {
			k = y
		}
	}
	if len(ds.ClassBalance) > k {
		k = len(ds.ClassBalance)
	}
	return k
}
