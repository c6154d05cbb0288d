package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/HazyResearch/ddlite"
	"github.com/HazyResearch/ddlite/internal/storage"
	"github.com/spf13/cobra"
)

func (c *CLI) newPredictCommand() *cobra.Command {
	var dataFolder string
	var modelPath string
	var proba bool
	var save bool

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict labels for the data folder's label matrix",
		Example: `  # Predict hard labels
  ddlite predict --data-folder data

  # Include posterior probabilities
  ddlite predict --data-folder data --proba

  # Use a custom model file
  ddlite predict --model custom.json

  # Write predictions.json next to the label matrix
  ddlite predict --data-folder data --save

  # Silent mode (JSON output only)
  ddlite predict -s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			l, err := loadModel(modelPath)
			if err != nil {
				return err
			}
			slog.Debug("Model loaded", "duration", time.Since(start))

			store := storage.NewStorage(dataFolder)
			ds, err := store.GetDataset()
			if err != nil {
				return err
			}
			slog.Debug("Dataset loaded", "points", len(ds.L))

			start = time.Now()
			preds, err := l.Predict(ds.L)
			if err != nil {
				return err
			}
			var probs [][]float64
			if proba {
				probs, err = l.PredictProba(ds.L)
				if err != nil {
					return err
				}
			}
			slog.Debug("Prediction completed", "points", len(preds), "duration", time.Since(start))

			if save {
				if err := store.SavePredictions(preds, probs); err != nil {
					return err
				}
				slog.Info("Predictions saved", "folder", dataFolder)
			}

			out := map[string]any{"predictions": preds}
			if proba {
				out["probabilities"] = probs
			}
			output, _ := json.MarshalIndent(out, "", "  ")
			fmt.Println(string(output))
			return nil
		},
	}

	cmd.Flags().StringVar(&dataFolder, "data-folder", "data", "Path to data folder")
	cmd.Flags().StringVar(&modelPath, "model", "", "Path to model file (default: auto-detect model.json)")
	cmd.Flags().BoolVar(&proba, "proba", false, "Include posterior probabilities")
	cmd.Flags().BoolVar(&save, "save", false, "Write predictions.json into the data folder")
	return cmd
}

func loadModel(modelPath string) (*ddlite.Labeler, error) {
	if modelPath != "" {
		slog.Debug("Loading custom model", "path", modelPath)
		return ddlite.Load(modelPath)
	}
	return ddlite.New()
}
