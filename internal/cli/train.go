package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/HazyResearch/ddlite"
	"github.com/HazyResearch/ddlite/internal/checkpoint"
	"github.com/HazyResearch/ddlite/internal/storage"
	"github.com/HazyResearch/ddlite/label"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func (c *CLI) newTrainCommand() *cobra.Command {
	var dataFolder string
	var classes int
	var sets []string
	var checkpointDir string
	var evalEvery float64
	var checkpointFactor float64
	var counterUnit string

	cmd := &cobra.Command{
		Use:   "train <modelfile>",
		Short: "Train a label model on a labeling-function output matrix",
		Args:  cobra.ExactArgs(1),
		Example: `  ddlite train model.json --data-folder data
  ddlite train model.json --set n_epochs=500 --set lr=0.005
  ddlite train model.json --checkpoint-dir ckpt --eval-every 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			modelPath := args[0]

			overrides, err := parseOverrides(sets)
			if err != nil {
				return err
			}
			cfg, err := label.MergeConfig(label.DefaultTrainConfig(), overrides)
			if err != nil {
				return err
			}

			ds, err := storage.NewStorage(dataFolder).GetDataset()
			if err != nil {
				return err
			}

			unit, err := checkpoint.ParseUnit(counterUnit)
			if err != nil {
				return err
			}
			mgr, err := checkpoint.NewManager(checkpoint.Config{
				Unit:             unit,
				EvaluationFreq:   evalEvery,
				CheckpointFactor: checkpointFactor,
				Dir:              checkpointDir,
			})
			if err != nil {
				return err
			}
			if checkpointDir != "" {
				slog.Debug("Checkpointing enabled", "dir", mgr.RunDir())
			}

			var bar *progressbar.ProgressBar
			if !c.silent {
				bar = progressbar.Default(int64(cfg.NEpochs), "training")
			}
			onEpoch := func(epoch int, loss float64) {
				if bar != nil {
					_ = bar.Add(1)
				}
				mgr.Update(len(ds.L))
				mgr.EndEpoch()
				if mgr.TriggerEvaluation() {
					slog.Info("Evaluation", "epoch", epoch, "loss", loss)
				}
				if mgr.TriggerCheckpointing() {
					snapshot, _ := json.Marshal(map[string]any{
						"epoch": epoch,
						"loss":  loss,
					})
					if path, err := mgr.Save(snapshot); err != nil {
						slog.Warn("Checkpoint failed", "error", err)
					} else if path != "" {
						slog.Debug("Checkpoint written", "path", path)
					}
				}
			}

			slog.Info("Training label model", "data-folder", dataFolder, "output", modelPath)
			start := time.Now()
			l, err := ddlite.Train(dataFolder, &ddlite.TrainConfig{
				Classes:   classes,
				Overrides: overrides,
				OnEpoch:   onEpoch,
			})
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return err
			}
			slog.Debug("Training completed", "duration", time.Since(start))

			if err := l.Save(modelPath); err != nil {
				return err
			}
			slog.Info("Model saved", "path", modelPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataFolder, "data-folder", "data", "Path to data folder")
	cmd.Flags().IntVar(&classes, "classes", 0, "Number of classes (0 = infer from data)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Hyperparameter override key=value (repeatable)")
	cmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "Directory for training checkpoints (empty = disabled)")
	cmd.Flags().Float64Var(&evalEvery, "eval-every", 10, "Evaluation frequency in counter units")
	cmd.Flags().Float64Var(&checkpointFactor, "checkpoint-factor", 1, "Checkpoint every eval-every times this factor")
	cmd.Flags().StringVar(&counterUnit, "counter-unit", "epochs", "Counter unit: points, batches, or epochs")
	return cmd
}

// parseOverrides turns repeated key=value flags into a config update map.
// Dotted keys nest ("scheduler.kind=exponential"), comma-separated numbers
// become vectors, and bare numbers are coerced before strings.
func parseOverrides(sets []string) (map[string]any, error) {
	if len(sets) == 0 {
		return nil, nil
	}
	overrides := make(map[string]any)
	for _, s := range sets {
		key, raw, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q, want key=value", s)
		}
		value := coerceValue(raw)

		if parent, child, nested := strings.Cut(key, "."); nested {
			sub, ok := overrides[parent].(map[string]any)
			if !ok {
				sub = make(map[string]any)
				overrides[parent] = sub
			}
			sub[child] = value
			continue
		}
		overrides[key] = value
	}
	return overrides, nil
}

func coerceValue(raw string) any {
	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		vec := make([]float64, 0, len(parts))
		for _, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return raw
			}
			vec = append(vec, f)
		}
		return vec
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
