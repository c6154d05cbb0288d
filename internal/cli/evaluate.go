package cli

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/HazyResearch/ddlite"
	"github.com/HazyResearch/ddlite/metrics"
	"github.com/spf13/cobra"
)

func (c *CLI) newEvaluateCommand() *cobra.Command {
	var dataFolder string
	var modelPath string
	var metricNames string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a trained model against gold labels",
		Example: `  ddlite evaluate --data-folder data
  ddlite evaluate --data-folder data --metrics accuracy,coverage,f1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := parseMetricNames(metricNames)
			if err != nil {
				return err
			}

			slog.Info("Evaluating", "data-folder", dataFolder)
			start := time.Now()
			results, err := ddlite.Evaluate(dataFolder, &ddlite.EvalConfig{
				Kinds:     kinds,
				ModelPath: modelPath,
			})
			if err != nil {
				return err
			}
			slog.Debug("Evaluation completed", "duration", time.Since(start))

			printMetrics(results)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataFolder, "data-folder", "data", "Path to data folder")
	cmd.Flags().StringVar(&modelPath, "model", "", "Path to model file (default: model.json in the data folder)")
	cmd.Flags().StringVar(&metricNames, "metrics", "", "Comma-separated metrics (default: pick by cardinality)")
	return cmd
}

func parseMetricNames(s string) ([]metrics.Kind, error) {
	if s == "" {
		return nil, nil
	}
	var kinds []metrics.Kind
	for _, name := range strings.Split(s, ",") {
		kind, err := metrics.ParseKind(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func printMetrics(results []ddlite.MetricResult) {
	fmt.Printf("%-18s  %7s\n", "metric", "value")
	for _, r := range results {
		fmt.Printf("%-18s  %6.1f%%\n", r.Kind, r.Value*100)
	}
}
