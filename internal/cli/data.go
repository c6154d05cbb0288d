package cli

import (
	"fmt"
	"sort"

	"github.com/HazyResearch/ddlite/internal/storage"
	"github.com/HazyResearch/ddlite/metrics"
	"github.com/spf13/cobra"
)

func (c *CLI) newDataCommand() *cobra.Command {
	dataCmd := &cobra.Command{
		Use:   "data",
		Short: "Inspect and validate data folders",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	var inspectDataFolder string
	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize the label matrix in a data folder",
		Example: `  ddlite data inspect
  ddlite data inspect --data-folder data`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dataInspect(inspectDataFolder)
		},
	}
	inspectCmd.Flags().StringVar(&inspectDataFolder, "data-folder", "data", "Path to data folder")

	dataCmd.AddCommand(inspectCmd)
	return dataCmd
}

func dataInspect(dataFolder string) error {
	store := storage.NewStorage(dataFolder)
	ds, err := store.GetDataset()
	if err != nil {
		return err
	}

	n := len(ds.L)
	m := 0
	if n > 0 {
		m = len(ds.L[0])
	}

	fmt.Printf("Data points:        %d\n", n)
	fmt.Printf("Labeling functions: %d\n", m)
	fmt.Printf("Observed classes:   %d\n", countClasses(ds.L))
	fmt.Printf("Dependency edges:   %d\n", len(ds.Deps))
	if ds.ClassBalance != nil {
		fmt.Printf("Class balance:      %v\n", ds.ClassBalance)
	}
	if ds.DevLabels != nil {
		fmt.Printf("Dev labels:         %d\n", len(ds.DevLabels))
	}

	fmt.Printf("\nPer labeling function:\n")
	fmt.Printf("%4s  %8s  %s\n", "lf", "coverage", "classes")
	for j := 0; j < m; j++ {
		column := make([]int, n)
		for i := range ds.L {
			column[i] = ds.L[i][j]
		}
		cov, err := metrics.Score(metrics.Coverage, nil, column, nil)
		if err != nil {
			return err
		}
		fmt.Printf("%4d  %7.1f%%  %v\n", j, cov*100, votedClasses(column))
	}
	return nil
}

// countClasses reports the highest class voted anywhere in L, with a floor
// of 2 so an all-abstain matrix still reads as binary.
func countClasses(L [][]int) int {
	k := 2
	for _, row := range L {
		for _, v := range row {
			if v > k {
				k = v
			}
		}
	}
	return k
}

func votedClasses(column []int) []int {
	seen := map[int]bool{}
	for _, v := range column {
		if v != 0 {
			seen[v] = true
		}
	}
	classes := make([]int, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Ints(classes)
	return classes
}
