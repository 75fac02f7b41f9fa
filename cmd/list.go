package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tclemos/store-bench/benchmark"
)

var listConfigPath string

// listCmd prints the configured backends and datasets.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured backends and datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := benchmark.LoadConfig(listConfigPath)
		if err != nil {
			return err
		}

		fmt.Println("Backends:")
		for _, b := range cfg.Backends {
			target := b.Container
			if target == "" {
				target = "self"
			}
			fmt.Printf("  - %s (type: %s, monitor: %s)\n", b.Name, b.Type, target)
		}

		fmt.Println("Datasets:")
		for _, ds := range cfg.Datasets {
			fmt.Printf("  - %s (%s -> %s)\n", ds.Label, ds.Path, ds.Collection)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listConfigPath, "config", "c", "", "Path to the YAML config file (default: store-bench.yaml)")
}
