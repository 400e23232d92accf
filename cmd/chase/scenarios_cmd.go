package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List the built-in scenarios run/watch/explain accept",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := scenarioNames()
		sort.Strings(names)
		for _, n := range names {
			fmt.Printf("%-12s %s\n", n, scenarios[n].Description)
		}
		return nil
	},
}
