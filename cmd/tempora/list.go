package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var demosCmd = &cobra.Command{
	Use:   "demos",
	Short: "List the demo models",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		for _, d := range demos {
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", d.name, d.short)
		}
	},
}

func init() {
	rootCmd.AddCommand(demosCmd)
}
