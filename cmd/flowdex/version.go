package main

import (
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/flowdex/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("flowdex %s\n", version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
