package main

import (
	"fmt"

	"github.com/aretw0/proofline"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of proofline",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "proofline version %s\n", proofline.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
