package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/meshwork"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of meshwork",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "meshwork version %s\n", strings.TrimSpace(meshwork.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
