package main

import (
	"fmt"
	"os"

	"github.com/aretw0/meshwork/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "meshwork",
	Short: "Meshwork is a service mesh of message-passing nodes",
	Long: `Meshwork hosts services on nodes that find each other through a shared directory
and exchange request/response messages over a pluggable transport.
An HTTP gateway exposes the product API on top of the mesh.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to mesh.yaml (defaults to the built-in three-node mesh)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging of calls and readiness changes")
}

func commonOptions(cmd *cobra.Command) cli.Options {
	configPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	return cli.Options{
		ConfigPath: configPath,
		Debug:      debug,
		Out:        cmd.OutOrStdout(),
	}
}
