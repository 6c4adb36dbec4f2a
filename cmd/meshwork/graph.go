package main

import (
	"github.com/aretw0/meshwork/internal/cli"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the service graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the services, grouped by node and
styled by readiness. With the redis transport the live directory is read.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Graph(cmd.Context(), commonOptions(cmd))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
