package main

import (
	"github.com/aretw0/meshwork/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run mesh nodes until interrupted",
	Long: `Starts the nodes described in the configuration and waits for every service
to become ready. With the redis transport, --node runs a subset of the topology
so that nodes can be spread across processes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		nodes, _ := cmd.Flags().GetStringSlice("node")
		quiet, _ := cmd.Flags().GetBool("quiet")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		return cli.Serve(ctx, cli.ServeOptions{
			Options: commonOptions(cmd),
			Nodes:   nodes,
			Quiet:   quiet,
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringSlice("node", nil, "Node to run (repeatable); default runs every node")
	serveCmd.Flags().Bool("quiet", false, "Suppress the banner and status messages")
}
