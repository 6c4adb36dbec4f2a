package main

import (
	"github.com/aretw0/meshwork/internal/cli"
	"github.com/spf13/cobra"
)

var callCmd = &cobra.Command{
	Use:   "call <service.action>",
	Short: "Call a service action and print the result",
	Long: `Joins the mesh as an ephemeral client node and performs one call.
With the in-memory transport the configured mesh is started inside this process.`,
	Example: `  meshwork call products.seedProducts
  meshwork call products.findProduct --params '{"id":"2"}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, _ := cmd.Flags().GetString("params")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		return cli.Call(ctx, cli.CallOptions{
			Options: commonOptions(cmd),
			Target:  args[0],
			Params:  params,
			Timeout: timeout,
		})
	},
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().String("params", "", "Call parameters as a JSON object")
	callCmd.Flags().Duration("timeout", 0, "Call timeout (defaults to call_timeout from the configuration)")
}
