package main

import (
	"os"

	"github.com/aretw0/meshwork/internal/cli"
	"github.com/aretw0/meshwork/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the gateway routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		return cli.Routes(cli.RoutesOptions{
			Options: commonOptions(cmd),
			Styled:  !plain && tui.IsTerminal(os.Stdout),
		})
	},
}

func init() {
	rootCmd.AddCommand(routesCmd)

	routesCmd.Flags().Bool("plain", false, "Disable styled output")
}
