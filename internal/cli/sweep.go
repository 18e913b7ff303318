package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep-tokens",
	Short: "Delete expired, unredeemed merge tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.close()

		n, err := rt.engine.Accounts.SweepMergeTokens(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d merge tokens\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
