package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <unified-user-id>",
	Short: "Print the forwarding chain of an account and its root",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

var ownerCmd = &cobra.Command{
	Use:   "owner <provider> <provider-user-id>",
	Short: "Print the root account that currently owns a credential",
	Args:  cobra.ExactArgs(2),
	RunE:  runOwner,
}

var resolveJSON bool

func init() {
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(ownerCmd)
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Output as JSON")
}

func runResolve(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid unified user id %q", args[0])
	}

	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	chain, err := rt.engine.Accounts.Lineage(cmd.Context(), id)
	if err != nil {
		return err
	}
	root := chain[len(chain)-1]

	out := cmd.OutOrStdout()
	if resolveJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"chain": chain, "root": root})
	}

	hops := make([]string, len(chain))
	for i, c := range chain {
		hops[i] = c.String()
	}
	fmt.Fprintln(out, strings.Join(hops, " -> "))
	fmt.Fprintf(out, "root: %s\n", root)
	return nil
}

func runOwner(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	user, err := rt.engine.Accounts.IdentityOwner(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", user.ID, user.DisplayName)
	return nil
}
