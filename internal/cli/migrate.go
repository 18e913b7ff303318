package cli

import (
	"fmt"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the identity and resource tables",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := database.MigrateCore(rt.db); err != nil {
		return fmt.Errorf("core migration failed: %w", err)
	}
	if err := database.MigrateModels(rt.db, rt.kinds.Models()); err != nil {
		return fmt.Errorf("resource migration failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "migrated %d core and %d resource models\n",
		len(database.CoreModels()), len(rt.kinds.Models()))
	return nil
}
