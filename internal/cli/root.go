package cli

import (
	"fmt"
	"os"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/config"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/database"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/resources"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/resources/companies"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/resources/grants"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/services"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "identityctl",
	Short: "Operator tooling for the unified identity engine",
	Long: `identityctl runs migrations, inspects account lineage and performs
operator merges directly against the identity database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("env-file", "", "Path to .env file (overrides ENV_FILE)")
}

// runtime is the database and engine a command operates on.
type runtime struct {
	db     *gorm.DB
	kinds  *resources.Registry
	engine *services.Engine
	close  func()
}

// openRuntime is replaced in tests.
var openRuntime = func(cmd *cobra.Command) (*runtime, error) {
	if path := cmd.Flag("env-file").Value.String(); path != "" {
		os.Setenv("ENV_FILE", path)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := database.Connect(cfg); err != nil {
		return nil, err
	}

	kinds := resources.NewRegistry(companies.New(), grants.New())
	return &runtime{
		db:     database.DB,
		kinds:  kinds,
		engine: services.NewEngine(database.DB, cfg, kinds, nil),
		close:  func() { database.Close() },
	}, nil
}
