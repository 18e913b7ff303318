package testutil

import (
	"path/filepath"
	"testing"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/database"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/resources"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/resources/companies"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/resources/grants"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Resources returns the owned-resource registry used by the server.
func Resources() *resources.Registry {
	return resources.NewRegistry(companies.New(), grants.New())
}

// TempDB creates a migrated SQLite database in a temp directory. The pool is
// limited to one connection so concurrent transactions serialize the way row
// locks serialize them on Postgres.
func TempDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=on&_busy_timeout=5000"
	cfg := database.GormConfig()
	cfg.Logger = logger.Default.LogMode(logger.Silent)

	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.MigrateCore(db); err != nil {
		sqlDB.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}
	if err := database.MigrateModels(db, Resources().Models()); err != nil {
		sqlDB.Close()
		t.Fatalf("Failed to run resource migrations: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// CountRows returns the number of rows in the table backing model.
func CountRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	return n
}
