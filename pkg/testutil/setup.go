package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/SecuShare/filevault/pkg/database"
	_ "github.com/mattn/go-sqlite3"
)

// TestConfig holds the paths of a test environment.
type TestConfig struct {
	DBPath      string
	StoragePath string
}

// SetupTest opens a migrated SQLite database and an empty blob directory
// under t.TempDir. The returned cleanup closes the database; the directory
// itself is removed by the testing package.
func SetupTest(t *testing.T) (*sql.DB, *TestConfig, func()) {
	t.Helper()

	root := t.TempDir()
	cfg := &TestConfig{
		DBPath:      filepath.Join(root, "filevault.db"),
		StoragePath: filepath.Join(root, "blobs"),
	}

	db, err := database.Initialize(cfg.DBPath)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			t.Logf("close test database: %v", err)
		}
	}

	if err := database.InitSchema(db); err != nil {
		closeDB()
		t.Fatalf("migrate test schema: %v", err)
	}
	if err := os.MkdirAll(cfg.StoragePath, 0750); err != nil {
		closeDB()
		t.Fatalf("create blob directory: %v", err)
	}

	return db, cfg, closeDB
}
