// Package db holds the DuckDB store used for style resolution history.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
)

var (
	instance *sql.DB
	once     sync.Once
	initErr  error
)

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

// Get returns the singleton DuckDB connection.
func Get(cfg Config) (*sql.DB, error) {
	once.Do(func() {
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0755); err != nil {
			initErr = fmt.Errorf("failed to create duckdb directory: %w", err)
			return
		}

		dbPath := filepath.Join(duckdbDir, cfg.DBName+".duckdb")
		instance, initErr = sql.Open("duckdb", DSN(dbPath))
		if initErr != nil {
			return
		}
		if initErr = instance.Ping(); initErr != nil {
			initErr = fmt.Errorf("open %s: %w", dbPath, initErr)
		}
	})
	return instance, initErr
}

// DSN returns the connection string for path with host file and network
// access disabled, so ad-hoc queries cannot reach beyond the database.
// An empty path opens an in-memory database.
func DSN(path string) string {
	return path + "?enable_external_access=false"
}

// Close closes the database connection.
func Close() error {
	if instance != nil {
		return instance.Close()
	}
	return nil
}
