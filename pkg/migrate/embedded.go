package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/branchledger/pkg/config"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embedded embed.FS

// EmbeddedFS returns the migrations compiled into the binary for driver.
func EmbeddedFS(driver string) (fs.FS, error) {
	sub := "migrations/postgres"
	if driver == config.DBDriverSQLite {
		sub = "migrations/sqlite"
	}
	return fs.Sub(embedded, sub)
}

// Up applies every pending embedded migration for driver and returns the
// number applied. It does not depend on the working directory.
func Up(ctx context.Context, db *sql.DB, driver string) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("db is required")
	}
	fsys, err := EmbeddedFS(driver)
	if err != nil {
		return 0, fmt.Errorf("open embedded migrations: %w", err)
	}
	dialect := goose.DialectPostgres
	if driver == config.DBDriverSQLite {
		dialect = goose.DialectSQLite3
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return 0, fmt.Errorf("goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("goose up: %w", err)
	}
	return len(results), nil
}
