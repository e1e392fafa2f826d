package migrate_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/branchledger/pkg/config"
	"github.com/angelmondragon/branchledger/pkg/migrate"
)

func TestMigrationDirsValidate(t *testing.T) {
	for _, driver := range []string{config.DBDriverPostgres, config.DBDriverSQLite} {
		dir := filepath.Join("migrations", filepath.Base(migrate.DirFor(driver)))
		if err := migrate.ValidateDir(dir); err != nil {
			t.Fatalf("%s migrations invalid: %v", driver, err)
		}
	}
}

func TestPostgresMigrationsContainLedgerConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "postgres", "*.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	var content strings.Builder
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read migration file: %v", err)
		}
		content.Write(data)
	}

	checks := []string{
		"CREATE TABLE IF NOT EXISTS branch_entries",
		"CONSTRAINT uq_branch_entries_manifest_number UNIQUE (manifest_number)",
		"CREATE TABLE IF NOT EXISTS pending_followups",
		"CONSTRAINT uq_pending_followups_source_event_id UNIQUE (source_event_id)",
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"CREATE TABLE IF NOT EXISTS outbox_dlq",
		"DROP TABLE IF EXISTS branch_entries",
		"idx_outbox_events_published",
		"idx_pending_followups_resolved",
	}
	for _, sub := range checks {
		if !strings.Contains(content.String(), sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestSQLiteMigrationsApply(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_apply?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	defer sqlDB.Close()

	ctx := context.Background()
	dir := filepath.Join("migrations", "sqlite")
	if err := migrate.Run(ctx, sqlDB, migrate.DialectFor(config.DBDriverSQLite), dir, "up"); err != nil {
		t.Fatalf("goose up: %v", err)
	}
	for _, table := range []string{"branch_entries", "pending_followups", "outbox_events", "outbox_dlq"} {
		if !conn.Migrator().HasTable(table) {
			t.Errorf("table %s missing after migration", table)
		}
	}

	if err := migrate.Run(ctx, sqlDB, migrate.DialectFor(config.DBDriverSQLite), dir, "reset"); err != nil {
		t.Fatalf("goose reset: %v", err)
	}
	if conn.Migrator().HasTable("branch_entries") {
		t.Errorf("branch_entries should be dropped after reset")
	}
}

func TestUpAppliesEmbeddedMigrationsOnce(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_embedded?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	defer sqlDB.Close()

	ctx := context.Background()
	applied, err := migrate.Up(ctx, sqlDB, config.DBDriverSQLite)
	if err != nil {
		t.Fatalf("up: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "sqlite", "*.sql"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if applied != len(onDisk) {
		t.Fatalf("applied %d migrations, %d on disk", applied, len(onDisk))
	}
	for _, table := range []string{"branch_entries", "pending_followups", "outbox_events", "outbox_dlq"} {
		if !conn.Migrator().HasTable(table) {
			t.Errorf("table %s missing", table)
		}
	}

	again, err := migrate.Up(ctx, sqlDB, config.DBDriverSQLite)
	if err != nil || again != 0 {
		t.Fatalf("second run applied %d err=%v", again, err)
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	for _, driver := range []string{config.DBDriverPostgres, config.DBDriverSQLite} {
		fsys, err := migrate.EmbeddedFS(driver)
		if err != nil {
			t.Fatalf("%s: %v", driver, err)
		}
		embedded, err := fs.Glob(fsys, "*.sql")
		if err != nil {
			t.Fatalf("%s: %v", driver, err)
		}
		onDisk, err := filepath.Glob(filepath.Join("migrations", filepath.Base(migrate.DirFor(driver)), "*.sql"))
		if err != nil {
			t.Fatalf("%s: %v", driver, err)
		}
		if len(embedded) != len(onDisk) {
			t.Fatalf("%s: %d embedded vs %d on disk", driver, len(embedded), len(onDisk))
		}
		for i, name := range embedded {
			if filepath.Base(onDisk[i]) != name {
				t.Fatalf("%s: embedded %s, disk %s", driver, name, onDisk[i])
			}
		}
	}
}

func TestCreateSQLMigrations(t *testing.T) {
	base := t.TempDir()
	pg, lite := filepath.Join(base, "postgres"), filepath.Join(base, "sqlite")

	paths, err := migrate.CreateSQLMigrations("Add Vehicle Index!", pg, lite)
	if err != nil {
		t.Fatalf("create migrations: %v", err)
	}
	if len(paths) != 2 || filepath.Base(paths[0]) != filepath.Base(paths[1]) {
		t.Fatalf("expected one shared filename, got %v", paths)
	}
	if !strings.HasSuffix(paths[0], "_add_vehicle_index.sql") {
		t.Fatalf("unexpected filename %s", paths[0])
	}
	for _, dir := range []string{pg, lite} {
		if err := migrate.ValidateDir(dir); err != nil {
			t.Fatalf("created migration does not validate: %v", err)
		}
	}
	if err := migrate.ValidateParity(pg, lite); err != nil {
		t.Fatalf("parity: %v", err)
	}

	if _, err := migrate.CreateSQLMigrations("  !! ", pg); err == nil {
		t.Fatal("expected error for unusable name")
	}
	if _, err := migrate.CreateSQLMigrations("x"); err == nil {
		t.Fatal("expected error without dirs")
	}
}

func TestValidateParityDetectsDrift(t *testing.T) {
	base := t.TempDir()
	pg, lite := filepath.Join(base, "postgres"), filepath.Join(base, "sqlite")
	if _, err := migrate.CreateSQLMigrations("only postgres", pg); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := os.MkdirAll(lite, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := migrate.ValidateParity(pg, lite); err == nil {
		t.Fatal("expected drift to be reported")
	}
	if err := migrate.ValidateParity(filepath.Join("migrations", "postgres"), filepath.Join("migrations", "sqlite")); err != nil {
		t.Fatalf("shipped migrations drifted: %v", err)
	}
}

func TestDialectFor(t *testing.T) {
	if got := migrate.DialectFor(config.DBDriverSQLite); got != "sqlite3" {
		t.Fatalf("expected sqlite3, got %s", got)
	}
	if got := migrate.DialectFor(config.DBDriverPostgres); got != "postgres" {
		t.Fatalf("expected postgres, got %s", got)
	}
}
