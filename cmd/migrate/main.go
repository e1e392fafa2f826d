package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/branchledger/pkg/config"
	"github.com/angelmondragon/branchledger/pkg/db"
	"github.com/angelmondragon/branchledger/pkg/logger"
	"github.com/angelmondragon/branchledger/pkg/migrate"
)

const serviceName = "migrate"

type flags struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	var f flags
	flag.StringVar(&f.cmd, "cmd", "up", "up|down|status|version|create|validate")
	flag.StringVar(&f.dir, "dir", "", "migrations directory; create and validate default to every driver tree, the rest to the configured driver")
	flag.StringVar(&f.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&f.version, "version", "", "target YYYYMMDDHHMMSS for -cmd=version")
	flag.Parse()

	// create and validate only touch files.
	switch f.cmd {
	case "create":
		exitOn(createMigrations(f), "create migration")
		return
	case "validate":
		exitOn(validate(f), "validate migrations")
		fmt.Println("migration validation passed")
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	exitOn(err, "load config")

	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	exitOn(runAgainstDB(context.Background(), cfg, logg, f), "migrate "+f.cmd)
}

func runAgainstDB(ctx context.Context, cfg *config.Config, logg *logger.Logger, f flags) error {
	driver := config.DBDriverPostgres
	if cfg.DB.IsSQLite() {
		driver = config.DBDriverSQLite
	}
	if f.dir == "" {
		f.dir = migrate.DirFor(driver)
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": f.cmd, "dir": f.dir, "driver": driver})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return err
	}
	dialect := migrate.DialectFor(dbClient.Driver())
	logg.Info(ctx, "migrate ready")

	switch f.cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, dialect, f.dir, f.cmd)
	case "version":
		if f.version == "" {
			return fmt.Errorf("-version is required")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, dialect, f.dir, f.version)
	default:
		return fmt.Errorf("unknown -cmd %q", f.cmd)
	}
}

func driverDirs(dir string) []string {
	if dir != "" {
		return []string{dir}
	}
	return []string{migrate.DirFor(config.DBDriverPostgres), migrate.DirFor(config.DBDriverSQLite)}
}

func createMigrations(f flags) error {
	if f.name == "" {
		return fmt.Errorf("-name is required")
	}
	paths, err := migrate.CreateSQLMigrations(f.name, driverDirs(f.dir)...)
	for _, path := range paths {
		fmt.Println("created migration:", path)
	}
	return err
}

func validate(f flags) error {
	dirs := driverDirs(f.dir)
	for _, dir := range dirs {
		if err := migrate.ValidateDir(dir); err != nil {
			return err
		}
	}
	return migrate.ValidateParity(dirs...)
}

func exitOn(err error, step string) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}
