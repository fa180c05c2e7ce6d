// Command migrate applies, rolls back or repairs the schema outside of the API process.
//
//	migrate up
//	migrate down --steps 1
//	migrate force --version 1   # clears a dirty state after a failed migration
//	migrate version
package main

import (
	"errors"
	"fmt"
	"os"

	migrateV4 "github.com/golang-migrate/migrate/v4"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/yourusername/agency-crm/internal/config"
	"github.com/yourusername/agency-crm/internal/pkg/logger"
	"github.com/yourusername/agency-crm/pkg/database"
)

func main() {
	flags := pflag.NewFlagSet("migrate", pflag.ExitOnError)
	configPath := flags.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	dir := flags.String("dir", "migrations", "directory with the SQL migrations")
	steps := flags.Int("steps", 1, "number of migrations to roll back with down")
	version := flags.Int("version", -1, "version to force")
	_ = flags.Parse(os.Args[1:])

	log, err := logger.NewLogger("info", "development")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if flags.NArg() != 1 {
		log.Fatal("expected exactly one command: up, down, force or version")
	}

	dbCfg, err := config.LoadDatabase(*configPath)
	if err != nil {
		log.Fatal("Failed to load database config", zap.Error(err))
	}
	db, err := database.NewPostgresDB(dbCfg.PostgresConnectionString())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	switch cmd := flags.Arg(0); cmd {
	case "up":
		err = database.MigrateDB(db, *dir, log)
	default:
		var m *migrateV4.Migrate
		m, err = database.NewMigrator(db, *dir)
		if err == nil {
			err = runCommand(m, cmd, *steps, *version, log)
		}
	}
	if err != nil {
		log.Fatal("Migration command failed", zap.Error(err))
	}
}

func runCommand(m *migrateV4.Migrate, cmd string, steps, version int, log *zap.Logger) error {
	switch cmd {
	case "down":
		if steps <= 0 {
			return fmt.Errorf("--steps must be positive")
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrateV4.ErrNoChange) {
			return err
		}
	case "force":
		if version < 0 {
			return fmt.Errorf("--version is required for force")
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	case "version":
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrateV4.ErrNilVersion) {
		return err
	}
	log.Info("Schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
	return nil
}
