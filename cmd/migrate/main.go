package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/reliefbridge/fundledger/pkg/config"
	"github.com/reliefbridge/fundledger/pkg/db"
	"github.com/reliefbridge/fundledger/pkg/logger"
	"github.com/reliefbridge/fundledger/pkg/migrate"
)

type dbCommand func(ctx context.Context, sqlDB *sql.DB) error

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "up|down|status|version|check|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory for create and validate")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	skipCheck := flag.Bool("skip-check", false, "do not run ledger checks after up")
	flag.Parse()

	// create and validate only touch the filesystem
	switch *cmd {
	case "create":
		if *name == "" {
			fail("missing -name for create", nil)
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			fail("create migration", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			fail("migration validation", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	check := func(ctx context.Context, sqlDB *sql.DB) error {
		return checkLedger(ctx, logg, sqlDB)
	}
	commands := map[string]dbCommand{
		"up": func(ctx context.Context, sqlDB *sql.DB) error {
			if err := migrate.Run(ctx, sqlDB, "up"); err != nil {
				return err
			}
			if *skipCheck {
				return nil
			}
			return check(ctx, sqlDB)
		},
		"down": func(ctx context.Context, sqlDB *sql.DB) error {
			return migrate.Run(ctx, sqlDB, "down")
		},
		"status": func(ctx context.Context, sqlDB *sql.DB) error {
			return migrate.Run(ctx, sqlDB, "status")
		},
		"version": func(ctx context.Context, sqlDB *sql.DB) error {
			if *version == "" {
				return fmt.Errorf("missing -version")
			}
			return migrate.MigrateToVersion(ctx, sqlDB, *version)
		},
		"check": check,
	}
	run, ok := commands[*cmd]
	if !ok {
		fail("unknown -cmd value "+*cmd, nil)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	if err := run(ctx, sqlDB); err != nil {
		logg.Error(ctx, "migrate.failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrate.done")
}

// checkLedger fails when any bookkeeping invariant is broken after a schema
// change, so a bad data migration is caught before the API starts.
func checkLedger(ctx context.Context, logg *logger.Logger, sqlDB *sql.DB) error {
	failures, err := migrate.CheckLedger(ctx, sqlDB)
	if err != nil {
		return err
	}
	for _, f := range failures {
		logg.Warn(logg.WithFields(ctx, map[string]any{"check": f.Name, "rows": f.Rows}), "ledger.check_failed")
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d ledger checks failed", len(failures))
	}
	logg.Info(ctx, "ledger checks passed")
	return nil
}

func fail(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	} else {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
