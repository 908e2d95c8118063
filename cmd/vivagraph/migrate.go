package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/ahmadarif238/vivagraph-ai/config"
	"github.com/ahmadarif238/vivagraph-ai/internal/database"
	"github.com/ahmadarif238/vivagraph-ai/internal/migration"
	"github.com/ahmadarif238/vivagraph-ai/internal/persistence"
	"go.uber.org/zap"
)

// =============================================================================
// Database Migration Commands
// =============================================================================

// runMigrate 解析公共参数后分发：auto 走 gorm AutoMigrate，其余交给 migration.CLI
func runMigrate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database connection URL")
	fs.Usage = func() { printMigrateUsage(out) }
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 || rest[0] == "help" {
		printMigrateUsage(out)
		if len(rest) == 0 {
			return fmt.Errorf("missing migrate subcommand")
		}
		return nil
	}

	ctx := context.Background()

	if rest[0] == "auto" {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			return err
		}
		if *dbType != "" {
			cfg.Database.Driver = *dbType
		}
		return runAutoMigrate(ctx, cfg.Database, out)
	}

	migrator, err := createMigrator(*configPath, *dbType, *dbURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer migrator.Close()

	cli := migration.NewCLI(migrator)
	cli.SetOutput(out)
	return cli.Run(ctx, rest)
}

// createMigrator --db-type 与 --db-url 同时给出时直接使用，否则读取配置
func createMigrator(configPath, dbType, dbURL string) (*migration.DefaultMigrator, error) {
	if dbType != "" && dbURL != "" {
		return migration.NewMigratorFromURL(dbType, dbURL)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if dbType != "" {
		cfg.Database.Driver = dbType
	}
	return migration.NewMigratorFromDatabaseConfig(cfg.Database)
}

// runAutoMigrate 用持久化模型直接同步表结构
func runAutoMigrate(ctx context.Context, dbCfg config.DatabaseConfig, out io.Writer) error {
	pool, err := database.Open(dbCfg, zap.NewNop())
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := persistence.NewStore(pool.DB(), zap.NewNop()).AutoMigrate(ctx); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	fmt.Fprintf(out, "AutoMigrate completed (%s)\n", dbCfg.Driver)
	return nil
}

func printMigrateUsage(out io.Writer) {
	fmt.Fprintln(out, `Database Migration Commands

Usage:
  vivagraph migrate [options] <subcommand> [arg]

Subcommands:
  up          Apply all pending migrations
  down        Rollback the last migration
  down-all    Rollback all migrations
  steps <n>   Apply (n>0) or rollback (n<0) n migrations
  goto <v>    Migrate to a specific version
  force <v>   Force set migration version (use with caution)
  version     Show current migration version
  status      Show migration status
  info        Show migration summary
  auto        Sync schema from persistence models (gorm AutoMigrate)

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  vivagraph migrate up
  vivagraph migrate --config /etc/vivagraph/config.yaml status
  vivagraph migrate --db-type sqlite --db-url sqlite://vivagraph.db up
  vivagraph migrate force 1`)
}
