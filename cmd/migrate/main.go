package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"gremio-backoffice/internal/config"
	"gremio-backoffice/internal/logger"
	"gremio-backoffice/migrations"
	"gremio-backoffice/pkg/database/postgres"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const usage = `usage: migrate <command> [arg]

commands:
  up            apply all pending migrations
  down          roll back every migration
  steps N       apply N migrations (negative N rolls back)
  force V       set the version without running migrations
  version       print the current version
`

func main() {
	_ = godotenv.Load()
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	lg := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}).Named("migrate")
	defer func() { _ = lg.Sync() }()

	db, err := postgres.NewPostgresConnection(context.Background(), postgres.ConnectionInfo{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Username: cfg.Postgres.User,
		DBName:   cfg.Postgres.DBName,
		SSLMode:  cfg.Postgres.SSLMode,
		Password: cfg.Postgres.Password,
	})
	if err != nil {
		lg.Fatal("postgres init error", zap.Error(err))
	}

	m, err := postgres.NewMigrator(db, migrations.FS, lg)
	if err != nil {
		lg.Fatal("migrator init error", zap.Error(err))
	}
	// closes db as well
	defer m.Close()

	if err := run(m, flag.Args()); err != nil {
		lg.Error("migration failed", zap.Error(err))
		m.Close()
		os.Exit(1)
	}
}

func run(m *postgres.Migrator, args []string) error {
	switch args[0] {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "steps":
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Steps(n)
	case "force":
		v, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Force(v)
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%t\n", v, dirty)
		return nil
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func intArg(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s needs a numeric argument", args[0])
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", args[0], args[1])
	}
	return n, nil
}
