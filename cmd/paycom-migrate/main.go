package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"ms-paycom/internal/config"
	"ms-paycom/internal/database/migrations"
	"ms-paycom/internal/logger"
	"ms-paycom/internal/payment/storage"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up, down or to")
	version := flag.Uint("version", 0, "Target version when direction is \"to\"")
	flag.Parse()

	logger := logger.NewLogger()
	defer logger.Close()

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	bunDB, err := storage.OpenPostgres(context.Background(), cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}

	runner := migrations.NewRunner(bunDB.DB, cfg.Migrations, logger)
	defer runner.Close()

	switch *direction {
	case "up":
		err = runner.MigrateUp()
	case "down":
		err = runner.MigrateDown()
	case "to":
		err = runner.MigrateTo(*version)
	default:
		fmt.Fprintf(os.Stderr, "unknown direction %q\n", *direction)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("MIGRATE", err.Error())
	}

	current, dirty, err := runner.Version()
	if err != nil {
		logger.Fatal("MIGRATE", err.Error())
	}
	logger.Info("MIGRATE", fmt.Sprintf("✅ Done. Schema version %d (dirty: %t)", current, dirty))
}
