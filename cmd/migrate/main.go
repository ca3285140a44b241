// AngelaMos | 2026
// main.go

package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/carterperez-dev/edu-platform/auth-service/internal/config"
	"github.com/carterperez-dev/edu-platform/auth-service/migrations"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	down := flag.Bool("down", false, "revert all migrations instead of applying them")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	apply, direction := migrations.Up, "up"
	if *down {
		apply, direction = migrations.Down, "down"
	}

	if err := apply(cfg.Database.URL); err != nil {
		slog.Error("migration failed", "direction", direction, "error", err)
		os.Exit(1)
	}

	slog.Info("migrations complete", "direction", direction)
}
