// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carterperez-dev/edu-platform/auth-service/internal/auth"
	"github.com/carterperez-dev/edu-platform/auth-service/internal/config"
	"github.com/carterperez-dev/edu-platform/auth-service/internal/core"
)

// purge removes token rows that can no longer be redeemed. Redemption
// checks expiry itself, so this only reclaims space.
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	retention := flag.Duration(
		"retention",
		24*time.Hour,
		"keep expired and used rows this long",
	)
	flag.Parse()

	if err := run(*configPath, *retention); err != nil {
		slog.Error("purge failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, retention time.Duration) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}()

	before := time.Now().Add(-retention)

	deleted, err := auth.NewRepository(db.DB).DeleteExpired(ctx, before)
	if err != nil {
		return err
	}

	slog.Info("expired tokens purged",
		"deleted", deleted,
		"before", before,
	)
	return nil
}
