// AngelaMos | 2026
// main.go

package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/carterperez-dev/edu-platform/auth-service/internal/auth"
)

func main() {
	privatePath := flag.String("private", "keys/private.pem", "private key output path")
	publicPath := flag.String("public", "keys/public.pem", "public key output path")
	force := flag.Bool("force", false, "overwrite existing keys")
	flag.Parse()

	if err := run(*privatePath, *publicPath, *force); err != nil {
		slog.Error("key generation failed", "error", err)
		os.Exit(1)
	}

	slog.Info("ES256 key pair written",
		"private", *privatePath,
		"public", *publicPath,
	)
}

func run(privatePath, publicPath string, force bool) error {
	if !force {
		for _, p := range []string{privatePath, publicPath} {
			if _, err := os.Stat(p); err == nil {
				return fmt.Errorf("%s exists, pass -force to overwrite", p)
			} else if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("stat %s: %w", p, err)
			}
		}
	}

	for _, p := range []string{privatePath, publicPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return fmt.Errorf("create key directory: %w", err)
		}
	}

	return auth.GenerateKeyPair(privatePath, publicPath)
}
