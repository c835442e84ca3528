package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// envFiles are tried in order; later files never override earlier ones or the process environment.
var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads KEY=VALUE files next to the configuration so external
// library roots (QT5_DIR and friends) can be kept out of the shell profile.
// Missing files are ignored; unparsable ones are logged and skipped.
func loadEnvFiles(dir string) {
	for _, name := range envFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			slog.Warn("Failed to load env file", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		slog.Debug("Loaded environment variables", slog.String("path", path))
	}
}
