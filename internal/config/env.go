package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// envFiles are read in order; earlier files win because variables that are
// already set are never overridden.
var envFiles = []string{
	".env.local",
	".env",
}

// LoadEnvFiles loads .env.local and .env from rootDir into the process
// environment, so OPENAI_API_KEY and SMOLEX_* settings can live next to the
// code. Missing files are skipped. It returns the files that were loaded.
func LoadEnvFiles(rootDir string) ([]string, error) {
	var loaded []string
	for _, name := range envFiles {
		path := filepath.Join(rootDir, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, fmt.Errorf("failed to load %s: %w", path, err)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}
