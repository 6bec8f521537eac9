package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"partrecon/internal/config"
	"partrecon/internal/coverage"
)

// MustOpenHistory opens the configured coverage history and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) coverage.Store {
	t.Helper()

	store, err := coverage.Open(context.Background(), cfg.Coverage.Backend, cfg.Paths.History)
	if err != nil {
		t.Fatalf("coverage.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// WriteConfig serializes cfg as TOML next to its temp paths and returns the
// file location, for commands that load configuration themselves.
func WriteConfig(t testing.TB, cfg *config.Config) string {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(BaseDir(cfg), "partrecon.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
