package history

import (
	"os"
	"path/filepath"
	"testing"

	"ronin-go/internal/config"
)

func TestNewStoreFromConfig(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		got, err := NewStoreFromConfig(config.HistoryConfig{Type: "memory"})
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
		defer got.Close()
		if got.Path() != MemoryPath {
			t.Errorf("Path() = %q, want %q", got.Path(), MemoryPath)
		}
	})

	t.Run("sqlite creates data dir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "db")
		got, err := NewStoreFromConfig(config.HistoryConfig{Type: "sqlite", DataDir: dir})
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
		defer got.Close()

		want := filepath.Join(dir, FileName)
		if got.Path() != want {
			t.Errorf("Path() = %q, want %q", got.Path(), want)
		}
		if _, err := os.Stat(want); err != nil {
			t.Errorf("database file not created: %v", err)
		}
	})

	t.Run("sqlite without data_dir", func(t *testing.T) {
		got, err := NewStoreFromConfig(config.HistoryConfig{Type: "sqlite"})
		if err == nil {
			got.Close()
			t.Fatal("NewStoreFromConfig() expected error for missing data_dir")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		got, err := NewStoreFromConfig(config.HistoryConfig{Type: "postgres"})
		if err == nil {
			got.Close()
			t.Fatal("NewStoreFromConfig() expected error for unknown type")
		}
	})
}
