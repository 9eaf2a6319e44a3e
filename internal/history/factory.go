package history

import (
	"fmt"
	"os"
	"path/filepath"

	"ronin-go/internal/config"
)

// FileName is the database file created under HistoryConfig.DataDir.
const FileName = "history.db"

// NewStoreFromConfig creates the store selected by cfg.Type.
func NewStoreFromConfig(cfg config.HistoryConfig) (*SQLiteStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite history")
		}
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, FileName))
	case "memory":
		return NewSQLiteStore(MemoryPath)
	default:
		return nil, fmt.Errorf("unknown history type: %s", cfg.Type)
	}
}
