package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"ronin-go/internal/config"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - RONIN_CONFIG_PATH: config file location (default: ~/.config/ronin.toml)
//   - RONIN_HOME: base directory for ronin data (default: ~/.local/share/ronin)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv("RONIN_CONFIG_PATH"); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "ronin.toml"), nil
}

func getBaseDir() (string, error) {
	if path := os.Getenv("RONIN_HOME"); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "ronin"), nil
}

// LoadConfig reads the config at path. A missing file is not an error:
// defaults rooted at baseDir are returned instead.
func LoadConfig(path, baseDir string) (*config.Config, error) {
	cfg, err := config.ReadFromFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = config.NewConfig(baseDir)
	case err != nil:
		return nil, err
	default:
		cfg.ApplyDefaults(baseDir)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
