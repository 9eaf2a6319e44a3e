package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"ronin-go/internal/ronin"
)

// Defaults applied to fields left unset.
const (
	DefaultPollInterval = time.Second
	DefaultMaxFailures  = 5
)

// Config represents the application configuration for ronin. It holds
// settings shared by every source directory; per-directory instructions
// live in each directory's manifest.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	History    HistoryConfig    `toml:"history"`
	Watch      WatchConfig      `toml:"watch"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// HistoryConfig represents configuration for the sync-run history store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type HistoryConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// WatchConfig holds the defaults for watch mode.
type WatchConfig struct {
	PollInterval Duration `toml:"poll_interval"`
	MaxFailures  int      `toml:"max_failures"`
	// Poll selects periodic snapshots over native filesystem events.
	// Needed for shared folders, where events from the other side never
	// arrive.
	Poll bool `toml:"poll"`
	// Shallow watches only the source directory's direct children.
	Shallow bool `toml:"shallow"`
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	// Ignore patterns apply to every source directory.
	Ignore []string `toml:"ignore"`
}

// Duration is a time.Duration written as a string such as "1s" or "500ms".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// NewConfig creates a new Config rooted at baseDir with default settings.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		History: HistoryConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Watch: WatchConfig{
			PollInterval: Duration{DefaultPollInterval},
			MaxFailures:  DefaultMaxFailures,
		},
	}
}

// ApplyDefaults fills unset fields from NewConfig(baseDir).
func (c *Config) ApplyDefaults(baseDir string) {
	if c.BaseDir == "" {
		c.BaseDir = baseDir
	}
	def := NewConfig(c.BaseDir)
	if c.LogDir == "" {
		c.LogDir = def.LogDir
	}
	if c.History.Type == "" {
		c.History.Type = def.History.Type
	}
	if c.History.Type == "sqlite" && c.History.DataDir == "" {
		c.History.DataDir = def.History.DataDir
	}
	if c.Watch.PollInterval.Duration == 0 {
		c.Watch.PollInterval = def.Watch.PollInterval
	}
	if c.Watch.MaxFailures == 0 {
		c.Watch.MaxFailures = def.Watch.MaxFailures
	}
}

// Validate reports the first invalid field as a *ronin.ConfigurationError.
func (c *Config) Validate() error {
	switch c.History.Type {
	case "sqlite", "memory", "":
	default:
		return &ronin.ConfigurationError{Field: "history.type", Err: fmt.Errorf("unknown history type: %q", c.History.Type)}
	}
	if c.Watch.PollInterval.Duration < 0 {
		return &ronin.ConfigurationError{Field: "watch.poll_interval", Err: fmt.Errorf("must not be negative, got %s", c.Watch.PollInterval)}
	}
	if c.Watch.MaxFailures < 0 {
		return &ronin.ConfigurationError{Field: "watch.max_failures", Err: fmt.Errorf("must not be negative, got %d", c.Watch.MaxFailures)}
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, &ronin.ConfigurationError{Source: path, Err: err}
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
