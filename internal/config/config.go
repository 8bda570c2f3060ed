package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the ~/.flashkit/config.toml file.
type Config struct {
	DefaultBlockSize        uint32 `toml:"default_block_size,omitempty" json:"default_block_size"`
	DefaultMaxDownloadChunk uint32 `toml:"default_max_download_chunk,omitempty" json:"default_max_download_chunk"`
	DefaultMaxFragmentSize  int64  `toml:"default_max_fragment_size,omitempty" json:"default_max_fragment_size"`
	DefaultLogLevel         string `toml:"default_log_level,omitempty" json:"default_log_level"`
}

// configDirOverride is set by the --config-dir flag or FLASHKIT_HOME env var.
var configDirOverride string

// SetConfigDir allows the CLI to pass in the --config-dir / FLASHKIT_HOME value.
func SetConfigDir(dir string) {
	configDirOverride = dir
}

// FlashkitHome returns the config directory path.
// Precedence: --config-dir flag / SetConfigDir > FLASHKIT_HOME env > ~/.flashkit
func FlashkitHome() string {
	if configDirOverride != "" {
		return configDirOverride
	}
	if v := os.Getenv("FLASHKIT_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".flashkit")
	}
	return filepath.Join(home, ".flashkit")
}

// ConfigPath returns the full path to config.toml.
func ConfigPath() string {
	return filepath.Join(FlashkitHome(), "config.toml")
}

// EnsureDir creates the flashkit home directory if it does not exist.
func EnsureDir() error {
	return os.MkdirAll(FlashkitHome(), 0o755)
}

// Defaults returns the built-in values used when config.toml omits a field.
func Defaults() Config {
	return Config{
		DefaultBlockSize:        4096,
		DefaultMaxDownloadChunk: 1 << 20,
		DefaultMaxFragmentSize:  0, // 0 means "do not split"
		DefaultLogLevel:         "info",
	}
}

// Load reads config.toml, filling any field the file omits with its
// built-in default. If the file does not exist, it returns the defaults.
func Load() (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}
	return &cfg, nil
}

// Save writes the Config struct back to config.toml.
func Save(cfg *Config) error {
	if err := EnsureDir(); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(ConfigPath(), data, 0o644)
}

// validKeys lists the flat keys that can be used with Get/Set.
var validKeys = map[string]bool{
	"default_block_size":         true,
	"default_max_download_chunk": true,
	"default_max_fragment_size":  true,
	"default_log_level":          true,
}

// Get retrieves a single config value by key.
func Get(key string) (string, error) {
	if !validKeys[key] {
		return "", fmt.Errorf("unknown config key: %s", key)
	}
	cfg, err := Load()
	if err != nil {
		return "", err
	}
	return getField(cfg, key)
}

// Set sets a single config value by key.
func Set(key, value string) error {
	if !validKeys[key] {
		return fmt.Errorf("unknown config key: %s", key)
	}
	cfg, err := Load()
	if err != nil {
		return err
	}
	if err := setField(cfg, key, value); err != nil {
		return err
	}
	return Save(cfg)
}

func getField(cfg *Config, key string) (string, error) {
	switch key {
	case "default_block_size":
		return strconv.FormatUint(uint64(cfg.DefaultBlockSize), 10), nil
	case "default_max_download_chunk":
		return strconv.FormatUint(uint64(cfg.DefaultMaxDownloadChunk), 10), nil
	case "default_max_fragment_size":
		return strconv.FormatInt(cfg.DefaultMaxFragmentSize, 10), nil
	case "default_log_level":
		return cfg.DefaultLogLevel, nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

func setField(cfg *Config, key, value string) error {
	switch key {
	case "default_block_size":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("default_block_size: %w", err)
		}
		cfg.DefaultBlockSize = uint32(n)
	case "default_max_download_chunk":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("default_max_download_chunk: %w", err)
		}
		cfg.DefaultMaxDownloadChunk = uint32(n)
	case "default_max_fragment_size":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("default_max_fragment_size: %w", err)
		}
		cfg.DefaultMaxFragmentSize = n
	case "default_log_level":
		cfg.DefaultLogLevel = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
