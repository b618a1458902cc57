package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

const (
	DefaultHiroBaseURL       = "https://api.hiro.so/ordinals/v1"
	DefaultSlideshowInterval = 30 * time.Second
)

type Config struct {
	StorageDir      string        `toml:"storage_dir"`
	Address         string        `toml:"address"`
	LogLevel        string        `toml:"log_level"`
	LogFile         string        `toml:"log_file"`
	RefreshInterval Duration      `toml:"refresh_interval"`
	Server          ServerConfig  `toml:"server"`
	Hiro            HiroConfig    `toml:"hiro"`
	Display         DisplayConfig `toml:"display"`
	Content         ContentConfig `toml:"content"`
	MDNS            MDNSConfig    `toml:"mdns"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type HiroConfig struct {
	BaseURL        string   `toml:"base_url"`
	APIKey         string   `toml:"api_key"`
	RequestTimeout Duration `toml:"request_timeout"`
	MaxRetries     int      `toml:"max_retries"`
	RetryBackoff   Duration `toml:"retry_backoff"`
	CacheTTL       Duration `toml:"cache_ttl"`
}

// DisplayConfig holds the viewer timings.
type DisplayConfig struct {
	SlideshowInterval Duration `toml:"slideshow_interval"`
	TouchHold         Duration `toml:"touch_hold"`
	TapMax            Duration `toml:"tap_max"`
	MetadataTimeout   Duration `toml:"metadata_timeout"`
}

type ContentConfig struct {
	MaxSizeMB int      `toml:"max_size_mb"`
	CacheTTL  Duration `toml:"cache_ttl"`
}

type MDNSConfig struct {
	Enabled  bool   `toml:"enabled"`
	Instance string `toml:"instance"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MaxContentBytes is the largest inscription body the proxy will serve.
func (c ContentConfig) MaxContentBytes() int64 {
	return int64(c.MaxSizeMB) * 1024 * 1024
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	cfg := &Config{
		StorageDir: storageDir,
		MDNS:       MDNSConfig{Enabled: true},
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills every zero value with the stock setting.
func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Hiro.BaseURL == "" {
		c.Hiro.BaseURL = DefaultHiroBaseURL
	}
	c.Hiro.BaseURL = strings.TrimRight(c.Hiro.BaseURL, "/")
	if c.Hiro.RequestTimeout.Duration == 0 {
		c.Hiro.RequestTimeout = Duration{30 * time.Second}
	}
	if c.Hiro.MaxRetries <= 0 {
		c.Hiro.MaxRetries = 3
	}
	if c.Hiro.RetryBackoff.Duration == 0 {
		c.Hiro.RetryBackoff = Duration{time.Second}
	}
	if c.Hiro.CacheTTL.Duration == 0 {
		c.Hiro.CacheTTL = Duration{time.Hour}
	}
	if c.Display.SlideshowInterval.Duration <= 0 {
		c.Display.SlideshowInterval = Duration{DefaultSlideshowInterval}
	}
	if c.Display.TouchHold.Duration <= 0 {
		c.Display.TouchHold = Duration{500 * time.Millisecond}
	}
	if c.Display.TapMax.Duration <= 0 {
		c.Display.TapMax = Duration{300 * time.Millisecond}
	}
	if c.Display.MetadataTimeout.Duration <= 0 {
		c.Display.MetadataTimeout = Duration{5 * time.Second}
	}
	if c.Content.MaxSizeMB <= 0 {
		c.Content.MaxSizeMB = 50
	}
	if c.Content.CacheTTL.Duration == 0 {
		c.Content.CacheTTL = Duration{24 * time.Hour}
	}
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Config{MDNS: MDNSConfig{Enabled: true}}
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		config.StorageDir = storageDir
	}
	config.applyDefaults()

	return &config, nil
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// SaveTemplateConfig writes the commented sample config with this config's
// storage directory filled in.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	template := strings.Replace(configTemplate, "/home/user/.local/share/ordframe", c.StorageDir, 1)
	return os.WriteFile(configPath, []byte(template), 0644)
}

// DBPath returns the SQLite database path inside the storage directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.StorageDir, "ordframe.db")
}

// GetDefaultStorageDir returns $XDG_DATA_HOME/ordframe (or
// ~/.local/share/ordframe), creating it if needed.
func GetDefaultStorageDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "ordframe")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetConfigDir returns $XDG_CONFIG_HOME/ordframe (or ~/.config/ordframe).
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "ordframe")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
