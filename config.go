package recolte

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/recolte/internal/fetchhttp"
)

// Config configures the recolte service.
type Config struct {
	// DatabasePath is the SQLite catalog location.
	DatabasePath string `yaml:"database_path"`

	// FilesDir is the root directory for original file payloads.
	FilesDir string `yaml:"files_dir"`

	// Fetch settings
	Fetch FetchConfig `yaml:"fetch"`

	// WindowSize bounds concurrent URLs per batch window.
	WindowSize int `yaml:"window_size"`

	// SweepAfter is the age past which untouched original files are marked
	// deleted by SweepFiles. Zero disables sweeping.
	SweepAfter time.Duration `yaml:"sweep_after"`
}

// FetchConfig mirrors the HTTP fetcher knobs in a YAML-friendly shape.
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxBytes     int64         `yaml:"max_bytes"`
	UserAgent    string        `yaml:"user_agent"`
	MaxRedirects int           `yaml:"max_redirects"`
}

func (c *Config) defaults() {
	if c.DatabasePath == "" {
		c.DatabasePath = "data/recolte.db"
	}
	if c.FilesDir == "" {
		c.FilesDir = "data/files"
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = 10 * 1024 * 1024
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "recolte/1.0"
	}
	if c.Fetch.MaxRedirects <= 0 {
		c.Fetch.MaxRedirects = 5
	}
	if c.WindowSize <= 0 {
		c.WindowSize = 5
	}
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

// LoadConfig reads a YAML config file. A missing path yields defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return defaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.defaults()
	return &cfg, nil
}

func (c *FetchConfig) toFetcher(validator func(string) error) fetchhttp.Config {
	return fetchhttp.Config{
		Timeout:      c.Timeout,
		MaxBytes:     c.MaxBytes,
		UserAgent:    c.UserAgent,
		MaxRedirects: c.MaxRedirects,
		URLValidator: validator,
	}
}
