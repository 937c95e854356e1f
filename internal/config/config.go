// Package config loads the YAML settings shared by l2munger and l2mungerd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"example.com/l2munger/internal/common"
	"example.com/l2munger/internal/polling"
)

type ReportConfig struct {
	JSON bool `yaml:"json"`
	PDF  bool `yaml:"pdf"`
}

type ServerConfig struct {
	Port         int    `yaml:"port"`
	Addr         string `yaml:"addr"`
	InitialFiles int    `yaml:"initialFiles"`
	// PlaybackStart, when set, drives dir.list from a playback clock
	// instead of the wall clock. Format "2006-01-02 15:04:05".
	PlaybackStart string  `yaml:"playbackStart"`
	PlaybackSpeed float64 `yaml:"playbackSpeed"`
}

type Config struct {
	Site       string           `yaml:"site"`
	Speed      int              `yaml:"speed"`
	OutputDir  string           `yaml:"outputDir"`
	PollingDir string           `yaml:"pollingDir"`
	Gzip       bool             `yaml:"gzip"`
	Audit      bool             `yaml:"audit"`
	Ledger     string           `yaml:"ledger"`
	Report     ReportConfig     `yaml:"report"`
	Logs       common.LogConfig `yaml:"logs"`
	Server     ServerConfig     `yaml:"server"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads path and fills in defaults. Relative paths are resolved
// against the directory holding the file.
func Load(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	baseDir := filepath.Dir(path)
	resolvePath := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" {
			return ""
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Clean(filepath.Join(baseDir, p))
	}
	cfg.OutputDir = resolvePath(cfg.OutputDir)
	cfg.PollingDir = resolvePath(cfg.PollingDir)
	cfg.Ledger = resolvePath(cfg.Ledger)
	cfg.Logs.Directory = resolvePath(cfg.Logs.Directory)
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

// LoadOrDefault loads path when it is set and falls back to Default.
func LoadOrDefault(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) applyDefaults() {
	c.Site = strings.TrimSpace(c.Site)
	if c.Speed <= 0 {
		c.Speed = 1
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.PollingDir == "" {
		c.PollingDir = filepath.Join(".", "polling")
	}
	if c.Logs.Filename == "" {
		c.Logs.Filename = "l2munger.log"
	}
	if c.Logs.Level == "" {
		c.Logs.Level = "info"
	}
	if c.Logs.MaxSizeMB <= 0 {
		c.Logs.MaxSizeMB = 25
	}
	if c.Logs.MaxAgeDays <= 0 {
		c.Logs.MaxAgeDays = 7
	}
	if c.Logs.MaxBackups <= 0 {
		c.Logs.MaxBackups = 5
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.InitialFiles <= 0 {
		c.Server.InitialFiles = polling.DefaultInitialFiles
	}
	if c.Server.PlaybackSpeed <= 0 {
		c.Server.PlaybackSpeed = 1
	}
}

func (c Config) Validate() error {
	if c.Site != "" && len(c.Site) != 4 {
		return fmt.Errorf("site %q must be exactly 4 characters", c.Site)
	}
	if _, err := common.ParseLevel(c.Logs.Level); err != nil {
		return err
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	return nil
}

// ListenAddr is the address l2mungerd binds.
func (c Config) ListenAddr() string {
	if c.Server.Addr != "" {
		return c.Server.Addr
	}
	return fmt.Sprintf(":%d", c.Server.Port)
}

// Clock builds the clock that decides which volumes dir.list exposes.
func (s ServerConfig) Clock() (*polling.Clock, error) {
	var start time.Time
	if v := strings.TrimSpace(s.PlaybackStart); v != "" {
		t, err := time.ParseInLocation("2006-01-02 15:04:05", strings.TrimSuffix(v, " UTC"), time.UTC)
		if err != nil {
			return nil, fmt.Errorf("playbackStart %q: %w", v, err)
		}
		start = t
	}
	return polling.NewClock(start, s.PlaybackSpeed), nil
}
