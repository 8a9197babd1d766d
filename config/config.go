// Package config loads the daemon configuration.
//
// Config is read from a YAML file (default /etc/vmforge/config.yaml,
// overridable via VMFORGE_CONFIG or --config). A missing file is not an
// error: every field has a documented default so a bare daemon start
// works out of the box.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const envConfigPath = "VMFORGE_CONFIG"

// Defaults applied when the file or a field is absent.
const (
	DefaultListen       = ":8080"
	DefaultDBPath       = "/var/lib/vmforge/machines.db"
	DefaultMinDelayMs   = 2000
	DefaultMaxDelayMs   = 5000
	DefaultFailureRate  = 0.1
	DefaultPageSize     = 10
	DefaultMaxPageSize  = 100
	DefaultWorkers      = 32
	DefaultDrainTimeout = 30 * time.Second
)

// Provisioner controls the simulated provisioning behavior. Delays are
// in milliseconds to match the knobs operators already know from the
// VM_PROVISIONING_MIN_DELAY / VM_PROVISIONING_MAX_DELAY era.
type Provisioner struct {
	MinDelayMs  int     `yaml:"min-delay-ms"`
	MaxDelayMs  int     `yaml:"max-delay-ms"`
	FailureRate float64 `yaml:"failure-rate"`
	Workers     int     `yaml:"workers"`
}

// MinDelay returns the lower provisioning delay bound.
func (p Provisioner) MinDelay() time.Duration { return time.Duration(p.MinDelayMs) * time.Millisecond }

// MaxDelay returns the upper provisioning delay bound.
func (p Provisioner) MaxDelay() time.Duration { return time.Duration(p.MaxDelayMs) * time.Millisecond }

// API holds boundary-layer settings.
type API struct {
	PageSize    int `yaml:"page-size"`
	MaxPageSize int `yaml:"max-page-size"`
}

// Config is the daemon configuration.
type Config struct {
	Listen      string      `yaml:"listen"`
	DBPath      string      `yaml:"db-path"`
	LogLevel    string      `yaml:"log-level"`
	Provisioner Provisioner `yaml:"provisioner"`
	API         API         `yaml:"api"`
}

// Default returns a Config with every field set to its default.
func Default() Config {
	return Config{
		Listen:   DefaultListen,
		DBPath:   DefaultDBPath,
		LogLevel: "info",
		Provisioner: Provisioner{
			MinDelayMs:  DefaultMinDelayMs,
			MaxDelayMs:  DefaultMaxDelayMs,
			FailureRate: DefaultFailureRate,
			Workers:     DefaultWorkers,
		},
		API: API{
			PageSize:    DefaultPageSize,
			MaxPageSize: DefaultMaxPageSize,
		},
	}
}

// Path returns the config file location, honoring VMFORGE_CONFIG.
func Path() string {
	if p := os.Getenv(envConfigPath); p != "" {
		return p
	}
	return "/etc/vmforge/config.yaml"
}

// Load reads the config file at path. A missing file yields Default().
// An empty path means Path().
func Load(path string) (Config, error) {
	if path == "" {
		path = Path()
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the daemon cannot run with.
func (c Config) Validate() error {
	p := c.Provisioner
	if p.MinDelayMs < 0 || p.MaxDelayMs < 0 {
		return fmt.Errorf("provisioner delays must not be negative")
	}
	if p.MaxDelayMs < p.MinDelayMs {
		return fmt.Errorf("provisioner max-delay-ms %d is below min-delay-ms %d", p.MaxDelayMs, p.MinDelayMs)
	}
	if p.FailureRate < 0 || p.FailureRate > 1 {
		return fmt.Errorf("provisioner failure-rate %g must be within [0, 1]", p.FailureRate)
	}
	if p.Workers < 1 {
		return fmt.Errorf("provisioner workers must be at least 1")
	}
	if c.API.PageSize < 1 || c.API.MaxPageSize < 1 {
		return fmt.Errorf("api page sizes must be positive")
	}
	if c.API.PageSize > c.API.MaxPageSize {
		return fmt.Errorf("api page-size %d exceeds max-page-size %d", c.API.PageSize, c.API.MaxPageSize)
	}
	return nil
}
