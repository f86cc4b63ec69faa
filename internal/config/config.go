// Package config provides configuration loading for ingatd.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (INGAT_SERVICE_PORT, INGAT_LOGGING_LEVEL, ...)
//  2. YAML config file (<data_dir>/config.yaml by default)
//  3. Hardcoded defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "INGAT_"

// Config is the complete ingatd configuration.
type Config struct {
	// DataDir is where the record store, settings, and supervisor state live.
	DataDir string `koanf:"data_dir"`

	Service    ServiceConfig    `koanf:"service"`
	Embedding  EmbeddingConfig  `koanf:"embedding"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServiceConfig locates the owning service.
type ServiceConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// ProbeTimeout bounds health probes so an unreachable service is
	// detected instead of hanging the prober.
	ProbeTimeout Duration `koanf:"probe_timeout"`
}

// Addr returns the host:port pair.
func (s ServiceConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BaseURL returns the http base URL for the service.
func (s ServiceConfig) BaseURL() string {
	return "http://" + s.Addr()
}

// EmbeddingConfig selects the default embedding backend for fresh data
// directories. The live selection is persisted via Settings and mutated only
// through the set-backend operation.
type EmbeddingConfig struct {
	Backend    string `koanf:"backend"`
	Model      string `koanf:"model"`
	Dimensions int    `koanf:"dimensions"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// SupervisorConfig controls the lifecycle supervisor.
type SupervisorConfig struct {
	PollInterval     Duration `koanf:"poll_interval"`
	FailureThreshold int      `koanf:"failure_threshold"`
	InitialBackoff   Duration `koanf:"initial_backoff"`
	MaxBackoff       Duration `koanf:"max_backoff"`

	// ServiceBinary is the executable spawned as the owning service.
	// Empty means "this binary" (os.Executable) with the serve subcommand.
	ServiceBinary string `koanf:"service_binary"`
}

// Default returns the hardcoded defaults.
func Default() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Service: ServiceConfig{
			Host:         "127.0.0.1",
			Port:         3200,
			ProbeTimeout: Duration(2 * time.Second),
		},
		Embedding: EmbeddingConfig{
			Backend:    "hash",
			Model:      "ingat/simple-hash",
			Dimensions: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Supervisor: SupervisorConfig{
			PollInterval:     Duration(10 * time.Second),
			FailureThreshold: 3,
			InitialBackoff:   Duration(2 * time.Second),
			MaxBackoff:       Duration(60 * time.Second),
		},
	}
}

// Load reads configuration from the YAML file at configPath (optional) and
// the environment, layered over defaults. An empty configPath tries
// <default data dir>/config.yaml but does not require it to exist.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	cfg := Default()

	if configPath == "" {
		configPath = filepath.Join(cfg.DataDir, "config.yaml")
	}

	if content, err := os.ReadFile(configPath); err == nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// INGAT_SERVICE_PORT -> service.port, INGAT_DATA_DIR -> data_dir.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		for _, section := range []string{"service", "embedding", "logging", "supervisor"} {
			if strings.HasPrefix(lower, section+"_") {
				return section + "." + strings.TrimPrefix(lower, section+"_")
			}
		}
		return lower
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Service.Host == "" {
		return fmt.Errorf("service.host is required")
	}
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port must be in 1..65535, got %d", c.Service.Port)
	}
	if c.Service.ProbeTimeout.Duration() <= 0 {
		return fmt.Errorf("service.probe_timeout must be positive")
	}
	if c.Supervisor.PollInterval.Duration() <= 0 {
		return fmt.Errorf("supervisor.poll_interval must be positive")
	}
	if c.Supervisor.FailureThreshold <= 0 {
		return fmt.Errorf("supervisor.failure_threshold must be positive")
	}
	return nil
}

// StorePath is the record store file inside the data directory.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "contexts.db")
}

// SettingsPath is the persisted runtime settings file.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.DataDir, "settings.json")
}

// SupervisorStatePath is the supervisor's persisted state file.
func (c *Config) SupervisorStatePath() string {
	return filepath.Join(c.DataDir, "supervisor_state.json")
}

func defaultDataDir() string {
	if dir := os.Getenv("INGAT_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ingat"
	}
	return filepath.Join(home, ".local", "share", "ingat")
}
