// Package config handles client configuration and the ~/.pulse directory
// structure. Every user running pulse gets a .pulse/ folder in their home
// directory holding config, credentials, and logs.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// PulseDir is the name of the directory we create in the user's home.
	PulseDir = ".pulse"

	configFileName      = "config.yaml"
	credentialsFileName = "credentials.json"
	logFileName         = "pulse.log"

	defaultAPIBaseURL     = "http://localhost:8000"
	defaultTimeoutSeconds = 30
	defaultLogLevel       = "info"
)

const defaultConfigYAML = `# pulse client configuration
version: 1

# Base URL of the feedback API server.
api_base_url: http://localhost:8000

# Per-request timeout, in seconds.
request_timeout_seconds: 30

# Log level for ~/.pulse/logs/pulse.log (debug, info, warn, error).
log_level: info
`

// fileConfig models ~/.pulse/config.yaml.
type fileConfig struct {
	Version               int    `yaml:"version"`
	APIBaseURL            string `yaml:"api_base_url"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	LogLevel              string `yaml:"log_level"`
}

// Config holds the runtime configuration for the pulse client.
type Config struct {
	// Home is the .pulse directory, usually ~/.pulse. Overridable with
	// PULSE_HOME so tests and multi-account setups can isolate state.
	Home string

	APIBaseURL            string
	RequestTimeoutSeconds int
	LogLevel              string
}

// Load resolves configuration in order: built-in defaults, then
// ~/.pulse/config.yaml, then a .env file in the working directory, then
// PULSE_* environment variables. Later sources win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	home := strings.TrimSpace(os.Getenv("PULSE_HOME"))
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("config: resolve home directory: %w", err)
		}
		home = filepath.Join(userHome, PulseDir)
	}

	cfg := &Config{
		Home:                  home,
		APIBaseURL:            defaultAPIBaseURL,
		RequestTimeoutSeconds: defaultTimeoutSeconds,
		LogLevel:              defaultLogLevel,
	}

	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitPulseDir creates the .pulse directory structure and seeds a commented
// default config.yaml when none exists. Called once at startup.
func InitPulseDir(home string) error {
	dirs := []string{
		home,
		filepath.Join(home, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	path := filepath.Join(home, configFileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("config: seed default config: %w", err)
	}
	return nil
}

func (c *Config) loadFile() error {
	raw, err := os.ReadFile(c.configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", c.configPath(), err)
	}
	var parsed fileConfig
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", c.configPath(), err)
	}
	if v := strings.TrimSpace(parsed.APIBaseURL); v != "" {
		c.APIBaseURL = v
	}
	if parsed.RequestTimeoutSeconds > 0 {
		c.RequestTimeoutSeconds = parsed.RequestTimeoutSeconds
	}
	if v := strings.TrimSpace(parsed.LogLevel); v != "" {
		c.LogLevel = v
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("PULSE_API_URL")); v != "" {
		c.APIBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("PULSE_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			c.RequestTimeoutSeconds = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("PULSE_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) validate() error {
	parsed, err := url.Parse(c.APIBaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("config: invalid api_base_url %q", c.APIBaseURL)
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = defaultTimeoutSeconds
	}
	return nil
}

func (c *Config) configPath() string {
	return filepath.Join(c.Home, configFileName)
}

// ConfigPath returns the on-disk location of config.yaml.
func (c *Config) ConfigPath() string {
	return c.configPath()
}

// CredentialsPath returns where the session token is persisted.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.Home, credentialsFileName)
}

// LogPath returns the log file destination.
func (c *Config) LogPath() string {
	return filepath.Join(c.Home, "logs", logFileName)
}
