package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents runtime options for the search engine host.
type Config struct {
	// Threads is the worker pool width (0 = derive from CPU count)
	Threads int `yaml:"threads"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// NullBytesPerMiB scales the NUL-byte budget for binary detection
	NullBytesPerMiB int `yaml:"null_bytes_per_mib"`

	// MaxDecodeMiB caps the file size fully decoded for text matching
	MaxDecodeMiB int `yaml:"max_decode_mib"`

	// TaskQueueSize bounds the walker-to-pool channel for backpressure
	TaskQueueSize int `yaml:"task_queue_size"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Threads:         0, // derive from CPU count
		LogLevel:        "info",
		NullBytesPerMiB: 0, // any NUL byte marks the file binary
		MaxDecodeMiB:    256,
		TaskQueueSize:   1024,
	}
}

// EffectiveThreads resolves the worker pool width. The pool leaves two CPUs
// free for the walker and the host thread, and never drops below one worker.
func (c *Config) EffectiveThreads() int {
	if c.Threads > 0 {
		return c.Threads
	}
	n := runtime.NumCPU() - 2
	if n < 1 {
		n = 1
	}
	return n
}

// LoadConfig loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration without error.
// If the file exists but is malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply non-zero values from file (merging with defaults)
	if fileCfg.Threads != 0 {
		cfg.Threads = fileCfg.Threads
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.NullBytesPerMiB != 0 {
		cfg.NullBytesPerMiB = fileCfg.NullBytesPerMiB
	}
	if fileCfg.MaxDecodeMiB != 0 {
		cfg.MaxDecodeMiB = fileCfg.MaxDecodeMiB
	}
	if fileCfg.TaskQueueSize != 0 {
		cfg.TaskQueueSize = fileCfg.TaskQueueSize
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .grepwin/config.yaml in the
// specified directory, falling back to defaults when absent.
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".grepwin", "config.yaml"))
}

// Validate validates the configuration values.
// Returns an error if any values are invalid.
func (c *Config) Validate() error {
	if c.Threads < 0 {
		return fmt.Errorf("threads must be >= 0, got %d", c.Threads)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.NullBytesPerMiB < 0 {
		return fmt.Errorf("null_bytes_per_mib must be >= 0, got %d", c.NullBytesPerMiB)
	}
	if c.MaxDecodeMiB < 0 {
		return fmt.Errorf("max_decode_mib must be >= 0, got %d", c.MaxDecodeMiB)
	}
	if c.TaskQueueSize < 0 {
		return fmt.Errorf("task_queue_size must be >= 0, got %d", c.TaskQueueSize)
	}

	return nil
}
