package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
)

// Config represents the complete per-filesystem configuration. It is
// immutable after construction and safe to share across goroutines.
type Config struct {
	Filesystem FilesystemConfig `yaml:"filesystem"`
	Spool      SpoolConfig      `yaml:"spool"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// FilesystemConfig holds the path and directory emulation policy.
type FilesystemConfig struct {
	// UsePseudoDirectories emulates directory existence and listing from
	// key prefixes and trailing-slash marker objects. When false,
	// trailing-slash paths behave as ordinary object keys.
	UsePseudoDirectories bool `yaml:"use_pseudo_directories"`

	// PermitEmptyPathComponents allows consecutive delimiters in a key.
	PermitEmptyPathComponents bool `yaml:"permit_empty_path_components"`

	// StripPrefixSlash drops a single leading delimiter from
	// absolute-looking keys during normalization.
	StripPrefixSlash bool `yaml:"strip_prefix_slash"`
}

// SpoolConfig controls write-session buffering. Sessions buffer in memory
// up to MemoryThreshold bytes, then spill to a temporary file.
type SpoolConfig struct {
	MemoryThreshold int64  `yaml:"memory_threshold"`
	Directory       string `yaml:"directory"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig represents metrics settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// NewDefault returns a configuration with sensible defaults.
func NewDefault() *Config {
	return &Config{
		Filesystem: FilesystemConfig{
			UsePseudoDirectories:      true,
			PermitEmptyPathComponents: false,
			StripPrefixSlash:          true,
		},
		Spool: SpoolConfig{
			MemoryThreshold: 8 * 1024 * 1024,
			Directory:       "",
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "bucketfs",
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return bfserrors.Newf(bfserrors.ErrCodeConfigLoad, "failed to read config file %s", filename).WithCause(err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return bfserrors.Newf(bfserrors.ErrCodeConfigLoad, "failed to parse config file %s", filename).WithCause(err)
	}

	return nil
}

// LoadFromEnv overrides configuration from BUCKETFS_* environment
// variables.
func (c *Config) LoadFromEnv() {
	if val := os.Getenv("BUCKETFS_USE_PSEUDO_DIRECTORIES"); val != "" {
		c.Filesystem.UsePseudoDirectories = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("BUCKETFS_PERMIT_EMPTY_PATH_COMPONENTS"); val != "" {
		c.Filesystem.PermitEmptyPathComponents = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("BUCKETFS_STRIP_PREFIX_SLASH"); val != "" {
		c.Filesystem.StripPrefixSlash = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("BUCKETFS_SPOOL_MEMORY_THRESHOLD"); val != "" {
		if threshold, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.Spool.MemoryThreshold = threshold
		}
	}
	if val := os.Getenv("BUCKETFS_SPOOL_DIRECTORY"); val != "" {
		c.Spool.Directory = val
	}
	if val := os.Getenv("BUCKETFS_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("BUCKETFS_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Spool.MemoryThreshold < 0 {
		return bfserrors.New(bfserrors.ErrCodeInvalidConfig, "spool memory_threshold cannot be negative")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.EqualFold(c.Logging.Level, level) {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return bfserrors.Newf(bfserrors.ErrCodeInvalidConfig, "invalid log level: %s (must be one of: %s)",
			c.Logging.Level, strings.Join(validLogLevels, ", "))
	}

	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return bfserrors.New(bfserrors.ErrCodeInvalidConfig, "metrics namespace cannot be empty when metrics are enabled")
	}

	return nil
}

// String renders the configuration for debug logging.
func (c *Config) String() string {
	return fmt.Sprintf("pseudoDirs=%t permitEmpty=%t stripPrefix=%t spoolThreshold=%d",
		c.Filesystem.UsePseudoDirectories,
		c.Filesystem.PermitEmptyPathComponents,
		c.Filesystem.StripPrefixSlash,
		c.Spool.MemoryThreshold)
}
