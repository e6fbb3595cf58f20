// Package config loads pagecam settings from defaults, an optional pagecam.yaml
// and PAGECAM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. PAGECAM_WAIT_TIMEOUT.
const EnvPrefix = "PAGECAM"

// Config holds the full configuration.
type Config struct {
	Wait     WaitConfig     `mapstructure:"wait" yaml:"wait"`
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Fixtures FixturesConfig `mapstructure:"fixtures" yaml:"fixtures"`
	Capture  CaptureConfig  `mapstructure:"capture" yaml:"capture"`
	Report   ReportConfig   `mapstructure:"report" yaml:"report"`
}

// WaitConfig drives the polling engine.
type WaitConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// LogEvery is the number of attempts between diagnostic log lines.
	LogEvery int `mapstructure:"log_every" yaml:"log_every"`
}

// LoggerConfig configures the global zap logger.
type LoggerConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// FixturesConfig lists the directories searched for mobile-test-data.
type FixturesConfig struct {
	Roots []string `mapstructure:"roots" yaml:"roots"`
}

// CaptureConfig controls screen captures and baseline comparison.
type CaptureConfig struct {
	SrcRoot      string        `mapstructure:"src_root" yaml:"src_root"`
	ArtifactsDir string        `mapstructure:"artifacts_dir" yaml:"artifacts_dir"`
	BaselineDir  string        `mapstructure:"baseline_dir" yaml:"baseline_dir"`
	Tolerance    int           `mapstructure:"tolerance" yaml:"tolerance"`
	MaxDiffRatio float64       `mapstructure:"max_diff_ratio" yaml:"max_diff_ratio"`
	RetryCount   int           `mapstructure:"retry_count" yaml:"retry_count"`
	RetryDelay   time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// ReportConfig controls the HTML run report written when a test finishes.
type ReportConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	OnlyFailures bool   `mapstructure:"only_failures" yaml:"only_failures"` // Skip tests that passed
	Dir          string `mapstructure:"dir" yaml:"dir"`                     // Relative to the artifacts directory
}

// NewDefaultConfig returns the configuration with only defaults applied.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every key.
func SetDefaults(v *viper.Viper) {
	// -- Wait --
	v.SetDefault("wait.timeout", "30s")
	v.SetDefault("wait.poll_interval", "100ms")
	v.SetDefault("wait.log_every", 9)

	// -- Logger --
	v.SetDefault("logger.enabled", false)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagecam")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", false)

	// -- Fixtures --
	v.SetDefault("fixtures.roots", []string{"."})

	// -- Capture --
	v.SetDefault("capture.src_root", ".")
	v.SetDefault("capture.artifacts_dir", "Artifacts")
	v.SetDefault("capture.baseline_dir", "")
	v.SetDefault("capture.tolerance", 2)
	v.SetDefault("capture.max_diff_ratio", 0.001)
	v.SetDefault("capture.retry_count", 5)
	v.SetDefault("capture.retry_delay", "1s")

	// -- Report --
	v.SetDefault("report.enabled", false)
	v.SetDefault("report.only_failures", false)
	v.SetDefault("report.dir", "reports")
}

// NewConfigFromViper unmarshals and validates the settings held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Xcode-style build environments export SRCROOT.
	_ = v.BindEnv("capture.src_root", EnvPrefix+"_CAPTURE_SRC_ROOT", "SRCROOT")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Load reads pagecam.yaml from the working directory when present and applies
// environment overrides on top of the defaults.
func Load() (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigName("pagecam")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return NewConfigFromViper(v)
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Wait.PollInterval <= 0 {
		return fmt.Errorf("wait.poll_interval must be positive")
	}
	if c.Wait.Timeout < 0 {
		return fmt.Errorf("wait.timeout must not be negative")
	}
	if c.Wait.LogEvery < 0 {
		return fmt.Errorf("wait.log_every must not be negative")
	}
	if c.Capture.RetryCount < 1 {
		return fmt.Errorf("capture.retry_count must be at least 1")
	}
	if c.Capture.Tolerance < 0 || c.Capture.Tolerance > 255 {
		return fmt.Errorf("capture.tolerance must be between 0 and 255")
	}
	if c.Capture.MaxDiffRatio < 0 || c.Capture.MaxDiffRatio > 1 {
		return fmt.Errorf("capture.max_diff_ratio must be between 0.0 and 1.0")
	}
	return nil
}
