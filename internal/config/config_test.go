package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 30*time.Second, cfg.Wait.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Wait.PollInterval)
	assert.Equal(t, 9, cfg.Wait.LogEvery)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.False(t, cfg.Logger.Enabled)
	assert.Equal(t, []string{"."}, cfg.Fixtures.Roots)
	assert.Equal(t, 5, cfg.Capture.RetryCount)
	assert.Equal(t, time.Second, cfg.Capture.RetryDelay)
	assert.Equal(t, "Artifacts", cfg.Capture.ArtifactsDir)
	assert.False(t, cfg.Report.Enabled)
	assert.Equal(t, "reports", cfg.Report.Dir)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"zero poll interval", func(c *Config) { c.Wait.PollInterval = 0 }, "wait.poll_interval must be positive"},
		{"negative timeout", func(c *Config) { c.Wait.Timeout = -time.Second }, "wait.timeout must not be negative"},
		{"negative log cadence", func(c *Config) { c.Wait.LogEvery = -1 }, "wait.log_every must not be negative"},
		{"no capture retries", func(c *Config) { c.Capture.RetryCount = 0 }, "capture.retry_count must be at least 1"},
		{"tolerance out of range", func(c *Config) { c.Capture.Tolerance = 300 }, "capture.tolerance must be between 0 and 255"},
		{"diff ratio out of range", func(c *Config) { c.Capture.MaxDiffRatio = 1.5 }, "capture.max_diff_ratio must be between 0.0 and 1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invalid := *cfg
			tt.mutate(&invalid)
			err := invalid.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// -- Loading Tests --

func TestNewConfigFromViper_YAML(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")

	yamlConfig := []byte(`
wait:
  timeout: 12s
  poll_interval: 50ms
fixtures:
  roots: ["testdata", "shared"]
capture:
  baseline_dir: baselines
`)
	require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 12*time.Second, cfg.Wait.Timeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Wait.PollInterval)
	assert.Equal(t, 9, cfg.Wait.LogEvery, "unset keys keep their defaults")
	assert.Equal(t, []string{"testdata", "shared"}, cfg.Fixtures.Roots)
	assert.Equal(t, "baselines", cfg.Capture.BaselineDir)
}

func TestNewConfigFromViper_Invalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("wait.poll_interval", "0s")

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PAGECAM_WAIT_TIMEOUT", "5s")
	t.Setenv("PAGECAM_LOGGER_LEVEL", "debug")
	t.Setenv("SRCROOT", "/work/app")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Wait.Timeout)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "/work/app", cfg.Capture.SrcRoot)
}
