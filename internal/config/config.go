// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Wait() WaitConfig
	Driver() DriverConfig
	Report() ReportConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg LoggerConfig `mapstructure:"logger" yaml:"logger"`
	WaitCfg   WaitConfig   `mapstructure:"wait" yaml:"wait"`
	DriverCfg DriverConfig `mapstructure:"driver" yaml:"driver"`
	ReportCfg ReportConfig `mapstructure:"report" yaml:"report"`
}

// -- Getters --

func (c *Config) Logger() LoggerConfig { return c.LoggerCfg }
func (c *Config) Wait() WaitConfig     { return c.WaitCfg }
func (c *Config) Driver() DriverConfig { return c.DriverCfg }
func (c *Config) Report() ReportConfig { return c.ReportCfg }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// WaitConfig holds the timeouts shared by every wait a session performs.
// Units follow the key names so existing property files translate directly.
type WaitConfig struct {
	DefaultWaitMillis      int `mapstructure:"default_wait_millis" yaml:"default_wait_millis"`
	PageLoadTimeoutSeconds int `mapstructure:"page_load_timeout_seconds" yaml:"page_load_timeout_seconds"`
	PollIntervalMillis     int `mapstructure:"poll_interval_millis" yaml:"poll_interval_millis"`
	MaxStaleRetries        int `mapstructure:"max_stale_retries" yaml:"max_stale_retries"`
	// SettleDelayMillis is an optional fixed pause after an action has been
	// confirmed. Zero disables it.
	SettleDelayMillis int `mapstructure:"settle_delay_millis" yaml:"settle_delay_millis"`
}

// Driver kinds.
const (
	DriverWebDriver  = "webdriver"
	DriverCDP        = "cdp"
	DriverPlaywright = "playwright"
)

// DriverConfig selects and configures the browser binding.
type DriverConfig struct {
	Kind           string        `mapstructure:"kind" yaml:"kind"`
	RemoteURL      string        `mapstructure:"remote_url" yaml:"remote_url"`
	BrowserName    string        `mapstructure:"browser_name" yaml:"browser_name"`
	Headless       bool          `mapstructure:"headless" yaml:"headless"`
	Args           []string      `mapstructure:"args" yaml:"args"`
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
}

// ReportConfig controls where wait events are written. Empty paths disable
// the corresponding writer.
type ReportConfig struct {
	JSONLPath string `mapstructure:"jsonl_path" yaml:"jsonl_path"`
	JUnitPath string `mapstructure:"junit_path" yaml:"junit_path"`
	SuiteName string `mapstructure:"suite_name" yaml:"suite_name"`
}

// NewDefaultConfig creates a new configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "renderwait")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "red")

	// -- Wait --
	v.SetDefault("wait.default_wait_millis", 2000)
	v.SetDefault("wait.page_load_timeout_seconds", 30)
	v.SetDefault("wait.poll_interval_millis", 500)
	v.SetDefault("wait.max_stale_retries", 3)
	v.SetDefault("wait.settle_delay_millis", 0)

	// -- Driver --
	v.SetDefault("driver.kind", DriverWebDriver)
	v.SetDefault("driver.remote_url", "http://localhost:4444/wd/hub")
	v.SetDefault("driver.browser_name", "chrome")
	v.SetDefault("driver.headless", true)
	v.SetDefault("driver.args", []string{})
	v.SetDefault("driver.command_timeout", "30s")

	// -- Report --
	v.SetDefault("report.jsonl_path", "")
	v.SetDefault("report.junit_path", "")
	v.SetDefault("report.suite_name", "renderwait")
}

// NewConfigFromViper unmarshals, expands and validates a configuration.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading ~ in every file path setting.
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.LoggerCfg.LogFile, &c.ReportCfg.JSONLPath, &c.ReportCfg.JUnitPath} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.WaitCfg.Validate(); err != nil {
		return fmt.Errorf("wait configuration invalid: %w", err)
	}
	if err := c.DriverCfg.Validate(); err != nil {
		return fmt.Errorf("driver configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the wait timeouts.
func (w *WaitConfig) Validate() error {
	if w.DefaultWaitMillis <= 0 {
		return fmt.Errorf("wait.default_wait_millis must be a positive integer")
	}
	if w.PageLoadTimeoutSeconds <= 0 {
		return fmt.Errorf("wait.page_load_timeout_seconds must be a positive integer")
	}
	if w.PollIntervalMillis <= 0 {
		return fmt.Errorf("wait.poll_interval_millis must be a positive integer")
	}
	if w.PollIntervalMillis >= w.DefaultWaitMillis {
		return fmt.Errorf("wait.poll_interval_millis (%d) must be smaller than wait.default_wait_millis (%d)",
			w.PollIntervalMillis, w.DefaultWaitMillis)
	}
	if w.MaxStaleRetries <= 0 {
		return fmt.Errorf("wait.max_stale_retries must be a positive integer")
	}
	if w.SettleDelayMillis < 0 {
		return fmt.Errorf("wait.settle_delay_millis must not be negative")
	}
	return nil
}

// Validate checks the driver selection.
func (d *DriverConfig) Validate() error {
	switch strings.ToLower(d.Kind) {
	case DriverWebDriver:
		if d.RemoteURL == "" {
			return fmt.Errorf("driver.remote_url is required for the webdriver driver")
		}
	case DriverCDP, DriverPlaywright:
	default:
		return fmt.Errorf("driver.kind %q is not one of %s, %s, %s", d.Kind, DriverWebDriver, DriverCDP, DriverPlaywright)
	}
	if d.CommandTimeout < 0 {
		return fmt.Errorf("driver.command_timeout must not be negative")
	}
	return nil
}
