// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/holmdigital/a11y-cli/api/schemas"
)

// Config holds the entire application configuration. It is populated from
// defaults, the optional config file, A11Y_* environment variables and CLI flags,
// in increasing order of precedence.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Scan      ScanConfig      `mapstructure:"scan" yaml:"scan"`
	Axe       AxeConfig       `mapstructure:"axe" yaml:"axe"`
	Standards StandardsConfig `mapstructure:"standards" yaml:"standards"`
	Cloud     CloudConfig     `mapstructure:"cloud" yaml:"cloud"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Archive   ArchiveConfig   `mapstructure:"archive" yaml:"archive"`
	Batch     BatchConfig     `mapstructure:"batch" yaml:"batch"`
}

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

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless Chrome instance launched per scan.
type BrowserConfig struct {
	Headless        bool             `mapstructure:"headless" yaml:"headless"`
	ExecPath        string           `mapstructure:"exec_path" yaml:"exec_path"`
	DisableGPU      bool             `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	IgnoreTLSErrors bool             `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	UserAgent       string           `mapstructure:"user_agent" yaml:"user_agent"`
	Args            []string         `mapstructure:"args" yaml:"args"`
	Viewport        schemas.Viewport `mapstructure:"viewport" yaml:"viewport"`
	// NetworkIdleQuiet is how long the page must stay at or below two in-flight
	// requests before navigation is considered settled.
	NetworkIdleQuiet time.Duration `mapstructure:"network_idle_quiet" yaml:"network_idle_quiet"`
}

// ScanConfig carries the per-run scan parameters. Most of these are set from CLI flags.
type ScanConfig struct {
	Standard    string        `mapstructure:"standard" yaml:"standard"`
	Level       string        `mapstructure:"level" yaml:"level"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Screenshots bool          `mapstructure:"screenshots" yaml:"screenshots"`
	Output      string        `mapstructure:"output" yaml:"output"`
	Format      string        `mapstructure:"format" yaml:"format"`
	Lang        string        `mapstructure:"lang" yaml:"lang"`
	CI          bool          `mapstructure:"ci" yaml:"ci"`
}

// AxeConfig controls where the axe-core source comes from.
type AxeConfig struct {
	// SourcePath points at a local axe.min.js. It takes precedence over the CDN.
	SourcePath string `mapstructure:"source_path" yaml:"source_path"`
	CDNURL     string `mapstructure:"cdn_url" yaml:"cdn_url"`
}

// StandardsConfig controls the regulatory mapping table.
type StandardsConfig struct {
	// MappingFile replaces the built-in dataset when set.
	MappingFile  string `mapstructure:"mapping_file" yaml:"mapping_file"`
	FallbackRisk string `mapstructure:"fallback_risk" yaml:"fallback_risk"`
}

// CloudConfig configures result ingestion into the hosted dashboard.
type CloudConfig struct {
	URL         string        `mapstructure:"url" yaml:"url"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Compression string        `mapstructure:"compression" yaml:"compression"`
}

// Enabled reports whether enough is configured to push results.
func (c CloudConfig) Enabled() bool {
	return c.URL != "" && c.APIKey != ""
}

// DatabaseConfig holds the database connection details for scan history.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// ArchiveConfig configures report upload to S3 compatible object storage.
type ArchiveConfig struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
}

// Enabled reports whether an archive target is configured.
func (a ArchiveConfig) Enabled() bool {
	return a.Endpoint != "" && a.Bucket != ""
}

// BatchConfig tunes multi-URL scanning.
type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	// LaunchRate caps browser launches per second across the batch.
	LaunchRate  float64 `mapstructure:"launch_rate" yaml:"launch_rate"`
	LaunchBurst int     `mapstructure:"launch_burst" yaml:"launch_burst"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration parameter.
// Every key gets a default so AutomaticEnv can override it during Unmarshal.
func SetDefaults(v *viper.Viper) {
	// Logger
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "a11y")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// Browser
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.args", []string{"--disable-setuid-sandbox"})
	v.SetDefault("browser.viewport.width", 1920)
	v.SetDefault("browser.viewport.height", 1080)
	v.SetDefault("browser.network_idle_quiet", "500ms")

	// Scan
	v.SetDefault("scan.standard", string(schemas.StandardAll))
	v.SetDefault("scan.level", string(schemas.LevelAA))
	v.SetDefault("scan.timeout", "30s")
	v.SetDefault("scan.screenshots", true)
	v.SetDefault("scan.output", "./a11y-report.html")
	v.SetDefault("scan.format", "html")
	v.SetDefault("scan.lang", "en")
	v.SetDefault("scan.ci", false)

	// Axe
	v.SetDefault("axe.source_path", "")
	v.SetDefault("axe.cdn_url", "https://cdnjs.cloudflare.com/ajax/libs/axe-core/4.10.2/axe.min.js")

	// Standards
	v.SetDefault("standards.mapping_file", "")
	v.SetDefault("standards.fallback_risk", string(schemas.RiskModerate))

	// Cloud
	v.SetDefault("cloud.url", "")
	v.SetDefault("cloud.api_key", "")
	v.SetDefault("cloud.timeout", "30s")
	v.SetDefault("cloud.compression", "")

	// Database
	v.SetDefault("database.url", "")

	// Archive
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.access_key", "")
	v.SetDefault("archive.secret_key", "")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "reports/")
	v.SetDefault("archive.use_ssl", true)

	// Batch
	v.SetDefault("batch.concurrency", 2)
	v.SetDefault("batch.launch_rate", 1.0)
	v.SetDefault("batch.launch_burst", 1)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets are commonly provided under their conventional names rather than
	// the A11Y_ prefixed form.
	_ = v.BindEnv("cloud.api_key", "A11Y_CLOUD_API_KEY", "HOLMDIGITAL_API_KEY")
	_ = v.BindEnv("database.url", "A11Y_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("archive.access_key", "A11Y_ARCHIVE_ACCESS_KEY", "S3_ACCESS_KEY")
	_ = v.BindEnv("archive.secret_key", "A11Y_ARCHIVE_SECRET_KEY", "S3_SECRET_KEY")

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

// expandPaths resolves a leading ~ in file system paths.
func (c *Config) expandPaths() error {
	paths := []*string{
		&c.Logger.LogFile,
		&c.Browser.ExecPath,
		&c.Axe.SourcePath,
		&c.Standards.MappingFile,
		&c.Scan.Output,
	}
	for _, p := range paths {
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
	if _, err := schemas.ParseStandard(c.Scan.Standard); err != nil {
		return fmt.Errorf("scan.standard: %w", err)
	}
	if _, err := schemas.ParseLevel(c.Scan.Level); err != nil {
		return fmt.Errorf("scan.level: %w", err)
	}
	if c.Scan.Timeout <= 0 {
		return fmt.Errorf("scan.timeout must be a positive duration")
	}
	if c.Browser.Viewport.Width <= 0 || c.Browser.Viewport.Height <= 0 {
		return fmt.Errorf("browser.viewport must have a positive width and height")
	}
	if _, err := schemas.ParseRiskTier(c.Standards.FallbackRisk); err != nil {
		return fmt.Errorf("standards.fallback_risk: %w", err)
	}
	if c.Batch.Concurrency <= 0 {
		return fmt.Errorf("batch.concurrency must be a positive integer")
	}
	if c.Batch.LaunchRate <= 0 {
		return fmt.Errorf("batch.launch_rate must be positive")
	}
	if err := c.Cloud.Validate(); err != nil {
		return fmt.Errorf("cloud configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the cloud settings. An empty URL disables the cloud sink.
func (c *CloudConfig) Validate() error {
	switch strings.ToLower(c.Compression) {
	case "", "none", "br":
	default:
		return fmt.Errorf("compression must be empty, none or br, got %q", c.Compression)
	}
	if c.URL == "" {
		return nil
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) URL, got %q", c.URL)
	}
	return nil
}
