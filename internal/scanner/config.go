package scanner

import (
	"fmt"
	"net/url"
	"time"

	"github.com/holmdigital/a11y-cli/api/schemas"
	"github.com/holmdigital/a11y-cli/internal/config"
)

const (
	DefaultTimeout = 30 * time.Second
	DefaultWidth   = 1920
	DefaultHeight  = 1080
)

// Config describes one scan. The scanner copies it, so later changes by the
// caller do not affect a running scan.
type Config struct {
	URL                string
	Standard           schemas.Standard
	Level              schemas.Level
	IncludeScreenshots bool
	Timeout            time.Duration
	Viewport           schemas.Viewport
	Headless           bool
}

// NewConfig returns a config for url with every default applied.
func NewConfig(url string) Config {
	return Config{
		URL:                url,
		Standard:           schemas.StandardAll,
		Level:              schemas.LevelAA,
		IncludeScreenshots: true,
		Timeout:            DefaultTimeout,
		Viewport:           schemas.Viewport{Width: DefaultWidth, Height: DefaultHeight},
		Headless:           true,
	}
}

// ConfigFromApp builds a scan config for url from the application configuration.
func ConfigFromApp(url string, cfg *config.Config) Config {
	c := Config{
		URL:                url,
		Standard:           schemas.Standard(cfg.Scan.Standard),
		Level:              schemas.Level(cfg.Scan.Level),
		IncludeScreenshots: cfg.Scan.Screenshots,
		Timeout:            cfg.Scan.Timeout,
		Viewport:           cfg.Browser.Viewport,
		Headless:           cfg.Browser.Headless,
	}
	if std, err := schemas.ParseStandard(cfg.Scan.Standard); err == nil {
		c.Standard = std
	}
	if lvl, err := schemas.ParseLevel(cfg.Scan.Level); err == nil {
		c.Level = lvl
	}
	return c.WithDefaults()
}

// WithDefaults fills zero valued fields. Booleans are left as given because
// their zero value is a valid choice.
func (c Config) WithDefaults() Config {
	if c.Standard == "" {
		c.Standard = schemas.StandardAll
	}
	if c.Level == "" {
		c.Level = schemas.LevelAA
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Viewport.Width == 0 {
		c.Viewport.Width = DefaultWidth
	}
	if c.Viewport.Height == 0 {
		c.Viewport.Height = DefaultHeight
	}
	return c
}

// Validate checks the config before any browser is launched.
func (c Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", c.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", c.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", c.URL)
	}
	if _, err := schemas.ParseStandard(string(c.Standard)); err != nil {
		return err
	}
	if _, err := schemas.ParseLevel(string(c.Level)); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", c.Viewport.Width, c.Viewport.Height)
	}
	return nil
}
