// Package scanner runs a single accessibility scan: it drives a browser to the
// target, evaluates it with axe-core and turns the raw outcome into an enriched
// ScanResult.
package scanner

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/holmdigital/a11y-cli/api/schemas"
	"github.com/holmdigital/a11y-cli/internal/axe"
	"github.com/holmdigital/a11y-cli/internal/browser"
	"github.com/holmdigital/a11y-cli/internal/standards"
)

// SourceProvider supplies the axe-core script. *axe.Loader implements it.
type SourceProvider interface {
	Load(ctx context.Context) (axe.Source, error)
}

// Scanner holds the collaborators shared by every scan. It keeps no per-scan
// state, so one Scanner may run scans concurrently.
type Scanner struct {
	driver browser.Driver
	source SourceProvider
	table  *standards.Table
	launch browser.LaunchOptions
	logger *zap.Logger

	now   func() time.Time
	newID func() string
}

// Option customizes a Scanner.
type Option func(*Scanner)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// WithIDGenerator overrides scan id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Scanner) { s.newID = gen }
}

// New creates a Scanner. A nil table means standards.Default().
func New(driver browser.Driver, source SourceProvider, table *standards.Table, launch browser.LaunchOptions, logger *zap.Logger, opts ...Option) *Scanner {
	if table == nil {
		table = standards.Default()
	}
	s := &Scanner{
		driver: driver,
		source: source,
		table:  table,
		launch: launch,
		logger: logger.Named("scanner"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs the full pipeline for cfg. The browser it launches is closed
// exactly once on every return path, before the error or result is returned.
func (s *Scanner) Scan(ctx context.Context, cfg Config) (*schemas.ScanResult, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scan configuration: %w", err)
	}
	logger := s.logger.With(zap.String("url", cfg.URL), zap.String("standard", string(cfg.Standard)))

	// Resolve the evaluator before paying for a browser.
	src, err := s.source.Load(ctx)
	if err != nil {
		return nil, &EvaluationError{Stage: "load", Err: err}
	}

	launch := s.launch
	launch.Headless = cfg.Headless

	logger.Info("Starting scan.", zap.String("level", string(cfg.Level)), zap.Duration("timeout", cfg.Timeout))
	b, err := s.driver.Launch(ctx, launch)
	if err != nil {
		return nil, &LaunchError{Err: err}
	}

	var closeOnce sync.Once
	release := func() {
		closeOnce.Do(func() {
			if cerr := b.Close(); cerr != nil {
				logger.Warn("Failed to close browser.", zap.Error(cerr))
			}
		})
	}
	defer release()

	page, err := b.NewPage(ctx)
	if err != nil {
		return nil, &LaunchError{Err: err}
	}
	if err := page.SetViewport(ctx, cfg.Viewport); err != nil {
		return nil, &LaunchError{Err: err}
	}

	if err := page.Navigate(ctx, cfg.URL, cfg.Timeout); err != nil {
		release()
		return nil, &NavigationError{
			URL:      cfg.URL,
			Timeout:  cfg.Timeout,
			TimedOut: errors.Is(err, browser.ErrNavigationTimeout) || errors.Is(err, context.DeadlineExceeded),
			Err:      err,
		}
	}

	axeVersion, err := axe.Inject(ctx, page, src)
	if err != nil {
		return nil, &EvaluationError{Stage: "inject", Err: err}
	}
	added, err := axe.InjectCustomRules(ctx, page, cfg.Standard)
	if err != nil {
		return nil, &EvaluationError{Stage: "custom-rules", Err: err}
	}
	logger.Debug("Rule evaluator ready.", zap.String("axe_version", axeVersion), zap.Int("custom_rules", added))

	raw, err := axe.Run(ctx, page, axe.TagsFor(cfg.Standard, cfg.Level))
	if err != nil {
		return nil, &EvaluationError{Stage: "run", Err: err}
	}

	var shots *schemas.Screenshots
	if cfg.IncludeScreenshots {
		shots = s.captureScreenshots(ctx, page, logger)
	}

	release()

	result := s.transform(cfg, raw, axeVersion, shots, logger)
	logger.Info("Scan complete.",
		zap.Int("violations", result.Summary.TotalViolations),
		zap.Int("passes", result.Summary.TotalPasses),
		zap.Int("score", result.Summary.ComplianceScore),
	)
	return result, nil
}

// captureScreenshots takes both captures. A failed capture is logged and left
// out of the report.
func (s *Scanner) captureScreenshots(ctx context.Context, page browser.Page, logger *zap.Logger) *schemas.Screenshots {
	var shots schemas.Screenshots

	if full, err := page.Screenshot(ctx, true); err != nil {
		logger.Warn("Full page screenshot failed.", zap.Error(err))
	} else {
		shots.FullPage = base64.StdEncoding.EncodeToString(full)
	}
	if vp, err := page.Screenshot(ctx, false); err != nil {
		logger.Warn("Viewport screenshot failed.", zap.Error(err))
	} else {
		shots.Viewport = base64.StdEncoding.EncodeToString(vp)
	}

	if shots.FullPage == "" && shots.Viewport == "" {
		return nil
	}
	return &shots
}
