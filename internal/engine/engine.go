// Package engine runs several scans at once. Every scan gets its own browser,
// so the runner only bounds how many run together and how fast they launch.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/holmdigital/a11y-cli/api/schemas"
	"github.com/holmdigital/a11y-cli/internal/config"
	"github.com/holmdigital/a11y-cli/internal/scanner"
)

const (
	DefaultConcurrency = 2
	persistTimeout     = 30 * time.Second
)

// -- Interfaces for Dependency Inversion --

// Scanner runs one scan. *scanner.Scanner satisfies it.
type Scanner interface {
	Scan(ctx context.Context, cfg scanner.Config) (*schemas.ScanResult, error)
}

// Sink receives every successful result, e.g. the history store or a report writer.
type Sink interface {
	Persist(ctx context.Context, result *schemas.ScanResult) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, result *schemas.ScanResult) error

func (f SinkFunc) Persist(ctx context.Context, result *schemas.ScanResult) error {
	return f(ctx, result)
}

// Options bound a batch.
type Options struct {
	Concurrency int
	// LaunchRate is browser launches per second. Zero or less means unlimited.
	LaunchRate  float64
	LaunchBurst int
}

// OptionsFromApp maps the batch config section.
func OptionsFromApp(cfg config.BatchConfig) Options {
	return Options{
		Concurrency: cfg.Concurrency,
		LaunchRate:  cfg.LaunchRate,
		LaunchBurst: cfg.LaunchBurst,
	}
}

// Outcome is the result of one URL in a batch. Exactly one of Result and Err
// is set. SinkErr collects sink failures and does not make the scan fail.
type Outcome struct {
	URL      string
	Result   *schemas.ScanResult
	Err      error
	SinkErr  error
	Duration time.Duration
}

// Runner scans a list of configs concurrently.
type Runner struct {
	scanner     Scanner
	sinks       []Sink
	concurrency int
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// New creates a Runner. Sinks run in order after each successful scan.
func New(s Scanner, opts Options, logger *zap.Logger, sinks ...Sink) (*Runner, error) {
	if s == nil {
		return nil, errors.New("scanner cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	for i, sink := range sinks {
		if sink == nil {
			return nil, fmt.Errorf("sink %d cannot be nil", i)
		}
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	limit := rate.Inf
	if opts.LaunchRate > 0 {
		limit = rate.Limit(opts.LaunchRate)
	}
	burst := opts.LaunchBurst
	if burst <= 0 {
		burst = 1
	}

	return &Runner{
		scanner:     s,
		sinks:       sinks,
		concurrency: concurrency,
		limiter:     rate.NewLimiter(limit, burst),
		logger:      logger.With(zap.String("component", "batch_engine")),
	}, nil
}

// Run scans every config and returns one Outcome per config in input order.
// A failed scan never stops the others. Cancelling ctx fails the scans that
// have not started yet.
func (r *Runner) Run(ctx context.Context, cfgs []scanner.Config) []Outcome {
	outcomes := make([]Outcome, len(cfgs))
	if len(cfgs) == 0 {
		return outcomes
	}

	r.logger.Info("Starting batch.", zap.Int("targets", len(cfgs)), zap.Int("concurrency", r.concurrency))
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, cfg := range cfgs {
		g.Go(func() error {
			outcomes[i] = r.process(ctx, cfg)
			return nil
		})
	}
	_ = g.Wait()

	failed := len(Failures(outcomes))
	r.logger.Info("Batch finished.",
		zap.Int("succeeded", len(cfgs)-failed),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)),
	)
	return outcomes
}

// process scans one config. Duration covers the launch wait, the scan and the
// sinks.
func (r *Runner) process(ctx context.Context, cfg scanner.Config) (out Outcome) {
	logger := r.logger.With(zap.String("url", cfg.URL))
	out.URL = cfg.URL
	start := time.Now()
	defer func() { out.Duration = time.Since(start) }()

	// Check context before starting a browser.
	if err := ctx.Err(); err != nil {
		logger.Warn("Batch cancelled before scan started.", zap.Error(err))
		out.Err = err
		return out
	}
	if err := r.limiter.Wait(ctx); err != nil {
		logger.Warn("Gave up waiting for a launch slot.", zap.Error(err))
		out.Err = fmt.Errorf("waiting for launch slot: %w", err)
		return out
	}

	result, err := r.scanner.Scan(ctx, cfg)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			logger.Warn("Scan timed out.", zap.Duration("timeout", cfg.Timeout), zap.Error(err))
		case errors.Is(err, context.Canceled):
			logger.Warn("Scan was cancelled.", zap.Error(err))
		default:
			logger.Error("Scan failed.", zap.Error(err))
		}
		out.Err = err
		return out
	}
	out.Result = result
	logger.Info("Scan complete.",
		zap.String("scan_id", result.ScanID),
		zap.Int("violations", result.Summary.TotalViolations),
		zap.Int("score", result.Summary.ComplianceScore),
		zap.Duration("scan_duration", time.Since(start)),
	)

	if len(r.sinks) > 0 {
		// Sinks get their own deadline so a result is still kept when the
		// batch is cancelled while it is being persisted.
		persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		var errs []error
		for _, sink := range r.sinks {
			if err := sink.Persist(persistCtx, result); err != nil {
				logger.Error("Failed to persist scan result.", zap.Error(err))
				errs = append(errs, err)
			}
		}
		out.SinkErr = errors.Join(errs...)
	}
	return out
}

// Failures returns the outcomes whose scan failed.
func Failures(outcomes []Outcome) []Outcome {
	var failed []Outcome
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}
