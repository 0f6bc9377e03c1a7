package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/holmdigital/a11y-cli/api/schemas"
	"github.com/holmdigital/a11y-cli/internal/archive"
	"github.com/holmdigital/a11y-cli/internal/axe"
	"github.com/holmdigital/a11y-cli/internal/browser"
	"github.com/holmdigital/a11y-cli/internal/cloud"
	"github.com/holmdigital/a11y-cli/internal/config"
	"github.com/holmdigital/a11y-cli/internal/engine"
	"github.com/holmdigital/a11y-cli/internal/network"
	"github.com/holmdigital/a11y-cli/internal/scanner"
	"github.com/holmdigital/a11y-cli/internal/standards"
	"github.com/holmdigital/a11y-cli/internal/store"
)

// reportArchiver uploads a written report. *archive.Archiver implements it.
type reportArchiver interface {
	UploadFile(ctx context.Context, result *schemas.ScanResult, reportPath string) (string, error)
}

// resultUploader pushes results to the cloud dashboard. *cloud.Client implements it.
type resultUploader interface {
	Send(ctx context.Context, cfg cloud.Config, result *schemas.ScanResult) cloud.Response
}

// dependencies builds the services a command needs. Tests replace the
// constructors to avoid launching Chrome or touching external services.
type dependencies struct {
	newScanner  func(cfg *config.Config, logger *zap.Logger) (engine.Scanner, error)
	openStore   func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Repository, error)
	newArchiver func(cfg *config.Config, logger *zap.Logger) (reportArchiver, error)
	newUploader func(cfg *config.Config, logger *zap.Logger) resultUploader
}

func defaultDeps() *dependencies {
	return &dependencies{
		newScanner:  buildScanner,
		openStore:   openStore,
		newArchiver: buildArchiver,
		newUploader: buildUploader,
	}
}

func buildScanner(cfg *config.Config, logger *zap.Logger) (engine.Scanner, error) {
	table, err := buildTable(cfg.Standards)
	if err != nil {
		return nil, err
	}

	// CDNs answer with redirects to versioned assets.
	httpCfg := network.NewDefaultClientConfig()
	httpCfg.FollowRedirects = true
	httpCfg.Logger = logger.Named("httpclient")
	loader := axe.NewLoader(cfg.Axe.SourcePath, cfg.Axe.CDNURL, network.NewClient(httpCfg).Client, logger)

	launch := browser.LaunchOptions{
		Headless:         cfg.Browser.Headless,
		ExecPath:         cfg.Browser.ExecPath,
		DisableGPU:       cfg.Browser.DisableGPU,
		IgnoreTLSErrors:  cfg.Browser.IgnoreTLSErrors,
		UserAgent:        cfg.Browser.UserAgent,
		Args:             cfg.Browser.Args,
		NetworkIdleQuiet: cfg.Browser.NetworkIdleQuiet,
	}
	return scanner.New(browser.NewChromeDriver(logger), loader, table, launch, logger), nil
}

// buildTable loads the mapping file when configured, otherwise the built-in
// dataset, with the configured fallback risk.
func buildTable(cfg config.StandardsConfig) (*standards.Table, error) {
	risk, err := schemas.ParseRiskTier(cfg.FallbackRisk)
	if err != nil {
		return nil, fmt.Errorf("invalid fallback risk: %w", err)
	}
	if cfg.MappingFile != "" {
		return standards.LoadFile(cfg.MappingFile, standards.Options{FallbackRisk: risk})
	}
	return standards.Default().WithFallbackRisk(risk)
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Repository, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database URL is not configured (A11Y_DATABASE_URL or DATABASE_URL)")
	}
	return store.Open(ctx, cfg.Database.URL, logger)
}

func buildArchiver(cfg *config.Config, logger *zap.Logger) (reportArchiver, error) {
	return archive.New(cfg.Archive, logger)
}

func buildUploader(cfg *config.Config, logger *zap.Logger) resultUploader {
	httpCfg := network.NewDefaultClientConfig()
	httpCfg.Logger = logger.Named("httpclient")
	if cfg.Cloud.Timeout > 0 {
		httpCfg.RequestTimeout = cfg.Cloud.Timeout
	}
	return cloud.NewClient(network.NewClient(httpCfg).Client, logger)
}
