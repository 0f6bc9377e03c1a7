package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/holmdigital/a11y-cli/api/schemas"
	"github.com/holmdigital/a11y-cli/internal/cloud"
	"github.com/holmdigital/a11y-cli/internal/config"
	"github.com/holmdigital/a11y-cli/internal/i18n"
	"github.com/holmdigital/a11y-cli/internal/observability"
	"github.com/holmdigital/a11y-cli/internal/reporting"
	"github.com/holmdigital/a11y-cli/internal/results"
	"github.com/holmdigital/a11y-cli/internal/scanner"
	"github.com/holmdigital/a11y-cli/internal/store"
)

// ErrCriticalViolations fails a --ci run that found critical violations.
var ErrCriticalViolations = errors.New("critical accessibility violations found")

// sinkFlags selects the optional destinations of a result.
type sinkFlags struct {
	cloud   bool
	save    bool
	archive bool
}

// newScanCmd creates and configures the `scan` command.
func newScanCmd(deps *dependencies) *cobra.Command {
	var sinks sinkFlags

	scanCmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Scan a web page for accessibility problems",
		Long: `Loads the page in headless Chrome, runs axe-core together with the EN 301 549
and DOS-lagen rule sets, maps every violation to its regulatory references and
writes a report.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			applyScanFlagOverrides(cmd, cfg)
			// Keep stdout clean when the report itself goes there.
			out := cmd.OutOrStdout()
			if isStdout(cfg.Scan.Output) {
				out = cmd.ErrOrStderr()
			}
			return runScan(ctx, out, deps, cfg, args[0], sinks)
		},
	}

	addScanFlags(scanCmd)
	scanCmd.Flags().StringP("output", "o", "./a11y-report.html", "Output path for the report, or 'stdout'")
	bindFlag(scanCmd, "output", "scan.output")
	addSinkFlags(scanCmd, &sinks)
	return scanCmd
}

// addScanFlags registers the flags shared by scan and batch.
func addScanFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("standard", "s", string(schemas.StandardAll), "Standard to test against (wcag|en301549|dos-lagen|all)")
	bindFlag(cmd, "standard", "scan.standard")
	f.StringP("level", "l", string(schemas.LevelAA), "WCAG level (A|AA|AAA)")
	bindFlag(cmd, "level", "scan.level")
	f.StringP("format", "f", reporting.FormatHTML, "Report format ("+strings.Join(reporting.Formats(), "|")+")")
	bindFlag(cmd, "format", "scan.format")
	f.String("lang", i18n.DefaultLang, "Report language ("+strings.Join(i18n.Languages(), "|")+")")
	bindFlag(cmd, "lang", "scan.lang")
	f.Bool("headless", true, "Run the browser in headless mode")
	bindFlag(cmd, "headless", "browser.headless")
	f.Duration("timeout", scanner.DefaultTimeout, "Navigation timeout")
	bindFlag(cmd, "timeout", "scan.timeout")
	f.Bool("no-screenshots", false, "Do not capture screenshots")
	f.Bool("ci", false, "Exit with status 1 when critical violations are found")
	bindFlag(cmd, "ci", "scan.ci")
}

func addSinkFlags(cmd *cobra.Command, sinks *sinkFlags) {
	cmd.Flags().BoolVar(&sinks.cloud, "cloud", false, "Upload the result to the cloud dashboard")
	cmd.Flags().BoolVar(&sinks.save, "save", false, "Store the result in the scan history database")
	cmd.Flags().BoolVar(&sinks.archive, "archive", false, "Upload the report to object storage")
}

// applyScanFlagOverrides handles the flags that have no direct config key.
func applyScanFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if noShots, err := cmd.Flags().GetBool("no-screenshots"); err == nil && noShots {
		cfg.Scan.Screenshots = false
	}
	format, err := reporting.ParseFormat(cfg.Scan.Format)
	if err != nil {
		return
	}
	cfg.Scan.Format = format
	// The default report name follows the chosen format.
	if f := cmd.Flags().Lookup("output"); f != nil && !f.Changed && format != reporting.FormatHTML {
		if ext := filepath.Ext(cfg.Scan.Output); ext == reporting.Extension(reporting.FormatHTML) {
			cfg.Scan.Output = strings.TrimSuffix(cfg.Scan.Output, ext) + reporting.Extension(format)
		}
	}
}

// runScan contains the core, testable logic of the scan command.
func runScan(ctx context.Context, out io.Writer, deps *dependencies, cfg *config.Config, target string, sinks sinkFlags) error {
	logger := observability.GetLogger()
	if _, err := reporting.ParseFormat(cfg.Scan.Format); err != nil {
		return err
	}

	scanCfg := scanner.ConfigFromApp(target, cfg)
	if err := scanCfg.Validate(); err != nil {
		return err
	}

	d, cleanup, err := newDelivery(ctx, out, deps, cfg, sinks, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	sc, err := deps.newScanner(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize scanner: %w", err)
	}

	d.println(d.tr.T("cli.scanning", "url", target))
	result, err := sc.Scan(ctx, scanCfg)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	d.printSummary(result)
	if err := d.deliver(ctx, result, cfg.Scan.Output); err != nil {
		return err
	}
	return d.ciGate(cfg.Scan.CI, result)
}

// delivery writes a finished result to the report file and every requested
// sink. It is safe for concurrent use by batch scans.
type delivery struct {
	format   string
	lang     string
	tr       *i18n.Translator
	logger   *zap.Logger
	repo     store.Repository
	archiver reportArchiver
	uploader resultUploader
	cloudCfg cloud.Config

	mu  sync.Mutex
	out io.Writer
}

func newDelivery(ctx context.Context, out io.Writer, deps *dependencies, cfg *config.Config, sinks sinkFlags, logger *zap.Logger) (*delivery, func(), error) {
	d := &delivery{
		format: cfg.Scan.Format,
		lang:   cfg.Scan.Lang,
		tr:     i18n.New(cfg.Scan.Lang),
		logger: logger,
		out:    out,
	}
	cleanup := func() {
		if d.repo != nil {
			d.repo.Close()
		}
	}

	if sinks.cloud {
		if !cfg.Cloud.Enabled() {
			return nil, nil, fmt.Errorf("--cloud requires cloud.url and an API key (A11Y_CLOUD_API_KEY)")
		}
		d.uploader = deps.newUploader(cfg, logger)
		d.cloudCfg = cloud.ConfigFromApp(cfg.Cloud)
	}
	if sinks.archive {
		a, err := deps.newArchiver(cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize report archive: %w", err)
		}
		d.archiver = a
	}
	if sinks.save {
		repo, err := deps.openStore(ctx, cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize store: %w", err)
		}
		d.repo = repo
	}
	return d, cleanup, nil
}

// deliver writes the report to outputPath and feeds the configured sinks. A
// failed cloud upload is reported but does not fail the run.
func (d *delivery) deliver(ctx context.Context, result *schemas.ScanResult, outputPath string) error {
	if err := writeReport(result, d.format, outputPath, d.lang); err != nil {
		return err
	}
	toFile := !isStdout(outputPath)
	if toFile {
		d.println(d.tr.T("cli.report_saved", "path", outputPath))
	}

	var errs []error
	if d.repo != nil {
		if err := d.repo.SaveScan(ctx, result); err != nil {
			errs = append(errs, fmt.Errorf("failed to save scan: %w", err))
		} else {
			d.println(d.tr.T("cli.saved", "id", result.ScanID))
		}
	}
	if d.archiver != nil {
		if !toFile {
			errs = append(errs, errors.New("--archive needs a report file, not stdout"))
		} else if loc, err := d.archiver.UploadFile(ctx, result, outputPath); err != nil {
			errs = append(errs, fmt.Errorf("failed to archive report: %w", err))
		} else {
			d.println(d.tr.T("cli.archived", "location", loc))
		}
	}
	if d.uploader != nil {
		resp := d.uploader.Send(ctx, d.cloudCfg, result)
		if resp.Success {
			d.println(d.tr.T("cli.uploaded"))
		} else {
			d.logger.Warn("Cloud upload failed.", zap.String("url", result.URL), zap.Error(resp.Err))
			d.println(d.tr.T("cli.upload_failed", "error", resp.Error()))
		}
	}
	return errors.Join(errs...)
}

// persist adapts deliver to engine.Sink for batch scans.
func (d *delivery) persist(outputDir string) func(ctx context.Context, result *schemas.ScanResult) error {
	return func(ctx context.Context, result *schemas.ScanResult) error {
		return d.deliver(ctx, result, filepath.Join(outputDir, reportFileName(result, d.format)))
	}
}

func (d *delivery) ciGate(enabled bool, result *schemas.ScanResult) error {
	critical := result.Summary.ViolationsByImpact.Critical
	if !enabled || critical == 0 {
		return nil
	}
	d.println(d.tr.T("cli.ci_failed", "count", strconv.Itoa(critical)))
	return fmt.Errorf("%w: %d", ErrCriticalViolations, critical)
}

func (d *delivery) printSummary(result *schemas.ScanResult) {
	s := result.Summary
	lines := []string{
		d.tr.T("cli.standard", "standard", d.tr.T("standard."+string(result.Standard)), "level", string(result.Level)),
		d.tr.T("cli.score", "score", strconv.Itoa(s.ComplianceScore)),
		d.tr.T("cli.status", "status", d.tr.T("status."+string(results.ComplianceStatus(s)))),
		d.tr.T("cli.violations",
			"total", strconv.Itoa(s.TotalViolations),
			"critical", strconv.Itoa(s.ViolationsByImpact.Critical),
			"serious", strconv.Itoa(s.ViolationsByImpact.Serious),
			"moderate", strconv.Itoa(s.ViolationsByImpact.Moderate),
			"minor", strconv.Itoa(s.ViolationsByImpact.Minor),
		),
	}
	if s.TotalIncomplete > 0 {
		lines = append(lines, d.tr.T("cli.incomplete", "count", strconv.Itoa(s.TotalIncomplete)))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "\n%s\n", result.URL)
	for _, l := range lines {
		fmt.Fprintf(d.out, "  %s\n", l)
	}
}

func (d *delivery) println(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.out, msg)
}

func isStdout(path string) bool {
	return path == "" || path == "stdout" || path == "-"
}

// writeReport renders result in format to outputPath, or stdout.
func writeReport(result *schemas.ScanResult, format, outputPath, lang string) error {
	reporter, err := reporting.New(format, outputPath, reporting.Options{Lang: lang, ToolVersion: Version})
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}
	if err := reporter.Write(result); err != nil {
		_ = reporter.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := reporter.Close(); err != nil {
		return fmt.Errorf("failed to finalize report: %w", err)
	}
	return nil
}
