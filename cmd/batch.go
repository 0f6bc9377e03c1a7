package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/holmdigital/a11y-cli/api/schemas"
	"github.com/holmdigital/a11y-cli/internal/config"
	"github.com/holmdigital/a11y-cli/internal/engine"
	"github.com/holmdigital/a11y-cli/internal/observability"
	"github.com/holmdigital/a11y-cli/internal/reporting"
	"github.com/holmdigital/a11y-cli/internal/scanner"
)

var unsafeFileChars = regexp.MustCompile(`[^a-z0-9.-]+`)

// newBatchCmd creates and configures the `batch` command.
func newBatchCmd(deps *dependencies) *cobra.Command {
	var (
		sinks     sinkFlags
		outputDir string
		urlsFile  string
	)

	batchCmd := &cobra.Command{
		Use:   "batch [urls...]",
		Short: "Scan several web pages concurrently",
		Long: `Scans every URL with its own browser, a bounded number at a time, and writes
one report per URL into the output directory. URLs may also be read from a file,
one per line; blank lines and lines starting with # are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			applyScanFlagOverrides(cmd, cfg)

			targets := args
			if urlsFile != "" {
				fromFile, err := readURLFile(urlsFile)
				if err != nil {
					return err
				}
				targets = append(targets, fromFile...)
			}
			if len(targets) == 0 {
				return fmt.Errorf("no URLs given: pass them as arguments or with --file")
			}
			return runBatch(ctx, cmd.OutOrStdout(), deps, cfg, targets, outputDir, sinks)
		},
	}

	addScanFlags(batchCmd)
	batchCmd.Flags().IntP("concurrency", "j", 2, "Number of scans that run at the same time")
	bindFlag(batchCmd, "concurrency", "batch.concurrency")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./a11y-reports", "Directory for the per-URL reports")
	batchCmd.Flags().StringVar(&urlsFile, "file", "", "Read URLs from a file, one per line")
	addSinkFlags(batchCmd, &sinks)
	return batchCmd
}

// runBatch contains the core, testable logic of the batch command.
func runBatch(ctx context.Context, out io.Writer, deps *dependencies, cfg *config.Config, targets []string, outputDir string, sinks sinkFlags) error {
	logger := observability.GetLogger()
	if _, err := reporting.ParseFormat(cfg.Scan.Format); err != nil {
		return err
	}

	cfgs := make([]scanner.Config, 0, len(targets))
	for _, t := range targets {
		c := scanner.ConfigFromApp(t, cfg)
		if err := c.Validate(); err != nil {
			return err
		}
		cfgs = append(cfgs, c)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
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

	runner, err := engine.New(sc, engine.OptionsFromApp(cfg.Batch), logger, engine.SinkFunc(func(ctx context.Context, result *schemas.ScanResult) error {
		d.printSummary(result)
		return d.persist(outputDir)(ctx, result)
	}))
	if err != nil {
		return fmt.Errorf("failed to initialize batch engine: %w", err)
	}

	outcomes := runner.Run(ctx, cfgs)

	failed := engine.Failures(outcomes)
	for _, o := range failed {
		d.println(fmt.Sprintf("%s: %v", o.URL, o.Err))
	}
	var sinkFailures int
	for _, o := range outcomes {
		if o.SinkErr != nil {
			sinkFailures++
			logger.Error("Result delivery failed.", zap.String("url", o.URL), zap.Error(o.SinkErr))
		}
	}
	d.println(d.tr.T("cli.batch_done", "count", strconv.Itoa(len(outcomes)), "failed", strconv.Itoa(len(failed))))

	if len(failed) > 0 || sinkFailures > 0 {
		return fmt.Errorf("%d of %d scans failed, %d results could not be delivered", len(failed), len(outcomes), sinkFailures)
	}
	if cfg.Scan.CI {
		var critical int
		for _, o := range outcomes {
			critical += o.Result.Summary.ViolationsByImpact.Critical
		}
		if critical > 0 {
			d.println(d.tr.T("cli.ci_failed", "count", strconv.Itoa(critical)))
			return fmt.Errorf("%w: %d", ErrCriticalViolations, critical)
		}
	}
	return nil
}

// reportFileName names a batch report after the scanned host and the scan id.
func reportFileName(result *schemas.ScanResult, format string) string {
	host := "page"
	if u, err := url.Parse(result.URL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	host = strings.Trim(unsafeFileChars.ReplaceAllString(strings.ToLower(host), "-"), "-")

	id := result.ScanID
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		id = result.Timestamp.UTC().Format("20060102T150405")
	}
	return host + "-" + id + reporting.Extension(format)
}

// readURLFile reads one URL per line.
func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open URL file: %w", err)
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL file: %w", err)
	}
	return urls, nil
}
