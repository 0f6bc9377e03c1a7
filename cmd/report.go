package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/holmdigital/a11y-cli/api/schemas"
	"github.com/holmdigital/a11y-cli/internal/config"
	"github.com/holmdigital/a11y-cli/internal/i18n"
	"github.com/holmdigital/a11y-cli/internal/observability"
	"github.com/holmdigital/a11y-cli/internal/reporting"
)

type reportOptions struct {
	inputPath  string
	scanID     string
	outputPath string
	format     string
	lang       string
}

// newReportCmd creates and configures the `report` command.
func newReportCmd(deps *dependencies) *cobra.Command {
	var opts reportOptions

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Render a stored scan result in another format",
		Long: `Reads a scan result from a JSON report written by 'a11y scan -f json' or from
the scan history database, and renders it again in any supported format.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("lang") {
				opts.lang = cfg.Scan.Lang
			}
			return runReport(ctx, cmd.OutOrStdout(), deps, cfg, opts)
		},
	}

	reportCmd.Flags().StringVarP(&opts.inputPath, "input", "i", "", "JSON scan result to render")
	reportCmd.Flags().StringVar(&opts.scanID, "scan-id", "", "ID of a stored scan to render")
	reportCmd.MarkFlagsMutuallyExclusive("input", "scan-id")
	reportCmd.MarkFlagsOneRequired("input", "scan-id")
	reportCmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Output file path. If unset, the report is printed to stdout.")
	reportCmd.Flags().StringVarP(&opts.format, "format", "f", reporting.FormatHTML, "Report format")
	reportCmd.Flags().StringVar(&opts.lang, "lang", "", "Report language")
	return reportCmd
}

// runReport contains the core, testable logic for re-rendering a result.
func runReport(ctx context.Context, out io.Writer, deps *dependencies, cfg *config.Config, opts reportOptions) error {
	logger := observability.GetLogger()
	format, err := reporting.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	result, err := loadResult(ctx, deps, cfg, opts, logger)
	if err != nil {
		return err
	}

	if err := writeReport(result, format, opts.outputPath, opts.lang); err != nil {
		return err
	}
	if !isStdout(opts.outputPath) {
		logger.Info("Report successfully written to file", zap.String("path", opts.outputPath))
		fmt.Fprintln(out, i18n.New(opts.lang).T("cli.report_saved", "path", opts.outputPath))
	}
	return nil
}

func loadResult(ctx context.Context, deps *dependencies, cfg *config.Config, opts reportOptions, logger *zap.Logger) (*schemas.ScanResult, error) {
	if opts.inputPath != "" {
		data, err := os.ReadFile(opts.inputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read scan result: %w", err)
		}
		result, err := reporting.ParseJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse scan result %s: %w", opts.inputPath, err)
		}
		return result, nil
	}

	repo, err := deps.openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	defer repo.Close()

	result, err := repo.GetScan(ctx, opts.scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scan: %w", err)
	}
	return result, nil
}
