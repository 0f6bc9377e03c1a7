package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/holmdigital/a11y-cli/internal/config"
	"github.com/holmdigital/a11y-cli/internal/i18n"
	"github.com/holmdigital/a11y-cli/internal/observability"
	"github.com/holmdigital/a11y-cli/internal/store"
)

// newHistoryCmd creates and configures the `history` command.
func newHistoryCmd(deps *dependencies) *cobra.Command {
	var filter store.ListFilter

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent scans from the scan history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runHistory(ctx, cmd.OutOrStdout(), deps, cfg, filter)
		},
	}

	historyCmd.Flags().StringVar(&filter.URL, "url", "", "Only show scans of this URL")
	historyCmd.Flags().IntVarP(&filter.Limit, "limit", "n", store.DefaultListLimit, "Maximum number of scans to list")
	return historyCmd
}

func runHistory(ctx context.Context, out io.Writer, deps *dependencies, cfg *config.Config, filter store.ListFilter) error {
	repo, err := deps.openStore(ctx, cfg, observability.GetLogger())
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer repo.Close()

	records, err := repo.ListScans(ctx, filter)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, i18n.New(cfg.Scan.Lang).T("cli.no_history"))
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCAN ID\tDATE\tURL\tSTANDARD\tLEVEL\tSCORE\tVIOLATIONS\tCRITICAL")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s%%\t%d\t%d\n",
			r.ScanID, r.Timestamp.UTC().Format("2006-01-02 15:04"), r.URL,
			r.Standard, r.Level, strconv.Itoa(r.ComplianceScore), r.TotalViolations, r.CriticalCount)
	}
	return tw.Flush()
}
