package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/holmdigital/a11y-cli/api/schemas"
	"github.com/holmdigital/a11y-cli/internal/config"
)

const knowledgeBaseURL = "https://a11y.holmdigital.se"

type standardInfo struct {
	std   schemas.Standard
	title string
	lines []string
	path  string
}

var standardInfos = []standardInfo{
	{
		std:   schemas.StandardWCAG,
		title: "WCAG (Web Content Accessibility Guidelines)",
		lines: []string{"International standard for web accessibility", "Levels: A, AA, AAA"},
		path:  "/wcag",
	},
	{
		std:   schemas.StandardEN301549,
		title: "EN 301 549",
		lines: []string{"European accessibility standard for ICT products and services", "Used in public procurement across the EU"},
		path:  "/en-301-549",
	},
	{
		std:   schemas.StandardDOSLagen,
		title: "DOS-lagen",
		lines: []string{"Swedish law on accessibility of digital public services (2018:1937)", "Requires WCAG 2.1 level AA for public sector websites"},
		path:  "/dos-lagen",
	},
}

// newInfoCmd creates the `info` command.
func newInfoCmd() *cobra.Command {
	var standard string

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show information about the supported accessibility standards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd.OutOrStdout(), standard)
		},
	}
	infoCmd.Flags().StringVarP(&standard, "standard", "s", "", "Only show this standard (wcag|en301549|dos-lagen)")
	return infoCmd
}

func runInfo(out io.Writer, standard string) error {
	std := schemas.StandardAll
	if standard != "" {
		parsed, err := schemas.ParseStandard(standard)
		if err != nil {
			return err
		}
		std = parsed
	}
	for _, info := range standardInfos {
		if !std.Includes(info.std) {
			continue
		}
		fmt.Fprintln(out, info.title)
		for _, l := range info.lines {
			fmt.Fprintln(out, "  "+l)
		}
		fmt.Fprintf(out, "  Read more: %s%s\n\n", knowledgeBaseURL, info.path)
	}
	return nil
}

// newRulesCmd creates the `rules` command, which lists the mapping table.
func newRulesCmd() *cobra.Command {
	var standard string

	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "List the regulatory mapping of every known rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			return runRules(cmd.OutOrStdout(), cfg, standard)
		},
	}
	rulesCmd.Flags().StringVarP(&standard, "standard", "s", string(schemas.StandardAll), "Only list rules of this standard")
	return rulesCmd
}

func runRules(out io.Writer, cfg *config.Config, standard string) error {
	std, err := schemas.ParseStandard(standard)
	if err != nil {
		return err
	}
	table, err := buildTable(cfg.Standards)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Mapping table version %s, %d rules\n\n", table.Version(), table.Len())
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tWCAG\tLEVEL\tEN 301 549\tNATIONAL LAW\tRISK")
	for _, e := range table.EntriesFor(std) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.RuleID, dash(e.WCAGCriterion), dash(e.WCAGLevel), dash(e.EN301549Clause), dash(e.NationalLaw), e.RiskTier)
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
