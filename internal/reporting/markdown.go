package reporting

import (
	"fmt"
	"strings"

	"github.com/holmdigital/a11y-cli/api/schemas"
	"github.com/holmdigital/a11y-cli/internal/i18n"
	"github.com/holmdigital/a11y-cli/internal/results"
)

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"|", `\|`,
	"`", "\\`",
	"<", "&lt;",
	">", "&gt;",
	"\r", " ",
	"\n", " ",
)

// RenderMarkdown renders a compact Markdown summary suited for pull request
// comments and CI job summaries.
func RenderMarkdown(result *schemas.ScanResult, lang string) (string, error) {
	if result == nil {
		return "", fmt.Errorf("cannot render a nil scan result")
	}
	tr := i18n.New(lang)
	s := result.Summary
	status := results.ComplianceStatus(s)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", tr.T("report.title"))
	fmt.Fprintf(&b, "- **%s:** %s\n", tr.T("report.url"), md(result.URL))
	fmt.Fprintf(&b, "- **%s:** %s\n", tr.T("report.date"), result.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- **%s:** %s (WCAG %s)\n", tr.T("report.standard"), tr.T("standard."+string(result.Standard)), result.Level)
	fmt.Fprintf(&b, "- **%s:** %d%%\n", tr.T("report.score"), s.ComplianceScore)
	fmt.Fprintf(&b, "- **%s:** %s\n\n", tr.T("report.status"), tr.T("status."+string(status)))

	fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", tr.T("impact.critical"), tr.T("impact.serious"), tr.T("impact.moderate"), tr.T("impact.minor"), tr.T("report.passes"))
	b.WriteString("|---:|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d |\n\n",
		s.ViolationsByImpact.Critical, s.ViolationsByImpact.Serious,
		s.ViolationsByImpact.Moderate, s.ViolationsByImpact.Minor, s.TotalPasses)

	fmt.Fprintf(&b, "## %s (%d)\n\n", tr.T("report.violations"), s.TotalViolations)
	if len(result.Violations) == 0 {
		fmt.Fprintf(&b, "%s\n", tr.T("report.no_violations"))
	} else {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", tr.T("report.rule_id"), tr.T("report.impact"), tr.T("report.wcag"), tr.T("report.en301549"), tr.T("report.affected"))
		b.WriteString("|---|---|---|---|---:|\n")
		for _, v := range results.Prioritize(result.Violations) {
			fmt.Fprintf(&b, "| `%s` | %s | %s | %s | %d |\n",
				md(v.ID), tr.T("impact."+string(v.Impact)),
				orDash(v.Regulatory.WCAGCriterion), orDash(v.Regulatory.EN301549Clause), len(v.Nodes))
		}
		b.WriteString("\n")
		for _, v := range results.Prioritize(result.Violations) {
			fmt.Fprintf(&b, "### %s\n\n", md(v.Help))
			fmt.Fprintf(&b, "%s\n\n", md(v.Description))
			fmt.Fprintf(&b, "**%s:** %s\n\n", tr.T("report.fix"), md(v.Regulatory.FixSuggestion()))
			if v.LearnMoreURL != "" {
				fmt.Fprintf(&b, "[%s](%s)\n\n", tr.T("report.learn_more"), v.LearnMoreURL)
			}
		}
	}

	if len(result.Incomplete) > 0 {
		fmt.Fprintf(&b, "## %s (%d)\n\n", tr.T("report.manual"), len(result.Incomplete))
		for _, inc := range result.Incomplete {
			fmt.Fprintf(&b, "- `%s`: %s\n", md(inc.ID), md(inc.Help))
		}
	}
	return b.String(), nil
}

// md neutralizes characters that would break table cells or inject markup.
func md(s string) string {
	return markdownEscaper.Replace(s)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return md(s)
}
