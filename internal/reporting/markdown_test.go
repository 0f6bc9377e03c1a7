package reporting

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holmdigital/a11y-cli/api/schemas"
)

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown(sampleResult(), "en")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "# Accessibility report\n"))
	assert.Contains(t, out, "- **Compliance score:** 80%")
	assert.Contains(t, out, "- **Status:** Fail")
	assert.Contains(t, out, "| 1 | 0 | 1 | 0 | 8 |")
	assert.Contains(t, out, "| `image-alt` | Critical | 1.1.1 | 9.1.1.1 | 2 |")
	assert.Contains(t, out, "| `color-contrast` | Moderate | 1.4.3 | 9.1.4.3 | 1 |")
	assert.Contains(t, out, "[Learn more](https://a11y.holmdigital.se/regler/image-alt)")
	assert.Contains(t, out, "## Needs manual verification (1)")

	// Critical rows come first.
	assert.Less(t, strings.Index(out, "`image-alt`"), strings.Index(out, "`color-contrast`"))
}

func TestRenderMarkdown_Swedish(t *testing.T) {
	out, err := RenderMarkdown(sampleResult(), "sv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# Tillgänglighetsrapport\n"))
	assert.Contains(t, out, "Kritisk")
}

func TestRenderMarkdown_Escaping(t *testing.T) {
	res := sampleResult()
	res.Violations[1].Help = "a | b <script>"
	res.Violations[1].Description = "line one\nline two"

	out, err := RenderMarkdown(res, "en")
	require.NoError(t, err)
	assert.Contains(t, out, `### a \| b &lt;script&gt;`)
	assert.Contains(t, out, "line one line two")
	assert.NotContains(t, out, "<script")
}

func TestRenderMarkdown_NoViolations(t *testing.T) {
	res := sampleResult()
	res.Violations = nil
	res.Summary = schemas.ScanSummary{TotalPasses: 8, ComplianceScore: 100}

	out, err := RenderMarkdown(res, "en")
	require.NoError(t, err)
	assert.Contains(t, out, "No violations found. Well done!")
	assert.Contains(t, out, "- **Status:** Pass")
}
