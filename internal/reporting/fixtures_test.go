package reporting

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/holmdigital/a11y-cli/api/schemas"
)

// pngBase64 is a real 1x1 transparent PNG.
const pngBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func sampleResult() *schemas.ScanResult {
	passes := make([]schemas.Pass, 0, 8)
	for i := 0; i < 8; i++ {
		passes = append(passes, schemas.Pass{ID: fmt.Sprintf("pass-rule-%d", i), Description: fmt.Sprintf("Pass rule %d", i), NodeCount: 5})
	}

	return &schemas.ScanResult{
		ScanID:        "scan-1",
		URL:           "https://example.test/",
		Timestamp:     time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC),
		Standard:      schemas.StandardAll,
		Level:         schemas.LevelAA,
		EngineVersion: schemas.EngineVersion,
		AxeVersion:    "4.10.2",
		Summary: schemas.ScanSummary{
			TotalViolations:    2,
			ViolationsByImpact: schemas.ImpactCounts{Critical: 1, Moderate: 1},
			TotalPasses:        8,
			TotalIncomplete:    1,
			TotalElements:      40,
			ComplianceScore:    80,
		},
		Violations: []schemas.Violation{
			{
				ID:          "color-contrast",
				Description: "Ensures the contrast between foreground and background colors meets WCAG 2 AA",
				Help:        "Elements must meet minimum color contrast ratio thresholds",
				HelpURL:     "https://dequeuniversity.com/rules/axe/4.10/color-contrast",
				Impact:      schemas.SeverityModerate,
				Tags:        []string{"wcag2aa", "wcag143"},
				Nodes: []schemas.ViolationNode{
					{HTML: `<p class="muted">Fine print</p>`, Target: []string{"p.muted"}, FailureSummary: "Contrast ratio 2.9:1", Fix: "Raise contrast to 4.5:1."},
				},
				Regulatory: schemas.RegulatoryEntry{
					RuleID: "color-contrast", WCAGCriterion: "1.4.3", WCAGLevel: "AA", EN301549Clause: "9.1.4.3",
					NationalLaw: "DOS-lagen (SFS 2018:1937)", RiskTier: schemas.RiskHigh, Guidance: "Raise contrast to 4.5:1.",
				},
				LearnMoreURL: "https://a11y.holmdigital.se/regler/color-contrast",
			},
			{
				ID:          "image-alt",
				Description: "Ensures <img> elements have alternate text",
				Help:        "Images must have alternate text",
				HelpURL:     "https://dequeuniversity.com/rules/axe/4.10/image-alt",
				Impact:      schemas.SeverityCritical,
				Tags:        []string{"wcag2a", "wcag111"},
				Nodes: []schemas.ViolationNode{
					{HTML: `<img src="logo.png">`, Target: []string{"header > img"}, FailureSummary: "Element has no alt attribute", Fix: "Add alt."},
					{HTML: `<img src="hero.png">`, Target: []string{"main img"}, FailureSummary: "Element has no alt attribute", Fix: "Add alt."},
				},
				Regulatory: schemas.RegulatoryEntry{
					RuleID: "image-alt", WCAGCriterion: "1.1.1", WCAGLevel: "A", EN301549Clause: "9.1.1.1",
					RiskTier: schemas.RiskCritical, Guidance: "Add alt.", CodeSample: `<img src="logo.png" alt="HolmDigital">`,
					CommonMistakes: []string{"alt=\"image\""},
				},
				LearnMoreURL: "https://a11y.holmdigital.se/regler/image-alt",
			},
		},
		Passes: passes,
		Incomplete: []schemas.Incomplete{
			{
				ID:                      "en301549-keyboard-trap",
				Description:             "Keyboard focus can leave every component",
				Help:                    "Check for keyboard traps",
				Nodes:                   []schemas.ViolationNode{{HTML: "<body>", Target: []string{"body"}}},
				ManualCheckInstructions: "This check requires manual verification. See the knowledge base for instructions.",
			},
		},
		Screenshots: &schemas.Screenshots{FullPage: pngBase64, Viewport: pngBase64},
	}
}

// hostileResult carries markup and script in every page derived field.
func hostileResult() *schemas.ScanResult {
	res := sampleResult()
	res.URL = `https://example.test/?q="><script>alert(1)</script>`
	v := &res.Violations[1]
	v.Description = `<script>alert("desc")</script>`
	v.Help = `<b onmouseover=alert(1)>help</b>`
	v.HelpURL = `javascript:alert(1)`
	v.Nodes[0].HTML = `<img src=x onerror=alert(1)>`
	v.Nodes[0].Target = []string{`"><svg onload=alert(1)>`}
	v.Nodes[0].FailureSummary = `</pre><script>alert(2)</script>`
	v.Nodes[0].Fix = `<iframe src="https://evil.test">`
	res.Incomplete[0].Help = `<script>alert(3)</script>`
	res.Passes[0].Description = `<style>body{display:none}</style>`
	return res
}

func decoded(s string) []byte {
	b, _ := base64.StdEncoding.DecodeString(s)
	return b
}

// failingWriteCloser simulates I/O errors.
type failingWriteCloser struct {
	buf       bytes.Buffer
	failWrite bool
	failClose bool
	closed    int
}

func (f *failingWriteCloser) Write(p []byte) (int, error) {
	if f.failWrite {
		return 0, errors.New("simulated write error")
	}
	return f.buf.Write(p)
}

func (f *failingWriteCloser) Close() error {
	f.closed++
	if f.failClose {
		return errors.New("simulated close error")
	}
	return nil
}
