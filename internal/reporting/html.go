package reporting

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"github.com/holmdigital/a11y-cli/api/schemas"
	"github.com/holmdigital/a11y-cli/internal/i18n"
	"github.com/holmdigital/a11y-cli/internal/results"
)

//go:embed templates/report.html.tmpl
var reportTemplateSource string

// reportTemplate is parsed once with placeholder functions. Each render clones
// it and binds the functions of its language.
var reportTemplate = template.Must(template.New("report").Funcs(templateFuncs(i18n.New(i18n.DefaultLang))).Parse(reportTemplateSource))

// HTMLOptions tunes the HTML report.
type HTMLOptions struct {
	// Lang selects the label language. Unsupported values fall back to English.
	Lang string
}

type htmlView struct {
	Result     *schemas.ScanResult
	Lang       string
	Date       string
	Status     results.Status
	ScoreClass string
	Groups     []results.Group
	Viewport   template.URL
	FullPage   template.URL
}

// RenderHTML renders a complete, self-contained HTML document for result. Every
// page derived string is escaped for its context by html/template.
func RenderHTML(result *schemas.ScanResult, opts HTMLOptions) (string, error) {
	if result == nil {
		return "", fmt.Errorf("cannot render a nil scan result")
	}
	tr := i18n.New(opts.Lang)

	tmpl, err := reportTemplate.Clone()
	if err != nil {
		return "", fmt.Errorf("failed to clone report template: %w", err)
	}
	tmpl.Funcs(templateFuncs(tr))

	view := htmlView{
		Result:     result,
		Lang:       tr.Lang(),
		Date:       result.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"),
		Status:     results.ComplianceStatus(result.Summary),
		ScoreClass: ScoreClass(result.Summary.ComplianceScore),
		Groups:     results.GroupBySeverity(result.Violations),
	}
	if result.Screenshots != nil {
		view.Viewport, _ = ScreenshotURI(result.Screenshots.Viewport)
		view.FullPage, _ = ScreenshotURI(result.Screenshots.FullPage)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render HTML report: %w", err)
	}
	return buf.String(), nil
}

func templateFuncs(tr *i18n.Translator) template.FuncMap {
	return template.FuncMap{
		"t": tr.T,
		"impact": func(s schemas.Severity) string {
			return tr.T("impact." + string(s))
		},
		"risk": func(r schemas.RiskTier) string {
			return tr.T("risk." + string(r))
		},
		"standard": func(s schemas.Standard) string {
			return tr.T("standard." + string(s))
		},
		"status": func(s results.Status) string {
			return tr.T("status." + string(s))
		},
		"join": strings.Join,
		"inc":  func(i int) int { return i + 1 },
		"itoa": strconv.Itoa,
	}
}

// ScoreClass maps a compliance score to its color class: green from 90, yellow
// from 70, orange from 50 and red below.
func ScoreClass(score int) string {
	switch {
	case score >= 90:
		return "score-excellent"
	case score >= 70:
		return "score-good"
	case score >= 50:
		return "score-fair"
	default:
		return "score-poor"
	}
}

// ScreenshotURI returns a PNG data URI for a base64 screenshot. ok is false,
// and the URI empty, unless data is non-empty valid standard base64.
func ScreenshotURI(data string) (uri template.URL, ok bool) {
	if data == "" {
		return "", false
	}
	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return "", false
	}
	// Decodable base64 holds no quotes or angle brackets, so it cannot leave
	// the attribute.
	return template.URL("data:image/png;base64," + data), true
}
