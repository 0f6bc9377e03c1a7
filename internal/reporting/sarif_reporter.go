package reporting

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/holmdigital/a11y-cli/api/schemas"
	"github.com/holmdigital/a11y-cli/internal/observability"
	"github.com/holmdigital/a11y-cli/internal/reporting/sarif"
)

// Constants for tool identification in the SARIF report.
const (
	ToolName    = "HolmDigital A11y"
	ToolInfoURI = "https://a11y.holmdigital.se"

	fingerprintKey = "a11yNode/v1"
)

// SARIFReporter collects scan results into a single SARIF run. Every violating
// node becomes one result. It is thread safe.
type SARIFReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	log    *sarif.Log
	// mu protects the log structure and the rule index.
	mu        sync.Mutex
	ruleIndex map[string]int
}

// NewSARIFReporter creates a reporter that writes SARIF to writer on Close.
func NewSARIFReporter(writer io.WriteCloser, toolVersion string) *SARIFReporter {
	logger := observability.GetLogger().Named("sarif_reporter")
	log := &sarif.Log{
		Version: sarif.Version,
		Schema:  sarif.Schema,
		Runs: []*sarif.Run{
			{
				Tool: &sarif.Tool{
					Driver: &sarif.ToolComponent{
						Name:           ToolName,
						Version:        pString(toolVersion),
						InformationURI: pString(ToolInfoURI),
						Rules:          []*sarif.ReportingDescriptor{},
					},
				},
				Results: []*sarif.Result{},
			},
		},
	}

	return &SARIFReporter{
		writer:    writer,
		logger:    logger,
		log:       log,
		ruleIndex: make(map[string]int),
	}
}

// Write converts the violations of a scan result into SARIF results.
func (r *SARIFReporter) Write(result *schemas.ScanResult) error {
	if result == nil {
		return fmt.Errorf("cannot report a nil scan result")
	}
	startTime := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	run.Invocations = append(run.Invocations, sarif.Invocation{
		ExecutionSuccessful: true,
		EndTimeUTC:          result.Timestamp.UTC().Format(time.RFC3339),
		Properties: &sarif.PropertyBag{
			"url":             result.URL,
			"standard":        string(result.Standard),
			"wcagLevel":       string(result.Level),
			"complianceScore": result.Summary.ComplianceScore,
		},
	})

	count := 0
	for _, v := range result.Violations {
		idx := r.ensureRule(v)
		for _, node := range v.Nodes {
			run.Results = append(run.Results, &sarif.Result{
				RuleID:    v.ID,
				RuleIndex: idx,
				Message:   &sarif.Message{Text: pString(resultMessage(v, node))},
				Level:     levelFor(v.Impact),
				Locations: createLocations(result.URL, node),
				PartialFingerprints: map[string]string{
					fingerprintKey: nodeFingerprint(result.URL, v.ID, node),
				},
			})
			count++
		}
	}

	if count > 0 {
		r.logger.Debug("Wrote violations to SARIF buffer",
			zap.String("url", result.URL),
			zap.Int("results_count", count),
			zap.Duration("duration_ms", time.Since(startTime)),
		)
	}
	return nil
}

// Close finalizes the SARIF log and writes it to the output writer.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	r.logger.Debug("Finalizing SARIF report",
		zap.Int("total_results", len(run.Results)),
		zap.Int("total_rules", len(run.Tool.Driver.Rules)),
	)

	data, encodeErr := json.MarshalIndent(r.log, "", "  ")
	if encodeErr == nil {
		_, encodeErr = r.writer.Write(append(data, '\n'))
	}
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to write SARIF log", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode SARIF output: %w", encodeErr)
	}
	if closeErr != nil {
		r.logger.Error("Failed to close output writer", zap.Error(closeErr))
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

// RenderSARIF renders a single result as a SARIF log.
func RenderSARIF(result *schemas.ScanResult, toolVersion string) (string, error) {
	var buf bytes.Buffer
	r := NewSARIFReporter(&nopWriteCloser{&buf}, toolVersion)
	if err := r.Write(result); err != nil {
		return "", err
	}
	if err := r.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ensureRule registers the rule of v on first sight and returns its index.
// Must be called while holding the mutex.
func (r *SARIFReporter) ensureRule(v schemas.Violation) int {
	if idx, ok := r.ruleIndex[v.ID]; ok {
		return idx
	}

	driver := r.log.Runs[0].Tool.Driver
	reg := v.Regulatory

	var md strings.Builder
	fmt.Fprintf(&md, "**%s**\n\n%s\n\n", v.Help, v.Description)
	if reg.WCAGCriterion != "" {
		fmt.Fprintf(&md, "- WCAG %s\n", reg.WCAGCriterion)
	}
	if reg.EN301549Clause != "" {
		fmt.Fprintf(&md, "- EN 301 549 %s\n", reg.EN301549Clause)
	}
	if reg.NationalLaw != "" {
		fmt.Fprintf(&md, "- %s\n", reg.NationalLaw)
	}
	fmt.Fprintf(&md, "\n%s", reg.FixSuggestion())

	props := sarif.PropertyBag{
		"tags":     append([]string{"accessibility"}, v.Tags...),
		"riskTier": string(reg.RiskTier),
	}
	if reg.WCAGCriterion != "" {
		props["wcag"] = reg.WCAGCriterion
	}
	if reg.EN301549Clause != "" {
		props["en301549"] = reg.EN301549Clause
	}

	rule := &sarif.ReportingDescriptor{
		ID:               v.ID,
		Name:             pString(v.ID),
		ShortDescription: &sarif.MultiformatMessageString{Text: pString(v.Help)},
		FullDescription:  &sarif.MultiformatMessageString{Text: pString(v.Description)},
		Help: &sarif.MultiformatMessageString{
			Text:     pString(reg.FixSuggestion()),
			Markdown: pString(md.String()),
		},
		Properties: &props,
	}
	if v.LearnMoreURL != "" {
		rule.HelpURI = pString(v.LearnMoreURL)
	} else if v.HelpURL != "" {
		rule.HelpURI = pString(v.HelpURL)
	}

	driver.Rules = append(driver.Rules, rule)
	idx := len(driver.Rules) - 1
	r.ruleIndex[v.ID] = idx
	r.logger.Debug("Registered SARIF rule", zap.String("rule_id", v.ID), zap.Int("index", idx))
	return idx
}

func resultMessage(v schemas.Violation, node schemas.ViolationNode) string {
	if node.FailureSummary != "" {
		return v.Help + ": " + node.FailureSummary
	}
	return v.Help
}

func createLocations(pageURL string, node schemas.ViolationNode) []*sarif.Location {
	loc := &sarif.Location{
		PhysicalLocation: &sarif.PhysicalLocation{
			ArtifactLocation: &sarif.ArtifactLocation{URI: pString(pageURL)},
		},
		Message: &sarif.Message{Text: pString(fmt.Sprintf("Element %s on %s", node.Selector(), pageURL))},
	}
	if node.HTML != "" {
		loc.PhysicalLocation.Region = &sarif.Region{Snippet: &sarif.ArtifactContent{Text: pString(node.HTML)}}
	}
	if sel := node.Selector(); sel != "" {
		loc.LogicalLocations = []sarif.LogicalLocation{{FullyQualifiedName: sel, Kind: "element"}}
	}
	return []*sarif.Location{loc}
}

// nodeFingerprint identifies a finding across runs independent of its message.
func nodeFingerprint(pageURL, ruleID string, node schemas.ViolationNode) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s", pageURL, ruleID, node.Selector())
	return hex.EncodeToString(h.Sum(nil))
}

// levelFor maps impact to SARIF level.
func levelFor(sev schemas.Severity) sarif.Level {
	switch sev {
	case schemas.SeverityCritical, schemas.SeveritySerious:
		return sarif.LevelError
	case schemas.SeverityModerate:
		return sarif.LevelWarning
	default:
		return sarif.LevelNote
	}
}

// pString returns a pointer to the given string value. Helper for optional SARIF fields.
func pString(s string) *string {
	return &s
}
