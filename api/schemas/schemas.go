package schemas

import (
	"fmt"
	"strings"
	"time"
)

// EngineVersion identifies the result format and rule mapping generation.
// The ingest API uses it to interpret uploaded results.
const EngineVersion = "1.1.0"

// -- Scan Parameters --

// Standard selects which rule families a scan evaluates.
type Standard string

const (
	StandardWCAG     Standard = "wcag"
	StandardEN301549 Standard = "en301549"
	StandardDOSLagen Standard = "dos-lagen"
	StandardAll      Standard = "all"
)

// Standards lists every accepted standard value.
var Standards = []Standard{StandardWCAG, StandardEN301549, StandardDOSLagen, StandardAll}

func (s Standard) String() string { return string(s) }

// ParseStandard validates a user supplied standard name. Matching is case-insensitive.
func ParseStandard(s string) (Standard, error) {
	std := Standard(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Standards {
		if std == known {
			return std, nil
		}
	}
	return "", fmt.Errorf("unknown standard %q (want one of wcag, en301549, dos-lagen, all)", s)
}

// Includes reports whether selecting s runs the rule family of other.
func (s Standard) Includes(other Standard) bool {
	return s == other || s == StandardAll
}

// Level is a WCAG conformance level.
type Level string

const (
	LevelA   Level = "A"
	LevelAA  Level = "AA"
	LevelAAA Level = "AAA"
)

func (l Level) String() string { return string(l) }

// ParseLevel validates a conformance level. Matching is case-insensitive.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToUpper(strings.TrimSpace(s))); l {
	case LevelA, LevelAA, LevelAAA:
		return l, nil
	}
	return "", fmt.Errorf("unknown WCAG level %q (want A, AA or AAA)", s)
}

// Viewport is the browser window size in CSS pixels.
type Viewport struct {
	Width  int `json:"width" mapstructure:"width" yaml:"width"`
	Height int `json:"height" mapstructure:"height" yaml:"height"`
}

// -- Scan Results --

// ImpactCounts partitions violations by severity tier.
type ImpactCounts struct {
	Critical int `json:"critical"`
	Serious  int `json:"serious"`
	Moderate int `json:"moderate"`
	Minor    int `json:"minor"`
}

// Total sums every tier.
func (c ImpactCounts) Total() int {
	return c.Critical + c.Serious + c.Moderate + c.Minor
}

// ScanSummary is derived from a result's violations, passes and incomplete checks.
type ScanSummary struct {
	TotalViolations    int          `json:"totalViolations"`
	ViolationsByImpact ImpactCounts `json:"violationsByImpact"`
	TotalPasses        int          `json:"totalPasses"`
	TotalIncomplete    int          `json:"totalIncomplete"`
	TotalElements      int          `json:"totalElements"`
	ComplianceScore    int          `json:"complianceScore"`
}

// Screenshots holds base64 encoded PNG captures of the scanned page.
type Screenshots struct {
	FullPage string `json:"fullPage,omitempty"`
	Viewport string `json:"viewport,omitempty"`
}

// ScanResult is the complete outcome of scanning one URL. It is produced once by
// the scanner and treated as read-only by every renderer and sink downstream.
type ScanResult struct {
	ScanID        string       `json:"scanId"`
	URL           string       `json:"url"`
	Timestamp     time.Time    `json:"timestamp"`
	Standard      Standard     `json:"standard"`
	Level         Level        `json:"wcagLevel"`
	EngineVersion string       `json:"engineVersion"`
	AxeVersion    string       `json:"axeVersion,omitempty"`
	Summary       ScanSummary  `json:"summary"`
	Violations    []Violation  `json:"violations"`
	Passes        []Pass       `json:"passes"`
	Incomplete    []Incomplete `json:"incomplete"`
	Screenshots   *Screenshots `json:"screenshots,omitempty"`
}

// ScanRecord is the summary row kept for a stored scan.
type ScanRecord struct {
	ScanID          string    `json:"scanId"`
	URL             string    `json:"url"`
	Timestamp       time.Time `json:"timestamp"`
	Standard        Standard  `json:"standard"`
	Level           Level     `json:"wcagLevel"`
	ComplianceScore int       `json:"complianceScore"`
	TotalViolations int       `json:"totalViolations"`
	CriticalCount   int       `json:"criticalCount"`
}
