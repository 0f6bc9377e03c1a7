package results

import (
	"math"
	"strings"

	"github.com/holmdigital/a11y-cli/api/schemas"
)

// Status is the binary compliance verdict sent to the cloud dashboard.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

// NormalizeImpact maps an evaluator impact string to a severity tier. ok is
// false when the value was missing or unknown and minor was assumed.
func NormalizeImpact(impact string) (sev schemas.Severity, ok bool) {
	s := schemas.Severity(strings.ToLower(strings.TrimSpace(impact)))
	if s.Valid() {
		return s, true
	}
	return schemas.SeverityMinor, false
}

// Summarize derives the scan summary from transformed results.
//
// The compliance score is round(100 * passes / (passes + violations)), counted
// in rules rather than nodes, and 100 when nothing applied. Incomplete checks
// do not influence the score. Violations with an impact outside the four tiers
// are counted as minor so the partition always sums to the total.
func Summarize(violations []schemas.Violation, passes []schemas.Pass, incomplete []schemas.Incomplete) schemas.ScanSummary {
	var byImpact schemas.ImpactCounts
	for _, v := range violations {
		switch sev, _ := NormalizeImpact(string(v.Impact)); sev {
		case schemas.SeverityCritical:
			byImpact.Critical++
		case schemas.SeveritySerious:
			byImpact.Serious++
		case schemas.SeverityModerate:
			byImpact.Moderate++
		default:
			byImpact.Minor++
		}
	}

	totalElements := 0
	for _, p := range passes {
		totalElements += p.NodeCount
	}

	return schemas.ScanSummary{
		TotalViolations:    len(violations),
		ViolationsByImpact: byImpact,
		TotalPasses:        len(passes),
		TotalIncomplete:    len(incomplete),
		TotalElements:      totalElements,
		ComplianceScore:    ComplianceScore(len(passes), len(violations)),
	}
}

// ComplianceScore returns the rounded pass percentage.
func ComplianceScore(passes, violations int) int {
	total := passes + violations
	if total <= 0 {
		return 100
	}
	return int(math.Round(100 * float64(passes) / float64(total)))
}

// ComplianceStatus is PASS when a summary has no critical and no serious violations.
func ComplianceStatus(s schemas.ScanSummary) Status {
	if s.ViolationsByImpact.Critical == 0 && s.ViolationsByImpact.Serious == 0 {
		return StatusPass
	}
	return StatusFail
}
