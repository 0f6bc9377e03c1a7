// Package cloud pushes scan results to the HolmDigital ingestion API.
package cloud

import (
	"github.com/holmdigital/a11y-cli/api/schemas"
	"github.com/holmdigital/a11y-cli/internal/results"
)

// Payload is the ingestion wire format.
type Payload struct {
	URL              string             `json:"url"`
	ComplianceScore  int                `json:"compliance_score"`
	ComplianceStatus string             `json:"compliance_status"`
	TotalViolations  int                `json:"total_violations"`
	CriticalCount    int                `json:"critical_count"`
	SeriousCount     int                `json:"serious_count"`
	ModerateCount    int                `json:"moderate_count"`
	MinorCount       int                `json:"minor_count"`
	EngineVersion    string             `json:"engine_version"`
	Violations       []PayloadViolation `json:"violations"`
}

// PayloadViolation is one flattened violation. Element fields describe the
// first offending node.
type PayloadViolation struct {
	RuleID          string   `json:"rule_id"`
	Impact          string   `json:"impact"`
	WCAGCriteria    []string `json:"wcag_criteria"`
	ElementSelector string   `json:"element_selector"`
	ElementHTML     string   `json:"element_html"`
	FailureSummary  string   `json:"failure_summary"`
	FixSuggestion   string   `json:"fix_suggestion"`
}

// ToPayload restructures a result for transport. It does not modify result.
func ToPayload(result *schemas.ScanResult) Payload {
	s := result.Summary
	p := Payload{
		URL:              result.URL,
		ComplianceScore:  s.ComplianceScore,
		ComplianceStatus: string(results.ComplianceStatus(s)),
		TotalViolations:  s.TotalViolations,
		CriticalCount:    s.ViolationsByImpact.Critical,
		SeriousCount:     s.ViolationsByImpact.Serious,
		ModerateCount:    s.ViolationsByImpact.Moderate,
		MinorCount:       s.ViolationsByImpact.Minor,
		EngineVersion:    result.EngineVersion,
		Violations:       make([]PayloadViolation, 0, len(result.Violations)),
	}
	if p.EngineVersion == "" {
		p.EngineVersion = schemas.EngineVersion
	}

	for _, v := range result.Violations {
		pv := PayloadViolation{
			RuleID:         v.ID,
			Impact:         string(v.Impact),
			WCAGCriteria:   []string{},
			FailureSummary: v.Description,
			FixSuggestion:  v.Regulatory.FixSuggestion(),
		}
		if c := v.Regulatory.WCAGCriterion; c != "" {
			pv.WCAGCriteria = append(pv.WCAGCriteria, c)
		}
		if len(v.Nodes) > 0 {
			first := v.Nodes[0]
			pv.ElementSelector = first.Selector()
			pv.ElementHTML = first.HTML
			if first.FailureSummary != "" {
				pv.FailureSummary = first.FailureSummary
			}
		}
		p.Violations = append(p.Violations, pv)
	}
	return p
}
