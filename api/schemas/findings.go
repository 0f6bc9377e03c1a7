package schemas

import (
	"fmt"
	"strings"
)

// -- Severity --

// Severity is the impact tier the rule evaluator assigns to a violation.
// The values are lowercase to match the evaluator's output and the database column.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeveritySerious  Severity = "serious"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
)

// Severities lists every tier, most severe first.
var Severities = []Severity{SeverityCritical, SeveritySerious, SeverityModerate, SeverityMinor}

func (s Severity) String() string { return string(s) }

// Valid reports whether s is one of the four defined tiers.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeveritySerious, SeverityModerate, SeverityMinor:
		return true
	}
	return false
}

// Rank orders tiers for sorting. Lower is more severe; unknown values sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeveritySerious:
		return 1
	case SeverityModerate:
		return 2
	case SeverityMinor:
		return 3
	default:
		return 4
	}
}

// -- Risk Tier --

// RiskTier is the qualitative regulatory risk attached to a rule by the mapping table.
type RiskTier string

const (
	RiskCritical RiskTier = "critical"
	RiskHigh     RiskTier = "high"
	RiskModerate RiskTier = "moderate"
	RiskLow      RiskTier = "low"
)

func (r RiskTier) String() string { return string(r) }

// ParseRiskTier validates a configured risk tier.
func ParseRiskTier(s string) (RiskTier, error) {
	r := RiskTier(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RiskCritical, RiskHigh, RiskModerate, RiskLow:
		return r, nil
	}
	return "", fmt.Errorf("unknown risk tier %q (want critical, high, moderate or low)", s)
}

// -- Regulatory Mapping --

// RegulatoryEntry ties a rule identifier to the standards and legal citations it
// corresponds to, together with remediation guidance. Entries are reference data
// and are never mutated after the mapping table is loaded.
type RegulatoryEntry struct {
	RuleID         string   `json:"ruleId" yaml:"rule_id"`
	Title          string   `json:"title,omitempty" yaml:"title"`
	WCAGCriterion  string   `json:"wcagCriterion,omitempty" yaml:"wcag"`
	WCAGLevel      string   `json:"wcagLevel,omitempty" yaml:"wcag_level"`
	EN301549Clause string   `json:"en301549Clause,omitempty" yaml:"en301549"`
	NationalLaw    string   `json:"nationalLaw,omitempty" yaml:"national_law"`
	RiskTier       RiskTier `json:"riskTier" yaml:"risk"`
	EAAImpact      string   `json:"eaaImpact,omitempty" yaml:"eaa_impact"`
	Guidance       string   `json:"guidance" yaml:"guidance"`
	CodeSample     string   `json:"codeSample,omitempty" yaml:"code_sample"`
	CommonMistakes []string `json:"commonMistakes,omitempty" yaml:"common_mistakes"`
	// Fallback marks entries synthesized for rule ids the table does not know.
	Fallback bool `json:"fallback,omitempty" yaml:"-"`
}

// FallbackFix is the remediation text shown for rules without curated guidance.
const FallbackFix = "See the knowledge base for detailed remediation guidance"

// FixSuggestion returns the entry's guidance, or FallbackFix for fallback
// entries and entries without guidance.
func (e RegulatoryEntry) FixSuggestion() string {
	if e.Fallback || strings.TrimSpace(e.Guidance) == "" {
		return FallbackFix
	}
	return e.Guidance
}

// -- Violations --

// Violation is a failed rule together with every DOM node it failed on,
// enriched with its regulatory mapping.
type Violation struct {
	ID           string          `json:"id"`
	Description  string          `json:"description"`
	Help         string          `json:"help"`
	HelpURL      string          `json:"helpUrl"`
	Impact       Severity        `json:"impact"`
	Tags         []string        `json:"tags"`
	Nodes        []ViolationNode `json:"nodes"`
	Regulatory   RegulatoryEntry `json:"regulatory"`
	LearnMoreURL string          `json:"learnMoreUrl"`
}

// ViolationNode is one offending element.
type ViolationNode struct {
	HTML           string   `json:"html"`
	Target         []string `json:"target"`
	FailureSummary string   `json:"failureSummary"`
	Fix            string   `json:"fix,omitempty"`
}

// Selector returns the node's CSS selector path joined into a single string.
func (n ViolationNode) Selector() string {
	return strings.Join(n.Target, " ")
}

// Pass is a rule that passed on every node it applied to.
type Pass struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	NodeCount   int    `json:"nodeCount"`
}

// Incomplete is a rule the evaluator could not decide automatically.
type Incomplete struct {
	ID                      string          `json:"id"`
	Description             string          `json:"description"`
	Help                    string          `json:"help"`
	Nodes                   []ViolationNode `json:"nodes"`
	ManualCheckInstructions string          `json:"manualCheckInstructions"`
}
