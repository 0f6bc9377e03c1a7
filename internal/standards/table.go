// Package standards holds the regulatory mapping table that links accessibility
// rule ids to WCAG success criteria, EN 301 549 clauses and Swedish DOS-lagen
// references.
//
// A Table is immutable once built. Every accessor returns copies, so a single
// instance can be shared by any number of concurrent scans.
package standards

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/holmdigital/a11y-cli/api/schemas"
)

//go:embed mappings.yaml
var embeddedMappings []byte

// DefaultFallbackRisk is the risk tier given to rules the table does not know.
const DefaultFallbackRisk = schemas.RiskModerate

// FallbackGuidance is the remediation text for unmapped rules.
const FallbackGuidance = "No regulatory mapping is curated for this rule yet. Follow the rule's help link and review the affected elements manually."

// Options tunes how a table is built.
type Options struct {
	// FallbackRisk is the risk tier reported for unmapped rule ids.
	// Empty means DefaultFallbackRisk.
	FallbackRisk schemas.RiskTier
}

// dataset mirrors the YAML document layout.
type dataset struct {
	Version string                    `yaml:"version"`
	Rules   []schemas.RegulatoryEntry `yaml:"rules"`
}

// Table is a read-only, versioned set of regulatory mapping entries keyed by rule id.
type Table struct {
	version      string
	entries      map[string]schemas.RegulatoryEntry
	fallbackRisk schemas.RiskTier
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the process-wide table built from the embedded dataset. The
// embedded data is validated by tests, so a parse failure here is a build defect.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Parse(embeddedMappings, Options{})
		if err != nil {
			panic(fmt.Sprintf("standards: embedded mapping dataset is invalid: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// Load builds a table from a YAML document.
func Load(r io.Reader, opts Options) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping data: %w", err)
	}
	return Parse(data, opts)
}

// LoadFile builds a table from a YAML file on disk.
func LoadFile(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping file %s: %w", path, err)
	}
	defer f.Close()
	return Load(f, opts)
}

// Parse validates and indexes a YAML mapping document.
func Parse(data []byte, opts Options) (*Table, error) {
	var ds dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse mapping data: %w", err)
	}

	risk := opts.FallbackRisk
	if risk == "" {
		risk = DefaultFallbackRisk
	}
	if _, err := schemas.ParseRiskTier(string(risk)); err != nil {
		return nil, fmt.Errorf("invalid fallback risk: %w", err)
	}

	t := &Table{
		version:      ds.Version,
		entries:      make(map[string]schemas.RegulatoryEntry, len(ds.Rules)),
		fallbackRisk: risk,
	}

	for i, e := range ds.Rules {
		e.RuleID = strings.TrimSpace(e.RuleID)
		if e.RuleID == "" {
			return nil, fmt.Errorf("rule #%d has no rule_id", i)
		}
		if _, dup := t.entries[e.RuleID]; dup {
			return nil, fmt.Errorf("duplicate rule_id %q", e.RuleID)
		}
		tier, err := schemas.ParseRiskTier(string(e.RiskTier))
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", e.RuleID, err)
		}
		e.RiskTier = tier
		if strings.TrimSpace(e.Guidance) == "" {
			return nil, fmt.Errorf("rule %q has no guidance", e.RuleID)
		}
		if e.EN301549Clause == "" && e.WCAGCriterion != "" {
			e.EN301549Clause = ClauseForWCAG(e.WCAGCriterion)
		}
		e.CodeSample = strings.TrimRight(e.CodeSample, "\n")
		e.Fallback = false
		t.entries[e.RuleID] = e
	}
	return t, nil
}

// WithFallbackRisk returns a table sharing this table's entries but reporting
// risk for unmapped rules.
func (t *Table) WithFallbackRisk(risk schemas.RiskTier) (*Table, error) {
	if _, err := schemas.ParseRiskTier(string(risk)); err != nil {
		return nil, err
	}
	return &Table{version: t.version, entries: t.entries, fallbackRisk: risk}, nil
}

// Version returns the dataset version string.
func (t *Table) Version() string { return t.version }

// Len returns the number of curated entries.
func (t *Table) Len() int { return len(t.entries) }

// FallbackRisk returns the risk tier used for unmapped rules.
func (t *Table) FallbackRisk() schemas.RiskTier { return t.fallbackRisk }

// Has reports whether ruleID has a curated entry.
func (t *Table) Has(ruleID string) bool {
	_, ok := t.entries[ruleID]
	return ok
}

// Lookup returns the entry for ruleID. It never fails: unknown ids yield a
// fallback entry carrying generic guidance and the configured fallback risk.
func (t *Table) Lookup(ruleID string) schemas.RegulatoryEntry {
	if e, ok := t.entries[ruleID]; ok {
		return clone(e)
	}
	return schemas.RegulatoryEntry{
		RuleID:   ruleID,
		RiskTier: t.fallbackRisk,
		Guidance: FallbackGuidance,
		Fallback: true,
	}
}

// LookupWithTags behaves like Lookup but, for unmapped rules, recovers the WCAG
// criterion and EN 301 549 clause from the rule's axe tags.
func (t *Table) LookupWithTags(ruleID string, tags []string) schemas.RegulatoryEntry {
	e := t.Lookup(ruleID)
	if !e.Fallback {
		return e
	}
	if sc := CriterionFromTags(tags); sc != "" {
		e.WCAGCriterion = sc
		e.EN301549Clause = ClauseForWCAG(sc)
	}
	return e
}

// Entries returns every curated entry sorted by rule id.
func (t *Table) Entries() []schemas.RegulatoryEntry {
	out := make([]schemas.RegulatoryEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, clone(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out
}

// EntriesFor returns the curated entries relevant to a standard, sorted by rule id.
func (t *Table) EntriesFor(std schemas.Standard) []schemas.RegulatoryEntry {
	all := t.Entries()
	if std == schemas.StandardAll {
		return all
	}
	out := all[:0]
	for _, e := range all {
		if Family(e.RuleID) == std {
			out = append(out, e)
		}
	}
	return out
}

// Family classifies a rule id by the standard whose rule set defines it.
// Core axe-core rules belong to WCAG.
func Family(ruleID string) schemas.Standard {
	switch {
	case strings.HasPrefix(ruleID, "en301549-"):
		return schemas.StandardEN301549
	case strings.HasPrefix(ruleID, "dos-"):
		return schemas.StandardDOSLagen
	default:
		return schemas.StandardWCAG
	}
}

func clone(e schemas.RegulatoryEntry) schemas.RegulatoryEntry {
	e.CommonMistakes = slices.Clone(e.CommonMistakes)
	return e
}
