package scanner

import (
	"net/url"

	"go.uber.org/zap"

	"github.com/holmdigital/a11y-cli/api/schemas"
	"github.com/holmdigital/a11y-cli/internal/axe"
	"github.com/holmdigital/a11y-cli/internal/results"
)

const (
	// LearnMoreBaseURL is the knowledge base page prefix for a rule.
	LearnMoreBaseURL = "https://a11y.holmdigital.se/regler/"
	// ManualCheckInstructions accompanies every incomplete check.
	ManualCheckInstructions = "This check requires manual verification. See the knowledge base for instructions."
)

// LearnMoreURL returns the knowledge base link for a rule id.
func LearnMoreURL(ruleID string) string {
	return LearnMoreBaseURL + url.PathEscape(ruleID)
}

func (s *Scanner) transform(cfg Config, raw *axe.RawResults, axeVersion string, shots *schemas.Screenshots, logger *zap.Logger) *schemas.ScanResult {
	violations := make([]schemas.Violation, 0, len(raw.Violations))
	for _, rv := range raw.Violations {
		impact, ok := results.NormalizeImpact(rv.Impact)
		if !ok {
			logger.Warn("Violation has no recognised impact; treating it as minor.",
				zap.String("rule_id", rv.ID), zap.String("impact", rv.Impact))
		}
		entry := s.table.LookupWithTags(rv.ID, rv.Tags)
		fix := entry.FixSuggestion()

		nodes := make([]schemas.ViolationNode, 0, len(rv.Nodes))
		for _, n := range rv.Nodes {
			node := toNode(n)
			node.Fix = fix
			nodes = append(nodes, node)
		}

		violations = append(violations, schemas.Violation{
			ID:           rv.ID,
			Description:  rv.Description,
			Help:         rv.Help,
			HelpURL:      rv.HelpURL,
			Impact:       impact,
			Tags:         nonNil(rv.Tags),
			Nodes:        nodes,
			Regulatory:   entry,
			LearnMoreURL: LearnMoreURL(rv.ID),
		})
	}

	passes := make([]schemas.Pass, 0, len(raw.Passes))
	for _, rp := range raw.Passes {
		count := rp.NodeCount
		if count == 0 {
			count = len(rp.Nodes)
		}
		passes = append(passes, schemas.Pass{ID: rp.ID, Description: rp.Description, NodeCount: count})
	}

	incomplete := make([]schemas.Incomplete, 0, len(raw.Incomplete))
	for _, ri := range raw.Incomplete {
		nodes := make([]schemas.ViolationNode, 0, len(ri.Nodes))
		for _, n := range ri.Nodes {
			nodes = append(nodes, toNode(n))
		}
		incomplete = append(incomplete, schemas.Incomplete{
			ID:                      ri.ID,
			Description:             ri.Description,
			Help:                    ri.Help,
			Nodes:                   nodes,
			ManualCheckInstructions: ManualCheckInstructions,
		})
	}

	if axeVersion == "" {
		axeVersion = raw.TestEngine.Version
	}

	return &schemas.ScanResult{
		ScanID:        s.newID(),
		URL:           cfg.URL,
		Timestamp:     s.now().UTC(),
		Standard:      cfg.Standard,
		Level:         cfg.Level,
		EngineVersion: schemas.EngineVersion,
		AxeVersion:    axeVersion,
		Summary:       results.Summarize(violations, passes, incomplete),
		Violations:    violations,
		Passes:        passes,
		Incomplete:    incomplete,
		Screenshots:   shots,
	}
}

func toNode(n axe.RawNode) schemas.ViolationNode {
	return schemas.ViolationNode{
		HTML:           n.HTML,
		Target:         nonNil([]string(n.Target)),
		FailureSummary: n.FailureSummary,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
