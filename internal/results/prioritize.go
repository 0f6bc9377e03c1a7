package results

import (
	"sort"

	"github.com/holmdigital/a11y-cli/api/schemas"
)

// riskRank orders regulatory risk tiers, most urgent first.
func riskRank(r schemas.RiskTier) int {
	switch r {
	case schemas.RiskCritical:
		return 0
	case schemas.RiskHigh:
		return 1
	case schemas.RiskModerate:
		return 2
	case schemas.RiskLow:
		return 3
	default:
		return 4
	}
}

// Prioritize returns a copy of violations ordered by severity, then regulatory
// risk, then rule id. The input slice is left untouched.
func Prioritize(violations []schemas.Violation) []schemas.Violation {
	out := make([]schemas.Violation, len(violations))
	copy(out, violations)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := a.Impact.Rank(), b.Impact.Rank(); ra != rb {
			return ra < rb
		}
		if ra, rb := riskRank(a.Regulatory.RiskTier), riskRank(b.Regulatory.RiskTier); ra != rb {
			return ra < rb
		}
		return a.ID < b.ID
	})
	return out
}

// Group is the set of violations sharing one severity tier.
type Group struct {
	Severity   schemas.Severity
	Violations []schemas.Violation
}

// GroupBySeverity buckets prioritized violations by tier, most severe first.
// Empty tiers are omitted.
func GroupBySeverity(violations []schemas.Violation) []Group {
	buckets := make(map[schemas.Severity][]schemas.Violation, len(schemas.Severities))
	for _, v := range Prioritize(violations) {
		sev, _ := NormalizeImpact(string(v.Impact))
		buckets[sev] = append(buckets[sev], v)
	}

	var groups []Group
	for _, sev := range schemas.Severities {
		if vs := buckets[sev]; len(vs) > 0 {
			groups = append(groups, Group{Severity: sev, Violations: vs})
		}
	}
	return groups
}
