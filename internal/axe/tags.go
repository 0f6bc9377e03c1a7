package axe

import (
	"github.com/holmdigital/a11y-cli/api/schemas"
)

// TagsFor returns the axe runOnly tag filter for a standard and WCAG level.
// The WCAG 2.1 and 2.2 AA tags are always included for WCAG scans, so a level A
// scan still reports newer AA rules. Duplicates are removed, order is stable.
func TagsFor(std schemas.Standard, level schemas.Level) []string {
	var tags []string

	if std.Includes(schemas.StandardWCAG) {
		tags = append(tags, "wcag2a")
		if level == schemas.LevelAA || level == schemas.LevelAAA {
			tags = append(tags, "wcag2aa")
		}
		if level == schemas.LevelAAA {
			tags = append(tags, "wcag2aaa")
		}
		tags = append(tags, "wcag21a", "wcag21aa", "wcag22aa")
	}
	if std.Includes(schemas.StandardEN301549) {
		tags = append(tags, "en301549")
	}
	if std.Includes(schemas.StandardDOSLagen) {
		tags = append(tags, "dos-lagen")
	}

	return dedupe(tags)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
