package standards

import (
	"regexp"
)

// wcagTagPattern matches axe-core success criterion tags such as "wcag143"
// (1.4.3) or "wcag1410" (1.4.10). Conformance tags like "wcag2aa" do not match.
var wcagTagPattern = regexp.MustCompile(`^wcag(\d)(\d)(\d+)$`)

// harmonisedCriteria lists the WCAG 2.1 level A and AA success criteria that
// EN 301 549 chapter 9 incorporates as clause "9.<criterion>".
var harmonisedCriteria = map[string]struct{}{}

func init() {
	for _, sc := range []string{
		"1.1.1",
		"1.2.1", "1.2.2", "1.2.3", "1.2.4", "1.2.5",
		"1.3.1", "1.3.2", "1.3.3", "1.3.4", "1.3.5",
		"1.4.1", "1.4.2", "1.4.3", "1.4.4", "1.4.5", "1.4.10", "1.4.11", "1.4.12", "1.4.13",
		"2.1.1", "2.1.2", "2.1.4",
		"2.2.1", "2.2.2",
		"2.3.1",
		"2.4.1", "2.4.2", "2.4.3", "2.4.4", "2.4.5", "2.4.6", "2.4.7",
		"2.5.1", "2.5.2", "2.5.3", "2.5.4",
		"3.1.1", "3.1.2",
		"3.2.1", "3.2.2", "3.2.3", "3.2.4",
		"3.3.1", "3.3.2", "3.3.3", "3.3.4",
		"4.1.1", "4.1.2", "4.1.3",
	} {
		harmonisedCriteria[sc] = struct{}{}
	}
}

// CriterionFromTag converts a single axe tag to a WCAG criterion id, or "".
func CriterionFromTag(tag string) string {
	m := wcagTagPattern.FindStringSubmatch(tag)
	if m == nil {
		return ""
	}
	return m[1] + "." + m[2] + "." + m[3]
}

// CriteriaFromTags returns every WCAG criterion named by tags, in tag order.
func CriteriaFromTags(tags []string) []string {
	var out []string
	for _, tag := range tags {
		if sc := CriterionFromTag(tag); sc != "" {
			out = append(out, sc)
		}
	}
	return out
}

// CriterionFromTags returns the first WCAG criterion named by tags, or "".
func CriterionFromTags(tags []string) string {
	for _, tag := range tags {
		if sc := CriterionFromTag(tag); sc != "" {
			return sc
		}
	}
	return ""
}

// ClauseForWCAG returns the EN 301 549 web content clause harmonising a WCAG
// criterion ("1.4.3" -> "9.1.4.3"), or "" when the criterion is not part of
// the harmonised A/AA set.
func ClauseForWCAG(criterion string) string {
	if _, ok := harmonisedCriteria[criterion]; !ok {
		return ""
	}
	return "9." + criterion
}
