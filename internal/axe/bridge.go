// Package axe bridges the scanner and the axe-core rule engine running inside
// the browser page. axe-core itself is opaque: it is injected as a script and
// driven through a small JavaScript shim.
package axe

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	json "github.com/json-iterator/go"

	"github.com/holmdigital/a11y-cli/api/schemas"
)

var (
	//go:embed rules/en301549.js
	en301549Rules string

	//go:embed rules/doslagen.js
	dosLagenRules string
)

// ErrNoTags is returned when Run is asked to evaluate an empty tag set.
var ErrNoTags = errors.New("axe run requires at least one tag")

// Evaluator runs a script in a page. browser.Page satisfies it.
type Evaluator interface {
	Evaluate(ctx context.Context, script string, out interface{}) error
}

// CustomRuleSet is an embedded rule family registered through axe.configure.
type CustomRuleSet struct {
	Standard schemas.Standard
	Script   string
}

// CustomRules returns the rule sets to register for std, in registration order.
func CustomRules(std schemas.Standard) []CustomRuleSet {
	var sets []CustomRuleSet
	if std.Includes(schemas.StandardEN301549) {
		sets = append(sets, CustomRuleSet{Standard: schemas.StandardEN301549, Script: en301549Rules})
	}
	if std.Includes(schemas.StandardDOSLagen) {
		sets = append(sets, CustomRuleSet{Standard: schemas.StandardDOSLagen, Script: dosLagenRules})
	}
	return sets
}

const versionScript = `(window.axe && window.axe.version) || ""`

// Inject evaluates the axe-core source in the page and returns the version
// axe reports about itself.
func Inject(ctx context.Context, page Evaluator, src Source) (string, error) {
	if err := page.Evaluate(ctx, src.Script, nil); err != nil {
		return "", fmt.Errorf("failed to inject axe-core: %w", err)
	}
	var version string
	if err := page.Evaluate(ctx, versionScript, &version); err != nil {
		return "", fmt.Errorf("failed to read axe-core version: %w", err)
	}
	if version == "" {
		return "", errors.New("axe-core did not initialize after injection")
	}
	return version, nil
}

// InjectCustomRules registers the custom rules for std and returns how many
// rules were added.
func InjectCustomRules(ctx context.Context, page Evaluator, std schemas.Standard) (int, error) {
	total := 0
	for _, set := range CustomRules(std) {
		var n int
		if err := page.Evaluate(ctx, set.Script, &n); err != nil {
			return total, fmt.Errorf("failed to register %s rules: %w", set.Standard, err)
		}
		total += n
	}
	return total, nil
}

// runScript invokes axe.run with a tag filter and slims the result before it
// crosses the protocol boundary. Passed rules keep only their node count.
const runScript = `(async function (tags) {
  if (!window.axe) {
    throw new Error('axe-core is not loaded');
  }
  var results = await window.axe.run(document, { runOnly: { type: 'tag', values: tags } });
  function slim(rule, withNodes) {
    return {
      id: rule.id,
      description: rule.description,
      help: rule.help,
      helpUrl: rule.helpUrl,
      impact: rule.impact || '',
      tags: rule.tags || [],
      nodeCount: (rule.nodes || []).length,
      nodes: withNodes ? (rule.nodes || []).map(function (n) {
        return {
          html: n.html || '',
          target: n.target || [],
          failureSummary: n.failureSummary || '',
          impact: n.impact || ''
        };
      }) : []
    };
  }
  return {
    testEngine: results.testEngine || {},
    violations: results.violations.map(function (r) { return slim(r, true); }),
    passes: results.passes.map(function (r) { return slim(r, false); }),
    incomplete: results.incomplete.map(function (r) { return slim(r, true); })
  };
})(%s)`

// RunScript renders the evaluation script for tags.
func RunScript(tags []string) (string, error) {
	if len(tags) == 0 {
		return "", ErrNoTags
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return fmt.Sprintf(runScript, encoded), nil
}

// Run evaluates the page with the rules matching tags.
func Run(ctx context.Context, page Evaluator, tags []string) (*RawResults, error) {
	script, err := RunScript(tags)
	if err != nil {
		return nil, err
	}
	var res RawResults
	if err := page.Evaluate(ctx, script, &res); err != nil {
		return nil, fmt.Errorf("axe run failed: %w", err)
	}
	return &res, nil
}
