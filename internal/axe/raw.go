package axe

import (
	"fmt"
	"strings"

	json "github.com/json-iterator/go"
)

// shadowSeparator joins the hops of a target that crosses shadow roots or frames.
const shadowSeparator = " >>> "

// RawResults is the subset of an axe.run result the bridge returns.
type RawResults struct {
	TestEngine TestEngine `json:"testEngine"`
	Violations []RawRule  `json:"violations"`
	Passes     []RawRule  `json:"passes"`
	Incomplete []RawRule  `json:"incomplete"`
}

// TestEngine identifies the axe-core build that produced the results.
type TestEngine struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// RawRule is one rule outcome. Passes carry NodeCount but no node details.
type RawRule struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Help        string    `json:"help"`
	HelpURL     string    `json:"helpUrl"`
	Impact      string    `json:"impact"`
	Tags        []string  `json:"tags"`
	Nodes       []RawNode `json:"nodes"`
	NodeCount   int       `json:"nodeCount"`
}

// RawNode is one element a rule was evaluated on.
type RawNode struct {
	HTML           string `json:"html"`
	Target         Target `json:"target"`
	FailureSummary string `json:"failureSummary"`
	Impact         string `json:"impact"`
}

// Target is an axe node selector path. Plain selectors arrive as strings;
// hops into shadow roots arrive as nested arrays and are flattened.
type Target []string

// UnmarshalJSON accepts a string, an array of strings, or an array mixing
// strings and string arrays.
func (t *Target) UnmarshalJSON(data []byte) error {
	var items []interface{}
	if err := json.Unmarshal(data, &items); err != nil {
		var single string
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			return fmt.Errorf("invalid axe target %s: %w", truncate(data), err)
		}
		*t = Target{single}
		return nil
	}

	out := make(Target, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case []interface{}:
			hops := make([]string, 0, len(v))
			for _, h := range v {
				s, ok := h.(string)
				if !ok {
					return fmt.Errorf("invalid axe target hop %v", h)
				}
				hops = append(hops, s)
			}
			out = append(out, strings.Join(hops, shadowSeparator))
		case nil:
		default:
			return fmt.Errorf("invalid axe target element %v", v)
		}
	}
	*t = out
	return nil
}

func truncate(b []byte) string {
	const limit = 64
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
