package reporting

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"

	"github.com/holmdigital/a11y-cli/api/schemas"
)

// JUnitReporter writes one JUnit test suite per scanned page. Passed rules are
// passing test cases, violations are failures and incomplete checks are
// skipped, so CI systems can show accessibility results next to unit tests.
type JUnitReporter struct {
	writer io.WriteCloser
	mu     sync.Mutex
	suites []*schemas.ScanResult
}

// NewJUnitReporter creates a reporter that writes JUnit XML to writer on Close.
func NewJUnitReporter(writer io.WriteCloser) *JUnitReporter {
	return &JUnitReporter{writer: writer}
}

func (r *JUnitReporter) Write(result *schemas.ScanResult) error {
	if result == nil {
		return fmt.Errorf("cannot report a nil scan result")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suites = append(r.suites, result)
	return nil
}

func (r *JUnitReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := buildJUnit(r.suites)
	_, writeErr := doc.WriteTo(r.writer)
	closeErr := r.writer.Close()
	if writeErr != nil {
		return fmt.Errorf("failed to write JUnit output: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

// RenderJUnit renders a single result as a JUnit XML document.
func RenderJUnit(result *schemas.ScanResult) (string, error) {
	var buf bytes.Buffer
	r := NewJUnitReporter(&nopWriteCloser{&buf})
	if err := r.Write(result); err != nil {
		return "", err
	}
	if err := r.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildJUnit(suites []*schemas.ScanResult) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("testsuites")
	root.CreateAttr("name", ToolName)

	var tests, failures, skipped int
	for _, res := range suites {
		t, f, s := appendSuite(root, res)
		tests += t
		failures += f
		skipped += s
	}
	root.CreateAttr("tests", strconv.Itoa(tests))
	root.CreateAttr("failures", strconv.Itoa(failures))
	root.CreateAttr("skipped", strconv.Itoa(skipped))

	doc.Indent(2)
	return doc
}

func appendSuite(root *etree.Element, res *schemas.ScanResult) (tests, failures, skipped int) {
	suite := root.CreateElement("testsuite")
	suite.CreateAttr("name", res.URL)
	suite.CreateAttr("timestamp", res.Timestamp.UTC().Format(time.RFC3339))

	props := suite.CreateElement("properties")
	addProperty(props, "standard", string(res.Standard))
	addProperty(props, "wcagLevel", string(res.Level))
	addProperty(props, "complianceScore", strconv.Itoa(res.Summary.ComplianceScore))
	addProperty(props, "engineVersion", res.EngineVersion)

	className := "a11y." + string(res.Standard)

	for _, v := range res.Violations {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("classname", className)
		tc.CreateAttr("name", v.ID)

		failure := tc.CreateElement("failure")
		failure.CreateAttr("type", string(v.Impact))
		failure.CreateAttr("message", v.Help)
		failure.SetText(failureText(v))
		tests++
		failures++
	}
	for _, p := range res.Passes {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("classname", className)
		tc.CreateAttr("name", p.ID)
		tests++
	}
	for _, inc := range res.Incomplete {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("classname", className)
		tc.CreateAttr("name", inc.ID)
		skip := tc.CreateElement("skipped")
		skip.CreateAttr("message", inc.ManualCheckInstructions)
		tests++
		skipped++
	}

	suite.CreateAttr("tests", strconv.Itoa(tests))
	suite.CreateAttr("failures", strconv.Itoa(failures))
	suite.CreateAttr("skipped", strconv.Itoa(skipped))
	return tests, failures, skipped
}

func addProperty(props *etree.Element, name, value string) {
	p := props.CreateElement("property")
	p.CreateAttr("name", name)
	p.CreateAttr("value", value)
}

func failureText(v schemas.Violation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", v.Description)
	if c := v.Regulatory.WCAGCriterion; c != "" {
		fmt.Fprintf(&b, "WCAG %s", c)
		if clause := v.Regulatory.EN301549Clause; clause != "" {
			fmt.Fprintf(&b, " / EN 301 549 %s", clause)
		}
		b.WriteString("\n")
	}
	for _, n := range v.Nodes {
		fmt.Fprintf(&b, "- %s\n", n.Selector())
	}
	fmt.Fprintf(&b, "Fix: %s", v.Regulatory.FixSuggestion())
	return b.String()
}
