// Package reporting renders scan results into HTML, JSON, SARIF, JUnit and
// Markdown, and writes them to files or stdout.
package reporting

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/holmdigital/a11y-cli/api/schemas"
)

// Output formats understood by New.
const (
	FormatHTML     = "html"
	FormatJSON     = "json"
	FormatSARIF    = "sarif"
	FormatJUnit    = "junit"
	FormatMarkdown = "markdown"
)

var extensions = map[string]string{
	FormatHTML:     ".html",
	FormatJSON:     ".json",
	FormatSARIF:    ".sarif",
	FormatJUnit:    ".xml",
	FormatMarkdown: ".md",
}

// ErrSingleResult is returned when a second result is written to a reporter
// whose format holds exactly one scan.
var ErrSingleResult = errors.New("this report format holds a single scan result")

// Formats returns every supported format name, sorted.
func Formats() []string {
	out := make([]string, 0, len(extensions))
	for f := range extensions {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// ParseFormat validates a format name. "md" is accepted for Markdown.
func ParseFormat(s string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(s))
	if f == "md" {
		f = FormatMarkdown
	}
	if _, ok := extensions[f]; !ok {
		return "", fmt.Errorf("unsupported output format: %s (want one of %s)", s, strings.Join(Formats(), ", "))
	}
	return f, nil
}

// Extension returns the conventional file extension for a format.
func Extension(format string) string {
	return extensions[format]
}

// Reporter writes scan results to an output.
type Reporter interface {
	// Write processes a single scan result.
	Write(result *schemas.ScanResult) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// Options carries renderer settings.
type Options struct {
	// Lang selects the label language of HTML and Markdown reports.
	Lang string
	// ToolVersion is recorded in SARIF output.
	ToolVersion string
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a new reporter based on the specified format and output path.
// An empty path, "-" or "stdout" writes to standard output.
func New(format, outputPath string, opts Options) (Reporter, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	writer, err := openOutput(outputPath)
	if err != nil {
		return nil, err
	}
	return NewWithWriter(f, writer, opts), nil
}

// NewWithWriter creates a reporter for an already validated format. The
// reporter takes ownership of writer.
func NewWithWriter(format string, writer io.WriteCloser, opts Options) Reporter {
	switch format {
	case FormatSARIF:
		return NewSARIFReporter(writer, opts.ToolVersion)
	case FormatJUnit:
		return NewJUnitReporter(writer)
	case FormatJSON:
		return &documentReporter{writer: writer, render: RenderJSON}
	case FormatMarkdown:
		return &documentReporter{writer: writer, render: func(r *schemas.ScanResult) (string, error) {
			return RenderMarkdown(r, opts.Lang)
		}}
	default:
		return &documentReporter{writer: writer, render: func(r *schemas.ScanResult) (string, error) {
			return RenderHTML(r, HTMLOptions{Lang: opts.Lang})
		}}
	}
}

func openOutput(outputPath string) (io.WriteCloser, error) {
	if outputPath == "" || outputPath == "-" || outputPath == "stdout" {
		// Wrap Stdout so Close() is a no-op.
		return &nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
	}
	return f, nil
}

// documentReporter renders one result into a standalone document.
type documentReporter struct {
	writer  io.WriteCloser
	render  func(*schemas.ScanResult) (string, error)
	mu      sync.Mutex
	written bool
}

func (d *documentReporter) Write(result *schemas.ScanResult) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.written {
		return ErrSingleResult
	}
	out, err := d.render(result)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(d.writer, out); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	d.written = true
	return nil
}

func (d *documentReporter) Close() error {
	if err := d.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}
