package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holmdigital/a11y-cli/api/schemas"
	"github.com/holmdigital/a11y-cli/internal/scanner"
)

func TestBatchCmd_WritesOneReportPerURL(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("batch", "https://a.test", "https://b.test/page", "-j", "2", "-f", "json", "--output-dir", "reports")
	require.NoError(t, err)
	assert.Contains(t, out, "Scanned 2 URLs, 0 failed")

	entries, err := os.ReadDir(filepath.Join(env.dir, "reports"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	require.Len(t, names, 2)
	assert.Regexp(t, `^a\.test-[0-9a-f]{8}\.json$`, names[0])
	assert.Regexp(t, `^b\.test-[0-9a-f]{8}\.json$`, names[1])
	assert.Len(t, env.scanner.calls(), 2)
}

func TestBatchCmd_FromFile(t *testing.T) {
	env := newTestEnv(t)
	list := "# sites\nhttps://a.test\n\n  https://b.test  \n"
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "urls.txt"), []byte(list), 0o600))

	_, err := env.run("batch", "https://c.test", "--file", "urls.txt", "--output-dir", "out")
	require.NoError(t, err)

	var urls []string
	for _, c := range env.scanner.calls() {
		urls = append(urls, c.URL)
	}
	assert.ElementsMatch(t, []string{"https://a.test", "https://b.test", "https://c.test"}, urls)
}

func TestBatchCmd_NoURLs(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run("batch")
	assert.ErrorContains(t, err, "no URLs given")
}

func TestBatchCmd_InvalidURLStopsBeforeScanning(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run("batch", "https://a.test", "not a url")
	require.Error(t, err)
	assert.Empty(t, env.scanner.calls())
}

func TestBatchCmd_PartialFailure(t *testing.T) {
	env := newTestEnv(t)
	env.scanner.fail = map[string]error{"https://bad.test": &scanner.LaunchError{Err: errors.New("chrome not found")}}

	out, err := env.run("batch", "https://ok.test", "https://bad.test", "--save", "--output-dir", "out")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 scans failed")
	assert.Contains(t, out, "https://bad.test: browser launch failed: chrome not found")
	assert.Contains(t, out, "Scanned 2 URLs, 1 failed")

	require.Len(t, env.repo.saved, 1)
	assert.Equal(t, "https://ok.test", env.repo.saved[0].URL)
}

func TestBatchCmd_CIGate(t *testing.T) {
	env := newTestEnv(t)
	env.scanner.critical = true

	_, err := env.run("batch", "https://a.test", "https://b.test", "--ci", "--output-dir", "out")
	assert.ErrorIs(t, err, ErrCriticalViolations)
}

func TestReportFileName(t *testing.T) {
	res := &schemas.ScanResult{
		ScanID:    "0f8fad5b-d9cb-469f-a165-70867728950e",
		URL:       "https://Sub.Example.test:8443/a/b",
		Timestamp: time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, "sub.example.test-0f8fad5b.html", reportFileName(res, "html"))

	res.URL = "::broken"
	res.ScanID = ""
	assert.Equal(t, "page-20251103T100000.md", reportFileName(res, "markdown"))
}
