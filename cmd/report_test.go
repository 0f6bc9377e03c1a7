package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holmdigital/a11y-cli/api/schemas"
	"github.com/holmdigital/a11y-cli/internal/scanner"
	"github.com/holmdigital/a11y-cli/internal/store"
)

func TestReportCmd_FromJSONFile(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run("scan", "https://example.test", "-f", "json", "-o", "result.json")
	require.NoError(t, err)

	out, err := env.run("report", "-i", "result.json", "-f", "markdown", "-o", "result.md")
	require.NoError(t, err)
	assert.Contains(t, out, "Report saved to result.md")

	data, err := os.ReadFile(filepath.Join(env.dir, "result.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://example.test")
	assert.Contains(t, string(data), "color-contrast")
}

func TestReportCmd_FromStore(t *testing.T) {
	env := newTestEnv(t)
	stored := fakeResult(scanner.Config{URL: "https://stored.test", Standard: schemas.StandardAll, Level: schemas.LevelAA}, false)
	env.repo.saved = append(env.repo.saved, stored)

	_, err := env.run("report", "--scan-id", stored.ScanID, "-f", "sarif", "-o", "stored.sarif")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(env.dir, "stored.sarif"))
	assert.Equal(t, 1, env.repo.closed)
}

func TestReportCmd_UnknownScanID(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run("report", "--scan-id", "missing", "-o", "x.html")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReportCmd_FlagRules(t *testing.T) {
	t.Run("needs a source", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.run("report")
		assert.Error(t, err)
	})

	t.Run("sources are exclusive", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.run("report", "-i", "a.json", "--scan-id", "abc")
		assert.Error(t, err)
	})
}

func TestReportCmd_InvalidInput(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "bad.json"), []byte("{not json"), 0o600))

	_, err := env.run("report", "-i", "bad.json")
	assert.ErrorContains(t, err, "failed to parse scan result")

	_, err = env.run("report", "-i", "missing.json")
	assert.ErrorContains(t, err, "failed to read scan result")
}
